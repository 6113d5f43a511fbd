package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

const (
	restPrefix      = "/rest/v1"
	functionsPrefix = "/functions/v1"
)

// Settings configures a Client. URL and AnonKey are required; when either
// is missing or malformed the client is still constructed but every call
// fails with KindConfig without touching the network.
type Settings struct {
	URL     string
	AnonKey string

	// Origin, when set, is sent with every request and the response must
	// allow it through Access-Control-Allow-Origin.
	Origin string

	HTTPClient   *http.Client
	MaxRetries   int           // retries on 429
	RetryInitial time.Duration // initial backoff for 429
}

// Client talks to a Supabase-style backend: PostgREST tables, RPC functions
// and edge functions.
type Client struct {
	baseURL      *url.URL
	anonKey      string
	origin       string
	httpClient   *http.Client
	maxRetries   int
	retryInitial time.Duration

	configErr *Error
}

func NewClient(s Settings) *Client {
	c := &Client{
		anonKey:      s.AnonKey,
		origin:       strings.TrimRight(s.Origin, "/"),
		httpClient:   s.HTTPClient,
		maxRetries:   s.MaxRetries,
		retryInitial: s.RetryInitial,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryInitial <= 0 {
		c.retryInitial = 500 * time.Millisecond
	}

	switch {
	case strings.TrimSpace(s.URL) == "" || strings.TrimSpace(s.AnonKey) == "":
		c.configErr = NewError(KindConfig, "backend", "backend URL and anon key must be configured", nil)
	default:
		parsed, err := url.Parse(strings.TrimSpace(s.URL))
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			c.configErr = NewError(KindConfig, "backend", fmt.Sprintf("malformed backend URL %q", s.URL), err)
		} else {
			c.baseURL = parsed
		}
	}
	return c
}

// ConfigError returns the configuration problem detected at construction,
// or nil when the client is usable.
func (c *Client) ConfigError() error {
	if c.configErr == nil {
		return nil
	}
	return c.configErr
}

// Filter is a PostgREST horizontal filter, e.g. Eq("id", x) -> id=eq.x.
type Filter struct {
	Column   string
	Operator string
	Value    string
}

func Eq(column, value string) Filter {
	return Filter{Column: column, Operator: "eq", Value: value}
}

// Query narrows a Select.
type Query struct {
	Columns string
	Filters []Filter
	Order   string
	Limit   int
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.Columns != "" {
		v.Set("select", q.Columns)
	}
	for _, f := range q.Filters {
		v.Add(f.Column, f.Operator+"."+f.Value)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	prefer string
}

// Insert creates rows in table and decodes the representation into out
// (normally a pointer to a slice).
func (c *Client) Insert(ctx context.Context, table string, row any, out any) error {
	_, err := c.do(ctx, request{
		op:     "insert " + table,
		method: http.MethodPost,
		path:   path.Join(restPrefix, table),
		body:   row,
		prefer: "return=representation",
	}, out)
	return err
}

// Update patches every row matching filters.
func (c *Client) Update(ctx context.Context, table string, filters []Filter, patch any, out any) error {
	_, err := c.do(ctx, request{
		op:     "update " + table,
		method: http.MethodPatch,
		path:   path.Join(restPrefix, table),
		query:  Query{Filters: filters}.values(),
		body:   patch,
		prefer: "return=representation",
	}, out)
	return err
}

func (c *Client) Select(ctx context.Context, table string, q Query, out any) error {
	_, err := c.do(ctx, request{
		op:     "select " + table,
		method: http.MethodGet,
		path:   path.Join(restPrefix, table),
		query:  q.values(),
	}, out)
	return err
}

// Count returns the exact row count of table without fetching rows.
func (c *Client) Count(ctx context.Context, table string, filters ...Filter) (int, error) {
	op := "count " + table
	header, err := c.do(ctx, request{
		op:     op,
		method: http.MethodHead,
		path:   path.Join(restPrefix, table),
		query:  Query{Filters: filters}.values(),
		prefer: "count=exact",
	}, nil)
	if err != nil {
		return 0, err
	}
	n, perr := parseContentRange(header.Get("Content-Range"))
	if perr != nil {
		return 0, NewError(KindBackend, op, perr.Error(), perr)
	}
	return n, nil
}

// RPC calls a Postgres function exposed under /rest/v1/rpc.
func (c *Client) RPC(ctx context.Context, fn string, args any, out any) error {
	_, err := c.do(ctx, request{
		op:     "rpc " + fn,
		method: http.MethodPost,
		path:   path.Join(restPrefix, "rpc", fn),
		body:   args,
	}, out)
	return err
}

// Invoke calls an edge function.
func (c *Client) Invoke(ctx context.Context, fn string, payload any, out any) error {
	_, err := c.do(ctx, request{
		op:     "invoke " + fn,
		method: http.MethodPost,
		path:   path.Join(functionsPrefix, fn),
		body:   payload,
	}, out)
	return err
}

// do retries rate-limited calls with exponential backoff; every other
// failure is returned immediately.
func (c *Client) do(ctx context.Context, r request, out any) (http.Header, error) {
	if c.configErr != nil {
		return nil, NewError(KindConfig, r.op, c.configErr.Message, c.configErr.Err)
	}

	backoff := c.retryInitial
	for attempt := 0; ; attempt++ {
		header, status, err := c.doOnce(ctx, r, out)
		if err == nil {
			return header, nil
		}
		if status != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return header, err
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, utils.NewCancellationError(r.op, ctx.Err())
		case <-t.C:
		}
		backoff *= 2
	}
}

func (c *Client) doOnce(ctx context.Context, r request, out any) (http.Header, int, error) {
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, r.path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var reqBody io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return nil, 0, NewError(KindBackend, r.op, "failed to marshal request body", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), reqBody)
	if err != nil {
		return nil, 0, NewError(KindBackend, r.op, "failed to create request", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Only the caller's context makes this a cancellation; the
		// http.Client's own timeout is a network failure.
		if ctx.Err() != nil {
			return nil, 0, utils.NewCancellationError(r.op, err)
		}
		return nil, 0, NewError(KindNetwork, r.op, "network request failed", err)
	}
	defer resp.Body.Close()

	if c.origin != "" && !c.originAllowed(resp.Header.Get("Access-Control-Allow-Origin")) {
		io.Copy(io.Discard, resp.Body)
		return resp.Header, resp.StatusCode, NewError(KindCors, r.op,
			fmt.Sprintf("origin %s is not allowed by the backend (cross-origin request blocked)", c.origin), nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, resp.StatusCode, handleHTTPError(r.op, resp)
	}

	if out == nil || r.method == http.MethodHead {
		io.Copy(io.Discard, resp.Body)
		return resp.Header, resp.StatusCode, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, resp.StatusCode, utils.NewCancellationError(r.op, err)
		}
		return nil, resp.StatusCode, NewError(KindNetwork, r.op, "failed to read response", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.Header, resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, resp.StatusCode, NewError(KindBackend, r.op, "failed to decode response", err)
	}
	return resp.Header, resp.StatusCode, nil
}

func (c *Client) originAllowed(acao string) bool {
	acao = strings.TrimRight(strings.TrimSpace(acao), "/")
	return acao == "*" || strings.EqualFold(acao, c.origin)
}

// apiError covers the PostgREST error body and the {error|msg} shape
// returned by edge functions and the auth gateway.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Error   string `json:"error"`
	Msg     string `json:"msg"`
}

func (a apiError) text() string {
	for _, s := range []string{a.Message, a.Error, a.Msg} {
		if s != "" {
			return s
		}
	}
	return ""
}

func handleHTTPError(op string, resp *http.Response) error {
	status := resp.StatusCode
	raw, _ := io.ReadAll(resp.Body)

	var apiErr apiError
	msg := ""
	if err := json.Unmarshal(raw, &apiErr); err == nil {
		msg = apiErr.text()
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusConflict || apiErr.Code == "23505":
		return NewError(KindDuplicate, op, msg, nil)
	case status == http.StatusNotFound:
		return NewError(KindNotFound, op, msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(KindConfig, op, fmt.Sprintf("backend rejected credentials (%d): %s", status, msg), nil)
	default:
		return NewError(KindBackend, op, fmt.Sprintf("http error (%d): %s", status, msg), nil)
	}
}

// parseContentRange reads the total from "0-24/573" or "*/0".
func parseContentRange(v string) (int, error) {
	slash := strings.LastIndex(v, "/")
	if slash < 0 || slash == len(v)-1 {
		return 0, fmt.Errorf("missing count in Content-Range %q", v)
	}
	total := v[slash+1:]
	if total == "*" {
		return 0, fmt.Errorf("backend did not return an exact count (%q)", v)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Range %q: %w", v, err)
	}
	return n, nil
}
