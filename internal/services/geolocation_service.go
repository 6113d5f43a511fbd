package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bradfitz/latlong"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
)

const DefaultGeoLookupURL = "https://ipapi.co"

type GeolocationService interface {
	// Lookup resolves ip to a location. A nil location with a nil error
	// means there was nothing to look up (empty or private address).
	Lookup(ctx context.Context, ip string) (*models.Geolocation, error)
}

type ipGeolocationService struct {
	baseURL    string
	httpClient *http.Client
}

func NewGeolocationService(baseURL string) GeolocationService {
	if baseURL == "" {
		baseURL = DefaultGeoLookupURL
	}
	return &ipGeolocationService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// ipapiResponse is the ipapi.co JSON shape.
type ipapiResponse struct {
	City        string   `json:"city"`
	Region      string   `json:"region"`
	CountryName string   `json:"country_name"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Timezone    string   `json:"timezone"`
	Error       bool     `json:"error"`
	Reason      string   `json:"reason"`
}

func (s *ipGeolocationService) Lookup(ctx context.Context, ip string) (*models.Geolocation, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return nil, nil
	}

	url := fmt.Sprintf("%s/%s/json/", s.baseURL, parsed.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation lookup: status %d", resp.StatusCode)
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("geolocation decode: %w", err)
	}
	if body.Error {
		return nil, fmt.Errorf("geolocation lookup: %s", body.Reason)
	}

	loc := &models.Geolocation{
		Country:   body.CountryName,
		Region:    body.Region,
		City:      body.City,
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
		Timezone:  body.Timezone,
	}
	if loc.Timezone == "" && loc.Latitude != nil && loc.Longitude != nil {
		loc.Timezone = latlong.LookupZoneName(*loc.Latitude, *loc.Longitude)
	}
	return loc, nil
}
