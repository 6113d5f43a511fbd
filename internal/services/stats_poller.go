package services

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/backend"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/metrics"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

type PollStatus string

const (
	StatusConnecting PollStatus = "connecting"
	StatusConnected  PollStatus = "connected"
	StatusOffline    PollStatus = "offline"
	StatusCorsError  PollStatus = "cors-error"
	StatusError      PollStatus = "error"
)

var allPollStatuses = []string{
	string(StatusConnecting),
	string(StatusConnected),
	string(StatusOffline),
	string(StatusCorsError),
	string(StatusError),
}

const (
	msgConnecting = "Connecting to the waitlist service..."
	msgConnected  = "Live waitlist numbers."
	msgOffline    = "You appear to be offline or the waitlist service is unreachable. Showing the last known numbers."
	msgCors       = "The waitlist service blocked this site's origin (CORS). Add the origin under API settings in the Supabase dashboard."
	msgError      = "Waitlist numbers are temporarily unavailable. Showing the last known numbers."
)

const (
	DefaultPollBaseInterval   = 60 * time.Second
	DefaultPollMaxInterval    = 600 * time.Second
	DefaultPollRequestTimeout = 30 * time.Second
	DefaultPollFailureLimit   = 3
)

// StatsFetcher is satisfied by RegistrationService.
type StatsFetcher interface {
	FetchWaitlistStats(ctx context.Context) (models.WaitlistStats, error)
}

type StatsPollerOptions struct {
	BaseInterval   time.Duration
	MaxInterval    time.Duration
	RequestTimeout time.Duration
	FailureLimit   int
	Logger         logrus.FieldLogger
	Now            func() time.Time
}

// StatsSnapshot is the poller state exposed to callers.
type StatsSnapshot struct {
	Status              PollStatus            `json:"status"`
	Message             string                `json:"message"`
	Stats               *models.WaitlistStats `json:"stats,omitempty"`
	LastSuccess         *time.Time            `json:"last_success,omitempty"`
	ConsecutiveFailures int                   `json:"consecutive_failures"`
	CorsError           bool                  `json:"cors_error"`
	BreakerOpen         bool                  `json:"breaker_open"`
}

// StatsPoller periodically fetches waitlist stats. A tick is skipped while a
// request is in flight or while the breaker is open. The breaker opens after
// FailureLimit consecutive failures and lets a single probe through once
// MaxInterval has passed since the last attempt.
type StatsPoller struct {
	fetcher        StatsFetcher
	baseInterval   time.Duration
	maxInterval    time.Duration
	requestTimeout time.Duration
	failureLimit   int
	log            logrus.FieldLogger
	now            func() time.Time

	mu          sync.Mutex
	status      PollStatus
	message     string
	failures    int
	corsFlag    bool
	inFlight    bool
	lastAttempt time.Time
	lastSuccess time.Time
	stats       *models.WaitlistStats

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	stop      chan struct{}
	done      chan struct{}
}

func NewStatsPoller(fetcher StatsFetcher, opts StatsPollerOptions) *StatsPoller {
	p := &StatsPoller{
		fetcher:        fetcher,
		baseInterval:   opts.BaseInterval,
		maxInterval:    opts.MaxInterval,
		requestTimeout: opts.RequestTimeout,
		failureLimit:   opts.FailureLimit,
		log:            opts.Logger,
		now:            opts.Now,
		status:         StatusConnecting,
		message:        msgConnecting,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	if p.baseInterval <= 0 {
		p.baseInterval = DefaultPollBaseInterval
	}
	if p.maxInterval <= 0 {
		p.maxInterval = DefaultPollMaxInterval
	}
	if p.requestTimeout <= 0 {
		p.requestTimeout = DefaultPollRequestTimeout
	}
	if p.failureLimit <= 0 {
		p.failureLimit = DefaultPollFailureLimit
	}
	if p.log == nil {
		p.log = utils.Logger
	}
	if p.now == nil {
		p.now = time.Now
	}
	metrics.SetPollerStatus(string(p.status), allPollStatuses)
	return p
}

// Tick runs one poll unless a guard skips it. It reports whether a request
// was issued.
func (p *StatsPoller) Tick(ctx context.Context) bool {
	p.mu.Lock()
	if p.inFlight || p.breakerOpenLocked() {
		p.mu.Unlock()
		return false
	}
	p.inFlight = true
	p.lastAttempt = p.now()
	p.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	stats, err := p.fetcher.FetchWaitlistStats(reqCtx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false

	switch {
	case err == nil:
		p.failures = 0
		p.corsFlag = false
		p.lastSuccess = p.now()
		p.stats = &stats
		p.setStatusLocked(StatusConnected, msgConnected)
		metrics.WaitlistTotalUsers.Set(float64(stats.TotalUsers))
	case utils.IsCancellation(err):
		// Timeouts and aborts leave the breaker alone.
	default:
		p.failures++
		status, msg := classifyPollError(err)
		p.corsFlag = status == StatusCorsError
		p.setStatusLocked(status, msg)
		p.log.WithError(err).WithFields(logrus.Fields{
			"status":   status,
			"failures": p.failures,
		}).Warn("Waitlist stats poll failed")
	}
	metrics.PollerConsecutiveFailures.Set(float64(p.failures))
	return true
}

func (p *StatsPoller) setStatusLocked(status PollStatus, msg string) {
	p.status = status
	p.message = msg
	metrics.SetPollerStatus(string(status), allPollStatuses)
}

func (p *StatsPoller) breakerOpenLocked() bool {
	if p.failures < p.failureLimit {
		return false
	}
	return p.now().Sub(p.lastAttempt) < p.maxInterval
}

// NextInterval is the base interval while healthy and
// min(base * 2^failures, max) after failures.
func (p *StatsPoller) NextInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextIntervalLocked()
}

func (p *StatsPoller) nextIntervalLocked() time.Duration {
	return BackoffInterval(p.baseInterval, p.maxInterval, p.failures)
}

// BackoffInterval returns min(base * 2^failures, max), or base when there
// are no failures.
func BackoffInterval(base, ceiling time.Duration, failures int) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}

// untilNextTick also waits out the breaker cooldown so the half-open probe
// is not skipped.
func (p *StatsPoller) untilNextTick() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.nextIntervalLocked()
	if p.failures >= p.failureLimit {
		if remaining := p.maxInterval - p.now().Sub(p.lastAttempt); remaining > d {
			d = remaining
		}
	}
	return d
}

func (p *StatsPoller) Snapshot() StatsSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := StatsSnapshot{
		Status:              p.status,
		Message:             p.message,
		ConsecutiveFailures: p.failures,
		CorsError:           p.corsFlag,
		BreakerOpen:         p.breakerOpenLocked(),
	}
	if p.stats != nil {
		s := *p.stats
		snap.Stats = &s
	}
	if !p.lastSuccess.IsZero() {
		t := p.lastSuccess
		snap.LastSuccess = &t
	}
	return snap
}

// Start polls immediately and then on the backoff schedule until Stop is
// called or ctx is done.
func (p *StatsPoller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel
		go p.run(runCtx)
	})
}

func (p *StatsPoller) run(ctx context.Context) {
	defer close(p.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-timer.C:
			p.Tick(ctx)
			timer.Reset(p.untilNextTick())
		}
	}
}

// Stop ends the loop started by Start, aborts an in-flight request and
// waits for the loop to exit.
func (p *StatsPoller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	started := true
	p.startOnce.Do(func() { started = false })
	if started {
		p.cancel()
		<-p.done
	}
}

var corsPhrases = []string{"failed to fetch", "cross-origin", "cors"}

func classifyPollError(err error) (PollStatus, string) {
	switch backend.KindOf(err) {
	case backend.KindNetwork:
		return StatusOffline, msgOffline
	case backend.KindCors:
		return StatusCorsError, msgCors
	}

	lower := strings.ToLower(err.Error())
	for _, phrase := range corsPhrases {
		if strings.Contains(lower, phrase) {
			return StatusCorsError, msgCors
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return StatusOffline, msgOffline
	}
	return StatusError, msgError
}
