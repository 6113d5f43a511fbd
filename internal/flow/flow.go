package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

type State string

const (
	StateEmail        State = "email"
	StateName         State = "name"
	StateVerification State = "verification"
	StateProcessing   State = "processing"
	StateQuiz         State = "quiz"
)

const (
	DefaultEmailDebounce = 2500 * time.Millisecond
	DefaultNameDebounce  = 2 * time.Second
)

var (
	ErrClosed       = errors.New("registration flow is closed")
	ErrInvalidState = errors.New("action not allowed in the current step")
	ErrEmptyCode    = errors.New("please enter the verification code")
)

// Registrar persists a confirmed registration.
type Registrar interface {
	Register(ctx context.Context, name, email string, userType models.UserType) (*models.WaitlistUser, error)
}

// CodeIssuer is satisfied by services.VerificationCodeService.
type CodeIssuer interface {
	Generate(key, email string) models.VerificationCode
	Validate(key, input string) (*models.VerificationCode, error)
	Clear(key string)
}

// FallbackSink receives locally synthesized users for later reconciliation.
type FallbackSink interface {
	Enqueue(u *models.WaitlistUser)
}

type Deps struct {
	Registrar Registrar
	Codes     CodeIssuer
	Fallbacks FallbackSink
}

type Options struct {
	Scheduler     Scheduler
	EmailDebounce time.Duration
	NameDebounce  time.Duration
	Logger        logrus.FieldLogger

	// FallbackPosition picks the synthetic position of a placeholder user.
	FallbackPosition func() int
}

// Snapshot is the externally visible state of a Flow.
type Snapshot struct {
	ID            string               `json:"id"`
	State         State                `json:"state"`
	Email         string               `json:"email"`
	Name          string               `json:"name"`
	UserType      models.UserType      `json:"user_type"`
	DisplayedCode string               `json:"displayed_code,omitempty"`
	CodeError     string               `json:"code_error,omitempty"`
	User          *models.WaitlistUser `json:"user,omitempty"`
	Fallback      bool                 `json:"fallback"`
}

// Flow drives one registration form: email, then name (both debounced),
// then the verification code, then registration. Every edit bumps a
// generation counter so a timer armed for older input is ignored.
type Flow struct {
	id   string
	deps Deps
	opts Options
	log  logrus.FieldLogger

	mu            sync.Mutex
	state         State
	email         string
	name          string
	userType      models.UserType
	displayedCode string
	codeError     string
	user          *models.WaitlistUser
	gen           uint64
	timer         Timer
	closed        bool
}

func New(id string, userType models.UserType, deps Deps, opts Options) *Flow {
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler
	}
	if opts.EmailDebounce <= 0 {
		opts.EmailDebounce = DefaultEmailDebounce
	}
	if opts.NameDebounce <= 0 {
		opts.NameDebounce = DefaultNameDebounce
	}
	if opts.FallbackPosition == nil {
		opts.FallbackPosition = func() int { return int(utils.RandomIntInRange(1000, 9999)) }
	}
	log := opts.Logger
	if log == nil {
		log = utils.Logger
	}
	return &Flow{
		id:       id,
		deps:     deps,
		opts:     opts,
		log:      log.WithField("flow_id", id),
		state:    StateEmail,
		userType: userType,
	}
}

func (f *Flow) ID() string { return f.id }

// SetEmail records an email edit. A valid email in the email step arms the
// debounce that advances to the name step; an invalid email while in the
// name step sends the flow back to the email step.
func (f *Flow) SetEmail(email string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return f.snapshotLocked(), ErrClosed
	}
	if f.state != StateEmail && f.state != StateName {
		return f.snapshotLocked(), ErrInvalidState
	}

	f.email = strings.TrimSpace(email)
	f.bumpLocked()

	valid := utils.IsEmailShape(f.email)
	switch {
	case f.state == StateName && !valid:
		f.state = StateEmail
	case f.state == StateEmail && valid:
		f.armLocked(f.opts.EmailDebounce, f.enterName)
	}
	return f.snapshotLocked(), nil
}

// SetName records a name edit; a non-empty name arms the debounce that
// enters the verification step.
func (f *Flow) SetName(name string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return f.snapshotLocked(), ErrClosed
	}
	if f.state != StateName {
		return f.snapshotLocked(), ErrInvalidState
	}

	f.name = strings.TrimSpace(name)
	f.bumpLocked()
	if f.name != "" {
		f.armLocked(f.opts.NameDebounce, f.enterVerification)
	}
	return f.snapshotLocked(), nil
}

func (f *Flow) enterName(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || gen != f.gen || f.state != StateEmail || !utils.IsEmailShape(f.email) {
		return
	}
	f.timer = nil
	f.state = StateName
	if f.name != "" {
		f.armLocked(f.opts.NameDebounce, f.enterVerification)
	}
}

func (f *Flow) enterVerification(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || gen != f.gen || f.state != StateName || f.name == "" {
		return
	}
	f.timer = nil
	f.state = StateVerification
	f.codeError = ""
	f.displayedCode = f.deps.Codes.Generate(f.id, f.email).Code
}

// Submit checks the entered code. A mismatch regenerates the code and
// stays in verification. A match registers the user; if registration
// fails a placeholder user is created so the flow still reaches the quiz.
func (f *Flow) Submit(ctx context.Context, input string) (Snapshot, error) {
	name, email, userType, err := f.checkCode(input)
	if err != nil {
		return f.Snapshot(), err
	}

	user, regErr := f.deps.Registrar.Register(ctx, name, email, userType)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return f.snapshotLocked(), ErrClosed
	}

	if regErr != nil || user == nil {
		user = models.NewFallbackUser(name, email, userType, f.opts.FallbackPosition())
		entry := f.log.WithField("email", utils.MaskEmail(email))
		if regErr != nil && !utils.IsCancellation(regErr) {
			entry = entry.WithError(regErr)
		}
		entry.Warn("Registration failed, continuing with a local placeholder user")
		if f.deps.Fallbacks != nil {
			f.deps.Fallbacks.Enqueue(user)
		}
	}
	f.user = user
	f.state = StateQuiz
	return f.snapshotLocked(), nil
}

// checkCode validates input and, on a match, moves the flow to processing.
func (f *Flow) checkCode(input string) (string, string, models.UserType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", "", "", ErrClosed
	}
	if f.state != StateVerification {
		return "", "", "", ErrInvalidState
	}

	input = strings.TrimSpace(input)
	if input == "" {
		f.codeError = ErrEmptyCode.Error()
		return "", "", "", ErrEmptyCode
	}

	next, err := f.deps.Codes.Validate(f.id, input)
	if err != nil {
		f.codeError = err.Error()
		switch {
		case next != nil:
			f.displayedCode = next.Code
		case !errors.Is(err, utils.ErrRateLimitExceeded):
			// Expired or missing: issue a fresh code so the user is not stuck.
			f.displayedCode = f.deps.Codes.Generate(f.id, f.email).Code
		}
		return "", "", "", err
	}

	f.state = StateProcessing
	f.codeError = ""
	f.displayedCode = ""
	return f.name, f.email, f.userType, nil
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Close stops any pending timer and discards the active code. It is safe
// to call more than once.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.bumpLocked()
	if f.deps.Codes != nil {
		f.deps.Codes.Clear(f.id)
	}
}

func (f *Flow) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// bumpLocked invalidates any armed timer.
func (f *Flow) bumpLocked() {
	f.gen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Flow) armLocked(d time.Duration, fn func(gen uint64)) {
	gen := f.gen
	f.timer = f.opts.Scheduler.AfterFunc(d, func() { fn(gen) })
}

func (f *Flow) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        f.id,
		State:     f.state,
		Email:     f.email,
		Name:      f.name,
		UserType:  f.userType,
		CodeError: f.codeError,
	}
	if f.state == StateVerification {
		snap.DisplayedCode = f.displayedCode
	}
	if f.user != nil {
		u := *f.user
		snap.User = &u
		snap.Fallback = u.IsLocalFallback()
	}
	return snap
}
