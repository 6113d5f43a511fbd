package flow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/flow"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/services"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/storage"
)

// fakeScheduler records timers and fires them on demand.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) flow.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// fireAll runs every pending timer, including stopped ones when force is set.
func (s *fakeScheduler) fireAll(force bool) {
	s.mu.Lock()
	pending := append([]*fakeTimer(nil), s.timers...)
	s.mu.Unlock()
	for _, t := range pending {
		if t.fired || (t.stopped && !force) {
			continue
		}
		t.fired = true
		t.f()
	}
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

type fakeRegistrar struct {
	err   error
	calls int
}

func (r *fakeRegistrar) Register(_ context.Context, name, email string, userType models.UserType) (*models.WaitlistUser, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	pos := 17
	return &models.WaitlistUser{
		ID: uuid.New(), Name: name, Email: email, UserType: userType,
		IsVerified: true, WaitlistPosition: &pos, Origin: models.OriginBackend,
	}, nil
}

type sinkRecorder struct{ users []*models.WaitlistUser }

func (s *sinkRecorder) Enqueue(u *models.WaitlistUser) { s.users = append(s.users, u) }

type harness struct {
	flow  *flow.Flow
	sched *fakeScheduler
	reg   *fakeRegistrar
	sink  *sinkRecorder
	codes *services.VerificationCodeService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()
	h := &harness{
		sched: &fakeScheduler{},
		reg:   &fakeRegistrar{},
		sink:  &sinkRecorder{},
		codes: services.NewVerificationCodeService(storage.NewMemoryCodeStore(time.Hour)),
	}
	h.flow = flow.New("flow-1", models.UserTypeCatParent, flow.Deps{
		Registrar: h.reg,
		Codes:     h.codes,
		Fallbacks: h.sink,
	}, flow.Options{
		Scheduler:        h.sched,
		Logger:           logger,
		FallbackPosition: func() int { return 4242 },
	})
	t.Cleanup(h.flow.Close)
	return h
}

// toVerification drives the flow through the debounced steps.
func (h *harness) toVerification(t *testing.T) flow.Snapshot {
	t.Helper()
	_, err := h.flow.SetEmail("alice@example.com")
	require.NoError(t, err)
	h.sched.fireAll(false)
	_, err = h.flow.SetName("Alice")
	require.NoError(t, err)
	h.sched.fireAll(false)
	snap := h.flow.Snapshot()
	require.Equal(t, flow.StateVerification, snap.State)
	return snap
}

func TestEmailDebounceAdvancesToName(t *testing.T) {
	h := newHarness(t)

	snap, err := h.flow.SetEmail("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, flow.StateEmail, snap.State)
	require.NotNil(t, h.sched.last())
	assert.Equal(t, flow.DefaultEmailDebounce, h.sched.last().d)

	h.sched.fireAll(false)
	assert.Equal(t, flow.StateName, h.flow.Snapshot().State)
}

func TestInvalidEmailDoesNotArm(t *testing.T) {
	h := newHarness(t)
	_, err := h.flow.SetEmail("alice@")
	require.NoError(t, err)
	assert.Nil(t, h.sched.last())
}

func TestEmailEditResetsDebounce(t *testing.T) {
	h := newHarness(t)

	_, _ = h.flow.SetEmail("alice@example.co")
	first := h.sched.last()
	_, _ = h.flow.SetEmail("alice@example.com")

	assert.True(t, first.stopped)
	// Even if the stale timer fires anyway, the generation check ignores it.
	first.fired = true
	first.f()
	snap := h.flow.Snapshot()
	assert.Equal(t, flow.StateEmail, snap.State)

	h.sched.fireAll(false)
	snap = h.flow.Snapshot()
	assert.Equal(t, flow.StateName, snap.State)
	assert.Equal(t, "alice@example.com", snap.Email)
}

func TestInvalidEmailInNameStepGoesBack(t *testing.T) {
	h := newHarness(t)
	_, _ = h.flow.SetEmail("alice@example.com")
	h.sched.fireAll(false)
	require.Equal(t, flow.StateName, h.flow.Snapshot().State)

	snap, err := h.flow.SetEmail("alice@example")
	require.NoError(t, err)
	assert.Equal(t, flow.StateEmail, snap.State)
}

func TestNameDebounceEntersVerificationWithCode(t *testing.T) {
	h := newHarness(t)
	snap := h.toVerification(t)

	assert.Len(t, snap.DisplayedCode, 6)
	active, ok := h.codes.Current("flow-1")
	require.True(t, ok)
	assert.Equal(t, active.Code, snap.DisplayedCode)
	assert.Equal(t, "alice@example.com", active.Email)
}

func TestEmptyNameDoesNotArm(t *testing.T) {
	h := newHarness(t)
	_, _ = h.flow.SetEmail("alice@example.com")
	h.sched.fireAll(false)
	before := len(h.sched.timers)

	_, err := h.flow.SetName("   ")
	require.NoError(t, err)
	assert.Equal(t, before, len(h.sched.timers))
}

func TestSetNameOutsideNameStep(t *testing.T) {
	h := newHarness(t)
	_, err := h.flow.SetName("Alice")
	require.ErrorIs(t, err, flow.ErrInvalidState)
}

func TestSubmitMismatchRegenerates(t *testing.T) {
	h := newHarness(t)
	snap := h.toVerification(t)
	wrong := "000000"
	if snap.DisplayedCode == wrong {
		wrong = "000001"
	}

	after, err := h.flow.Submit(context.Background(), wrong)
	require.ErrorIs(t, err, services.ErrInvalidVerificationCode)
	assert.Equal(t, flow.StateVerification, after.State)
	assert.Contains(t, after.CodeError, "Invalid")

	active, ok := h.codes.Current("flow-1")
	require.True(t, ok)
	assert.Equal(t, active.Code, after.DisplayedCode)
	assert.Zero(t, h.reg.calls)
}

func TestSubmitMatchRegisters(t *testing.T) {
	h := newHarness(t)
	snap := h.toVerification(t)

	after, err := h.flow.Submit(context.Background(), snap.DisplayedCode)
	require.NoError(t, err)
	assert.Equal(t, flow.StateQuiz, after.State)
	require.NotNil(t, after.User)
	assert.False(t, after.Fallback)
	assert.Equal(t, models.OriginBackend, after.User.Origin)
	assert.Empty(t, h.sink.users)
	assert.Empty(t, after.DisplayedCode)
}

func TestSubmitFailureFallsBack(t *testing.T) {
	h := newHarness(t)
	h.reg.err = errors.New("NETWORK_ERROR: network request failed")
	snap := h.toVerification(t)

	after, err := h.flow.Submit(context.Background(), snap.DisplayedCode)
	require.NoError(t, err)
	assert.Equal(t, flow.StateQuiz, after.State)
	assert.True(t, after.Fallback)
	require.NotNil(t, after.User)
	assert.Equal(t, models.OriginLocalFallback, after.User.Origin)
	assert.Equal(t, 4242, *after.User.WaitlistPosition)
	assert.NotEqual(t, uuid.Nil, after.User.ID)

	require.Len(t, h.sink.users, 1)
	assert.Equal(t, "alice@example.com", h.sink.users[0].Email)
}

func TestSubmitOutsideVerification(t *testing.T) {
	h := newHarness(t)
	_, err := h.flow.Submit(context.Background(), "123456")
	require.ErrorIs(t, err, flow.ErrInvalidState)
}

func TestCloseStopsTimersAndIgnoresStaleCallbacks(t *testing.T) {
	h := newHarness(t)
	_, _ = h.flow.SetEmail("alice@example.com")
	pending := h.sched.last()

	h.flow.Close()
	assert.True(t, pending.stopped)

	h.sched.fireAll(true)
	assert.Equal(t, flow.StateEmail, h.flow.Snapshot().State)

	_, err := h.flow.SetEmail("bob@example.com")
	require.ErrorIs(t, err, flow.ErrClosed)
}

func TestCloseClearsActiveCode(t *testing.T) {
	h := newHarness(t)
	h.toVerification(t)

	h.flow.Close()
	_, ok := h.codes.Current("flow-1")
	assert.False(t, ok)
}
