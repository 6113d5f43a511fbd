package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/flow"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/metrics"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

const DefaultFlowSessionTTL = 30 * time.Minute

var ErrFlowSessionNotFound = errors.New("registration session not found or expired")

// RegistrationFlowService keeps server-side registration form sessions.
// Sessions expire after the TTL; expiry and deletion both close the flow.
type RegistrationFlowService struct {
	sessions *gocache.Cache
	ttl      time.Duration

	registration *RegistrationService
	codes        *VerificationCodeService
	fallbacks    flow.FallbackSink
	flowOpts     flow.Options
}

func NewRegistrationFlowService(
	registration *RegistrationService,
	codes *VerificationCodeService,
	fallbacks flow.FallbackSink,
	ttl time.Duration,
	flowOpts flow.Options,
) *RegistrationFlowService {
	if ttl <= 0 {
		ttl = DefaultFlowSessionTTL
	}
	cache := gocache.New(ttl, time.Minute)
	cache.OnEvicted(func(_ string, v any) {
		if f, ok := v.(*flow.Flow); ok {
			f.Close()
		}
	})
	return &RegistrationFlowService{
		sessions:     cache,
		ttl:          ttl,
		registration: registration,
		codes:        codes,
		fallbacks:    fallbacks,
		flowOpts:     flowOpts,
	}
}

// Register adapts RegistrationService to the flow's Registrar.
func (s *RegistrationFlowService) Register(
	ctx context.Context,
	name, email string,
	userType models.UserType,
) (*models.WaitlistUser, error) {
	res, err := s.registration.RegisterUser(ctx, name, email, userType)
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

func (s *RegistrationFlowService) Create(userType models.UserType) *flow.Flow {
	id := uuid.NewString()
	f := flow.New(id, userType, flow.Deps{
		Registrar: s,
		Codes:     s.codes,
		Fallbacks: s.fallbacks,
	}, s.flowOpts)
	s.sessions.Set(id, f, s.ttl)
	return f
}

// Get returns a live session and refreshes its TTL.
func (s *RegistrationFlowService) Get(id string) (*flow.Flow, error) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrFlowSessionNotFound
	}
	f, ok := v.(*flow.Flow)
	if !ok || f.Closed() {
		return nil, ErrFlowSessionNotFound
	}
	s.sessions.Set(id, f, s.ttl)
	return f, nil
}

func (s *RegistrationFlowService) Delete(id string) {
	s.sessions.Delete(id)
}

func (s *RegistrationFlowService) Count() int {
	return s.sessions.ItemCount()
}

// Close ends every open session.
func (s *RegistrationFlowService) Close() {
	for _, item := range s.sessions.Items() {
		if f, ok := item.Object.(*flow.Flow); ok {
			f.Close()
		}
	}
	s.sessions.Flush()
}

// ------------------------------------------------------------------
// Fallback reconciliation
// ------------------------------------------------------------------

// FallbackReconciler queues locally synthesized users and re-registers them
// once the backend is reachable again.
type FallbackReconciler struct {
	registration *RegistrationService
	queue        *gocache.Cache
	log          logrus.FieldLogger
}

func NewFallbackReconciler(registration *RegistrationService, retention time.Duration, logger logrus.FieldLogger) *FallbackReconciler {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = utils.Logger
	}
	return &FallbackReconciler{
		registration: registration,
		queue:        gocache.New(retention, time.Hour),
		log:          logger,
	}
}

// Enqueue implements flow.FallbackSink. Only local-fallback users are kept;
// a second placeholder for the same email replaces the first.
func (r *FallbackReconciler) Enqueue(u *models.WaitlistUser) {
	if !u.IsLocalFallback() {
		return
	}
	r.queue.SetDefault(u.Email, *u)
	metrics.Registrations.WithLabelValues(string(models.OriginLocalFallback)).Inc()
	metrics.FallbackQueueDepth.Set(float64(r.queue.ItemCount()))
}

func (r *FallbackReconciler) Pending() int {
	return r.queue.ItemCount()
}

type ReconcileReport struct {
	Reconciled int `json:"reconciled"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// Reconcile retries every queued placeholder. Users the backend already
// knows (duplicate email) are dropped; transient failures stay queued.
// Nothing is attempted when the backend does not answer a probe.
func (r *FallbackReconciler) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	if r.queue.ItemCount() == 0 {
		return report, nil
	}
	if err := r.registration.Ping(ctx); err != nil {
		return report, err
	}

	for email, item := range r.queue.Items() {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		u, ok := item.Object.(models.WaitlistUser)
		if !ok {
			r.queue.Delete(email)
			continue
		}

		_, err := r.registration.RegisterUser(ctx, u.Name, u.Email, u.UserType)
		switch {
		case err == nil:
			report.Reconciled++
			r.queue.Delete(email)
			metrics.FallbacksReconciled.WithLabelValues("reconciled").Inc()
		case isDuplicate(err):
			report.Duplicates++
			r.queue.Delete(email)
			metrics.FallbacksReconciled.WithLabelValues("duplicate").Inc()
		default:
			report.Failed++
			metrics.FallbacksReconciled.WithLabelValues("failed").Inc()
			if !utils.IsCancellation(err) {
				r.log.WithError(err).WithField("email", utils.MaskEmail(email)).Warn("Fallback user reconciliation failed")
			}
		}
	}
	metrics.FallbackQueueDepth.Set(float64(r.queue.ItemCount()))

	if report != (ReconcileReport{}) {
		r.log.WithFields(logrus.Fields{
			"reconciled": report.Reconciled,
			"duplicates": report.Duplicates,
			"failed":     report.Failed,
		}).Info("Fallback reconciliation finished")
	}
	return report, nil
}
