package routes

const (
	// Health & metrics
	Health  = "/health"
	Metrics = "/metrics"

	// Waitlist endpoints
	WaitlistRegister = "/api/v1/waitlist/register"
	WaitlistVerify   = "/api/v1/waitlist/verify"
	WaitlistQuiz     = "/api/v1/waitlist/quiz"
	WaitlistStats    = "/api/v1/waitlist/stats"
	WaitlistDeletion = "/api/v1/waitlist/deletion"

	// Server-side registration form sessions
	RegisterSessions = "/api/v1/waitlist/sessions"
	RegisterSession  = "/api/v1/waitlist/sessions/{id}"
	SessionEmail     = "/api/v1/waitlist/sessions/{id}/email"
	SessionName      = "/api/v1/waitlist/sessions/{id}/name"
	SessionCode      = "/api/v1/waitlist/sessions/{id}/code"
)
