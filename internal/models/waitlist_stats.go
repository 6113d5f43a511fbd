package models

type WaitlistStats struct {
	TotalUsers       int `json:"total_users"`
	VerifiedUsers    int `json:"verified_users"`
	CompletedQuizzes int `json:"completed_quizzes"`
}

// StatsRow is the projection aggregated client-side into WaitlistStats.
type StatsRow struct {
	IsVerified    bool `json:"is_verified"`
	QuizCompleted bool `json:"quiz_completed"`
}

func AggregateStats(rows []StatsRow) WaitlistStats {
	stats := WaitlistStats{TotalUsers: len(rows)}
	for _, r := range rows {
		if r.IsVerified {
			stats.VerifiedUsers++
		}
		if r.QuizCompleted {
			stats.CompletedQuizzes++
		}
	}
	return stats
}
