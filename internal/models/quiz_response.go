package models

// QuizResponse is one answered question; the full set is submitted at once.
type QuizResponse struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}
