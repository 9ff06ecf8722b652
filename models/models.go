package models

import (
	"time"

	"github.com/lib/pq"
)

// User model
type User struct {
	ID                int       `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Password          string    `json:"password"`
	Role              string    `json:"role"`
	PasswordChangedAt time.Time `json:"passwordChangedAt"`
	Verified          *bool     `json:"verified"`
	ProfilePic        *string   `json:"profilePic"`
	About             *string   `json:"about"`
	Deleted           bool      `json:"deleted"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ExamTemplate is a reusable mock-exam definition. Once attempts reference it
// it is only ever deactivated (active=false), never deleted.
type ExamTemplate struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Category         string    `json:"category"`
	Difficulty       int       `json:"difficulty"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
	TotalQuestions   int       `json:"total_questions"`
	PassingScore     int       `json:"passing_score"`
	Active           bool      `json:"active"`
	CreatedByID      int       `json:"created_by_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Question belongs to exactly one template. question_number is the ordinal
// within the template and defines presentation and scoring order. Rows are
// immutable after attempts exist, otherwise historical scores would change.
type Question struct {
	ID             string         `json:"id"`
	TemplateID     string         `json:"template_id"`
	QuestionNumber int            `json:"question_number"`
	Question       string         `json:"question"`
	Options        pq.StringArray `json:"options"`
	CorrectAnswer  string         `json:"correct_answer,omitempty"`
	Points         float64        `json:"points"`
	Subject        string         `json:"subject"`
	Difficulty     int            `json:"difficulty"`
	Explanation    *string        `json:"explanation,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ExamAttempt is one user's run through one template.
// Status machine: started -> (paused <-> started) -> completed.
type ExamAttempt struct {
	ID                string     `json:"id"`
	UserID            int        `json:"user_id"`
	TemplateID        string     `json:"template_id"`
	AttemptNumber     int        `json:"attempt_number"`
	Status            string     `json:"status"`
	TotalQuestions    int        `json:"total_questions"`
	AnsweredQuestions int        `json:"answered_questions"`
	CorrectAnswers    int        `json:"correct_answers"`
	IncorrectAnswers  int        `json:"incorrect_answers"`
	SkippedQuestions  int        `json:"skipped_questions"`
	TotalPoints       float64    `json:"total_points"`
	MaxPoints         float64    `json:"max_points"`
	Percentage        int        `json:"percentage"`
	Score             int        `json:"score"`
	TimeLimitSeconds  int        `json:"time_limit_seconds"`
	TimeSpentSeconds  int        `json:"time_spent_seconds"`
	StartedAt         time.Time  `json:"started_at"`
	PausedAt          *time.Time `json:"paused_at"`
	CompletedAt       *time.Time `json:"completed_at"`
}

// Attempt statuses.
const (
	AttemptStarted   = "started"
	AttemptPaused    = "paused"
	AttemptCompleted = "completed"
)

// ValidStatusTransition reports whether an attempt may move from -> to.
// completed is terminal.
func ValidStatusTransition(from, to string) bool {
	switch from {
	case AttemptStarted:
		return to == AttemptPaused || to == AttemptCompleted
	case AttemptPaused:
		return to == AttemptStarted || to == AttemptCompleted
	default:
		return false
	}
}

// AttemptResponse is one answer record per (attempt, question) pair, created
// empty at attempt start and upserted in place while answering.
type AttemptResponse struct {
	AttemptID        string     `json:"attempt_id"`
	QuestionID       string     `json:"question_id"`
	SelectedAnswer   *string    `json:"selected_answer"`
	IsCorrect        bool       `json:"is_correct"`
	PointsEarned     float64    `json:"points_earned"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
	IsFlagged        bool       `json:"is_flagged"`
	AnsweredAt       *time.Time `json:"answered_at"`
}

// StudyBlock is one slot in a user's weekly study schedule. Times are minutes
// from midnight, weekday 0=Sunday.
type StudyBlock struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	Subject     string    `json:"subject"`
	Weekday     int       `json:"weekday"`
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OverlapsWith reports whether two blocks collide on the same weekday.
// Touching edges (one ends exactly when the other starts) do not overlap.
func (b StudyBlock) OverlapsWith(other StudyBlock) bool {
	if b.Weekday != other.Weekday {
		return false
	}
	return b.StartMinute < other.EndMinute && other.StartMinute < b.EndMinute
}
