package util

import "math"

// ResponseScore is one response row joined to its question, the unit both
// scoring paths reduce over. The database routine calculate_attempt_results
// and the Go functions below must produce identical numbers for the same set
// of rows; all scoring arithmetic lives here so the fallback path cannot
// drift from the primary one.
type ResponseScore struct {
	QuestionID     string
	Subject        string
	SelectedAnswer *string
	CorrectAnswer  string
	QuestionPoints float64
	PointsEarned   float64
	IsCorrect      bool
	IsFlagged      bool
}

// Answered reports whether the user actually picked an answer. Empty string
// counts as unanswered, matching the SQL routine.
func (r ResponseScore) Answered() bool {
	return r.SelectedAnswer != nil && *r.SelectedAnswer != ""
}

// Mark rescores the row from scratch: correctness and points are derived from
// the question, never trusted from what was stored.
func (r *ResponseScore) Mark() {
	r.IsCorrect = r.Answered() && *r.SelectedAnswer == r.CorrectAnswer
	if r.IsCorrect {
		r.PointsEarned = r.QuestionPoints
	} else {
		r.PointsEarned = 0
	}
}

// AttemptTotals are the aggregate counters persisted onto an attempt.
// Invariants: Answered+Skipped == totalQuestions, Correct+Incorrect == Answered.
type AttemptTotals struct {
	Answered    int     `json:"answered_questions"`
	Correct     int     `json:"correct_answers"`
	Incorrect   int     `json:"incorrect_answers"`
	Skipped     int     `json:"skipped_questions"`
	TotalPoints float64 `json:"total_points"`
	MaxPoints   float64 `json:"max_points"`
	Percentage  int     `json:"percentage"`
}

// ComputeAttemptTotals re-marks every row and reduces to the attempt
// counters. percentage rounds half away from zero like Postgres ROUND(), and
// is 0 when max_points is 0 rather than a division error.
func ComputeAttemptTotals(totalQuestions int, rows []ResponseScore) AttemptTotals {
	t := AttemptTotals{}
	for i := range rows {
		rows[i].Mark()
		t.MaxPoints += rows[i].QuestionPoints
		if rows[i].Answered() {
			t.Answered++
		}
		if rows[i].IsCorrect {
			t.Correct++
			t.TotalPoints += rows[i].PointsEarned
		}
	}
	t.Incorrect = t.Answered - t.Correct
	t.Skipped = totalQuestions - t.Answered
	if t.MaxPoints > 0 {
		t.Percentage = int(math.Round(t.TotalPoints / t.MaxPoints * 100))
	}
	return t
}

// SubjectStats is the per-subject slice of an attempt's result.
type SubjectStats struct {
	Total      int `json:"total"`
	Correct    int `json:"correct"`
	Answered   int `json:"answered"`
	Percentage int `json:"percentage"`
}

// SubjectBreakdown groups marked rows by question subject. Percentage is
// correct/answered, not correct/total, so skipped questions don't drag a
// subject down.
func SubjectBreakdown(rows []ResponseScore) map[string]SubjectStats {
	out := map[string]SubjectStats{}
	for i := range rows {
		rows[i].Mark()
		s := out[rows[i].Subject]
		s.Total++
		if rows[i].Answered() {
			s.Answered++
		}
		if rows[i].IsCorrect {
			s.Correct++
		}
		out[rows[i].Subject] = s
	}
	for subject, s := range out {
		if s.Answered > 0 {
			s.Percentage = int(math.Round(float64(s.Correct) / float64(s.Answered) * 100))
		}
		out[subject] = s
	}
	return out
}
