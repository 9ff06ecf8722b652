package controllers

import (
	"database/sql"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studify-app/studify_backend/models"
	"github.com/studify-app/studify_backend/util"
	"log"
)

func loadAttemptResponses(attemptID string) ([]models.AttemptResponse, error) {
	rows, err := util.DB.Query(`
		SELECT ar.attempt_id, ar.question_id, ar.selected_answer, ar.is_correct,
		       ar.points_earned, ar.time_spent_seconds, ar.is_flagged, ar.answered_at
		FROM attempt_responses ar
		JOIN questions q ON q.id = ar.question_id
		WHERE ar.attempt_id = $1
		ORDER BY q.question_number
	`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	responses := []models.AttemptResponse{}
	for rows.Next() {
		var r models.AttemptResponse
		if err := rows.Scan(&r.AttemptID, &r.QuestionID, &r.SelectedAnswer, &r.IsCorrect,
			&r.PointsEarned, &r.TimeSpentSeconds, &r.IsFlagged, &r.AnsweredAt); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// fetchResponseScores loads the response rows joined to their questions in
// the shape the pure scoring reduction works on.
func fetchResponseScores(attemptID string) ([]util.ResponseScore, error) {
	rows, err := util.DB.Query(`
		SELECT ar.question_id, q.subject, ar.selected_answer, q.correct_answer, q.points, ar.is_flagged
		FROM attempt_responses ar
		JOIN questions q ON q.id = ar.question_id
		WHERE ar.attempt_id = $1
		ORDER BY q.question_number
	`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := []util.ResponseScore{}
	for rows.Next() {
		var s util.ResponseScore
		if err := rows.Scan(&s.QuestionID, &s.Subject, &s.SelectedAnswer, &s.CorrectAnswer, &s.QuestionPoints, &s.IsFlagged); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// applyFallbackTotals is the client-side twin of calculate_attempt_results:
// re-marks every response row and persists the aggregates onto the attempt.
func applyFallbackTotals(attemptID string, totalQuestions int, scores []util.ResponseScore) (util.AttemptTotals, error) {
	totals := util.ComputeAttemptTotals(totalQuestions, scores)

	tx, err := util.DB.Begin()
	if err != nil {
		return totals, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE attempt_responses
		SET is_correct = $1, points_earned = $2
		WHERE attempt_id = $3 AND question_id = $4
	`)
	if err != nil {
		return totals, err
	}
	defer stmt.Close()

	for _, s := range scores {
		if _, err := stmt.Exec(s.IsCorrect, s.PointsEarned, attemptID, s.QuestionID); err != nil {
			return totals, err
		}
	}

	_, err = tx.Exec(`
		UPDATE exam_attempts
		SET answered_questions = $1, correct_answers = $2, incorrect_answers = $3,
		    skipped_questions = $4, total_points = $5, max_points = $6,
		    percentage = $7, score = $7, updated_at = now()
		WHERE id = $8
	`, totals.Answered, totals.Correct, totals.Incorrect, totals.Skipped,
		totals.TotalPoints, totals.MaxPoints, totals.Percentage, attemptID)
	if err != nil {
		return totals, err
	}

	return totals, tx.Commit()
}

// calculateResults runs the primary stored routine and falls back to the Go
// reduction when the routine is unavailable or errors. Both paths persist the
// same numbers for the same response set.
func calculateResults(attemptID string, totalQuestions int) (util.AttemptTotals, error) {
	var totals util.AttemptTotals
	err := util.DB.QueryRow(`SELECT * FROM calculate_attempt_results($1)`, attemptID).Scan(
		&totals.Answered, &totals.Correct, &totals.Incorrect, &totals.Skipped,
		&totals.TotalPoints, &totals.MaxPoints, &totals.Percentage,
	)
	if err == nil {
		return totals, nil
	}

	log.Println("calculate_attempt_results failed, using client-side fallback:", err)
	scores, err := fetchResponseScores(attemptID)
	if err != nil {
		return totals, err
	}
	return applyFallbackTotals(attemptID, totalQuestions, scores)
}

type responseInput struct {
	QuestionID       string  `json:"question_id"`
	SelectedAnswer   *string `json:"selected_answer"`
	TimeSpentSeconds *int    `json:"time_spent_seconds"`
	IsFlagged        *bool   `json:"is_flagged"`
}

// upsertResponse records one answer, keyed on (attempt, question). Answering
// the same question twice overwrites, never duplicates, and answered_at is
// only stamped for a non-empty answer. No scoring happens here; correctness
// and points are recomputed from scratch by the calculator.
func upsertResponse(attemptID string, in responseInput) error {
	_, err := util.DB.Exec(`
		INSERT INTO attempt_responses (attempt_id, question_id, selected_answer, time_spent_seconds, is_flagged, answered_at)
		VALUES ($1, $2, $3, COALESCE($4::int, 0), COALESCE($5::boolean, false),
		        CASE WHEN $3::text <> '' THEN now() END)
		ON CONFLICT (attempt_id, question_id) DO UPDATE
		SET selected_answer = EXCLUDED.selected_answer,
		    time_spent_seconds = COALESCE($4::int, attempt_responses.time_spent_seconds),
		    is_flagged = COALESCE($5::boolean, attempt_responses.is_flagged),
		    answered_at = CASE WHEN EXCLUDED.selected_answer <> '' THEN now() END
	`, attemptID, in.QuestionID, in.SelectedAnswer, in.TimeSpentSeconds, in.IsFlagged)
	return err
}

// RecordResponse captures a single answer during an attempt.
func RecordResponse(c *fiber.Ctx) error {
	attemptID := c.Params("attempt_id")
	if _, err := uuid.Parse(attemptID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed attempt id"})
	}

	var input responseInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid input"})
	}
	if input.QuestionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "question_id is required"})
	}
	if _, err := uuid.Parse(input.QuestionID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed question_id"})
	}

	user := c.Locals("user").(models.User)

	attempt, err := loadAttemptForUser(attemptID, user.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Attempt not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch attempt"})
	}
	if attempt.Status == models.AttemptCompleted {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Attempt is already completed"})
	}

	// The question must belong to the attempt's template; the FK alone does
	// not enforce that pairing.
	var templateID string
	err = util.DB.QueryRow(`SELECT template_id FROM questions WHERE id = $1`, input.QuestionID).Scan(&templateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Question not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch question"})
	}
	if templateID != attempt.TemplateID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Question not found"})
	}

	if err := upsertResponse(attemptID, input); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to record response: " + err.Error()})
	}

	var r models.AttemptResponse
	err = util.DB.QueryRow(`
		SELECT attempt_id, question_id, selected_answer, is_correct, points_earned, time_spent_seconds, is_flagged, answered_at
		FROM attempt_responses
		WHERE attempt_id = $1 AND question_id = $2
	`, attemptID, input.QuestionID).Scan(
		&r.AttemptID, &r.QuestionID, &r.SelectedAnswer, &r.IsCorrect,
		&r.PointsEarned, &r.TimeSpentSeconds, &r.IsFlagged, &r.AnsweredAt,
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to reload response"})
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"response": r}})
}

// CalculateResults recomputes all attempt counters from the persisted
// response set, preferring the server-side routine.
func CalculateResults(c *fiber.Ctx) error {
	type CalculateInput struct {
		AttemptID string `json:"attempt_id"`
	}

	var input CalculateInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid input"})
	}
	if input.AttemptID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "attempt_id is required"})
	}
	if _, err := uuid.Parse(input.AttemptID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed attempt_id"})
	}

	user := c.Locals("user").(models.User)

	attempt, err := loadAttemptForUser(input.AttemptID, user.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Attempt not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch attempt"})
	}

	statistics, err := calculateResults(input.AttemptID, attempt.TotalQuestions)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to calculate results: " + err.Error()})
	}

	updated, err := loadAttemptForUser(input.AttemptID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to reload attempt"})
	}
	responses, err := loadAttemptResponses(input.AttemptID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch responses"})
	}
	scores, err := fetchResponseScores(input.AttemptID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch response scores"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"attempt":            updated,
			"responses":          responses,
			"statistics":         statistics,
			"subjectPerformance": util.SubjectBreakdown(scores),
		},
	})
}

// attemptSummary is the scoring payload returned by the completion endpoint.
func attemptSummary(a models.ExamAttempt, status string, subjects map[string]util.SubjectStats, passingScore int) fiber.Map {
	return fiber.Map{
		"status":             status,
		"attempt":            a,
		"statistics":         util.AttemptTotals{Answered: a.AnsweredQuestions, Correct: a.CorrectAnswers, Incorrect: a.IncorrectAnswers, Skipped: a.SkippedQuestions, TotalPoints: a.TotalPoints, MaxPoints: a.MaxPoints, Percentage: a.Percentage},
		"subjectPerformance": subjects,
		"passed":             a.Percentage >= passingScore,
	}
}

// CompleteAttempt finalizes an attempt: persists any trailing responses,
// scores it, and marks it completed. Calling it again on a completed attempt
// returns the stored result unchanged.
func CompleteAttempt(c *fiber.Ctx) error {
	type CompleteInput struct {
		AttemptID string          `json:"attemptId"`
		Responses []responseInput `json:"responses"`
	}

	var input CompleteInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid input"})
	}
	if input.AttemptID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "attemptId is required"})
	}
	if _, err := uuid.Parse(input.AttemptID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed attemptId"})
	}
	for _, r := range input.Responses {
		if _, err := uuid.Parse(r.QuestionID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed question_id in responses"})
		}
	}

	user := c.Locals("user").(models.User)

	attempt, err := loadAttemptForUser(input.AttemptID, user.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Attempt not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch attempt"})
	}

	var passingScore int
	if err := util.DB.QueryRow(`SELECT passing_score FROM exam_templates WHERE id = $1`, attempt.TemplateID).Scan(&passingScore); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch template"})
	}

	if attempt.Status == models.AttemptCompleted {
		scores, err := fetchResponseScores(input.AttemptID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch response scores"})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data":    attemptSummary(attempt, "already_completed", util.SubjectBreakdown(scores), passingScore),
		})
	}

	// Every trailing response must target a question of the attempt's
	// template, same as the single-response endpoint; the FK alone does not
	// enforce that pairing.
	for _, r := range input.Responses {
		var templateID string
		err := util.DB.QueryRow(`SELECT template_id FROM questions WHERE id = $1`, r.QuestionID).Scan(&templateID)
		if err != nil {
			if err == sql.ErrNoRows {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Question not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch question"})
		}
		if templateID != attempt.TemplateID {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Question not found"})
		}
	}

	for _, r := range input.Responses {
		if err := upsertResponse(input.AttemptID, r); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to record response: " + err.Error()})
		}
	}

	// Primary path: one server-side routine scores and completes atomically.
	var storedStatus string
	var totals util.AttemptTotals
	var completedAt sql.NullTime
	err = util.DB.QueryRow(`SELECT * FROM complete_attempt($1)`, input.AttemptID).Scan(
		&storedStatus, &totals.Answered, &totals.Correct, &totals.Incorrect, &totals.Skipped,
		&totals.TotalPoints, &totals.MaxPoints, &totals.Percentage, &completedAt,
	)
	if err != nil {
		// Manual sequence: fallback calculator, then a direct status update.
		log.Println("complete_attempt failed, using manual completion:", err)
		if _, err := calculateResults(input.AttemptID, attempt.TotalQuestions); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to calculate results: " + err.Error()})
		}
		_, err = util.DB.Exec(`
			UPDATE exam_attempts
			SET status = 'completed', completed_at = now(), updated_at = now()
			WHERE id = $1 AND status <> 'completed'
		`, input.AttemptID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to complete attempt: " + err.Error()})
		}
	}

	final, err := loadAttemptForUser(input.AttemptID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to reload attempt"})
	}
	scores, err := fetchResponseScores(input.AttemptID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch response scores"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    attemptSummary(final, "completed", util.SubjectBreakdown(scores), passingScore),
	})
}
