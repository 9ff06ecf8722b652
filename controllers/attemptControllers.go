package controllers

import (
	"database/sql"
	"fmt"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/studify-app/studify_backend/models"
	"github.com/studify-app/studify_backend/util"
	"log"
	"strconv"
	"time"
)

// loadAttemptForUser fetches an attempt scoped to its owner. A missing row
// and another user's row are indistinguishable to the caller: both come back
// as sql.ErrNoRows and surface as 404.
func loadAttemptForUser(attemptID string, userID int) (models.ExamAttempt, error) {
	var a models.ExamAttempt
	err := util.DB.QueryRow(`
		SELECT id, user_id, template_id, attempt_number, status,
		       total_questions, answered_questions, correct_answers, incorrect_answers, skipped_questions,
		       total_points, max_points, percentage, score,
		       time_limit_seconds, time_spent_seconds,
		       started_at, paused_at, completed_at
		FROM exam_attempts
		WHERE id = $1 AND user_id = $2
	`, attemptID, userID).Scan(
		&a.ID, &a.UserID, &a.TemplateID, &a.AttemptNumber, &a.Status,
		&a.TotalQuestions, &a.AnsweredQuestions, &a.CorrectAnswers, &a.IncorrectAnswers, &a.SkippedQuestions,
		&a.TotalPoints, &a.MaxPoints, &a.Percentage, &a.Score,
		&a.TimeLimitSeconds, &a.TimeSpentSeconds,
		&a.StartedAt, &a.PausedAt, &a.CompletedAt,
	)
	return a, err
}

// StartAttempt creates a new attempt for a template together with its empty
// response rows, all in one transaction so a crash can never leave an attempt
// without responses.
func StartAttempt(c *fiber.Ctx) error {
	type StartAttemptInput struct {
		TemplateID string `json:"template_id"`
	}

	var input StartAttemptInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid input"})
	}
	if input.TemplateID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "template_id is required"})
	}
	if _, err := uuid.Parse(input.TemplateID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed template_id"})
	}

	user := c.Locals("user").(models.User)

	tx, err := util.DB.Begin()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to begin transaction"})
	}
	defer tx.Rollback()

	var template models.ExamTemplate
	err = tx.QueryRow(`
		SELECT id, title, category, difficulty, time_limit_minutes, total_questions, passing_score, active, created_by_id, created_at, updated_at
		FROM exam_templates
		WHERE id = $1 AND active = true
	`, input.TemplateID).Scan(
		&template.ID, &template.Title, &template.Category, &template.Difficulty,
		&template.TimeLimitMinutes, &template.TotalQuestions, &template.PassingScore,
		&template.Active, &template.CreatedByID, &template.CreatedAt, &template.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Template not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch template"})
	}

	rows, err := tx.Query(`
		SELECT id, template_id, question_number, question, options, points, subject, difficulty, created_at
		FROM questions
		WHERE template_id = $1
		ORDER BY question_number
	`, input.TemplateID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch questions"})
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.TemplateID, &q.QuestionNumber, &q.Question, pq.Array(&q.Options), &q.Points, &q.Subject, &q.Difficulty, &q.CreatedAt); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to read question"})
		}
		questions = append(questions, q)
	}
	rows.Close()

	if len(questions) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Template has no questions"})
	}

	// Next attempt number for (user, template). Numbers are never reused,
	// even after history deletion, because MAX is taken over what exists now
	// and rows are only ever appended.
	var attemptNumber int
	err = tx.QueryRow(`
		SELECT COALESCE(MAX(attempt_number), 0) + 1
		FROM exam_attempts
		WHERE user_id = $1 AND template_id = $2
	`, user.ID, input.TemplateID).Scan(&attemptNumber)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to compute attempt number"})
	}

	var attempt models.ExamAttempt
	err = tx.QueryRow(`
		INSERT INTO exam_attempts (user_id, template_id, attempt_number, status, total_questions, time_limit_seconds)
		VALUES ($1, $2, $3, 'started', $4, $5)
		RETURNING id, user_id, template_id, attempt_number, status, total_questions,
		          answered_questions, correct_answers, incorrect_answers, skipped_questions,
		          total_points, max_points, percentage, score,
		          time_limit_seconds, time_spent_seconds, started_at, paused_at, completed_at
	`, user.ID, input.TemplateID, attemptNumber, len(questions), template.TimeLimitMinutes*60).Scan(
		&attempt.ID, &attempt.UserID, &attempt.TemplateID, &attempt.AttemptNumber, &attempt.Status,
		&attempt.TotalQuestions, &attempt.AnsweredQuestions, &attempt.CorrectAnswers, &attempt.IncorrectAnswers,
		&attempt.SkippedQuestions, &attempt.TotalPoints, &attempt.MaxPoints, &attempt.Percentage, &attempt.Score,
		&attempt.TimeLimitSeconds, &attempt.TimeSpentSeconds, &attempt.StartedAt, &attempt.PausedAt, &attempt.CompletedAt,
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to create attempt: " + err.Error()})
	}

	stmt, err := tx.Prepare(`
		INSERT INTO attempt_responses (attempt_id, question_id)
		VALUES ($1, $2)
	`)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to prepare response insert"})
	}
	defer stmt.Close()

	for _, q := range questions {
		if _, err := stmt.Exec(attempt.ID, q.ID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to create response rows"})
		}
	}

	if err := tx.Commit(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to commit transaction"})
	}

	// Questions were selected without correct_answer/explanation so the start
	// payload cannot leak the answer key.
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"attempt":   attempt,
			"template":  template,
			"questions": questions,
		},
	})
}

// GetAttempt returns one attempt with its response rows. Questions keep their
// answer key hidden until the attempt is completed.
func GetAttempt(c *fiber.Ctx) error {
	attemptID := c.Params("attempt_id")
	if _, err := uuid.Parse(attemptID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed attempt id"})
	}

	user := c.Locals("user").(models.User)

	attempt, err := loadAttemptForUser(attemptID, user.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Attempt not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch attempt"})
	}

	responses, err := loadAttemptResponses(attemptID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch responses"})
	}

	questionCols := "id, template_id, question_number, question, options, points, subject, difficulty, created_at"
	includeAnswers := attempt.Status == models.AttemptCompleted
	if includeAnswers {
		questionCols = "id, template_id, question_number, question, options, correct_answer, points, subject, difficulty, explanation, created_at"
	}
	rows, err := util.DB.Query(fmt.Sprintf(`
		SELECT %s FROM questions WHERE template_id = $1 ORDER BY question_number
	`, questionCols), attempt.TemplateID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch questions"})
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		var scanErr error
		if includeAnswers {
			scanErr = rows.Scan(&q.ID, &q.TemplateID, &q.QuestionNumber, &q.Question, pq.Array(&q.Options), &q.CorrectAnswer, &q.Points, &q.Subject, &q.Difficulty, &q.Explanation, &q.CreatedAt)
		} else {
			scanErr = rows.Scan(&q.ID, &q.TemplateID, &q.QuestionNumber, &q.Question, pq.Array(&q.Options), &q.Points, &q.Subject, &q.Difficulty, &q.CreatedAt)
		}
		if scanErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to read question"})
		}
		questions = append(questions, q)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"attempt":   attempt,
			"responses": responses,
			"questions": questions,
		},
	})
}

// ListAttempts returns the caller's attempts, optionally filtered by template
// and status.
func ListAttempts(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	templateID := c.Query("template_id")
	status := c.Query("status")

	query := `
		SELECT id, user_id, template_id, attempt_number, status,
		       total_questions, answered_questions, correct_answers, incorrect_answers, skipped_questions,
		       total_points, max_points, percentage, score,
		       time_limit_seconds, time_spent_seconds, started_at, paused_at, completed_at
		FROM exam_attempts
		WHERE user_id = $1
	`
	args := []interface{}{user.ID}
	argIdx := 2

	if templateID != "" {
		if _, err := uuid.Parse(templateID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed template_id"})
		}
		query += fmt.Sprintf(" AND template_id = $%d", argIdx)
		args = append(args, templateID)
		argIdx++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := util.DB.Query(query, args...)
	if err != nil {
		log.Println("Query error:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch attempts"})
	}
	defer rows.Close()

	attempts := []models.ExamAttempt{}
	for rows.Next() {
		var a models.ExamAttempt
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.TemplateID, &a.AttemptNumber, &a.Status,
			&a.TotalQuestions, &a.AnsweredQuestions, &a.CorrectAnswers, &a.IncorrectAnswers, &a.SkippedQuestions,
			&a.TotalPoints, &a.MaxPoints, &a.Percentage, &a.Score,
			&a.TimeLimitSeconds, &a.TimeSpentSeconds, &a.StartedAt, &a.PausedAt, &a.CompletedAt,
		); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to scan attempt"})
		}
		attempts = append(attempts, a)
	}

	return c.JSON(fiber.Map{"success": true, "data": attempts})
}

// UpdateAttempt patches status / time tracking on an attempt. completed is
// terminal: once there, nothing moves it.
func UpdateAttempt(c *fiber.Ctx) error {
	type UpdateAttemptInput struct {
		Status           *string `json:"status"`
		TimeSpentSeconds *int    `json:"time_spent_seconds"`
		Score            *int    `json:"score"`
	}

	attemptID := c.Params("attempt_id")
	if _, err := uuid.Parse(attemptID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed attempt id"})
	}

	var input UpdateAttemptInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid input"})
	}

	user := c.Locals("user").(models.User)

	attempt, err := loadAttemptForUser(attemptID, user.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Attempt not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch attempt"})
	}

	setClauses := []string{"updated_at = now()"}
	args := []interface{}{}
	argIdx := 1

	if input.Status != nil {
		if !models.ValidStatusTransition(attempt.Status, *input.Status) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   fmt.Sprintf("Invalid status transition %s -> %s", attempt.Status, *input.Status),
			})
		}
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *input.Status)
		argIdx++
		switch *input.Status {
		case models.AttemptPaused:
			setClauses = append(setClauses, "paused_at = now()")
		case models.AttemptCompleted:
			setClauses = append(setClauses, "completed_at = now()")
		}
	}
	if input.TimeSpentSeconds != nil {
		setClauses = append(setClauses, fmt.Sprintf("time_spent_seconds = $%d", argIdx))
		args = append(args, *input.TimeSpentSeconds)
		argIdx++
	}
	if input.Score != nil {
		setClauses = append(setClauses, fmt.Sprintf("score = $%d", argIdx))
		args = append(args, *input.Score)
		argIdx++
	}

	query := "UPDATE exam_attempts SET "
	for i, clause := range setClauses {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += fmt.Sprintf(" WHERE id = $%d AND user_id = $%d", argIdx, argIdx+1)
	args = append(args, attemptID, user.ID)

	if _, err := util.DB.Exec(query, args...); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to update attempt: " + err.Error()})
	}

	updated, err := loadAttemptForUser(attemptID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to reload attempt"})
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"attempt": updated}})
}

// DeleteAttempt removes one attempt from the caller's history. Responses go
// first, then the attempt (FK ordering), in one transaction.
func DeleteAttempt(c *fiber.Ctx) error {
	attemptID := c.Params("attempt_id")
	if _, err := uuid.Parse(attemptID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed attempt id"})
	}

	user := c.Locals("user").(models.User)

	if _, err := loadAttemptForUser(attemptID, user.ID); err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Attempt not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch attempt"})
	}

	tx, err := util.DB.Begin()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to begin transaction"})
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM attempt_responses WHERE attempt_id = $1`, attemptID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to delete responses"})
	}
	if _, err := tx.Exec(`DELETE FROM exam_attempts WHERE id = $1 AND user_id = $2`, attemptID, user.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to delete attempt"})
	}

	if err := tx.Commit(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to commit transaction"})
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"deleted": attemptID}})
}

// GetAttemptHistory lists completed and in-flight attempts joined to their
// template, with filters and pagination.
func GetAttemptHistory(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	page, limit, offset := pageParams(c, 10)

	category := c.Query("category", "")
	status := c.Query("status", "")
	date := c.Query("date", "") // format: YYYY-MM-DD

	query := `
		SELECT a.id, a.attempt_number, a.status, a.percentage, a.score,
		       a.total_questions, a.answered_questions, a.correct_answers,
		       a.started_at, a.completed_at, a.time_spent_seconds,
		       t.id, t.title, t.category, t.difficulty, t.passing_score
		FROM exam_attempts a JOIN exam_templates t ON a.template_id = t.id
		WHERE a.user_id = $1
	`
	args := []interface{}{user.ID}
	argIdx := 2

	if category != "" {
		query += fmt.Sprintf(" AND t.category ILIKE $%d", argIdx)
		args = append(args, "%"+category+"%")
		argIdx++
	}
	if status != "" {
		query += fmt.Sprintf(" AND a.status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}
	if date != "" {
		query += fmt.Sprintf(" AND DATE(a.started_at) = $%d", argIdx)
		args = append(args, date)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY a.started_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := util.DB.Query(query, args...)
	if err != nil {
		log.Println("Query error:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch attempt history"})
	}
	defer rows.Close()

	type HistoryEntry struct {
		ID                string     `json:"id"`
		AttemptNumber     int        `json:"attemptNumber"`
		Status            string     `json:"status"`
		Percentage        int        `json:"percentage"`
		Score             int        `json:"score"`
		TotalQuestions    int        `json:"totalQuestions"`
		AnsweredQuestions int        `json:"answeredQuestions"`
		CorrectAnswers    int        `json:"correctAnswers"`
		StartedAt         time.Time  `json:"startedAt"`
		CompletedAt       *time.Time `json:"completedAt"`
		TimeSpentSeconds  int        `json:"timeSpentSeconds"`
		TemplateID        string     `json:"templateId"`
		TemplateTitle     string     `json:"templateTitle"`
		Category          string     `json:"category"`
		Difficulty        int        `json:"difficulty"`
		PassingScore      int        `json:"passingScore"`
	}

	history := []HistoryEntry{}
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(
			&h.ID, &h.AttemptNumber, &h.Status, &h.Percentage, &h.Score,
			&h.TotalQuestions, &h.AnsweredQuestions, &h.CorrectAnswers,
			&h.StartedAt, &h.CompletedAt, &h.TimeSpentSeconds,
			&h.TemplateID, &h.TemplateTitle, &h.Category, &h.Difficulty, &h.PassingScore,
		); err != nil {
			log.Println("Row scan error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to scan attempt history"})
		}
		history = append(history, h)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"page":    page,
			"limit":   limit,
			"history": history,
			"count":   len(history),
			"hasMore": len(history) == limit,
		},
	})
}
