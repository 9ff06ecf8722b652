package controllers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/studify-app/studify_backend/models"
	"github.com/studify-app/studify_backend/util"
	"strings"
)

type QuestionInput struct {
	TemplateID    string   `json:"template_id" validate:"required"`
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"required,min=2"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
	Points        float64  `json:"points"`
	Subject       string   `json:"subject" validate:"required"`
	Difficulty    int      `json:"difficulty" validate:"oneof=1 2 3 4 5"`
	Explanation   *string  `json:"explanation"`
}

// CreateQuestions appends questions to a template. Accepts a single object
// or an array. Templates with existing attempts are frozen: adding questions
// would retroactively change historical scoring.
func CreateQuestions(c *fiber.Ctx) error {
	validate := validator.New()

	body := c.Body()

	var inputs []QuestionInput
	if err := json.Unmarshal(body, &inputs); err != nil {
		var single QuestionInput
		if err := json.Unmarshal(body, &single); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Failed to parse request body: " + err.Error()})
		}
		inputs = append(inputs, single)
	}
	if len(inputs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "No questions supplied"})
	}

	templateID := inputs[0].TemplateID
	for i := range inputs {
		q := &inputs[i]
		q.Subject = strings.ToLower(strings.TrimSpace(q.Subject))
		if q.Points == 0 {
			q.Points = 1
		}
		if err := validate.Struct(q); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Validation failed: " + err.Error()})
		}
		if q.TemplateID != templateID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "All questions must target the same template"})
		}
	}
	if _, err := uuid.Parse(templateID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed template_id"})
	}

	user := c.Locals("user").(models.User)

	var creatorID int
	err := util.DB.QueryRow(`SELECT created_by_id FROM exam_templates WHERE id = $1`, templateID).Scan(&creatorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Template not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch template"})
	}
	if creatorID != user.ID && user.Role != "admin" && user.Role != "owner" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "error": "Only the creator or an admin can add questions"})
	}

	var hasAttempts bool
	err = util.DB.QueryRow(`SELECT EXISTS(SELECT 1 FROM exam_attempts WHERE template_id = $1)`, templateID).Scan(&hasAttempts)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to check attempts"})
	}
	if hasAttempts {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Template already has attempts; questions are frozen"})
	}

	tx, err := util.DB.Begin()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to start transaction"})
	}
	defer tx.Rollback()

	var nextNumber int
	err = tx.QueryRow(`SELECT COALESCE(MAX(question_number), 0) + 1 FROM questions WHERE template_id = $1`, templateID).Scan(&nextNumber)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to compute ordinal"})
	}

	createdIDs := []string{}
	for i, q := range inputs {
		var questionID string
		err := tx.QueryRow(`
			INSERT INTO questions (template_id, question_number, question, options, correct_answer, points, subject, difficulty, explanation)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`, templateID, nextNumber+i, q.Question, pq.Array(q.Options), q.CorrectAnswer, q.Points, q.Subject, q.Difficulty, q.Explanation).Scan(&questionID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to insert question: " + err.Error()})
		}
		createdIDs = append(createdIDs, questionID)
	}

	_, err = tx.Exec(`
		UPDATE exam_templates
		SET total_questions = (SELECT COUNT(*) FROM questions WHERE template_id = $1), updated_at = now()
		WHERE id = $1
	`, templateID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to update question count"})
	}

	if err := tx.Commit(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to commit transaction: " + err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"questions": createdIDs},
	})
}

// GetQuestions lists questions with filters and pagination. Answer keys are
// only included for the template creator and admins.
func GetQuestions(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	page, limit, offset := pageParams(c, 20)

	templateID := c.Query("template_id")
	subject := c.Query("subject")

	query := `
		SELECT q.id, q.template_id, q.question_number, q.question, q.options, q.correct_answer,
		       q.points, q.subject, q.difficulty, q.explanation, q.created_at, t.created_by_id
		FROM questions q JOIN exam_templates t ON q.template_id = t.id
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if templateID != "" {
		if _, err := uuid.Parse(templateID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed template_id"})
		}
		query += fmt.Sprintf(" AND q.template_id = $%d", argIdx)
		args = append(args, templateID)
		argIdx++
	}
	if subject != "" {
		query += fmt.Sprintf(" AND q.subject = $%d", argIdx)
		args = append(args, strings.ToLower(subject))
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY q.template_id, q.question_number LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := util.DB.Query(query, args...)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch questions: " + err.Error()})
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		var q models.Question
		var creatorID int
		if err := rows.Scan(&q.ID, &q.TemplateID, &q.QuestionNumber, &q.Question, pq.Array(&q.Options), &q.CorrectAnswer, &q.Points, &q.Subject, &q.Difficulty, &q.Explanation, &q.CreatedAt, &creatorID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to scan question"})
		}
		if creatorID != user.ID && user.Role != "admin" && user.Role != "owner" {
			q.CorrectAnswer = ""
			q.Explanation = nil
		}
		questions = append(questions, q)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"questions": questions,
			"page":      page,
			"limit":     limit,
			"count":     len(questions),
		},
	})
}
