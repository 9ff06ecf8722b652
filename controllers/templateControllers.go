package controllers

import (
	"database/sql"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/studify-app/studify_backend/models"
	"github.com/studify-app/studify_backend/util"
	"math"
	"strconv"
	"strings"
)

type CreateTemplateInput struct {
	Title            string `json:"title" validate:"required"`
	Category         string `json:"category" validate:"required"`
	Difficulty       int    `json:"difficulty" validate:"oneof=1 2 3 4 5"`
	TimeLimitMinutes int    `json:"time_limit_minutes" validate:"gt=0"`
	PassingScore     int    `json:"passing_score" validate:"gte=0,lte=100"`
	Questions        []struct {
		Question      string   `json:"question" validate:"required"`
		Options       []string `json:"options" validate:"required,min=2"`
		CorrectAnswer string   `json:"correct_answer" validate:"required"`
		Points        float64  `json:"points"`
		Subject       string   `json:"subject" validate:"required"`
		Difficulty    int      `json:"difficulty" validate:"oneof=1 2 3 4 5"`
		Explanation   *string  `json:"explanation"`
	} `json:"questions"`
}

// pageParams reads page/limit pagination queries, clamping both to at least 1
// so a zero or garbage limit cannot blow up the offset or total-pages math.
func pageParams(c *fiber.Ctx, defaultLimit int) (page, limit, offset int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(c.Query("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	return page, limit, (page - 1) * limit
}

// CreateTemplate inserts a template and its questions in one transaction.
// Ordinals are assigned from array position.
func CreateTemplate(c *fiber.Ctx) error {
	validate := validator.New()

	var input CreateTemplateInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid input: " + err.Error()})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Validation failed: " + err.Error()})
	}

	user := c.Locals("user").(models.User)

	input.Category = strings.ToLower(strings.TrimSpace(input.Category))

	tx, err := util.DB.Begin()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to start transaction"})
	}
	defer tx.Rollback()

	var templateID string
	err = tx.QueryRow(`
		INSERT INTO exam_templates (title, category, difficulty, time_limit_minutes, total_questions, passing_score, created_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, input.Title, input.Category, input.Difficulty, input.TimeLimitMinutes, len(input.Questions), input.PassingScore, user.ID).Scan(&templateID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to insert template: " + err.Error()})
	}

	stmt, err := tx.Prepare(`
		INSERT INTO questions (template_id, question_number, question, options, correct_answer, points, subject, difficulty, explanation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to prepare question insert"})
	}
	defer stmt.Close()

	for i, q := range input.Questions {
		points := q.Points
		if points == 0 {
			points = 1
		}
		subject := strings.ToLower(strings.TrimSpace(q.Subject))
		if _, err := stmt.Exec(templateID, i+1, q.Question, pq.Array(q.Options), q.CorrectAnswer, points, subject, q.Difficulty, q.Explanation); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to insert question: " + err.Error()})
		}
	}

	if err := tx.Commit(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Transaction commit failed: " + err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":              templateID,
			"total_questions": len(input.Questions),
		},
	})
}

// GetTemplates lists active templates with filters and pagination.
func GetTemplates(c *fiber.Ctx) error {
	page, limit, offset := pageParams(c, 10)

	search := c.Query("search")
	category := c.Query("category")
	difficulty := c.Query("difficulty")

	query := `
		SELECT id, title, category, difficulty, time_limit_minutes, total_questions, passing_score, active, created_by_id, created_at, updated_at
		FROM exam_templates
		WHERE active = true
	`

	var args []interface{}
	var whereClauses []string
	argCount := 1

	if search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("title ILIKE $%d", argCount))
		args = append(args, "%"+search+"%")
		argCount++
	}
	if category != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("category = $%d", argCount))
		args = append(args, strings.ToLower(category))
		argCount++
	}
	if difficulty != "" {
		d, err := strconv.Atoi(difficulty)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid difficulty"})
		}
		whereClauses = append(whereClauses, fmt.Sprintf("difficulty = $%d", argCount))
		args = append(args, d)
		argCount++
	}

	if len(whereClauses) > 0 {
		query += " AND " + strings.Join(whereClauses, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, limit, offset)

	rows, err := util.DB.Query(query, args...)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch templates: " + err.Error()})
	}
	defer rows.Close()

	var totalCount int
	countQuery := "SELECT COUNT(*) FROM exam_templates WHERE active = true"
	if len(whereClauses) > 0 {
		countQuery += " AND " + strings.Join(whereClauses, " AND ")
	}
	err = util.DB.QueryRow(countQuery, args[:len(args)-2]...).Scan(&totalCount)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to get total count"})
	}

	templates := []models.ExamTemplate{}
	for rows.Next() {
		var t models.ExamTemplate
		if err := rows.Scan(&t.ID, &t.Title, &t.Category, &t.Difficulty, &t.TimeLimitMinutes, &t.TotalQuestions, &t.PassingScore, &t.Active, &t.CreatedByID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to scan template"})
		}
		templates = append(templates, t)
	}

	totalPages := int(math.Ceil(float64(totalCount) / float64(limit)))

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"templates": templates,
			"pagination": fiber.Map{
				"total":        totalCount,
				"count":        len(templates),
				"per_page":     limit,
				"current_page": page,
				"total_pages":  totalPages,
			},
		},
	})
}

// GetTemplateByID returns one template with its questions. Answer keys are
// never included here; they only surface through completed attempts.
func GetTemplateByID(c *fiber.Ctx) error {
	templateID := c.Params("id")
	if _, err := uuid.Parse(templateID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed template id"})
	}

	var t models.ExamTemplate
	err := util.DB.QueryRow(`
		SELECT id, title, category, difficulty, time_limit_minutes, total_questions, passing_score, active, created_by_id, created_at, updated_at
		FROM exam_templates
		WHERE id = $1 AND active = true
	`, templateID).Scan(&t.ID, &t.Title, &t.Category, &t.Difficulty, &t.TimeLimitMinutes, &t.TotalQuestions, &t.PassingScore, &t.Active, &t.CreatedByID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Template not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch template"})
	}

	rows, err := util.DB.Query(`
		SELECT id, template_id, question_number, question, options, points, subject, difficulty, created_at
		FROM questions
		WHERE template_id = $1
		ORDER BY question_number
	`, templateID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch questions"})
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.TemplateID, &q.QuestionNumber, &q.Question, pq.Array(&q.Options), &q.Points, &q.Subject, &q.Difficulty, &q.CreatedAt); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to scan question"})
		}
		questions = append(questions, q)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"template":  t,
			"questions": questions,
		},
	})
}

// DeactivateTemplate soft-deactivates a template. Templates are never hard
// deleted once attempts reference them.
func DeactivateTemplate(c *fiber.Ctx) error {
	templateID := c.Params("id")
	if _, err := uuid.Parse(templateID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed template id"})
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
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "error": "Only the creator or an admin can deactivate a template"})
	}

	if _, err := util.DB.Exec(`UPDATE exam_templates SET active = false, updated_at = now() WHERE id = $1`, templateID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to deactivate template"})
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"id": templateID, "active": false}})
}
