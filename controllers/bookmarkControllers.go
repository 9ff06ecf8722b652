package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/studify-app/studify_backend/models"
	"github.com/studify-app/studify_backend/util"
	"time"
)

type BookmarkRequest struct {
	QuestionID string `json:"question_id"`
}

// CreateBookmark saves a question for later review. Bookmarking twice is a
// no-op.
func CreateBookmark(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	var req BookmarkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}
	if _, err := uuid.Parse(req.QuestionID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed question_id"})
	}

	query := `
		INSERT INTO bookmarked_questions (user_id, question_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, question_id) DO NOTHING
	`
	if _, err := util.DB.Exec(query, user.ID, req.QuestionID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Could not bookmark question: " + err.Error()})
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"question_id": req.QuestionID}})
}

func GetAllBookmarks(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	rows, err := util.DB.Query(`
		SELECT q.id, q.template_id, q.question_number, q.question, q.options, q.points, q.subject, q.difficulty, q.created_at, b.bookmarked_at
		FROM bookmarked_questions b
		JOIN questions q ON q.id = b.question_id
		WHERE b.user_id = $1
		ORDER BY b.bookmarked_at DESC
	`, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch bookmarks"})
	}
	defer rows.Close()

	type BookmarkedQuestion struct {
		models.Question
		BookmarkedAt time.Time `json:"bookmarked_at"`
	}

	bookmarks := []BookmarkedQuestion{}
	for rows.Next() {
		var b BookmarkedQuestion
		if err := rows.Scan(&b.ID, &b.TemplateID, &b.QuestionNumber, &b.Question.Question, pq.Array(&b.Options), &b.Points, &b.Subject, &b.Difficulty, &b.CreatedAt, &b.BookmarkedAt); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to scan bookmark"})
		}
		bookmarks = append(bookmarks, b)
	}

	return c.JSON(fiber.Map{"success": true, "data": bookmarks})
}

func RemoveBookmark(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	questionID := c.Params("qid")
	if _, err := uuid.Parse(questionID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed question id"})
	}

	result, err := util.DB.Exec(`DELETE FROM bookmarked_questions WHERE user_id = $1 AND question_id = $2`, user.ID, questionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to remove bookmark"})
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Bookmark not found"})
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"deleted": questionID}})
}
