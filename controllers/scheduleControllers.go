package controllers

import (
	"database/sql"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/studify-app/studify_backend/models"
	"github.com/studify-app/studify_backend/util"
	"strconv"
	"strings"
)

type StudyBlockInput struct {
	Subject     string `json:"subject" validate:"required"`
	Weekday     int    `json:"weekday" validate:"gte=0,lte=6"`
	StartMinute int    `json:"start_minute" validate:"gte=0,lte=1439"`
	EndMinute   int    `json:"end_minute" validate:"gte=1,lte=1440"`
}

// loadUserBlocks fetches all blocks for a user, used for the pairwise overlap
// check before any insert/update.
func loadUserBlocks(userID int) ([]models.StudyBlock, error) {
	rows, err := util.DB.Query(`
		SELECT id, user_id, subject, weekday, start_minute, end_minute, created_at, updated_at
		FROM study_blocks
		WHERE user_id = $1
		ORDER BY weekday, start_minute
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blocks := []models.StudyBlock{}
	for rows.Next() {
		var b models.StudyBlock
		if err := rows.Scan(&b.ID, &b.UserID, &b.Subject, &b.Weekday, &b.StartMinute, &b.EndMinute, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// CreateStudyBlock adds a block to the weekly schedule, rejecting any block
// that overlaps an existing one on the same weekday.
func CreateStudyBlock(c *fiber.Ctx) error {
	validate := validator.New()

	var input StudyBlockInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid input"})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Validation failed: " + err.Error()})
	}
	if input.StartMinute >= input.EndMinute {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "start_minute must be before end_minute"})
	}

	user := c.Locals("user").(models.User)

	candidate := models.StudyBlock{
		Weekday:     input.Weekday,
		StartMinute: input.StartMinute,
		EndMinute:   input.EndMinute,
	}
	existing, err := loadUserBlocks(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch schedule"})
	}
	for _, b := range existing {
		if candidate.OverlapsWith(b) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Block overlaps an existing study block"})
		}
	}

	var block models.StudyBlock
	err = util.DB.QueryRow(`
		INSERT INTO study_blocks (user_id, subject, weekday, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, subject, weekday, start_minute, end_minute, created_at, updated_at
	`, user.ID, strings.ToLower(strings.TrimSpace(input.Subject)), input.Weekday, input.StartMinute, input.EndMinute).Scan(
		&block.ID, &block.UserID, &block.Subject, &block.Weekday, &block.StartMinute, &block.EndMinute, &block.CreatedAt, &block.UpdatedAt,
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to create block: " + err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": fiber.Map{"block": block}})
}

func GetStudyBlocks(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	blocks, err := loadUserBlocks(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch schedule"})
	}

	return c.JSON(fiber.Map{"success": true, "data": blocks})
}

func UpdateStudyBlock(c *fiber.Ctx) error {
	validate := validator.New()

	blockID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid block id"})
	}

	var input StudyBlockInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid input"})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Validation failed: " + err.Error()})
	}
	if input.StartMinute >= input.EndMinute {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "start_minute must be before end_minute"})
	}

	user := c.Locals("user").(models.User)

	var ownerID int
	err = util.DB.QueryRow(`SELECT user_id FROM study_blocks WHERE id = $1`, blockID).Scan(&ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Block not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch block"})
	}
	if ownerID != user.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Block not found"})
	}

	candidate := models.StudyBlock{
		Weekday:     input.Weekday,
		StartMinute: input.StartMinute,
		EndMinute:   input.EndMinute,
	}
	existing, err := loadUserBlocks(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch schedule"})
	}
	for _, b := range existing {
		if b.ID == blockID {
			continue
		}
		if candidate.OverlapsWith(b) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Block overlaps an existing study block"})
		}
	}

	var block models.StudyBlock
	err = util.DB.QueryRow(`
		UPDATE study_blocks
		SET subject = $1, weekday = $2, start_minute = $3, end_minute = $4, updated_at = now()
		WHERE id = $5 AND user_id = $6
		RETURNING id, user_id, subject, weekday, start_minute, end_minute, created_at, updated_at
	`, strings.ToLower(strings.TrimSpace(input.Subject)), input.Weekday, input.StartMinute, input.EndMinute, blockID, user.ID).Scan(
		&block.ID, &block.UserID, &block.Subject, &block.Weekday, &block.StartMinute, &block.EndMinute, &block.CreatedAt, &block.UpdatedAt,
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to update block: " + err.Error()})
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"block": block}})
}

func DeleteStudyBlock(c *fiber.Ctx) error {
	blockID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid block id"})
	}

	user := c.Locals("user").(models.User)

	result, err := util.DB.Exec(`DELETE FROM study_blocks WHERE id = $1 AND user_id = $2`, blockID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to delete block"})
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Block not found"})
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"deleted": blockID}})
}
