package controllers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/studify-app/studify_backend/util"
	"io"
	"net/http"
)

type ExplanationRequest struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Subject       string   `json:"subject"`
	Language      string   `json:"language"`
}

// GenerateExplanation asks the external AI service to explain a question.
// The service is a collaborator behind a plain JSON contract; this handler
// only assembles the prompt payload and relays the result.
func GenerateExplanation(c *fiber.Ctx) error {
	var req struct {
		QuestionID string `json:"question_id"`
		Language   string `json:"language"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}
	if _, err := uuid.Parse(req.QuestionID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Malformed question_id"})
	}
	if req.Language == "" {
		req.Language = "en"
	}

	var payload ExplanationRequest
	err := util.DB.QueryRow(`
		SELECT question, options, correct_answer, subject
		FROM questions
		WHERE id = $1
	`, req.QuestionID).Scan(&payload.Question, pq.Array(&payload.Options), &payload.CorrectAnswer, &payload.Subject)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Question not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch question"})
	}
	payload.Language = req.Language

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to marshal request data"})
	}

	resp, err := http.Post(
		util.AIServiceURL+"/explanations",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to connect to AI service: " + err.Error()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to read service response"})
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp map[string]interface{}
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return c.Status(resp.StatusCode).JSON(fiber.Map{"success": false, "error": string(body)})
		}
		return c.Status(resp.StatusCode).JSON(errorResp)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to parse service response"})
	}

	return c.JSON(fiber.Map{"success": true, "data": result})
}
