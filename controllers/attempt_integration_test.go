package controllers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"github.com/studify-app/studify_backend/models"
	"github.com/studify-app/studify_backend/util"
)

// Integration tests run against a real Postgres instance:
//
//	STUDIFY_INTEGRATION=1 STUDIFY_TEST_DSN="postgres://..." go test ./controllers/
func requireIntegrationDB(t *testing.T) {
	t.Helper()
	if os.Getenv("STUDIFY_INTEGRATION") != "1" {
		t.Skip("set STUDIFY_INTEGRATION=1 to run integration tests")
	}
	if util.DB != nil {
		return
	}
	dsn := os.Getenv("STUDIFY_TEST_DSN")
	if dsn == "" {
		t.Fatal("STUDIFY_TEST_DSN is not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("ping db: %v", err)
	}
	util.DB = db
	if err := util.CreateTableIfNotExists(); err != nil {
		t.Fatalf("create tables: %v", err)
	}
}

// testApp wires the attempt routes with the given user already authenticated.
func testApp(user models.User) *fiber.App {
	app := fiber.New()
	inject := func(c *fiber.Ctx) error {
		c.Locals("user", user)
		return c.Next()
	}
	attempts := app.Group("/api/attempts", inject)
	attempts.Post("/", StartAttempt)
	attempts.Post("/calculate-results", CalculateResults)
	attempts.Post("/complete", CompleteAttempt)
	attempts.Get("/:attempt_id", GetAttempt)
	attempts.Post("/:attempt_id/responses", RecordResponse)
	return app
}

func seedUser(t *testing.T) models.User {
	t.Helper()
	email := fmt.Sprintf("it-%d@studify.test", time.Now().UnixNano())
	var user models.User
	err := util.DB.QueryRow(`
		INSERT INTO users (name, email, password) VALUES ('Integration Tester', $1, 'x')
		RETURNING id, name, email, role
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.Role)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// seedTemplate creates a template with ten one-point questions. Questions
// 1-7 are math, 8-10 are history, and the correct answer is always "A".
func seedTemplate(t *testing.T, createdBy int) (string, []string) {
	t.Helper()
	var templateID string
	err := util.DB.QueryRow(`
		INSERT INTO exam_templates (title, category, difficulty, time_limit_minutes, total_questions, passing_score, created_by_id)
		VALUES ('Integration Mock Exam', 'general', 3, 60, 10, 60, $1)
		RETURNING id
	`, createdBy).Scan(&templateID)
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}

	questionIDs := []string{}
	for i := 1; i <= 10; i++ {
		subject := "math"
		if i > 7 {
			subject = "history"
		}
		var qid string
		err := util.DB.QueryRow(`
			INSERT INTO questions (template_id, question_number, question, options, correct_answer, points, subject, difficulty)
			VALUES ($1, $2, $3, $4, 'A', 1, $5, 2)
			RETURNING id
		`, templateID, i, fmt.Sprintf("Question %d?", i), pq.Array([]string{"A", "B", "C", "D"}), subject).Scan(&qid)
		if err != nil {
			t.Fatalf("seed question %d: %v", i, err)
		}
		questionIDs = append(questionIDs, qid)
	}
	return templateID, questionIDs
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp, raw
}

type attemptEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Attempt models.ExamAttempt `json:"attempt"`
	} `json:"data"`
}

func startAttempt(t *testing.T, app *fiber.App, templateID string) models.ExamAttempt {
	t.Helper()
	resp, raw := doJSON(t, app, "POST", "/api/attempts", map[string]string{"template_id": templateID})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("start attempt: status %d, body %s", resp.StatusCode, raw)
	}
	var env attemptEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	return env.Data.Attempt
}

func TestAttemptNumberingNeverReused(t *testing.T) {
	requireIntegrationDB(t)
	user := seedUser(t)
	templateID, _ := seedTemplate(t, user.ID)
	app := testApp(user)

	first := startAttempt(t, app, templateID)
	if first.AttemptNumber != 1 {
		t.Fatalf("first attempt number = %d, want 1", first.AttemptNumber)
	}
	if first.Status != models.AttemptStarted {
		t.Errorf("status = %q, want started", first.Status)
	}
	if first.TotalQuestions != 10 {
		t.Errorf("total_questions = %d, want 10", first.TotalQuestions)
	}

	second := startAttempt(t, app, templateID)
	if second.AttemptNumber != 2 {
		t.Fatalf("second attempt number = %d, want 2", second.AttemptNumber)
	}

	var responseRows int
	if err := util.DB.QueryRow(`SELECT COUNT(*) FROM attempt_responses WHERE attempt_id = $1`, first.ID).Scan(&responseRows); err != nil {
		t.Fatalf("count responses: %v", err)
	}
	if responseRows != 10 {
		t.Errorf("response rows = %d, want 10 created at start", responseRows)
	}
}

func TestStartAttemptHidesAnswerKey(t *testing.T) {
	requireIntegrationDB(t)
	user := seedUser(t)
	templateID, _ := seedTemplate(t, user.ID)
	app := testApp(user)

	resp, raw := doJSON(t, app, "POST", "/api/attempts", map[string]string{"template_id": templateID})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("start attempt: status %d, body %s", resp.StatusCode, raw)
	}
	if bytes.Contains(raw, []byte(`"correct_answer":`)) {
		t.Error("start payload leaks correct_answer")
	}
}

func TestRecordResponseOverwritesNotDuplicates(t *testing.T) {
	requireIntegrationDB(t)
	user := seedUser(t)
	templateID, questionIDs := seedTemplate(t, user.ID)
	app := testApp(user)

	attempt := startAttempt(t, app, templateID)
	path := "/api/attempts/" + attempt.ID + "/responses"

	resp, raw := doJSON(t, app, "POST", path, map[string]interface{}{"question_id": questionIDs[0], "selected_answer": "B"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("record response: status %d, body %s", resp.StatusCode, raw)
	}
	resp, raw = doJSON(t, app, "POST", path, map[string]interface{}{"question_id": questionIDs[0], "selected_answer": "A"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("record response again: status %d, body %s", resp.StatusCode, raw)
	}

	var count int
	var selected sql.NullString
	err := util.DB.QueryRow(`
		SELECT COUNT(*), MAX(selected_answer) FROM attempt_responses
		WHERE attempt_id = $1 AND question_id = $2
	`, attempt.ID, questionIDs[0]).Scan(&count, &selected)
	if err != nil {
		t.Fatalf("inspect response row: %v", err)
	}
	if count != 1 {
		t.Errorf("response rows for pair = %d, want 1", count)
	}
	if !selected.Valid || selected.String != "A" {
		t.Errorf("selected_answer = %v, want last write A", selected)
	}
}

// answerExample records 7 correct, 2 incorrect and leaves the last question
// untouched.
func answerExample(t *testing.T, app *fiber.App, attemptID string, questionIDs []string) {
	t.Helper()
	path := "/api/attempts/" + attemptID + "/responses"
	for i, qid := range questionIDs[:9] {
		answer := "A"
		if i >= 7 {
			answer = "B"
		}
		resp, raw := doJSON(t, app, "POST", path, map[string]interface{}{"question_id": qid, "selected_answer": answer})
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("record response %d: status %d, body %s", i, resp.StatusCode, raw)
		}
	}
}

func checkExampleTotals(t *testing.T, label string, totals util.AttemptTotals) {
	t.Helper()
	if totals.Answered != 9 || totals.Correct != 7 || totals.Incorrect != 2 || totals.Skipped != 1 {
		t.Errorf("%s: counts = %d/%d/%d/%d, want 9/7/2/1", label, totals.Answered, totals.Correct, totals.Incorrect, totals.Skipped)
	}
	if totals.TotalPoints != 7 || totals.MaxPoints != 10 {
		t.Errorf("%s: points = %v/%v, want 7/10", label, totals.TotalPoints, totals.MaxPoints)
	}
	if totals.Percentage != 70 {
		t.Errorf("%s: percentage = %d, want 70", label, totals.Percentage)
	}
}

func TestCalculateResultsBothPathsAgree(t *testing.T) {
	requireIntegrationDB(t)
	user := seedUser(t)
	templateID, questionIDs := seedTemplate(t, user.ID)
	app := testApp(user)

	attempt := startAttempt(t, app, templateID)
	answerExample(t, app, attempt.ID, questionIDs)

	resp, raw := doJSON(t, app, "POST", "/api/attempts/calculate-results", map[string]string{"attempt_id": attempt.ID})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("calculate: status %d, body %s", resp.StatusCode, raw)
	}
	var env struct {
		Data struct {
			Statistics util.AttemptTotals `json:"statistics"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode calculate response: %v", err)
	}
	checkExampleTotals(t, "primary", env.Data.Statistics)

	// The fallback reduction must produce the same numbers from the same rows.
	scores, err := fetchResponseScores(attempt.ID)
	if err != nil {
		t.Fatalf("fetch scores: %v", err)
	}
	fallback, err := applyFallbackTotals(attempt.ID, attempt.TotalQuestions, scores)
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	checkExampleTotals(t, "fallback", fallback)
	if fallback != env.Data.Statistics {
		t.Errorf("fallback totals %+v differ from primary %+v", fallback, env.Data.Statistics)
	}

	reloaded, err := loadAttemptForUser(attempt.ID, user.ID)
	if err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if reloaded.Percentage != 70 || reloaded.Score != 70 {
		t.Errorf("persisted percentage/score = %d/%d, want 70/70", reloaded.Percentage, reloaded.Score)
	}
}

func TestCompleteAttemptIsIdempotent(t *testing.T) {
	requireIntegrationDB(t)
	user := seedUser(t)
	templateID, questionIDs := seedTemplate(t, user.ID)
	app := testApp(user)

	attempt := startAttempt(t, app, templateID)
	answerExample(t, app, attempt.ID, questionIDs)

	type completeData struct {
		Status     string             `json:"status"`
		Statistics util.AttemptTotals `json:"statistics"`
		Passed     bool               `json:"passed"`
	}
	var env struct {
		Data completeData `json:"data"`
	}

	resp, raw := doJSON(t, app, "POST", "/api/attempts/complete", map[string]interface{}{"attemptId": attempt.ID})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("complete: status %d, body %s", resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode complete response: %v", err)
	}
	if env.Data.Status != "completed" {
		t.Fatalf("status = %q, want completed", env.Data.Status)
	}
	checkExampleTotals(t, "complete", env.Data.Statistics)
	if !env.Data.Passed {
		t.Error("passed = false, want true with 70 >= passing 60")
	}
	first := env.Data.Statistics

	// Second completion returns the stored result and changes nothing, even
	// when it carries a late response.
	resp, raw = doJSON(t, app, "POST", "/api/attempts/complete", map[string]interface{}{
		"attemptId": attempt.ID,
		"responses": []map[string]interface{}{{"question_id": questionIDs[9], "selected_answer": "A"}},
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("re-complete: status %d, body %s", resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode re-complete response: %v", err)
	}
	if env.Data.Status != "already_completed" {
		t.Errorf("status = %q, want already_completed", env.Data.Status)
	}
	if env.Data.Statistics != first {
		t.Errorf("stored result changed on re-complete: %+v vs %+v", env.Data.Statistics, first)
	}

	var lastAnswer sql.NullString
	if err := util.DB.QueryRow(`
		SELECT selected_answer FROM attempt_responses WHERE attempt_id = $1 AND question_id = $2
	`, attempt.ID, questionIDs[9]).Scan(&lastAnswer); err != nil {
		t.Fatalf("inspect late response: %v", err)
	}
	if lastAnswer.Valid && lastAnswer.String != "" {
		t.Errorf("late response was persisted after completion: %v", lastAnswer)
	}

	// Completed attempts reject further answers.
	resp, raw = doJSON(t, app, "POST", "/api/attempts/"+attempt.ID+"/responses",
		map[string]interface{}{"question_id": questionIDs[9], "selected_answer": "A"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("record on completed attempt: status %d, want 400, body %s", resp.StatusCode, raw)
	}
}

func TestCompleteRejectsForeignQuestion(t *testing.T) {
	requireIntegrationDB(t)
	user := seedUser(t)
	templateID, _ := seedTemplate(t, user.ID)
	_, otherQuestionIDs := seedTemplate(t, user.ID)
	app := testApp(user)

	attempt := startAttempt(t, app, templateID)

	resp, raw := doJSON(t, app, "POST", "/api/attempts/complete", map[string]interface{}{
		"attemptId": attempt.ID,
		"responses": []map[string]interface{}{{"question_id": otherQuestionIDs[0], "selected_answer": "A"}},
	})
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("complete with foreign question: status %d, want 404, body %s", resp.StatusCode, raw)
	}

	// Nothing was persisted: no extra response row, attempt still open.
	var responseRows int
	if err := util.DB.QueryRow(`SELECT COUNT(*) FROM attempt_responses WHERE attempt_id = $1`, attempt.ID).Scan(&responseRows); err != nil {
		t.Fatalf("count responses: %v", err)
	}
	if responseRows != 10 {
		t.Errorf("response rows = %d, want 10 after rejected completion", responseRows)
	}
	reloaded, err := loadAttemptForUser(attempt.ID, user.ID)
	if err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if reloaded.Status != models.AttemptStarted {
		t.Errorf("status = %q, want started after rejected completion", reloaded.Status)
	}
}

func TestAnsweredAtTracksRealAnswers(t *testing.T) {
	requireIntegrationDB(t)
	user := seedUser(t)
	templateID, questionIDs := seedTemplate(t, user.ID)
	app := testApp(user)

	attempt := startAttempt(t, app, templateID)
	path := "/api/attempts/" + attempt.ID + "/responses"

	answeredAt := func() sql.NullTime {
		var at sql.NullTime
		if err := util.DB.QueryRow(`
			SELECT answered_at FROM attempt_responses WHERE attempt_id = $1 AND question_id = $2
		`, attempt.ID, questionIDs[0]).Scan(&at); err != nil {
			t.Fatalf("inspect answered_at: %v", err)
		}
		return at
	}

	if at := answeredAt(); at.Valid {
		t.Errorf("pre-created row has answered_at = %v, want null", at.Time)
	}

	resp, raw := doJSON(t, app, "POST", path, map[string]interface{}{"question_id": questionIDs[0], "selected_answer": ""})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("record empty answer: status %d, body %s", resp.StatusCode, raw)
	}
	if at := answeredAt(); at.Valid {
		t.Errorf("empty answer stamped answered_at = %v, want null", at.Time)
	}

	resp, raw = doJSON(t, app, "POST", path, map[string]interface{}{"question_id": questionIDs[0], "selected_answer": "A"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("record answer: status %d, body %s", resp.StatusCode, raw)
	}
	if at := answeredAt(); !at.Valid {
		t.Error("real answer did not stamp answered_at")
	}

	// Clearing the answer clears the timestamp with it.
	resp, raw = doJSON(t, app, "POST", path, map[string]interface{}{"question_id": questionIDs[0], "selected_answer": ""})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("clear answer: status %d, body %s", resp.StatusCode, raw)
	}
	if at := answeredAt(); at.Valid {
		t.Errorf("cleared answer kept answered_at = %v, want null", at.Time)
	}
}

func TestAttemptAccessIsOwnerScoped(t *testing.T) {
	requireIntegrationDB(t)
	owner := seedUser(t)
	intruder := seedUser(t)
	templateID, _ := seedTemplate(t, owner.ID)

	attempt := startAttempt(t, testApp(owner), templateID)

	resp, raw := doJSON(t, testApp(intruder), "GET", "/api/attempts/"+attempt.ID, nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("foreign attempt fetch: status %d, want 404, body %s", resp.StatusCode, raw)
	}
}
