package util

import (
	"fmt"
)

func ddlStrings() []string {
	sqlStrings := []string{}
	sqlStrings = append(sqlStrings,
		`CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    name VARCHAR(128) NOT NULL,
    email VARCHAR(128) UNIQUE NOT NULL,
    password VARCHAR(512),
    role VARCHAR(50) NOT NULL CHECK(role='admin' or role='user' or role='owner') DEFAULT 'user',
    password_changed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    verified BOOLEAN DEFAULT false,
    profile_pic VARCHAR(255),
    about TEXT,
    deleted BOOLEAN DEFAULT false,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS exam_templates (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title VARCHAR(255) NOT NULL,
    category VARCHAR(128) NOT NULL,
    difficulty INT CHECK (difficulty BETWEEN 1 AND 5),
    time_limit_minutes INT NOT NULL DEFAULT 60,
    total_questions INT NOT NULL DEFAULT 0,
    passing_score INT NOT NULL DEFAULT 60,
    active BOOLEAN NOT NULL DEFAULT true,
    created_by_id INT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (created_by_id) REFERENCES users(id) ON DELETE CASCADE
)`,
		`CREATE TABLE IF NOT EXISTS questions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    template_id UUID NOT NULL,
    question_number INT NOT NULL,
    question TEXT NOT NULL,
    options TEXT[] NOT NULL,
    correct_answer TEXT NOT NULL,
    points FLOAT NOT NULL DEFAULT 1,
    subject VARCHAR(255) NOT NULL,
    difficulty INT CHECK (difficulty BETWEEN 1 AND 5),
    explanation TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (template_id, question_number),
    FOREIGN KEY (template_id) REFERENCES exam_templates(id) ON DELETE CASCADE
)`,
		`CREATE TABLE IF NOT EXISTS exam_attempts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id INT NOT NULL,
    template_id UUID NOT NULL,
    attempt_number INT NOT NULL,
    status VARCHAR(20) NOT NULL CHECK (status IN ('started', 'paused', 'completed')) DEFAULT 'started',
    total_questions INT NOT NULL DEFAULT 0,
    answered_questions INT NOT NULL DEFAULT 0,
    correct_answers INT NOT NULL DEFAULT 0,
    incorrect_answers INT NOT NULL DEFAULT 0,
    skipped_questions INT NOT NULL DEFAULT 0,
    total_points FLOAT NOT NULL DEFAULT 0,
    max_points FLOAT NOT NULL DEFAULT 0,
    percentage INT NOT NULL DEFAULT 0,
    score INT NOT NULL DEFAULT 0,
    time_limit_seconds INT NOT NULL DEFAULT 0,
    time_spent_seconds INT NOT NULL DEFAULT 0,
    started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    paused_at TIMESTAMP,
    completed_at TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (user_id, template_id, attempt_number),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY (template_id) REFERENCES exam_templates(id)
)`,
		`CREATE TABLE IF NOT EXISTS attempt_responses (
    attempt_id UUID NOT NULL REFERENCES exam_attempts(id) ON DELETE CASCADE,
    question_id UUID NOT NULL REFERENCES questions(id),
    selected_answer TEXT,
    is_correct BOOLEAN NOT NULL DEFAULT false,
    points_earned FLOAT NOT NULL DEFAULT 0,
    time_spent_seconds INT NOT NULL DEFAULT 0,
    is_flagged BOOLEAN NOT NULL DEFAULT false,
    answered_at TIMESTAMP,
    PRIMARY KEY (attempt_id, question_id)
)`,
		`CREATE TABLE IF NOT EXISTS study_blocks (
    id SERIAL PRIMARY KEY,
    user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    subject VARCHAR(255) NOT NULL,
    weekday INT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
    start_minute INT NOT NULL CHECK (start_minute BETWEEN 0 AND 1439),
    end_minute INT NOT NULL CHECK (end_minute BETWEEN 1 AND 1440),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    CHECK (start_minute < end_minute)
)`,
		`CREATE TABLE IF NOT EXISTS bookmarked_questions (
    user_id INT NOT NULL,
    question_id UUID NOT NULL,
    bookmarked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, question_id),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY (question_id) REFERENCES questions(id) ON DELETE CASCADE
)`,
		// Server-side scoring routine. The Go fallback in util/scoring.go must
		// stay numerically identical to this reduction.
		`CREATE OR REPLACE FUNCTION calculate_attempt_results(p_attempt_id UUID)
RETURNS TABLE (
    r_answered INT,
    r_correct INT,
    r_incorrect INT,
    r_skipped INT,
    r_total_points FLOAT,
    r_max_points FLOAT,
    r_percentage INT
) AS $$
DECLARE
    v_total INT;
    v_answered INT;
    v_correct INT;
    v_total_points FLOAT;
    v_max_points FLOAT;
    v_percentage INT;
BEGIN
    SELECT a.total_questions INTO v_total FROM exam_attempts a WHERE a.id = p_attempt_id;
    IF NOT FOUND THEN
        RAISE EXCEPTION 'attempt % not found', p_attempt_id;
    END IF;

    UPDATE attempt_responses ar
    SET is_correct = (ar.selected_answer IS NOT NULL AND ar.selected_answer <> '' AND ar.selected_answer = q.correct_answer),
        points_earned = CASE
            WHEN ar.selected_answer IS NOT NULL AND ar.selected_answer <> '' AND ar.selected_answer = q.correct_answer THEN q.points
            ELSE 0
        END
    FROM questions q
    WHERE q.id = ar.question_id AND ar.attempt_id = p_attempt_id;

    SELECT
        COUNT(*) FILTER (WHERE ar.selected_answer IS NOT NULL AND ar.selected_answer <> ''),
        COUNT(*) FILTER (WHERE ar.is_correct),
        COALESCE(SUM(ar.points_earned), 0),
        COALESCE(SUM(q.points), 0)
    INTO v_answered, v_correct, v_total_points, v_max_points
    FROM attempt_responses ar
    JOIN questions q ON q.id = ar.question_id
    WHERE ar.attempt_id = p_attempt_id;

    IF v_max_points > 0 THEN
        v_percentage := ROUND((v_total_points / v_max_points * 100)::numeric);
    ELSE
        v_percentage := 0;
    END IF;

    UPDATE exam_attempts
    SET answered_questions = v_answered,
        correct_answers = v_correct,
        incorrect_answers = v_answered - v_correct,
        skipped_questions = v_total - v_answered,
        total_points = v_total_points,
        max_points = v_max_points,
        percentage = v_percentage,
        score = v_percentage,
        updated_at = now()
    WHERE id = p_attempt_id;

    RETURN QUERY SELECT v_answered, v_correct, v_answered - v_correct, v_total - v_answered, v_total_points, v_max_points, v_percentage;
END;
$$ LANGUAGE plpgsql`,
		// Completion routine: idempotent, already-completed attempts are
		// returned untouched.
		`CREATE OR REPLACE FUNCTION complete_attempt(p_attempt_id UUID)
RETURNS TABLE (
    r_status VARCHAR,
    r_answered INT,
    r_correct INT,
    r_incorrect INT,
    r_skipped INT,
    r_total_points FLOAT,
    r_max_points FLOAT,
    r_percentage INT,
    r_completed_at TIMESTAMP
) AS $$
DECLARE
    v_status VARCHAR(20);
BEGIN
    SELECT a.status INTO v_status FROM exam_attempts a WHERE a.id = p_attempt_id;
    IF NOT FOUND THEN
        RAISE EXCEPTION 'attempt % not found', p_attempt_id;
    END IF;

    IF v_status <> 'completed' THEN
        PERFORM calculate_attempt_results(p_attempt_id);
        UPDATE exam_attempts
        SET status = 'completed', completed_at = now(), updated_at = now()
        WHERE id = p_attempt_id;
    END IF;

    RETURN QUERY
    SELECT a.status, a.answered_questions, a.correct_answers, a.incorrect_answers,
           a.skipped_questions, a.total_points, a.max_points, a.percentage, a.completed_at
    FROM exam_attempts a
    WHERE a.id = p_attempt_id;
END;
$$ LANGUAGE plpgsql`)
	return sqlStrings
}

func CreateTableIfNotExists() error {
	sqlStrings := ddlStrings()
	for i, sql := range sqlStrings {
		_, err := DB.Exec(sql)
		if err != nil {
			return fmt.Errorf("error creating table %d: %w", i, err)
		}
	}
	return nil
}

func dropTables() []string {
	return []string{
		"DROP FUNCTION IF EXISTS complete_attempt",
		"DROP FUNCTION IF EXISTS calculate_attempt_results",
		"DROP TABLE IF EXISTS bookmarked_questions",
		"DROP TABLE IF EXISTS study_blocks",
		"DROP TABLE IF EXISTS attempt_responses",
		"DROP TABLE IF EXISTS exam_attempts",
		"DROP TABLE IF EXISTS questions",
		"DROP TABLE IF EXISTS exam_templates",
		"DROP TABLE IF EXISTS users",
	}
}
