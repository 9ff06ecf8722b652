package util

import "testing"

func strPtr(s string) *string { return &s }

// Ten questions, one point each: 7 correct, 2 wrong, 1 left blank.
func exampleRows() []ResponseScore {
	rows := []ResponseScore{}
	for i := 0; i < 7; i++ {
		rows = append(rows, ResponseScore{Subject: "math", SelectedAnswer: strPtr("A"), CorrectAnswer: "A", QuestionPoints: 1})
	}
	for i := 0; i < 2; i++ {
		rows = append(rows, ResponseScore{Subject: "history", SelectedAnswer: strPtr("B"), CorrectAnswer: "A", QuestionPoints: 1})
	}
	rows = append(rows, ResponseScore{Subject: "history", SelectedAnswer: nil, CorrectAnswer: "A", QuestionPoints: 1})
	return rows
}

func TestComputeAttemptTotalsExample(t *testing.T) {
	totals := ComputeAttemptTotals(10, exampleRows())

	if totals.Answered != 9 {
		t.Errorf("answered = %d, want 9", totals.Answered)
	}
	if totals.Correct != 7 {
		t.Errorf("correct = %d, want 7", totals.Correct)
	}
	if totals.Incorrect != 2 {
		t.Errorf("incorrect = %d, want 2", totals.Incorrect)
	}
	if totals.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", totals.Skipped)
	}
	if totals.TotalPoints != 7 {
		t.Errorf("total_points = %v, want 7", totals.TotalPoints)
	}
	if totals.MaxPoints != 10 {
		t.Errorf("max_points = %v, want 10", totals.MaxPoints)
	}
	if totals.Percentage != 70 {
		t.Errorf("percentage = %d, want 70", totals.Percentage)
	}
}

func TestComputeAttemptTotalsInvariants(t *testing.T) {
	cases := [][]ResponseScore{
		exampleRows(),
		{},
		{
			{Subject: "math", SelectedAnswer: strPtr("C"), CorrectAnswer: "C", QuestionPoints: 2.5},
			{Subject: "math", SelectedAnswer: strPtr(""), CorrectAnswer: "C", QuestionPoints: 2.5},
		},
	}
	for i, rows := range cases {
		totals := ComputeAttemptTotals(len(rows), rows)
		if totals.Answered+totals.Skipped != len(rows) {
			t.Errorf("case %d: answered+skipped = %d, want %d", i, totals.Answered+totals.Skipped, len(rows))
		}
		if totals.Correct+totals.Incorrect != totals.Answered {
			t.Errorf("case %d: correct+incorrect = %d, want %d", i, totals.Correct+totals.Incorrect, totals.Answered)
		}
	}
}

func TestComputeAttemptTotalsZeroMaxPoints(t *testing.T) {
	rows := []ResponseScore{
		{Subject: "math", SelectedAnswer: strPtr("A"), CorrectAnswer: "A", QuestionPoints: 0},
		{Subject: "math", SelectedAnswer: strPtr("B"), CorrectAnswer: "A", QuestionPoints: 0},
	}
	totals := ComputeAttemptTotals(2, rows)
	if totals.Percentage != 0 {
		t.Errorf("percentage = %d, want 0 when max_points is 0", totals.Percentage)
	}
	if totals.MaxPoints != 0 || totals.TotalPoints != 0 {
		t.Errorf("points = %v/%v, want 0/0", totals.TotalPoints, totals.MaxPoints)
	}
}

func TestComputeAttemptTotalsEmptyAnswerIsSkipped(t *testing.T) {
	rows := []ResponseScore{
		{Subject: "math", SelectedAnswer: strPtr(""), CorrectAnswer: "", QuestionPoints: 1},
	}
	totals := ComputeAttemptTotals(1, rows)
	if totals.Answered != 0 {
		t.Errorf("answered = %d, want 0 for empty answer", totals.Answered)
	}
	if totals.Correct != 0 {
		t.Errorf("empty answer must never count as correct, got correct = %d", totals.Correct)
	}
	if totals.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", totals.Skipped)
	}
}

func TestComputeAttemptTotalsRounding(t *testing.T) {
	rows := []ResponseScore{
		{Subject: "math", SelectedAnswer: strPtr("A"), CorrectAnswer: "A", QuestionPoints: 1},
		{Subject: "math", SelectedAnswer: strPtr("B"), CorrectAnswer: "A", QuestionPoints: 1},
		{Subject: "math", SelectedAnswer: strPtr("B"), CorrectAnswer: "A", QuestionPoints: 1},
	}
	totals := ComputeAttemptTotals(3, rows)
	// 1/3 -> 33.33 rounds to 33
	if totals.Percentage != 33 {
		t.Errorf("percentage = %d, want 33", totals.Percentage)
	}

	rows[1].SelectedAnswer = strPtr("A")
	totals = ComputeAttemptTotals(3, rows)
	// 2/3 -> 66.67 rounds to 67
	if totals.Percentage != 67 {
		t.Errorf("percentage = %d, want 67", totals.Percentage)
	}
}

func TestSubjectBreakdown(t *testing.T) {
	breakdown := SubjectBreakdown(exampleRows())

	math, ok := breakdown["math"]
	if !ok {
		t.Fatal("missing math subject")
	}
	if math.Total != 7 || math.Answered != 7 || math.Correct != 7 || math.Percentage != 100 {
		t.Errorf("math = %+v, want 7/7/7/100", math)
	}

	history, ok := breakdown["history"]
	if !ok {
		t.Fatal("missing history subject")
	}
	if history.Total != 3 {
		t.Errorf("history total = %d, want 3", history.Total)
	}
	if history.Answered != 2 {
		t.Errorf("history answered = %d, want 2", history.Answered)
	}
	if history.Correct != 0 {
		t.Errorf("history correct = %d, want 0", history.Correct)
	}
	// percentage is correct/answered, so the skipped question doesn't count
	if history.Percentage != 0 {
		t.Errorf("history percentage = %d, want 0", history.Percentage)
	}
}

func TestSubjectBreakdownNoAnswers(t *testing.T) {
	rows := []ResponseScore{
		{Subject: "physics", SelectedAnswer: nil, CorrectAnswer: "A", QuestionPoints: 1},
	}
	breakdown := SubjectBreakdown(rows)
	if breakdown["physics"].Percentage != 0 {
		t.Errorf("percentage = %d, want 0 when nothing answered", breakdown["physics"].Percentage)
	}
}
