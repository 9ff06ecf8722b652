package models

import "testing"

func TestStudyBlockOverlap(t *testing.T) {
	base := StudyBlock{Weekday: 1, StartMinute: 540, EndMinute: 600} // Mon 09:00-10:00

	cases := []struct {
		name  string
		other StudyBlock
		want  bool
	}{
		{"identical", StudyBlock{Weekday: 1, StartMinute: 540, EndMinute: 600}, true},
		{"contained", StudyBlock{Weekday: 1, StartMinute: 550, EndMinute: 590}, true},
		{"overlaps start", StudyBlock{Weekday: 1, StartMinute: 500, EndMinute: 550}, true},
		{"overlaps end", StudyBlock{Weekday: 1, StartMinute: 590, EndMinute: 660}, true},
		{"touches end", StudyBlock{Weekday: 1, StartMinute: 600, EndMinute: 660}, false},
		{"touches start", StudyBlock{Weekday: 1, StartMinute: 480, EndMinute: 540}, false},
		{"different weekday", StudyBlock{Weekday: 2, StartMinute: 540, EndMinute: 600}, false},
		{"disjoint", StudyBlock{Weekday: 1, StartMinute: 700, EndMinute: 760}, false},
	}

	for _, tc := range cases {
		if got := base.OverlapsWith(tc.other); got != tc.want {
			t.Errorf("%s: OverlapsWith = %v, want %v", tc.name, got, tc.want)
		}
		// symmetry
		if got := tc.other.OverlapsWith(base); got != tc.want {
			t.Errorf("%s (reversed): OverlapsWith = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValidStatusTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{AttemptStarted, AttemptPaused, true},
		{AttemptStarted, AttemptCompleted, true},
		{AttemptPaused, AttemptStarted, true},
		{AttemptPaused, AttemptCompleted, true},
		{AttemptCompleted, AttemptStarted, false},
		{AttemptCompleted, AttemptPaused, false},
		{AttemptCompleted, AttemptCompleted, false},
		{AttemptStarted, AttemptStarted, false},
		{AttemptStarted, "bogus", false},
	}

	for _, tc := range cases {
		if got := ValidStatusTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("ValidStatusTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
