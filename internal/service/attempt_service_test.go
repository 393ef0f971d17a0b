package service

import (
	"testing"

	"github.com/veriquiz/veriquiz-backend/internal/model"
)

func TestGrade(t *testing.T) {
	key := map[string]AnswerKeyEntry{
		"q1": {Type: model.QuestionTypeMultipleChoice, CorrectAnswer: "2", Points: 5},
		"q2": {Type: model.QuestionTypeTrueFalse, CorrectAnswer: "true", Points: 2},
		"q3": {Type: model.QuestionTypeShortAnswer, CorrectAnswer: "Photosynthesis", Points: 3},
	}

	tests := []struct {
		name      string
		answers   map[string]string
		wantScore float64
	}{
		{
			name:      "all correct",
			answers:   map[string]string{"q1": "2", "q2": "true", "q3": "Photosynthesis"},
			wantScore: 10,
		},
		{
			name:      "case and whitespace tolerated",
			answers:   map[string]string{"q1": "2", "q2": "TRUE", "q3": "  photosynthesis "},
			wantScore: 10,
		},
		{
			name:      "partial",
			answers:   map[string]string{"q1": "1", "q2": "true"},
			wantScore: 2,
		},
		{
			name:      "unknown question ignored",
			answers:   map[string]string{"q9": "2"},
			wantScore: 0,
		},
		{
			name:      "empty answers",
			answers:   map[string]string{},
			wantScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, maxScore := grade(key, tt.answers)
			if score != tt.wantScore {
				t.Errorf("score = %v, want %v", score, tt.wantScore)
			}
			if maxScore != 10 {
				t.Errorf("maxScore = %v, want 10", maxScore)
			}
		})
	}
}

func TestAccessCodesMatch(t *testing.T) {
	tests := []struct {
		name    string
		entered string
		actual  string
		want    bool
	}{
		{"exact", "ABC123", "ABC123", true},
		{"case insensitive", "abc123", "ABC123", true},
		{"trims whitespace", "  ABC123  ", "ABC123", true},
		{"mismatch", "XYZ", "ABC123", false},
		{"empty entered never matches", "", "ABC123", false},
		{"empty actual never matches", "ABC123", "", false},
		{"both empty never match", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := accessCodesMatch(tt.entered, tt.actual); got != tt.want {
				t.Errorf("accessCodesMatch(%q, %q) = %v, want %v", tt.entered, tt.actual, got, tt.want)
			}
		})
	}
}
