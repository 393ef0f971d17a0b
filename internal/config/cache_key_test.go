package config

import (
	"testing"

	"github.com/google/uuid"
)

func TestCacheKeyFormats(t *testing.T) {
	id := uuid.MustParse("2f5b7c1a-9d3e-4f60-8a12-34bc56de78f0")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"attempt start", CacheKey.AttemptStartKey(id), "attempt:2f5b7c1a-9d3e-4f60-8a12-34bc56de78f0:started_at"},
		{"attempt answers", CacheKey.AttemptAnswersKey(id), "attempt:2f5b7c1a-9d3e-4f60-8a12-34bc56de78f0:answers"},
		{"attempt draft", CacheKey.AttemptDraftKey(id), "attempt:2f5b7c1a-9d3e-4f60-8a12-34bc56de78f0:draft"},
		{"quiz payload", CacheKey.QuizPayloadKey(id), "quiz:2f5b7c1a-9d3e-4f60-8a12-34bc56de78f0:payload"},
		{"quiz answer key", CacheKey.QuizAnswerKeyKey(id), "quiz:2f5b7c1a-9d3e-4f60-8a12-34bc56de78f0:key"},
		{"quiz access code", CacheKey.QuizAccessCodeKey(id), "quiz:2f5b7c1a-9d3e-4f60-8a12-34bc56de78f0:access_code"},
		{"quiz monitor channel", CacheKey.QuizMonitorChannel(id), "quiz:2f5b7c1a-9d3e-4f60-8a12-34bc56de78f0:monitor"},
		{"student session", CacheKey.StudentSessionKey(42), "login:42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("key = %q, want %q", tt.got, tt.want)
			}
		})
	}
}
