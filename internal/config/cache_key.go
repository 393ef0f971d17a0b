package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session.
func (r *CacheKeyStruct) StudentSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// AttemptStartKey returns the cache key for an attempt's server start instant.
func (r *CacheKeyStruct) AttemptStartKey(attemptID uuid.UUID) string {
	return fmt.Sprintf("attempt:%s:started_at", attemptID)
}

// AttemptAnswersKey returns the cache key for an attempt's autosaved answers.
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID uuid.UUID) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptDraftKey returns the cache key for an attempt's draft snapshot.
func (r *CacheKeyStruct) AttemptDraftKey(attemptID uuid.UUID) string {
	return fmt.Sprintf("attempt:%s:draft", attemptID)
}

// QuizPayloadKey returns the cache key for a quiz's student payload.
func (r *CacheKeyStruct) QuizPayloadKey(quizID uuid.UUID) string {
	return fmt.Sprintf("quiz:%s:payload", quizID)
}

// QuizAnswerKeyKey returns the cache key for a quiz's grading answer key.
func (r *CacheKeyStruct) QuizAnswerKeyKey(quizID uuid.UUID) string {
	return fmt.Sprintf("quiz:%s:key", quizID)
}

// QuizAccessCodeKey returns the cache key for a quiz's current access code.
func (r *CacheKeyStruct) QuizAccessCodeKey(quizID uuid.UUID) string {
	return fmt.Sprintf("quiz:%s:access_code", quizID)
}

// QuizMonitorChannel returns the Redis PubSub channel name for a quiz's live monitor.
func (r *CacheKeyStruct) QuizMonitorChannel(quizID uuid.UUID) string {
	return fmt.Sprintf("quiz:%s:monitor", quizID)
}

var CacheKey = NewCacheKeyStruct()
