package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateLoginKey returns the cache key for a candidate's login session (JTI).
func (r *CacheKeyStruct) CandidateLoginKey(candidateID int) string {
	return fmt.Sprintf("login:%d", candidateID)
}

// SessionStartKey returns the cache key for an exam session's start time.
func (r *CacheKeyStruct) SessionStartKey(sessionID string) string {
	return fmt.Sprintf("session:%s:started_at", sessionID)
}

// SessionCandidateKey returns the cache key mapping a candidate to their
// currently active exam session.
func (r *CacheKeyStruct) SessionCandidateKey(candidateID int) string {
	return fmt.Sprintf("candidate:%d:active_session", candidateID)
}

// TestPaperKey returns the cache key for a test's candidate-safe paper.
func (r *CacheKeyStruct) TestPaperKey(testID string) string {
	return fmt.Sprintf("test:%s:paper", testID)
}

// TestDefinitionKey returns the cache key for a test's full definition
// (including the answer key — never sent to candidates).
func (r *CacheKeyStruct) TestDefinitionKey(testID string) string {
	return fmt.Sprintf("test:%s:definition", testID)
}

// ResultReleaseChannel returns the Redis PubSub channel for release
// notifications.
func (r *CacheKeyStruct) ResultReleaseChannel() string {
	return "results:released"
}

var CacheKey = NewCacheKeyStruct()
