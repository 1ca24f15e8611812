// Package ratelimit throttles registration attempts per client IP using a
// sliding window. Two bucket stores share the semantics: in-memory for
// single-instance and test use, Redis for multi-instance deployments.
package ratelimit

import (
	"strings"
	"time"
)

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the wait up to whole seconds for the
// Retry-After header and response body.
func (r *Result) RetryAfterSeconds() int {
	if r.RetryAfter <= 0 {
		return 0
	}
	return int((r.RetryAfter + time.Second - 1) / time.Second)
}

// RegistrationKey builds the bucket key for a client IP.
func RegistrationKey(ip string) string {
	return "rate_limit:registration:" + sanitizeSegment(ip)
}

// sanitizeSegment escapes the key delimiter so a crafted identifier cannot
// collide with an adjacent bucket.
func sanitizeSegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
