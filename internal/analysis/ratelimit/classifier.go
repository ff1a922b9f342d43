package ratelimit

import (
	"net/http"
	"strings"
)

// rate-limit wording seen across model providers; matched case-insensitively.
var rateLimitPhrases = []string{
	"rate limit",
	"rate-limit",
	"too many",
	"try again later",
	"exceeded",
	"throttled",
	"over_quota",
}

// IsRateLimited classifies a failure as a transient rate limit. A 429 status
// is conclusive; otherwise the message text is scanned for known phrasing.
func IsRateLimited(message string, statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}

	if message == "" {
		return false
	}

	normalized := strings.ToLower(message)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// SuggestedWaitMinutes returns an exponential backoff in whole minutes,
// min(2^(attempts-1), 15) with a floor of 1.
func SuggestedWaitMinutes(attempts int) int {
	if attempts <= 1 {
		return 1
	}

	wait := 1
	for i := 1; i < attempts; i++ {
		wait *= 2
		if wait >= 15 {
			return 15
		}
	}
	return wait
}
