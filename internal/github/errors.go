package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/conn-castle/modlayer/internal/messages"
)

// ErrNotFound reports a repository that does not exist or is not visible.
var ErrNotFound = errors.New("not found")

// ErrAuth reports rejected or insufficient credentials.
var ErrAuth = errors.New("authentication failed")

// RateLimitError indicates GitHub's API rate limit was hit.
type RateLimitError struct {
	StatusCode int
	Status     string
	Remaining  *int
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	remainingText := "unknown"
	if e.Remaining != nil {
		remainingText = strconv.Itoa(*e.Remaining)
	}
	if e.ResetAt.IsZero() {
		return fmt.Sprintf(messages.GitHubRateLimitFmt, e.Status, remainingText)
	}
	return fmt.Sprintf(messages.GitHubRateLimitResetFmt, e.Status, remainingText, e.ResetAt.Local().Format(time.Kitchen))
}

// IsRateLimitError reports whether err represents a GitHub API rate-limit condition.
func IsRateLimitError(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// NetworkError wraps transport failures and persistent server errors.
type NetworkError struct {
	Target string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf(messages.GitHubNetworkFmt, e.Target, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Quota is the rate-limit state reported by a response.
type Quota struct {
	Limit     int
	Remaining int
	Reset     time.Time
	Known     bool
}

func quotaFromResponse(resp *http.Response) Quota {
	if resp == nil {
		return Quota{}
	}
	remaining, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("X-RateLimit-Remaining")))
	if err != nil {
		return Quota{}
	}
	q := Quota{Remaining: remaining, Known: true}
	if limit, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("X-RateLimit-Limit"))); err == nil {
		q.Limit = limit
	}
	q.Reset = resetFromResponse(resp)
	return q
}

func resetFromResponse(resp *http.Response) time.Time {
	if epoch, err := strconv.ParseInt(strings.TrimSpace(resp.Header.Get("X-RateLimit-Reset")), 10, 64); err == nil && epoch > 0 {
		return time.Unix(epoch, 0)
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs >= 0 {
		return now().Add(time.Duration(secs) * time.Second)
	}
	return time.Time{}
}

func rateLimitErrorFromResponse(resp *http.Response) *RateLimitError {
	if resp == nil {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{StatusCode: resp.StatusCode, Status: resp.Status, ResetAt: resetFromResponse(resp)}
	}
	// GitHub returns 403 Forbidden for exhaustion; confirm with rate-limit headers.
	if resp.StatusCode == http.StatusForbidden {
		if strings.TrimSpace(resp.Header.Get("Retry-After")) != "" {
			return &RateLimitError{StatusCode: resp.StatusCode, Status: resp.Status, ResetAt: resetFromResponse(resp)}
		}
		remainingStr := strings.TrimSpace(resp.Header.Get("X-RateLimit-Remaining"))
		if remainingStr == "" {
			return nil
		}
		remaining, err := strconv.Atoi(remainingStr)
		if err != nil {
			return nil //nolint:nilerr // Malformed header means we cannot confirm rate limiting; fall through to generic error.
		}
		if remaining == 0 {
			return &RateLimitError{StatusCode: resp.StatusCode, Status: resp.Status, Remaining: &remaining, ResetAt: resetFromResponse(resp)}
		}
	}
	return nil
}
