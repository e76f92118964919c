package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aurelmarchand/medidocs/internal/common"
)

// StatusError is a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider status %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether err is a "too many requests" style response,
// by status code or by message. Only these errors are worth retrying.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, common.ErrRateLimited) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusTooManyRequests {
			return true
		}
		msg := strings.ToLower(se.Body)
		return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}
