package remote

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Providers signal throttling inconsistently; these substrings are matched
// against the lower-cased error text when no typed signal is present.
var rateLimitHints = []string{"429", "rate limit", "ratelimit", "quota", "resource exhausted", "resource_exhausted", "too many requests"}

// IsRateLimited reports whether err is a throttling signal from the remote service.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, h := range rateLimitHints {
		if strings.Contains(msg, h) {
			return true
		}
	}
	return false
}
