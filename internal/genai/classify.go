package genai

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Kind buckets an upstream failure for the HTTP layer. The zero value
// is the safe fallback.
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindQuota
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindQuota:
		return "quota"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Classification is rule-ordered: the first matching rule wins, so the
// more specific buckets sit above the catch-alls. Messages are matched
// lowercased.
type classifyRule struct {
	kind  Kind
	match func(status int, msg string) bool
}

var classifyRules = []classifyRule{
	{
		kind: KindAuth,
		match: func(status int, msg string) bool {
			return status == http.StatusUnauthorized ||
				status == http.StatusForbidden ||
				strings.Contains(msg, "api key")
		},
	},
	{
		kind: KindQuota,
		match: func(status int, msg string) bool {
			return status == http.StatusTooManyRequests ||
				strings.Contains(msg, "quota") ||
				strings.Contains(msg, "resource_exhausted")
		},
	},
	{
		kind: KindUnavailable,
		match: func(status int, msg string) bool {
			return status >= 500 ||
				strings.Contains(msg, "unavailable") ||
				strings.Contains(msg, "overloaded")
		},
	},
}

// Classify maps an error from GenerateAnswer to a Kind. Upstream API
// errors run through the rule table; transport-level failures (DNS,
// refused connections, timeouts) count as unavailable since the caller
// never reached the service.
func Classify(err error) Kind {
	if err == nil {
		return KindInternal
	}

	var apiErr *APIError

	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message + " " + apiErr.Status)

		for _, rule := range classifyRules {
			if rule.match(apiErr.StatusCode, msg) {
				return rule.kind
			}
		}

		return KindInternal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}

	var netErr net.Error

	if errors.As(err, &netErr) {
		return KindUnavailable
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline"):
		return KindUnavailable
	}

	return KindInternal
}
