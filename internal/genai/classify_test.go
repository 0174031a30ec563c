package genai_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jdmirek/askhub/internal/genai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want genai.Kind
	}{
		{
			name: "unauthorized_status",
			err:  &genai.APIError{StatusCode: 401, Status: "UNAUTHENTICATED", Message: "Request had invalid authentication credentials"},
			want: genai.KindAuth,
		},
		{
			name: "forbidden_status",
			err:  &genai.APIError{StatusCode: 403, Status: "PERMISSION_DENIED", Message: "The caller does not have permission"},
			want: genai.KindAuth,
		},
		{
			name: "bad_api_key_message_on_400",
			err:  &genai.APIError{StatusCode: 400, Status: "INVALID_ARGUMENT", Message: "API key not valid. Please pass a valid API key."},
			want: genai.KindAuth,
		},
		{
			name: "too_many_requests",
			err:  &genai.APIError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "Resource has been exhausted"},
			want: genai.KindQuota,
		},
		{
			name: "quota_message",
			err:  &genai.APIError{StatusCode: 400, Status: "FAILED_PRECONDITION", Message: "Quota exceeded for quota metric generate requests"},
			want: genai.KindQuota,
		},
		{
			name: "internal_server_error",
			err:  &genai.APIError{StatusCode: 500, Status: "INTERNAL", Message: "An internal error has occurred"},
			want: genai.KindUnavailable,
		},
		{
			name: "overloaded_model",
			err:  &genai.APIError{StatusCode: 503, Status: "UNAVAILABLE", Message: "The model is overloaded. Please try again later."},
			want: genai.KindUnavailable,
		},
		{
			name: "unmapped_400",
			err:  &genai.APIError{StatusCode: 400, Status: "INVALID_ARGUMENT", Message: "User location is not supported"},
			want: genai.KindInternal,
		},
		{
			name: "connection_refused",
			err:  fmt.Errorf("Post \"http://127.0.0.1:1/v1beta\": dial tcp 127.0.0.1:1: connect: connection refused"),
			want: genai.KindUnavailable,
		},
		{
			name: "deadline_exceeded",
			err:  fmt.Errorf("generate: %w", context.DeadlineExceeded),
			want: genai.KindUnavailable,
		},
		{
			name: "plain_error",
			err:  errors.New("something odd happened"),
			want: genai.KindInternal,
		},
		{
			name: "nil_error",
			err:  nil,
			want: genai.KindInternal,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			got := genai.Classify(tt.err)

			if got != tt.want {
				t.Fatalf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_AuthBeatsQuotaWhenBothMatch(t *testing.T) {
	// 401 carrying quota wording still classifies as auth: the rule
	// table is ordered and auth sits first.
	err := &genai.APIError{StatusCode: 401, Status: "UNAUTHENTICATED", Message: "quota check failed: invalid API key"}

	if got := genai.Classify(err); got != genai.KindAuth {
		t.Fatalf("got %v, want KindAuth", got)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind genai.Kind
		want string
	}{
		{genai.KindAuth, "auth"},
		{genai.KindQuota, "quota"},
		{genai.KindUnavailable, "unavailable"},
		{genai.KindInternal, "internal"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Fatalf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
