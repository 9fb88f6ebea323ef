package modelkit

import (
	"errors"
	"testing"
)

func TestErrorFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		wantType  string
		retryable bool
	}{
		{400, "*modelkit.InvalidRequestError", false},
		{401, "*modelkit.AuthenticationError", false},
		{403, "*modelkit.AuthenticationError", false},
		{408, "*modelkit.RequestTimeoutError", true},
		{413, "*modelkit.ContextLengthError", false},
		{422, "*modelkit.InvalidRequestError", false},
		{429, "*modelkit.RateLimitError", true},
		{500, "*modelkit.ServerError", true},
		{503, "*modelkit.ServerError", true},
		{599, "*modelkit.ProviderError", true},
	}

	for _, tt := range tests {
		err := ErrorFromStatusCode(tt.status, "boom", "testprov", nil)
		if got := typeName(err); got != tt.wantType {
			t.Errorf("status %d: expected %s, got %s", tt.status, tt.wantType, got)
		}
		if got := IsRetryable(err); got != tt.retryable {
			t.Errorf("status %d: expected retryable=%v, got %v", tt.status, tt.retryable, got)
		}
	}
}

func typeName(err error) string {
	switch err.(type) {
	case *InvalidRequestError:
		return "*modelkit.InvalidRequestError"
	case *AuthenticationError:
		return "*modelkit.AuthenticationError"
	case *RequestTimeoutError:
		return "*modelkit.RequestTimeoutError"
	case *ContextLengthError:
		return "*modelkit.ContextLengthError"
	case *RateLimitError:
		return "*modelkit.RateLimitError"
	case *ServerError:
		return "*modelkit.ServerError"
	case *ProviderError:
		return "*modelkit.ProviderError"
	default:
		return "unknown"
	}
}

func TestIsRetryableUnknownErrorDefaultsTrue(t *testing.T) {
	if !IsRetryable(errors.New("mystery")) {
		t.Error("unknown errors should default to retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestIsRetryableAbortAndConfig(t *testing.T) {
	abort := &AbortError{KitError: KitError{Message: "cancelled"}}
	if IsRetryable(abort) {
		t.Error("AbortError must not be retryable")
	}
	conf := &ConfigurationError{KitError: KitError{Message: "no provider"}}
	if IsRetryable(conf) {
		t.Error("ConfigurationError must not be retryable")
	}
}

func TestIsProviderError(t *testing.T) {
	if !IsProviderError(ErrorFromStatusCode(500, "boom", "p", nil)) {
		t.Error("ServerError should be a provider error")
	}
	if IsProviderError(&AbortError{KitError: KitError{Message: "x"}}) {
		t.Error("AbortError is not a provider error")
	}
	if IsProviderError(errors.New("plain")) {
		t.Error("plain errors are not provider errors")
	}
}

func TestKitErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &NetworkError{KitError: KitError{Message: "connection reset", Cause: cause}}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() != "connection reset: root cause" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
