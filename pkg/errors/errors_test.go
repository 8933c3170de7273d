package errors

import "testing"

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		retryable bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeParsing, true},
		{ErrorTypeAuth, false},
		{ErrorTypeNotFound, false},
		{ErrorTypeUnknown, false},
	}

	for _, test := range tests {
		if got := IsRetryable(test.errorType); got != test.retryable {
			t.Errorf("IsRetryable(%s) = %v, want %v", test.errorType, got, test.retryable)
		}
	}
}

func TestTypeForStatusCode(t *testing.T) {
	tests := []struct {
		code     int
		expected ErrorType
	}{
		{429, ErrorTypeRateLimit},
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{404, ErrorTypeNotFound},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{418, ErrorTypeUnknown},
	}

	for _, test := range tests {
		if got := TypeForStatusCode(test.code); got != test.expected {
			t.Errorf("TypeForStatusCode(%d) = %s, want %s", test.code, got, test.expected)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Type: ErrorTypeRateLimit, Message: "slow down", Code: 429}
	expected := "rate_limit error (code 429): slow down"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}
