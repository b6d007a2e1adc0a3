package errors

import (
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppErrorMessage(t *testing.T) {
	err := New(CodeInvalidShape, "rank 4").WithMetadata("rank", "4")
	want := "[INVALID_SHAPE] rank 4 map[rank:4]"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk gone")
	err := Wrap(cause, CodeTemplateLoadFailed, "load health_bar")
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if !IsCode(wrapped, CodeTemplateLoadFailed) {
		t.Error("IsCode should see through fmt wrapping")
	}
}

func TestCodeMapping(t *testing.T) {
	tests := []struct {
		code     Code
		grpc     codes.Code
		httpCode int
	}{
		{CodeInvalidShape, codes.InvalidArgument, http.StatusBadRequest},
		{CodeSizeMismatch, codes.InvalidArgument, http.StatusBadRequest},
		{CodeTemplateLoadFailed, codes.NotFound, http.StatusNotFound},
		{CodeCaptureFailed, codes.Unavailable, http.StatusServiceUnavailable},
		{CodeConfigInvalid, codes.FailedPrecondition, http.StatusPreconditionFailed},
		{CodeInternal, codes.Internal, http.StatusInternalServerError},
		{CodeRateLimited, codes.ResourceExhausted, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		err := New(tt.code, "x")
		if got := err.GRPCCode(); got != tt.grpc {
			t.Errorf("%s GRPCCode() = %v, want %v", tt.code, got, tt.grpc)
		}
		if got := err.HTTPStatus(); got != tt.httpCode {
			t.Errorf("%s HTTPStatus() = %d, want %d", tt.code, got, tt.httpCode)
		}
	}
}

func TestGRPCRoundTrip(t *testing.T) {
	orig := New(CodeSizeMismatch, "3 templates, 2 thresholds").WithMetadata("templates", "3")
	back := FromGRPCError(orig.GRPCStatus().Err())

	if back.Code != CodeSizeMismatch {
		t.Errorf("Code = %v, want %v", back.Code, CodeSizeMismatch)
	}
	if back.Message != orig.Message {
		t.Errorf("Message = %q, want %q", back.Message, orig.Message)
	}
	if back.Metadata["templates"] != "3" {
		t.Errorf("Metadata = %v, want templates=3", back.Metadata)
	}
}

func TestFromGRPCErrorWithoutDetail(t *testing.T) {
	err := status.Error(codes.Unavailable, "down")
	if got := FromGRPCError(err).Code; got != CodeUnavailable {
		t.Errorf("Code = %v, want %v", got, CodeUnavailable)
	}

	plain := fmt.Errorf("plain")
	if got := FromGRPCError(plain).Code; got != CodeUnknown {
		t.Errorf("Code = %v, want %v", got, CodeUnknown)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(CodeCaptureFailed, "scrot exited 1")) {
		t.Error("capture failures should be retryable")
	}
	if IsRetryable(New(CodeInvalidShape, "bad")) {
		t.Error("shape errors should not be retryable")
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors should not be retryable")
	}
}

func TestParseCode(t *testing.T) {
	for c := CodeUnspecified; c <= CodeRateLimited; c++ {
		if got := ParseCode(c.String()); got != c {
			t.Errorf("ParseCode(%q) = %v, want %v", c.String(), got, c)
		}
	}
	if got := ParseCode("nope"); got != CodeUnknown {
		t.Errorf("ParseCode(nope) = %v, want UNKNOWN", got)
	}
}
