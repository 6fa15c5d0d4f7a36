package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_WrappedByCaller(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("project"), CodeNotFound, http.StatusNotFound},
		{"wrapped forbidden", fmt.Errorf("handler: %w", Forbidden("")), CodeForbidden, http.StatusForbidden},
		{"database error", DatabaseError("storage", errors.New("conn reset")), CodeDatabaseError, http.StatusInternalServerError},
		{"internal", InternalWithError(errors.New("boom")), CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *AppError
			if !errors.As(tt.err, &got) {
				t.Fatalf("errors.As failed for %v", tt.err)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", got.Code, tt.wantCode)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestWithDetail_DoesNotMutateSentinel(t *testing.T) {
	e := ErrRateLimited.WithDetail("retry_after", 3)
	if e.Details["retry_after"] != 3 {
		t.Fatalf("detail missing: %v", e.Details)
	}
	if ErrRateLimited.Details != nil {
		t.Fatalf("sentinel mutated: %v", ErrRateLimited.Details)
	}
}

func TestWithError_Unwraps(t *testing.T) {
	cause := errors.New("conn reset")
	for _, e := range []*AppError{DatabaseError("storage", cause), ErrUnauthorized.WithError(cause)} {
		if !errors.Is(e, cause) {
			t.Errorf("%v does not unwrap to its cause", e)
		}
	}
	if ErrUnauthorized.Err != nil {
		t.Error("sentinel mutated by WithError")
	}
}

func TestError_Format(t *testing.T) {
	if got := Timeout("request").Error(); got != "[TIMEOUT] operation timed out: request" {
		t.Errorf("Error() = %q", got)
	}
	if got := DatabaseError("storage", errors.New("conn reset")).Error(); got != "[DATABASE_ERROR] database error: storage: conn reset" {
		t.Errorf("Error() = %q", got)
	}
}
