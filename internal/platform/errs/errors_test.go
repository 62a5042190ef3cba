package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestValidationListsAllFields(t *testing.T) {
	err := Validation("consultation incomplete", map[string]string{
		"diagnosis":            "at least one diagnosis is required",
		"medication_treatment": "medication and treatment plan is required",
	})

	if !errors.Is(err, ErrValidation) {
		t.Error("expected errors.Is(err, ErrValidation)")
	}
	msg := err.Error()
	if !strings.Contains(msg, "diagnosis") || !strings.Contains(msg, "medication_treatment") {
		t.Errorf("expected every field in error message, got %q", msg)
	}
}

func TestNotFoundIsDecisionPoint(t *testing.T) {
	err := NotFound("patient", "Juan Dela Cruz")
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is(err, ErrNotFound)")
	}
	if HTTPStatus(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %d", HTTPStatus(err))
	}
}

func TestOnlyTransientIsRetryable(t *testing.T) {
	if !IsRetryable(Transient(errors.New("connection reset"))) {
		t.Error("transient errors must be retryable")
	}
	if IsRetryable(Conflict("open encounter exists")) {
		t.Error("conflict errors must not be retryable")
	}
	if IsRetryable(Validation("bad", nil)) {
		t.Error("validation errors must not be retryable")
	}
}

func TestUnwrapThroughWrapping(t *testing.T) {
	inner := Conflict("duplicate referral")
	wrapped := fmt.Errorf("create referral: %w", inner)
	if !errors.Is(wrapped, ErrConflict) {
		t.Error("expected wrapped conflict to match ErrConflict")
	}
	if HTTPStatus(wrapped) != http.StatusConflict {
		t.Errorf("expected 409 through wrapping, got %d", HTTPStatus(wrapped))
	}
}
