package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfUnwrapsNestedAppError(t *testing.T) {
	inner := NewConflictError("insufficient stock")
	wrapped := fmt.Errorf("processing sale: %w", inner)
	if KindOf(wrapped) != ErrorKindConflict {
		t.Fatalf("kind = %s, want CONFLICT", KindOf(wrapped))
	}
}

func TestKindOfTreatsUntypedAsTransient(t *testing.T) {
	if KindOf(errors.New("connection reset")) != ErrorKindTransient {
		t.Fatal("plain errors must default to TRANSIENT for retry purposes")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad"), http.StatusBadRequest},
		{NewUnauthorizedError("nope"), http.StatusUnauthorized},
		{NewForbiddenError("no"), http.StatusForbidden},
		{NewNotFoundError("gone"), http.StatusNotFound},
		{NewConflictError("busy"), http.StatusConflict},
		{ErrorRecordNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
		{NewTransientError(errors.New("io"), "retry later"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestAppErrorMessageIncludesCause(t *testing.T) {
	err := NewTransientError(errors.New("deadlock"), "posting journal")
	if err.Error() != "posting journal: deadlock" {
		t.Fatalf("message: %q", err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Fatal("wrapped cause should survive errors.Is")
	}
}
