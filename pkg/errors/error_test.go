package errors

import (
	stderrors "errors"
	"net/http"
	"testing"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(TaskNotFound)
	if err.Code != TaskNotFound {
		t.Errorf("code = %d, want %d", err.Code, TaskNotFound)
	}
	if err.Error() == "" {
		t.Error("default message should not be empty")
	}
	if err.Stack == "" {
		t.Error("stack should be captured")
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(MatchNotFound, "match %q not found", "abc")
	if got := err.Error(); got != `match "abc" not found` {
		t.Errorf("message = %q", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, DatabaseError)
	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match its cause via errors.Is")
	}
	if !Is(err, DatabaseError) {
		t.Error("Is should match the assigned code")
	}
	if Is(err, CacheError) {
		t.Error("Is should not match a different code")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if Wrap(nil, DatabaseError) != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, DatabaseError, "x") != nil {
		t.Error("Wrapf(nil) should be nil")
	}
}

func TestWrapReusesCustomError(t *testing.T) {
	inner := New(TaskNotFound)
	outer := Wrap(inner, NotFound)
	if outer != inner {
		t.Error("wrapping a custom error should update it in place")
	}
	if outer.Code != NotFound {
		t.Errorf("code = %d, want %d", outer.Code, NotFound)
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(nil); got != Success {
		t.Errorf("GetCode(nil) = %d", got)
	}
	if got := GetCode(New(Forbidden)); got != Forbidden {
		t.Errorf("GetCode = %d, want %d", got, Forbidden)
	}
	if got := GetCode(stderrors.New("plain")); got != InternalServerError {
		t.Errorf("GetCode(plain) = %d, want %d", got, InternalServerError)
	}
}

func TestValidationErrorDetails(t *testing.T) {
	err := ValidationError("email", "must contain @")
	if !Is(err, ValidationFailed) {
		t.Error("code should be ValidationFailed")
	}
	if err.Details["field"] != "email" || err.Details["reason"] != "must contain @" {
		t.Errorf("details = %v", err.Details)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{Success, http.StatusOK},
		{InvalidParams, http.StatusBadRequest},
		{Unauthorized, http.StatusUnauthorized},
		{Forbidden, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{MatchNotFound, http.StatusNotFound},
		{TaskNotFound, http.StatusNotFound},
		{InternalServerError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Errorf("HTTPStatus(%d) = %d, want %d", tc.code, got, tc.want)
		}
	}
}
