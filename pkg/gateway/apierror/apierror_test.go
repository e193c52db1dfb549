package apierror

import (
	"context"
	"testing"

	"github.com/voicelane/frontdesk/pkg/core"
)

func TestFromError_ContextCanceled_Is408Cancelled(t *testing.T) {
	ce, status := FromError(context.Canceled, "req_test")
	if status != 408 {
		t.Fatalf("status=%d", status)
	}
	if ce.Type != core.ErrAPI {
		t.Fatalf("type=%q", ce.Type)
	}
	if ce.Code != "cancelled" {
		t.Fatalf("code=%q", ce.Code)
	}
	if ce.RequestID != "req_test" {
		t.Fatalf("request_id=%q", ce.RequestID)
	}
}

func TestFromError_StatusByType(t *testing.T) {
	tests := []struct {
		typ  core.ErrorType
		want int
	}{
		{core.ErrInvalidRequest, 400},
		{core.ErrValidation, 400},
		{core.ErrAuthentication, 401},
		{core.ErrNotFound, 404},
		{core.ErrOverloaded, 429},
		{core.ErrTransient, 502},
		{core.ErrDefect, 500},
	}
	for _, tt := range tests {
		ce, status := FromError(&core.Error{Type: tt.typ, Message: "x"}, "req_test")
		if status != tt.want {
			t.Errorf("type %s: status=%d, want %d", tt.typ, status, tt.want)
		}
		if ce.RequestID != "req_test" {
			t.Errorf("type %s: request_id=%q", tt.typ, ce.RequestID)
		}
	}
}

func TestFromError_UnknownErrorIsOpaque(t *testing.T) {
	ce, status := FromError(context.DeadlineExceeded, "req_test")
	if status != 504 {
		t.Fatalf("status=%d", status)
	}
	if ce.Message != "request timeout" {
		t.Fatalf("message=%q", ce.Message)
	}
}
