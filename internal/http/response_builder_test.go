package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"dotproduct/internal/core"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Body(map[string]int{"id": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("X-Custom"); got != "value" {
		t.Errorf("X-Custom = %q", got)
	}
	if w.Body.String() != `{"id":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_Cookie(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Cookie(&http.Cookie{Name: "sessionid", Value: "abc"}).Detail("ok").Write(w)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "sessionid" {
		t.Errorf("unexpected cookies %v", cookies)
	}
	if w.Body.String() != `{"detail":"ok"}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", core.NewValidationError("amount", "This field is required."), 400, "amount: This field is required."},
		{"validation without field", core.NewValidationError("", "Username already exists"), 400, "Username already exists"},
		{"missing credentials", &core.AuthError{Message: "Username and password are required", MissingCredentials: true}, 400, "Username and password are required"},
		{"bad credentials", &core.AuthError{Message: "Invalid credentials"}, 401, "Invalid credentials"},
		{"unauthenticated", &core.PermissionError{}, 401, "Authentication credentials were not provided."},
		{"not found", &core.NotFoundError{Entity: "budget", ID: 4}, 404, "Not found."},
		{"wrapped not found", fmt.Errorf("load: %w", &core.NotFoundError{Entity: "category", ID: 1}), 404, "Not found."},
		{"csrf", &core.CSRFError{Reason: "CSRF token missing or incorrect."}, 403, "CSRF Failed: CSRF token missing or incorrect."},
		{"unknown", errors.New("disk I/O error"), 500, "A server error occurred."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := errorStatus(tt.err)
			if status != tt.wantStatus || msg != tt.wantMsg {
				t.Errorf("errorStatus() = (%d, %q), want (%d, %q)", status, msg, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/categories/", nil)
	writeError(w, r, errors.New("sql: database is locked"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.String() != `{"detail":"A server error occurred."}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}
