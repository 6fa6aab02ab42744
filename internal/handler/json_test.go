package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/famtasks/internal/apperr"
)

func TestWriteErrorStatusAndMessage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.NotFound("task not found"), http.StatusNotFound, "task not found"},
		{apperr.Validation("title is required"), http.StatusBadRequest, "title is required"},
		{apperr.Conflict("a member with that name already exists"), http.StatusConflict, "a member with that name already exists"},
		{apperr.Unauthorized("invalid join code or password"), http.StatusUnauthorized, "invalid join code or password"},
		{apperr.Persistence("save task", errors.New("disk full")), http.StatusInternalServerError, "internal error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, logger, tt.err)

		if rec.Code != tt.status {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.status)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["error"] != tt.msg {
			t.Errorf("%v: error = %q, want %q", tt.err, body["error"], tt.msg)
		}
	}
}

func TestDecodeJSONOptionalBody(t *testing.T) {
	var v struct{ A string }

	rec := httptest.NewRecorder()
	if !decodeJSON(rec, httptest.NewRequest("POST", "/", nil), &v, true) {
		t.Error("empty optional body should be accepted")
	}

	rec = httptest.NewRecorder()
	if decodeJSON(rec, httptest.NewRequest("POST", "/", nil), &v, false) {
		t.Error("empty required body should be rejected")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	if !decodeJSON(rec, httptest.NewRequest("POST", "/", strings.NewReader(`{"A":"x"}`)), &v, false) || v.A != "x" {
		t.Errorf("decoded %+v, want A=x", v)
	}
}
