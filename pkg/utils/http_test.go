package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONErrorCarriesTaxonomyCode(t *testing.T) {
	cases := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, "VALIDATION_ERROR"},
		{http.StatusUnauthorized, "AUTHENTICATION_ERROR"},
		{http.StatusForbidden, "AUTHENTICATION_ERROR"},
		{http.StatusNotFound, "NOT_FOUND"},
		{http.StatusServiceUnavailable, "PERSISTENCE_ERROR"},
		{http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		JSONError(rec, c.status, "boom")
		if rec.Code != c.status {
			t.Fatalf("status = %d, want %d", rec.Code, c.status)
		}
		var body struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("body for %d: %v", c.status, err)
		}
		if body.Error.Code != c.code || body.Error.Message != "boom" {
			t.Fatalf("body for %d = %+v", c.status, body.Error)
		}
	}
}

func TestJSONWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := JSONWrite(rec, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}
