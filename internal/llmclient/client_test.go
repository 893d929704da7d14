package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Fatalf("unexpected model: %s", req.Model)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "  hello there  "}}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "test-model")
	out, err := c.Generate(context.Background(), "sys", "user", 50)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("expected trimmed content, got %q", out)
	}
}

func TestComplete_ServerError_IsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "test-model")
	_, err := c.Complete(context.Background(), "sys", "user", 50)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestComplete_UpstreamError_IsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(chatResponse{Error: &struct {
			Message string `json:"message"`
		}{Message: "invalid request"}})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "test-model")
	_, err := c.Complete(context.Background(), "sys", "user", 50)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if errors.Is(err, ErrTransient) {
		t.Fatalf("expected a non-transient upstream error, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid request") {
		t.Fatalf("expected upstream error message to surface, got %v", err)
	}
}
