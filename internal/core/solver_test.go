package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSolverClientSolveSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req solverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Cmd != "request.get" {
			t.Errorf("Cmd = %q, want request.get", req.Cmd)
		}
		resp := solverResponse{Status: "ok"}
		resp.Solution.Response = "<html>rendered</html>"
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	s := NewSolverClient(srv.URL, 0)
	body, err := s.Solve(context.Background(), "https://example.com/game", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "<html>rendered</html>" {
		t.Errorf("body = %q", body)
	}
}

func TestSolverClientSolveFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := solverResponse{Status: "error", Message: "challenge unsolvable"}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	s := NewSolverClient(srv.URL, 0)
	_, err := s.Solve(context.Background(), "https://example.com/game", nil)
	var solverErr *SolverFailedError
	if !errors.As(err, &solverErr) {
		t.Fatalf("expected *SolverFailedError, got %v", err)
	}
	if solverErr.Detail != "challenge unsolvable" {
		t.Errorf("Detail = %q", solverErr.Detail)
	}
}

func TestNewSolverClientEmptyURLDisabled(t *testing.T) {
	if NewSolverClient("", 0) != nil {
		t.Error("expected nil solver client for empty url")
	}
}

func TestDedupCookiesByName(t *testing.T) {
	in := []Cookie{
		{Name: "session", Value: "first"},
		{Name: "session", Value: "second"},
		{Name: "other", Value: "x"},
	}
	out := dedupCookiesByName(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 deduplicated cookies, got %d", len(out))
	}
	if out[0].Value != "first" {
		t.Errorf("expected first-seen value to win, got %q", out[0].Value)
	}
}
