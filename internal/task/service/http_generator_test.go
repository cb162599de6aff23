package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPGeneratorGenerate(t *testing.T) {
	var gotAuth string
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(GeneratedTask{
			Title:     "Sum",
			Statement: "Add two numbers.",
			Kind:      "code",
			Cases:     []GeneratedCase{{Input: "1 2\n", Expected: "3"}},
		})
	}))
	defer server.Close()

	gen, err := NewHTTPGenerator(server.URL, "sekret", 5*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPGenerator: %v", err)
	}
	task, err := gen.Generate(context.Background(), "math", "addition", "easy")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if task.Title != "Sum" || len(task.Cases) != 1 {
		t.Errorf("unexpected task: %+v", task)
	}
	if gotAuth != "Bearer sekret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Subject != "math" || gotReq.Theme != "addition" || gotReq.Difficulty != "easy" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestHTTPGeneratorNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	gen, _ := NewHTTPGenerator(server.URL, "", time.Second)
	if _, err := gen.Generate(context.Background(), "math", "", ""); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestHTTPGeneratorRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPGenerator("", "", time.Second); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
