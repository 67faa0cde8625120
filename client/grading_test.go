package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sqlQuestion(rows []map[string]any) *Question {
	return &Question{
		ID:             "q-sql",
		Title:          "Select users",
		Subject:        SubjectSQL,
		ExpectedOutput: ExpectedOutput{Rows: rows},
	}
}

func pythonQuestion() *Question {
	return &Question{
		ID:      "q-py",
		Title:   "Add two numbers",
		Subject: SubjectPython,
		TestCases: []TestCase{
			{Input: "add(2, 2)", ExpectedOutput: "4"},
			{Input: "add(10, -3)", ExpectedOutput: "7"},
		},
	}
}

func TestGraderRunSQL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "SELECT * FROM users" {
			t.Errorf("query param = %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "name": "alice"}})
	}))
	defer srv.Close()

	g := NewGrader(GraderConfig{SQLExecuteURL: srv.URL})
	out, err := g.Run(context.Background(), "SELECT * FROM users", sqlQuestion(nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Rows) != 1 || out.Rows[0]["name"] != "alice" {
		t.Fatalf("rows = %+v", out.Rows)
	}
}

func TestGraderRunSQLQueryErrorIsOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error":   true,
			"message": "syntax error at or near \"FORM\"",
			"code":    "42601",
		})
	}))
	defer srv.Close()

	g := NewGrader(GraderConfig{SQLExecuteURL: srv.URL})
	out, err := g.Run(context.Background(), "SELECT * FORM users", sqlQuestion(nil))
	if err != nil {
		t.Fatalf("a bad query is output, not an error: %v", err)
	}
	if !strings.Contains(out.Stderr, "syntax error") {
		t.Fatalf("stderr = %q", out.Stderr)
	}
}

func TestGraderSubmitSQLUnorderedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 2, "name": "bob"},
			{"id": 1, "name": "alice"},
		})
	}))
	defer srv.Close()

	expected := []map[string]any{
		{"name": "alice", "id": float64(1)},
		{"name": "bob", "id": float64(2)},
	}
	g := NewGrader(GraderConfig{SQLExecuteURL: srv.URL})
	result, err := g.Submit(context.Background(), "SELECT id, name FROM users", sqlQuestion(expected))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.IsCorrect {
		t.Fatalf("row order must not matter, result = %+v", result)
	}
	if result.Subject != SubjectSQL {
		t.Fatalf("subject = %q", result.Subject)
	}
}

func TestGraderSubmitSQLFailedQueryIsWrong(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": true, "message": "relation \"user\" does not exist"})
	}))
	defer srv.Close()

	g := NewGrader(GraderConfig{SQLExecuteURL: srv.URL})
	result, err := g.Submit(context.Background(), "SELECT * FROM user", sqlQuestion(nil))
	if err != nil {
		t.Fatalf("a failing query grades as wrong, not as an error: %v", err)
	}
	if result.IsCorrect {
		t.Fatal("a failing query must not be correct")
	}
	if !strings.Contains(result.RawOutput, "does not exist") {
		t.Fatalf("raw output = %q", result.RawOutput)
	}
}

func TestGraderSubmitPython(t *testing.T) {
	var gotProgram string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Language string `json:"language"`
			Version  string `json:"version"`
			Files    []struct {
				Content string `json:"content"`
			} `json:"files"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad sandbox request: %v", err)
		}
		if req.Language != "python" || req.Version != "3.10.0" {
			t.Errorf("language/version = %q/%q", req.Language, req.Version)
		}
		gotProgram = req.Files[0].Content
		json.NewEncoder(w).Encode(map[string]any{
			"run": map[string]any{"stdout": "4\n7\n", "stderr": ""},
		})
	}))
	defer srv.Close()

	g := NewGrader(GraderConfig{SandboxURL: srv.URL})
	code := "def add(a, b):\n    return a + b"
	result, err := g.Submit(context.Background(), code, pythonQuestion())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.IsCorrect {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(gotProgram, "print(add(2, 2))") || !strings.Contains(gotProgram, "print(add(10, -3))") {
		t.Fatalf("program missing test case prints:\n%s", gotProgram)
	}
	if !strings.HasPrefix(gotProgram, code) {
		t.Fatal("program must start with the user's code")
	}
}

func TestGraderSubmitPythonWrongAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"run": map[string]any{"stdout": "5\n7\n"},
		})
	}))
	defer srv.Close()

	g := NewGrader(GraderConfig{SandboxURL: srv.URL})
	result, err := g.Submit(context.Background(), "def add(a, b): return a * b", pythonQuestion())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.IsCorrect {
		t.Fatal("wrong stdout must grade incorrect")
	}
}

func TestGraderSubmitPythonRuntimeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"run": map[string]any{"stdout": "", "stderr": "NameError: name 'add' is not defined"},
		})
	}))
	defer srv.Close()

	g := NewGrader(GraderConfig{SandboxURL: srv.URL})
	result, err := g.Submit(context.Background(), "x = 1", pythonQuestion())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.IsCorrect {
		t.Fatal("a crashing program must grade incorrect")
	}
	if !strings.Contains(result.RawOutput, "NameError") {
		t.Fatalf("raw output = %q", result.RawOutput)
	}
}

func TestGraderSandboxFailureIsGradingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGrader(GraderConfig{SandboxURL: srv.URL})
	_, err := g.Submit(context.Background(), "x = 1", pythonQuestion())
	var gerr *GradingError
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want *GradingError", err)
	}
	if gerr.UserMessage != "Failed to execute code, please try again." {
		t.Fatalf("user message = %q", gerr.UserMessage)
	}
	if gerr.Cause == nil {
		t.Fatal("cause must be kept for logs")
	}
}

func TestGraderSubmitAndReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"run": map[string]any{"stdout": "4\n7\n"},
		})
	}))
	defer srv.Close()

	clk := newFakeClock()
	s, err := NewSession(SessionConfig{
		GameID:        "game-1",
		Players:       []string{"alice", "bob"},
		LocalPlayer:   "alice",
		Question:      pythonQuestion(),
		ChallengeType: "Python Rapid Sprint - Easy",
		Clock:         clk,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()
	s.IntroDone()

	g := NewGrader(GraderConfig{SandboxURL: srv.URL})
	result, err := g.SubmitAndReport(context.Background(), "def add(a, b): return a + b", pythonQuestion(), s)
	if err != nil {
		t.Fatalf("SubmitAndReport: %v", err)
	}
	if !result.IsCorrect {
		t.Fatalf("result = %+v", result)
	}
	if s.State() != StateWon {
		t.Fatalf("session state = %v, want won", s.State())
	}
}
