package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Subject selects the grading backend: direct query execution for SQL, a
// sandboxed code-execution service for Python.
type Subject string

const (
	SubjectSQL    Subject = "sql"
	SubjectPython Subject = "python"
)

// userFacingExecutionError is what the editor shows when grading fails for
// any reason that is not the user's answer being wrong.
const userFacingExecutionError = "Failed to execute code, please try again."

// TestCase is one Python test case: an expression to print and the exact
// stdout line it must produce.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// ExpectedOutput is the expected SQL row set for a question.
type ExpectedOutput struct {
	Rows []map[string]any `json:"rows"`
}

// Question is the challenge payload the editor grades against.
type Question struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Prompt         string         `json:"prompt"`
	Subject        Subject        `json:"subject"`
	TestCases      []TestCase     `json:"test_cases,omitempty"`
	ExpectedOutput ExpectedOutput `json:"expected_output,omitempty"`
}

// RunOutput is the raw result of a non-graded "Run".
type RunOutput struct {
	Rows   []map[string]any
	Stdout string
	Stderr string
}

// SubmissionResult is the graded outcome of a "Submit".
type SubmissionResult struct {
	Subject     Subject
	RawOutput   string
	IsCorrect   bool
	SubmittedAt time.Time
}

// GradingError wraps any execution failure with the message shown to the
// user; the cause is kept for logs only.
type GradingError struct {
	UserMessage string
	Cause       error
}

func (e *GradingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Cause)
	}
	return e.UserMessage
}

func (e *GradingError) Unwrap() error { return e.Cause }

// SQLExecutionError is the typed error payload of the query-execution
// endpoint.
type SQLExecutionError struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Code    string `json:"code"`
}

func (e *SQLExecutionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Details)
	}
	return e.Message
}

// GraderConfig points the grader at its two backends.
type GraderConfig struct {
	SQLExecuteURL string // GET endpoint, query passed via ?q=
	SandboxURL    string // POST endpoint, piston-shaped request body
	PythonVersion string
	HTTPClient    *http.Client
	Clock         Clock
}

// Grader converts editor text into an execution request for the subject's
// backend and, in submit mode, classifies the result as pass/fail.
type Grader struct {
	sqlExecuteURL string
	sandboxURL    string
	pythonVersion string
	httpClient    *http.Client
	clock         Clock
}

func NewGrader(cfg GraderConfig) *Grader {
	g := &Grader{
		sqlExecuteURL: cfg.SQLExecuteURL,
		sandboxURL:    cfg.SandboxURL,
		pythonVersion: cfg.PythonVersion,
		httpClient:    cfg.HTTPClient,
		clock:         cfg.Clock,
	}
	if g.pythonVersion == "" {
		g.pythonVersion = "3.10.0"
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if g.clock == nil {
		g.clock = NewClock()
	}
	return g
}

// Run executes the code without grading it. SQL sends the literal query and
// returns raw rows or the execution error; Python appends one print per test
// case input and returns the sandbox's stdout/stderr.
func (g *Grader) Run(ctx context.Context, code string, question *Question) (*RunOutput, error) {
	switch question.Subject {
	case SubjectSQL:
		rows, err := g.executeSQL(ctx, code)
		if err != nil {
			var sqlErr *SQLExecutionError
			if errors.As(err, &sqlErr) {
				// Query errors are output, not infrastructure failure.
				return &RunOutput{Stderr: sqlErr.Error()}, nil
			}
			return nil, &GradingError{UserMessage: userFacingExecutionError, Cause: err}
		}
		return &RunOutput{Rows: rows}, nil

	case SubjectPython:
		run, err := g.executePython(ctx, buildPythonProgram(code, question.TestCases))
		if err != nil {
			return nil, &GradingError{UserMessage: userFacingExecutionError, Cause: err}
		}
		return &RunOutput{Stdout: run.Stdout, Stderr: run.Stderr}, nil

	default:
		return nil, &GradingError{UserMessage: userFacingExecutionError,
			Cause: fmt.Errorf("unsupported subject %q", question.Subject)}
	}
}

// Submit executes the code and grades it against the question. Execution
// failures come back as *GradingError; a wrong answer is not an error.
func (g *Grader) Submit(ctx context.Context, code string, question *Question) (*SubmissionResult, error) {
	result := &SubmissionResult{
		Subject:     question.Subject,
		SubmittedAt: g.clock.Now(),
	}

	switch question.Subject {
	case SubjectSQL:
		rows, err := g.executeSQL(ctx, code)
		if err != nil {
			var sqlErr *SQLExecutionError
			if errors.As(err, &sqlErr) {
				// The query failed to run, so the submission is wrong.
				result.RawOutput = sqlErr.Error()
				return result, nil
			}
			return nil, &GradingError{UserMessage: userFacingExecutionError, Cause: err}
		}
		raw, _ := json.Marshal(rows)
		result.RawOutput = string(raw)
		result.IsCorrect = CompareRowSets(rows, question.ExpectedOutput.Rows)
		return result, nil

	case SubjectPython:
		run, err := g.executePython(ctx, buildPythonProgram(code, question.TestCases))
		if err != nil {
			return nil, &GradingError{UserMessage: userFacingExecutionError, Cause: err}
		}
		result.RawOutput = run.Stdout
		if run.Stderr != "" {
			result.RawOutput = run.Stdout + run.Stderr
			return result, nil
		}
		result.IsCorrect = ComparePythonOutput(run.Stdout, question.TestCases)
		return result, nil

	default:
		return nil, &GradingError{UserMessage: userFacingExecutionError,
			Cause: fmt.Errorf("unsupported subject %q", question.Subject)}
	}
}

// SubmitAndReport grades the submission and feeds the outcome into the game
// session. A correct answer signals that the local player solved it.
func (g *Grader) SubmitAndReport(ctx context.Context, code string, question *Question, session *Session) (*SubmissionResult, error) {
	result, err := g.Submit(ctx, code, question)
	if err != nil {
		log.Printf("Submission failed to execute: %v", err)
		return nil, err
	}
	session.HandleGradingResult(result.IsCorrect)
	return result, nil
}

func (g *Grader) executeSQL(ctx context.Context, query string) ([]map[string]any, error) {
	reqURL := g.sqlExecuteURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// The endpoint answers with either a row array or a typed error object.
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}

	var execErr struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
		Details string `json:"details"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(body, &execErr); err == nil && (execErr.Error || execErr.Message != "") {
		return nil, &SQLExecutionError{Message: execErr.Message, Details: execErr.Details, Code: execErr.Code}
	}

	return nil, fmt.Errorf("unexpected response from query endpoint (status %d): %s", resp.StatusCode, truncate(string(body), 200))
}

type sandboxRun struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
}

func (g *Grader) executePython(ctx context.Context, program string) (*sandboxRun, error) {
	reqBody := map[string]any{
		"language": "python",
		"version":  g.pythonVersion,
		"files":    []map[string]string{{"content": program}},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.sandboxURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sandbox returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed struct {
		Run sandboxRun `json:"run"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode sandbox response: %w", err)
	}
	if parsed.Run.Stdout == "" && parsed.Run.Output != "" {
		parsed.Run.Stdout = parsed.Run.Output
	}
	return &parsed.Run, nil
}

// buildPythonProgram concatenates the user's code with one print statement
// per test case input, so a single execution covers every case.
func buildPythonProgram(code string, cases []TestCase) string {
	var b strings.Builder
	b.WriteString(code)
	b.WriteString("\n")
	for _, tc := range cases {
		b.WriteString(fmt.Sprintf("print(%s)\n", tc.Input))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
