package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func executeRequest(t *testing.T, rawQuery string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewExecuteHandler(nil)
	router.GET("/execute-sql/query", handler.ExecuteQuery)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/execute-sql/query"+rawQuery, nil)
	router.ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return w, body
}

func TestExecuteQueryEmpty(t *testing.T) {
	w, body := executeRequest(t, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body["code"] != "EMPTY_QUERY" {
		t.Fatalf("code = %v", body["code"])
	}
}

func TestExecuteQueryRejectsWrites(t *testing.T) {
	w, body := executeRequest(t, "?q=DELETE+FROM+users")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, a rejected query is still a 200 with an error body", w.Code)
	}
	if body["error"] != true || body["code"] != "READ_ONLY" {
		t.Fatalf("body = %v", body)
	}
}

func TestIsReadOnlyQuery(t *testing.T) {
	allowed := []string{
		"SELECT * FROM users",
		"  select id from users",
		"WITH t AS (SELECT 1) SELECT * FROM t",
	}
	for _, q := range allowed {
		if !isReadOnlyQuery(q) {
			t.Errorf("isReadOnlyQuery(%q) = false, want true", q)
		}
	}

	rejected := []string{
		"DELETE FROM users",
		"DROP TABLE users",
		"UPDATE users SET name = 'x'",
		"INSERT INTO users VALUES (1)",
	}
	for _, q := range rejected {
		if isReadOnlyQuery(q) {
			t.Errorf("isReadOnlyQuery(%q) = true, want false", q)
		}
	}
}
