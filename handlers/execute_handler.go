package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ExecuteHandler serves the query-execution endpoint the battleground editor
// grades SQL against. Queries run against the practice schema, never the
// application tables.
type ExecuteHandler struct {
	db *gorm.DB
}

func NewExecuteHandler(db *gorm.DB) *ExecuteHandler {
	return &ExecuteHandler{db: db}
}

// ExecuteQuery handles GET /execute-sql/query?q=<urlencoded-sql>. It answers
// with either a JSON row array or a typed error object; a failing query is a
// 200 with the error body, since it is the user's answer, not our failure.
func (h *ExecuteHandler) ExecuteQuery(c *gin.Context) {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   true,
			"message": "Query required",
			"details": "pass the SQL via the q parameter",
			"code":    "EMPTY_QUERY",
		})
		return
	}

	// Sandbox policy: practice queries read, they never mutate.
	if !isReadOnlyQuery(query) {
		c.JSON(http.StatusOK, gin.H{
			"error":   true,
			"message": "Only SELECT queries are allowed",
			"details": "the practice sandbox is read-only",
			"code":    "READ_ONLY",
		})
		return
	}

	rows, err := h.db.Raw(query).Rows()
	if err != nil {
		log.Printf("Query execution failed: %v", err)
		c.JSON(http.StatusOK, gin.H{
			"error":   true,
			"message": "Query execution failed",
			"details": err.Error(),
			"code":    "EXECUTION_ERROR",
		})
		return
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"error":   true,
			"message": "Query execution failed",
			"details": err.Error(),
			"code":    "EXECUTION_ERROR",
		})
		return
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			c.JSON(http.StatusOK, gin.H{
				"error":   true,
				"message": "Query execution failed",
				"details": err.Error(),
				"code":    "SCAN_ERROR",
			})
			return
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			// Drivers hand back []byte for text columns.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"error":   true,
			"message": "Query execution failed",
			"details": err.Error(),
			"code":    "EXECUTION_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, results)
}

func isReadOnlyQuery(query string) bool {
	trimmed := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(trimmed, "SELECT") || strings.HasPrefix(trimmed, "WITH")
}
