package client

import (
	"encoding/json"
	"sort"
	"strings"
)

// CompareRowSets reports whether the actual query result contains exactly the
// expected rows. The check is deliberately order-independent for both rows and
// columns: query results carry no guaranteed order unless explicitly sorted,
// so each row is reduced to a sorted list of its serialized cell values and
// the serialized rows are compared as sorted collections. A row-count
// mismatch short-circuits to failure.
func CompareRowSets(actual, expected []map[string]any) bool {
	if len(actual) != len(expected) {
		return false
	}

	a := canonicalRows(actual)
	b := canonicalRows(expected)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func canonicalRows(rows []map[string]any) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = canonicalRow(row)
	}
	sort.Strings(out)
	return out
}

func canonicalRow(row map[string]any) string {
	cells := make([]string, 0, len(row))
	for _, v := range row {
		cells = append(cells, canonicalCell(v))
	}
	sort.Strings(cells)
	data, _ := json.Marshal(cells)
	return string(data)
}

func canonicalCell(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

// ComparePythonOutput matches each trimmed stdout line positionally against
// the test case's expected output string. Any mismatch or missing line fails
// the whole submission.
func ComparePythonOutput(stdout string, cases []TestCase) bool {
	lines := strings.Split(strings.ReplaceAll(stdout, "\r\n", "\n"), "\n")
	for i, tc := range cases {
		if i >= len(lines) {
			return false
		}
		if strings.TrimSpace(lines[i]) != strings.TrimSpace(tc.ExpectedOutput) {
			return false
		}
	}
	return true
}
