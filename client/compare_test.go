package client

import "testing"

func TestCompareRowSetsOrderIndependent(t *testing.T) {
	actual := []map[string]any{
		{"id": float64(2), "name": "bob"},
		{"id": float64(1), "name": "alice"},
	}
	expected := []map[string]any{
		{"name": "alice", "id": float64(1)},
		{"name": "bob", "id": float64(2)},
	}
	if !CompareRowSets(actual, expected) {
		t.Fatal("row and column order must not matter")
	}
}

func TestCompareRowSetsMismatch(t *testing.T) {
	actual := []map[string]any{{"id": float64(1)}}
	expected := []map[string]any{{"id": float64(2)}}
	if CompareRowSets(actual, expected) {
		t.Fatal("different cell values must not match")
	}
}

func TestCompareRowSetsLength(t *testing.T) {
	actual := []map[string]any{{"id": float64(1)}, {"id": float64(1)}}
	expected := []map[string]any{{"id": float64(1)}}
	if CompareRowSets(actual, expected) {
		t.Fatal("row count mismatch must fail")
	}
	if !CompareRowSets(nil, nil) {
		t.Fatal("two empty result sets match")
	}
}

func TestComparePythonOutput(t *testing.T) {
	cases := []TestCase{
		{Input: "2, 2", ExpectedOutput: "4"},
		{Input: "3, 4", ExpectedOutput: "7"},
	}

	if !ComparePythonOutput("4\n7\n", cases) {
		t.Fatal("matching output per line must pass")
	}
	if !ComparePythonOutput("  4 \r\n7", cases) {
		t.Fatal("whitespace and CRLF must be tolerated")
	}
	if ComparePythonOutput("4\n8\n", cases) {
		t.Fatal("a single wrong line must fail")
	}
	if ComparePythonOutput("4", cases) {
		t.Fatal("missing lines must fail")
	}
}
