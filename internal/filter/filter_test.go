package filter

import (
	"testing"

	"fabricmcp/internal/api"

	"github.com/stretchr/testify/assert"
)

func siteRecord() api.Record {
	return api.Record{
		"name":            "ucsd-w1.example.net",
		"site":            "UCSD",
		"cores_available": float64(64),
		"ram_available":   float64(256),
		"ptp_capable":     true,
		"hosts":           []any{"ucsd-w1", "ucsd-w2"},
		"endpoints": []any{
			map[string]any{"port": "HundredGigE0/0/0/15", "bandwidth": float64(100)},
			map[string]any{"port": "TenGigE0/0/0/22", "bandwidth": float64(10)},
		},
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		expr     Expression
		expected bool
	}{
		{"nil expression matches", nil, true},
		{"empty expression matches", Expression{}, true},
		{"implicit eq string", Expression{"site": "UCSD"}, true},
		{"implicit eq mismatch", Expression{"site": "RENC"}, false},
		{"implicit eq bool", Expression{"ptp_capable": true}, true},
		{"explicit eq", Expression{"site": map[string]any{"eq": "UCSD"}}, true},
		{"ne", Expression{"site": map[string]any{"ne": "RENC"}}, true},
		{"ne on equal value", Expression{"site": map[string]any{"ne": "UCSD"}}, false},
		{"gte true", Expression{"cores_available": map[string]any{"gte": float64(32)}}, true},
		{"gte boundary", Expression{"cores_available": map[string]any{"gte": float64(64)}}, true},
		{"gt boundary", Expression{"cores_available": map[string]any{"gt": float64(64)}}, false},
		{"lt", Expression{"cores_available": map[string]any{"lt": float64(128)}}, true},
		{"lte", Expression{"cores_available": map[string]any{"lte": float64(63)}}, false},
		{"range on one field", Expression{"cores_available": map[string]any{"gte": float64(32), "lt": float64(128)}}, true},
		{"int operand against float value", Expression{"cores_available": map[string]any{"gte": 32}}, true},
		{"in membership", Expression{"site": map[string]any{"in": []any{"RENC", "UCSD", "STAR"}}}, true},
		{"in miss", Expression{"site": map[string]any{"in": []any{"RENC", "STAR"}}}, false},
		{"contains case-sensitive", Expression{"name": map[string]any{"contains": "ucsd"}}, true},
		{"contains wrong case", Expression{"name": map[string]any{"contains": "UCSD"}}, false},
		{"icontains ignores case", Expression{"name": map[string]any{"icontains": "UCSD"}}, true},
		{"regex", Expression{"name": map[string]any{"regex": `^ucsd-w\d`}}, true},
		{"regex with case marker", Expression{"name": map[string]any{"regex": `(?i)UCSD`}}, true},
		{"any scalar element", Expression{"hosts": map[string]any{"any": "ucsd-w2"}}, true},
		{"any scalar miss", Expression{"hosts": map[string]any{"any": "renc-w1"}}, false},
		{"any nested record", Expression{"endpoints": map[string]any{"any": map[string]any{"port": map[string]any{"contains": "HundredGigE"}}}}, true},
		{"all nested record", Expression{"endpoints": map[string]any{"all": map[string]any{"bandwidth": map[string]any{"gte": float64(10)}}}}, true},
		{"all nested record miss", Expression{"endpoints": map[string]any{"all": map[string]any{"bandwidth": map[string]any{"gte": float64(100)}}}}, false},
		{"sibling fields conjoin", Expression{"site": "UCSD", "cores_available": map[string]any{"gte": float64(32)}}, true},
		{"sibling fields conjoin miss", Expression{"site": "UCSD", "cores_available": map[string]any{"gte": float64(128)}}, false},
		{"or matches one branch", Expression{"or": []any{
			map[string]any{"site": "RENC"},
			map[string]any{"site": "UCSD"},
		}}, true},
		{"or no branch matches", Expression{"or": []any{
			map[string]any{"site": "RENC"},
			map[string]any{"site": "STAR"},
		}}, false},
		{"or conjoined with sibling", Expression{
			"ptp_capable": true,
			"or": []any{
				map[string]any{"site": "UCSD"},
				map[string]any{"site": "RENC"},
			},
		}, true},
		{"or conjoined sibling fails", Expression{
			"ptp_capable": false,
			"or": []any{
				map[string]any{"site": "UCSD"},
			},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Evaluate(siteRecord(), tt.expr))
		})
	}
}

func TestEvaluateMissingFields(t *testing.T) {
	record := api.Record{"name": "RENC"}

	// Numeric comparisons on a missing field fail.
	assert.False(t, Evaluate(record, Expression{"cores_available": map[string]any{"gte": float64(1)}}))
	assert.False(t, Evaluate(record, Expression{"cores_available": map[string]any{"lt": float64(1)}}))
	// eq fails, ne holds.
	assert.False(t, Evaluate(record, Expression{"state": map[string]any{"eq": "Active"}}))
	assert.True(t, Evaluate(record, Expression{"state": map[string]any{"ne": "Active"}}))
	// Containment treats missing as the empty string.
	assert.False(t, Evaluate(record, Expression{"address": map[string]any{"contains": "Chapel"}}))
	assert.True(t, Evaluate(record, Expression{"address": map[string]any{"icontains": ""}}))
	// in never matches a missing field.
	assert.False(t, Evaluate(record, Expression{"site": map[string]any{"in": []any{"RENC"}}}))
}

func TestEvaluateMalformedDegradesToNoMatch(t *testing.T) {
	record := siteRecord()

	tests := []struct {
		name string
		expr Expression
	}{
		{"unknown operator", Expression{"site": map[string]any{"between": []any{1, 2}}}},
		{"comparison against string operand", Expression{"cores_available": map[string]any{"gte": "lots"}}},
		{"in with scalar operand", Expression{"site": map[string]any{"in": "UCSD"}}},
		{"contains with numeric operand", Expression{"name": map[string]any{"contains": 42}}},
		{"invalid regex", Expression{"name": map[string]any{"regex": "(unclosed"}}},
		{"or with non-list operand", Expression{"or": "site"}},
		{"any on scalar field", Expression{"site": map[string]any{"any": "U"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Evaluate(record, tt.expr))
		})
	}
}

func TestEvaluateEmptyLists(t *testing.T) {
	record := api.Record{"hosts": []any{}}

	assert.False(t, Evaluate(record, Expression{"hosts": map[string]any{"any": "x"}}))
	assert.True(t, Evaluate(record, Expression{"hosts": map[string]any{"all": "x"}}))
}

func TestEvaluateDeterministic(t *testing.T) {
	record := siteRecord()
	expr := Expression{
		"or": []any{
			map[string]any{"site": map[string]any{"icontains": "ucsd"}},
			map[string]any{"cores_available": map[string]any{"gte": float64(32)}},
		},
	}

	first := Evaluate(record, expr)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Evaluate(record, expr))
	}
}

func TestSingleBranchOrEquivalentToLeaf(t *testing.T) {
	record := siteRecord()

	direct := Evaluate(record, Expression{"site": map[string]any{"icontains": "UCSD"}})
	wrapped := Evaluate(record, Expression{"or": []any{
		map[string]any{"site": map[string]any{"icontains": "UCSD"}},
	}})
	assert.Equal(t, direct, wrapped)
	assert.True(t, direct)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name       string
		a, b       any
		expected   int
		comparable bool
	}{
		{"floats", float64(1), float64(2), -1, true},
		{"int vs float", 3, float64(2), 1, true},
		{"equal numbers", float64(5), 5, 0, true},
		{"strings", "RENC", "UCSD", -1, true},
		{"equal strings", "STAR", "STAR", 0, true},
		{"string vs number", "a", float64(1), 0, false},
		{"bool not ordered", true, false, 0, false},
		{"nil not ordered", nil, float64(1), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp, ok := Compare(tt.a, tt.b)
			assert.Equal(t, tt.comparable, ok)
			if ok {
				assert.Equal(t, tt.expected, cmp)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(float64(2), 2))
	assert.True(t, Equal("x", "x"))
	assert.True(t, Equal(true, true))
	assert.False(t, Equal("2", float64(2)))
	assert.False(t, Equal(true, "true"))
	assert.True(t, Equal([]any{"a"}, []any{"a"}))
}
