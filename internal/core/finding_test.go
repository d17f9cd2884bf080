package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected Severity
		wantErr  bool
	}{
		{name: "upper", input: "CRITICAL", expected: SeverityCritical},
		{name: "lower", input: "high", expected: SeverityHigh},
		{name: "padded", input: "  medium ", expected: SeverityMedium},
		{name: "suggestion", input: "Suggestion", expected: SeveritySuggestion},
		{name: "unknown", input: "fatal", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSeverity(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityLow.AtLeast(SeverityMedium))
	assert.True(t, SeveritySuggestion.AtLeast(SeveritySuggestion))
	assert.Equal(t, []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeveritySuggestion}, AllSeverities())
}

func TestFindingJSON(t *testing.T) {
	f := Finding{File: "a.cpp", Line: 3, Column: 7, Severity: SeverityHigh, RuleID: "X-001"}
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"HIGH"`)
	assert.Contains(t, string(data), `"rule_id":"X-001"`)
	assert.Equal(t, "a.cpp:3:7", f.Location())
}

func TestCollectorCriticalCount(t *testing.T) {
	orders := [][]Severity{
		{SeverityCritical, SeverityLow, SeverityCritical, SeverityHigh},
		{SeverityLow, SeverityHigh, SeverityCritical, SeverityCritical},
		{SeverityCritical, SeverityCritical, SeverityHigh, SeverityLow},
	}

	for _, order := range orders {
		c := NewCollector()
		for _, sev := range order {
			c.Add(Finding{Severity: sev})
		}
		assert.Equal(t, 2, c.CriticalCount())
		assert.Equal(t, 4, c.Count())
		assert.Equal(t, 1, c.CountBySeverity()[SeverityHigh])
	}
}

func TestCollectorPreservesOrderAndDuplicates(t *testing.T) {
	c := NewCollector()
	f := Finding{RuleID: "A", Line: 1}
	c.Add(f)
	c.Add(Finding{RuleID: "B", Line: 2})
	c.Add(f)

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, "A", all[0].RuleID)
	assert.Equal(t, "B", all[1].RuleID)
	assert.Equal(t, "A", all[2].RuleID)

	all[0].RuleID = "mutated"
	assert.Equal(t, "A", c.All()[0].RuleID)
}

func TestCollectorSeverityOverrides(t *testing.T) {
	c := NewCollector(WithSeverityOverrides(map[string]Severity{"LOOP-COPY-001": SeverityLow}))
	c.Add(Finding{RuleID: "LOOP-COPY-001", Severity: SeverityMedium})
	c.Add(Finding{RuleID: "OTHER", Severity: SeverityMedium})

	all := c.All()
	assert.Equal(t, SeverityLow, all[0].Severity)
	assert.Equal(t, SeverityMedium, all[1].Severity)
}

func TestCollectorAppendSuggestion(t *testing.T) {
	c := NewCollector()
	c.Add(Finding{Suggestion: "use strncpy"})
	c.Add(Finding{})

	require.NoError(t, c.AppendSuggestion(0, "AI: check lengths"))
	require.NoError(t, c.AppendSuggestion(1, "only"))
	assert.Error(t, c.AppendSuggestion(2, "x"))

	all := c.All()
	assert.Equal(t, "use strncpy\n\nAI: check lengths", all[0].Suggestion)
	assert.Equal(t, "only", all[1].Suggestion)
}

func TestCollectorFilter(t *testing.T) {
	c := NewCollector()
	c.Add(Finding{File: "a.c", Line: 1})
	c.Add(Finding{File: "b.c", Line: 2})
	got := c.Filter(func(f Finding) bool { return f.File == "b.c" })
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Line)
}
