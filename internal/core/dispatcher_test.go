package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRule struct {
	BaseRule
	check func(ctx *AnalysisContext, out *Collector) error
}

func (r stubRule) Check(ctx *AnalysisContext, out *Collector) error {
	return r.check(ctx, out)
}

func newStub(id string, check func(ctx *AnalysisContext, out *Collector) error) stubRule {
	return stubRule{BaseRule: NewBaseRule(id, id, "stub"), check: check}
}

func mustParse(t *testing.T, language, src string) *AnalysisContext {
	t.Helper()
	name := "test.cpp"
	if language == LanguageC {
		name = "test.c"
	}
	unit, err := ParseSource(context.Background(), name, []byte(src), language)
	require.NoError(t, err)
	t.Cleanup(unit.Close)
	return NewAnalysisContext(unit)
}

func TestDispatcherIsolatesFailures(t *testing.T) {
	ctx := mustParse(t, LanguageCPP, "int main() { return 0; }\n")

	var order []string
	d := NewDispatcher()
	d.Register(newStub("A", func(ctx *AnalysisContext, out *Collector) error {
		order = append(order, "A")
		out.Add(Finding{RuleID: "A"})
		return nil
	}))
	d.Register(newStub("PANIC", func(ctx *AnalysisContext, out *Collector) error {
		order = append(order, "PANIC")
		panic("walker bug")
	}))
	d.Register(newStub("ERR", func(ctx *AnalysisContext, out *Collector) error {
		order = append(order, "ERR")
		return errors.New("boom")
	}))
	d.Register(newStub("B", func(ctx *AnalysisContext, out *Collector) error {
		order = append(order, "B")
		out.Add(Finding{RuleID: "B"})
		return nil
	}))

	out := NewCollector()
	errs := d.RunAll(ctx, out)

	assert.Equal(t, []string{"A", "PANIC", "ERR", "B"}, order)
	assert.Equal(t, 4, d.RuleCount())
	require.Len(t, errs, 2)

	var ruleErr *RuleError
	require.ErrorAs(t, errs[0], &ruleErr)
	assert.Equal(t, "PANIC", ruleErr.RuleID)
	require.ErrorAs(t, errs[1], &ruleErr)
	assert.Equal(t, "ERR", ruleErr.RuleID)
	assert.EqualError(t, errs[1], "rule ERR: boom")

	all := out.All()
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].RuleID)
	assert.Equal(t, "B", all[1].RuleID)
	assert.Len(t, d.Timings(), 4)
}

func TestNewFindingPosition(t *testing.T) {
	ctx := mustParse(t, LanguageC, "int x;\n  int y;\n")
	decls, err := ctx.QueryNodes("(declaration) @d")
	require.NoError(t, err)
	require.Len(t, decls, 2)

	r := NewBaseRule("T-001", "t", "d")
	f := r.NewFinding(ctx, decls[1], SeverityLow, "desc", "fix", "int y;")
	assert.Equal(t, "test.c", f.File)
	assert.Equal(t, 2, f.Line)
	assert.Equal(t, 3, f.Column)
	assert.Equal(t, "T-001", f.RuleID)
}
