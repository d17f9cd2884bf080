package rules

import (
	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// All 按固定顺序返回所有内置规则的新实例
func All() []core.Rule {
	return []core.Rule{
		NewNullPointerRule(),
		NewUninitializedVarRule(),
		NewAssignInConditionRule(),
		NewUnsafeCFunctionsRule(),
		NewMemoryLeakRule(),
		NewSmartPointerRule(),
		NewLoopCopyRule(),
		NewIntegerOverflowRule(),
		NewBufferOverflowRule(),
		NewUseAfterFreeRule(),
	}
}

// Filter 去掉被禁用的规则
func Filter(all []core.Rule, disabled []string) []core.Rule {
	if len(disabled) == 0 {
		return all
	}
	skip := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		skip[id] = true
	}
	out := make([]core.Rule, 0, len(all))
	for _, r := range all {
		if !skip[r.ID()] {
			out = append(out, r)
		}
	}
	return out
}

// IDs 返回规则 ID 列表
func IDs(rules []core.Rule) []string {
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID()
	}
	return ids
}
