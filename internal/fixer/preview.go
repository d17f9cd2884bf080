package fixer

import (
	"fmt"
	"io"

	"github.com/pmezard/go-difflib/difflib"
)

// writePreview 输出修复前后的 unified diff
func writePreview(w io.Writer, path string, before, after []byte) error {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: path,
		ToFile:   path + " (fixed)",
		Context:  3,
	}
	if err := difflib.WriteUnifiedDiff(w, diff); err != nil {
		return fmt.Errorf("write diff for %s: %w", path, err)
	}
	return nil
}
