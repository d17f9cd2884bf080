package git

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// unifiedPatch 生成单个文件的零上下文 diff，内容相同时返回 nil
func unifiedPatch(path, before, after string) (*diff.FileDiff, error) {
	if before == after {
		return nil, nil
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s: %w", path, err)
	}
	if text == "" {
		return nil, nil
	}
	fd, err := diff.ParseFileDiff([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff for %s: %w", path, err)
	}
	return fd, nil
}

// splitMultiFilePatch 解析 git diff 输出，按新文件路径返回
// 删除的文件和没有 hunk 的文件被跳过
func splitMultiFilePatch(patch string) (map[string]*diff.FileDiff, error) {
	parsed, err := diff.ParseMultiFileDiff([]byte(patch))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}

	out := make(map[string]*diff.FileDiff)
	for _, fd := range parsed {
		if fd == nil || fd.NewName == "/dev/null" || len(fd.Hunks) == 0 {
			continue
		}
		out[strings.TrimPrefix(fd.NewName, "b/")] = fd
	}
	return out, nil
}

// addedLines 新文件中新增行的行号（1 基），删除行和上下文行不计入
func addedLines(fd *diff.FileDiff) map[int]bool {
	added := make(map[int]bool)
	for _, h := range fd.Hunks {
		if h == nil {
			continue
		}
		lineNo := int(h.NewStartLine)
		if lineNo <= 0 {
			lineNo = 1
		}
		for _, bodyLine := range bytes.Split(h.Body, []byte("\n")) {
			if len(bodyLine) == 0 {
				continue
			}
			switch bodyLine[0] {
			case '+':
				added[lineNo] = true
				lineNo++
			case '-', '\\':
				// 删除行不推进新文件行号
			default:
				lineNo++
			}
		}
	}
	return added
}
