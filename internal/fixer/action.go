package fixer

import (
	"errors"
	"fmt"
)

// Kind 修复动作类型
type Kind int

const (
	Replace Kind = iota
	Insert
	Delete
	AddInclude
	Rewrite
)

var kindNames = map[Kind]string{
	Replace:    "replace",
	Insert:     "insert",
	Delete:     "delete",
	AddInclude: "add-include",
	Rewrite:    "rewrite",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	// ErrOutOfRange 行列范围越界，文件未被修改
	ErrOutOfRange = errors.New("fix target out of range")
	// ErrDeclined 交互模式下用户拒绝了修复
	ErrDeclined = errors.New("fix declined")
	// ErrUnknownKind 未知的修复类型
	ErrUnknownKind = errors.New("unknown fix kind")
	// ErrConflict 目标文本已被之前的修复改动
	ErrConflict = errors.New("fix target changed")
)

// FixAction 一次文本编辑
// 行列均为 1 基；ColumnStart 和 ColumnEnd 都为 0 时作用于整行
// OldText 非空时为生成修复时目标位置的原文，应用前校验
type FixAction struct {
	Kind        Kind   `json:"kind"`
	File        string `json:"file"`
	LineStart   int    `json:"line_start"`
	LineEnd     int    `json:"line_end,omitempty"`
	ColumnStart int    `json:"column_start,omitempty"`
	ColumnEnd   int    `json:"column_end,omitempty"`
	NewText     string `json:"new_text"`
	OldText     string `json:"old_text,omitempty"`
	Description string `json:"description"`
}

// hasColumns 是否为列精确的替换
func (a FixAction) hasColumns() bool {
	return a.ColumnStart > 0 || a.ColumnEnd > 0
}

// FixResult 一次批量修复的汇总
type FixResult struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	ModifiedFiles []string `json:"modified_files"`
	FixedCount    int      `json:"fixed_count"`
	FailedCount   int      `json:"failed_count"`
	SkippedCount  int      `json:"skipped_count"`
}

// BackupRecord 一个文件的备份
type BackupRecord struct {
	OriginalPath string `json:"original_path"`
	BackupPath   string `json:"backup_path"`
}

// BackupSuffix 备份文件后缀
const BackupSuffix = ".backup"
