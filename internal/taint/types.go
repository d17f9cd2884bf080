package taint

import (
	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// SourceKind 污点来源类型
type SourceKind int

const (
	UserInput SourceKind = iota
	NetworkData
	FileData
	Environment
	Unknown
)

var sourceKindNames = map[SourceKind]string{
	UserInput:   "user input",
	NetworkData: "network data",
	FileData:    "file data",
	Environment: "environment",
	Unknown:     "unknown",
}

func (k SourceKind) String() string {
	if name, ok := sourceKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Risk 汇点风险类型
type Risk string

const (
	RiskSQLInjection     Risk = "SQL injection"
	RiskCommandInjection Risk = "command injection"
	RiskPathTraversal    Risk = "path traversal"
	RiskFormatString     Risk = "format string"
	RiskGeneric          Risk = "data contamination"
)

// Severity 风险对应的严重级别
func (r Risk) Severity() core.Severity {
	switch r {
	case RiskSQLInjection, RiskCommandInjection:
		return core.SeverityCritical
	case RiskPathTraversal:
		return core.SeverityHigh
	default:
		return core.SeverityMedium
	}
}

// Source 污点源
type Source struct {
	VariableName string     `json:"variable_name"`
	Kind         SourceKind `json:"kind"`
	Line         int        `json:"line"`
	Column       int        `json:"column"`
	Description  string     `json:"description"`
}

// Sink 污点汇（敏感操作）
type Sink struct {
	FunctionName     string        `json:"function_name"`
	TaintedArguments []int         `json:"tainted_arguments"` // 被污染的实参下标
	Line             int           `json:"line"`
	Column           int           `json:"column"`
	Risk             Risk          `json:"risk"`
	Severity         core.Severity `json:"severity"`
}

// Path 一条从源到汇的污点路径
type Path struct {
	Source      Source   `json:"source"`
	Propagation []string `json:"propagation"` // 依次经过的变量名
	Sink        Sink     `json:"sink"`
}
