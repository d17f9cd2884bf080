package core

import (
	"fmt"
	"strings"
)

// Severity 问题严重级别，数值越大越严重
type Severity int

// Severity levels
const (
	SeveritySuggestion Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityCritical:   "CRITICAL",
	SeverityHigh:       "HIGH",
	SeverityMedium:     "MEDIUM",
	SeverityLow:        "LOW",
	SeveritySuggestion: "SUGGESTION",
}

// AllSeverities 按从高到低的顺序返回所有级别
func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeveritySuggestion}
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// AtLeast 判断当前级别是否不低于 min
func (s Severity) AtLeast(min Severity) bool {
	return s >= min
}

// MarshalText 以大写名称序列化
func (s Severity) MarshalText() ([]byte, error) {
	if _, ok := severityNames[s]; !ok {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText 解析大写或小写名称
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity 将字符串解析为 Severity（不区分大小写）
func ParseSeverity(name string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for sev, n := range severityNames {
		if n == upper {
			return sev, nil
		}
	}
	return SeveritySuggestion, fmt.Errorf("unknown severity %q (expected CRITICAL, HIGH, MEDIUM, LOW or SUGGESTION)", name)
}
