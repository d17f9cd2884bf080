package core

import (
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
)

// RuleTiming 规则累计耗时
type RuleTiming struct {
	RuleID   string        `json:"rule_id"`
	Duration time.Duration `json:"duration"`
}

// DispatcherOption 调度器配置选项
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger 设置日志
func WithDispatcherLogger(logger hclog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher 按注册顺序运行规则，单个规则失败不影响其他规则
type Dispatcher struct {
	rules   []Rule
	timings map[string]time.Duration
	logger  hclog.Logger
}

// NewDispatcher 创建调度器
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		timings: make(map[string]time.Duration),
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register 注册规则
func (d *Dispatcher) Register(rule Rule) {
	d.rules = append(d.rules, rule)
}

// RuleCount 返回已注册规则数量
func (d *Dispatcher) RuleCount() int {
	return len(d.rules)
}

// Rules 返回已注册规则
func (d *Dispatcher) Rules() []Rule {
	out := make([]Rule, len(d.rules))
	copy(out, d.rules)
	return out
}

// RunAll 依次执行所有规则，返回失败规则的错误
func (d *Dispatcher) RunAll(ctx *AnalysisContext, out *Collector) []error {
	var errs []error
	for _, rule := range d.rules {
		start := time.Now()
		err := d.runOne(rule, ctx, out)
		d.timings[rule.ID()] += time.Since(start)

		if err != nil {
			d.logger.Error("rule failed", "rule", rule.ID(), "file", ctx.Unit.FilePath, "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

// runOne 执行单个规则并把 panic 转为 RuleError
func (d *Dispatcher) runOne(rule Rule, ctx *AnalysisContext, out *Collector) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug("rule panic stack", "rule", rule.ID(), "stack", string(debug.Stack()))
			err = WrapError(rule, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := rule.Check(ctx, out); err != nil {
		return WrapError(rule, err)
	}
	return nil
}

// Timings 返回各规则累计耗时，按耗时降序
func (d *Dispatcher) Timings() []RuleTiming {
	timings := make([]RuleTiming, 0, len(d.timings))
	for id, dur := range d.timings {
		timings = append(timings, RuleTiming{RuleID: id, Duration: dur})
	}
	sort.Slice(timings, func(i, j int) bool {
		if timings[i].Duration == timings[j].Duration {
			return timings[i].RuleID < timings[j].RuleID
		}
		return timings[i].Duration > timings[j].Duration
	})
	return timings
}
