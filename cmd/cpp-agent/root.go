package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/mikeywangzq/cpp-code-review/internal/config"
	"github.com/mikeywangzq/cpp-code-review/internal/enhancer"
	"github.com/mikeywangzq/cpp-code-review/internal/logger"
	"github.com/mikeywangzq/cpp-code-review/internal/scanner"
)

// app 命令之间共享的状态，在 PersistentPreRunE 中初始化
type app struct {
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger hclog.Logger
}

// execute 运行命令行并返回退出码
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd(&app{})
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:                   "cpp-agent [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "C/C++ code review agent",
		Long: `cpp-agent reviews C and C++ sources with tree-sitter based rules and taint analysis,
	reports findings as text, JSON, SARIF or HTML, and can apply automatic fixes with backup and rollback.
	`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is .cpp-agent.yml in the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newScanCmd(a),
		newFixCmd(a),
		newRollbackCmd(a),
		newWatchCmd(a),
		newRulesCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// init 加载并校验配置，创建日志
func (a *app) init() error {
	path := a.cfgFile
	if path == "" {
		path = config.Find(".")
	} else if err := config.ValidateConfigPath(path); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if a.verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(scanner.KnownRuleIDs()); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger.NewLogger(cfg, "cpp-agent")
	if path != "" {
		a.logger.Debug("config loaded", "path", path)
	}
	return nil
}

// newScanner 按当前配置创建扫描器
func (a *app) newScanner(opts ...scanner.Option) (*scanner.Scanner, error) {
	base := []scanner.Option{
		scanner.WithConfig(a.cfg),
		scanner.WithLogger(a.logger.Named("scanner")),
	}
	return scanner.New(append(base, opts...)...)
}

// newEnhancer AI 建议未开启时返回 nil；非规则提供者失败时回退到规则库
func (a *app) newEnhancer() (*enhancer.Enhancer, error) {
	if !a.cfg.EnableAISuggestions {
		return nil, nil
	}

	provider, err := enhancer.NewProvider(a.cfg, a.logger.Named("enhancer"))
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}

	opts := []enhancer.Option{enhancer.WithLogger(a.logger.Named("enhancer"))}
	if a.cfg.LLMProvider != config.ProviderRuleBased {
		opts = append(opts, enhancer.WithFallback(enhancer.NewRuleBasedProvider()))
	}
	e := enhancer.New(provider, opts...)
	a.logger.Info("AI suggestions enabled", "provider", e.ProviderName())
	return e, nil
}

// pathsOrCurrent 未指定路径时使用当前目录
func pathsOrCurrent(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}
