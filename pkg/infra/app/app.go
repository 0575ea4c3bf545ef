// Package app 基于 Cobra/Viper/Pflag 的服务启动骨架。
// 配置优先级：命令行标志 > 环境变量 > 配置文件 > 默认值。
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	options "github.com/kart-io/knowledge-x/pkg/options/app"
	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RunFunc 应用主函数，标志解析与配置装载完成后调用。
type RunFunc func() error

// App 封装单命令服务进程的启动流程。
type App struct {
	name        string
	description string
	options     options.CliOptions
	runFunc     RunFunc
	cmd         *cobra.Command
}

// Option 配置 App。
type Option func(*App)

// WithName 设置应用名称，同时决定配置文件与环境变量前缀。
func WithName(name string) Option {
	return func(a *App) { a.name = name }
}

// WithDescription 设置命令描述。
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithOptions 挂载应用的命令行选项集。
func WithOptions(opts options.CliOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc 设置应用主函数。
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// NewApp 创建应用实例并构建命令。
func NewApp(opts ...Option) *App {
	a := &App{name: filepath.Base(os.Args[0])}
	for _, opt := range opts {
		opt(a)
	}

	cmd := &cobra.Command{
		Use:          a.name,
		Long:         a.description,
		RunE:         a.runCommand,
		SilenceUsage: true,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	version.AddFlags(cmd.PersistentFlags())

	if a.options != nil {
		fss := a.options.Flags()
		for _, name := range fss.Order {
			cmd.Flags().AddFlagSet(fss.FlagSets[name])
		}
	}

	a.cmd = cmd
	return a
}

// Run 执行应用，出错时打印错误并以非零码退出。
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	version.PrintAndExitIfRequested()

	if err := a.loadConfig(cmd); err != nil {
		return err
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.runFunc != nil {
		return a.runFunc()
	}
	return nil
}

// loadConfig 装载配置文件与环境变量，并保持已显式设置的标志优先。
func (a *App) loadConfig(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(a.name)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+a.name))
		viper.AddConfigPath("/etc/" + a.name)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// 配置文件缺失不是错误，靠默认值和环境变量运行
	}

	expandEnvVars()

	viper.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(a.name, "-", "_")))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if a.options == nil {
		return nil
	}

	// Unmarshal 会覆盖标志值，先记下显式设置的标志再回填
	changedFlags := make(map[string]string)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changedFlags[f.Name] = f.Value.String()
		}
	})

	if err := viper.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for name, val := range changedFlags {
		if err := cmd.Flags().Set(name, val); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars 展开配置值里的 ${VAR} 和 $VAR 引用，
// 环境变量不存在时保留原文。
func expandEnvVars() {
	for _, key := range viper.AllKeys() {
		strVal, ok := viper.Get(key).(string)
		if !ok {
			continue
		}
		expanded := envPattern.ReplaceAllStringFunc(strVal, func(match string) string {
			varName := match[1:]
			if strings.HasPrefix(match, "${") {
				varName = match[2 : len(match)-1]
			}
			if envVal := os.Getenv(varName); envVal != "" {
				return envVal
			}
			return match
		})
		if expanded != strVal {
			viper.Set(key, expanded)
		}
	}
}
