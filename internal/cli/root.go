// Package cli 实现 certhub 命令行
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"certhub/internal/config"
	"certhub/internal/core"
	"certhub/internal/logger"
	"certhub/internal/notification"
)

var version = "dev"

// SetVersion 设置版本号，由构建时注入
func SetVersion(v string) {
	version = v
}

type options struct {
	configPath string
	verbose    bool
	logFormat  string
	logOutput  io.Writer
}

// NewRootCommand 创建根命令；不带子命令时等同于 run
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "certhub",
		Short: "证书自动签发与部署工具",
		Long: `certhub 为配置中的每个域名向证书颁发机构申请证书，等待签发后
下载并部署到 SSH 主机、SoftEther VPN Server 或本地目录。

支持的证书颁发机构: 腾讯云、阿里云、华为云`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAll(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "配置文件路径（默认读取 CERTHUB_CONFIG 或 config.yaml）")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出调试日志")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "日志格式: text 或 json")

	root.AddCommand(newRunCommand(opts), newResumeCommand(opts), newValidateCommand(opts))
	return root
}

// Execute 执行命令行，返回进程退出码
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		return 1
	}
	return 0
}

// loadConfig 读取 .env 与环境变量后加载配置，命令行参数优先
func loadConfig(opts *options) (*config.Config, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}

	path := opts.configPath
	if path == "" {
		path = env.ConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	env.Apply(cfg)

	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, opts *options) *logrus.Logger {
	return logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Verbose: opts.verbose,
		Output:  opts.logOutput,
	})
}

// newManager 按配置创建编排器，启用 Webhook 时挂上通知
func newManager(cfg *config.Config, l *logrus.Logger) (*core.Manager, error) {
	var managerOpts []core.Option

	notifier, err := notification.NewWebhookNotifier(cfg.Webhook, logger.Component(l, "notification"))
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		managerOpts = append(managerOpts, core.WithNotifier(notifier))
	}

	return core.NewManager(cfg, logger.Component(l, "core"), managerOpts...)
}

// prepare 加载配置并创建编排器与可被信号取消的 ctx
func prepare(cmd *cobra.Command, opts *options) (context.Context, context.CancelFunc, *core.Manager, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	l := newLogger(cfg, opts)

	m, err := newManager(cfg, l)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := signalContext(cmd.Context(), logger.Component(l, "cli"))
	return ctx, cancel, m, nil
}
