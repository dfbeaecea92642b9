package cli

import (
	"github.com/spf13/cobra"

	"certhub/internal/core"
	"certhub/internal/logger"
)

func newValidateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "校验配置并创建全部提供商与部署目标，不发起任何请求",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			l := newLogger(cfg, opts)

			if _, err := core.NewFactory(cfg, logger.Component(l, "core")).Build(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = success.Fprintf(out, "✓ 配置有效: %d 个域名, %d 个部署目标\n", len(cfg.Domains), len(cfg.Targets))
			for _, d := range cfg.Domains {
				_, _ = info.Fprintf(out, "  %s  %s -> %s\n", d.GetAlias(), d.Provider, d.Target)
			}
			return nil
		},
	}
}
