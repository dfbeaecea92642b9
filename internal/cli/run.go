package cli

import (
	"github.com/spf13/cobra"
)

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "处理配置中的全部域名（单次运行）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAll(cmd, opts)
		},
	}
}

func runAll(cmd *cobra.Command, opts *options) error {
	ctx, cancel, m, err := prepare(cmd, opts)
	if err != nil {
		return err
	}
	defer cancel()

	report, err := m.Run(ctx)
	printReport(cmd.OutOrStdout(), report)
	return err
}
