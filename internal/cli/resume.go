package cli

import (
	"github.com/spf13/cobra"
)

func newResumeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <证书ID> <别名>",
		Short: "继续处理已申请的证书，等待签发后部署",
		Long: `resume 不再发起新的申请，直接查询已有证书ID的签发状态，
签发后按别名对应的域名配置下载并部署。`,
		Example: "  certhub resume 8x1YtPq3 www.itvtech.cn",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, m, err := prepare(cmd, opts)
			if err != nil {
				return err
			}
			defer cancel()

			req, err := m.RequestForAlias(args[1])
			if err != nil {
				return err
			}
			if err := m.Resume(ctx, args[0], req); err != nil {
				return err
			}

			_, _ = success.Fprintf(cmd.OutOrStdout(), "✓ %s 已部署 (证书ID: %s)\n", req.Domain, args[0])
			return nil
		},
	}
}
