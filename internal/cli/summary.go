package cli

import (
	"io"
	"time"

	"github.com/fatih/color"

	"certhub/internal/core"
)

var (
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
	warning = color.New(color.FgYellow)
	info    = color.New(color.FgCyan)
)

// printReport 输出每个域名的处理结果
func printReport(w io.Writer, report *core.Report) {
	if report == nil {
		return
	}

	for _, res := range report.Results {
		req := res.Request
		switch {
		case res.Skipped:
			_, _ = warning.Fprintf(w, "- %s  已跳过\n", req.Domain)
		case res.Err != nil:
			_, _ = failure.Fprintf(w, "✗ %s  %v\n", req.Domain, res.Err)
		default:
			_, _ = success.Fprintf(w, "✓ %s  %s -> %s  (%s, %s)\n",
				req.Domain, res.CertID, req.Target, res.Elapsed.Round(time.Second), req.Provider)
		}
	}

	_, _ = info.Fprintf(w, "运行 %s: 成功 %d, 失败 %d, 跳过 %d, 耗时 %s\n",
		report.RunID,
		len(report.Succeeded()), len(report.Failed()), len(report.Skipped()),
		report.Elapsed.Round(time.Millisecond))
}
