package local

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// executor 执行本地部署后命令
type executor struct {
	shell string
	log   *logrus.Entry
}

func newExecutor(log *logrus.Entry) *executor {
	return &executor{shell: "sh", log: log}
}

// run 替换命令中的 ${VAR} 变量后通过 shell 执行
func (e *executor) run(ctx context.Context, command string, vars map[string]string) error {
	if command == "" {
		return nil
	}

	command = expand(command, vars)
	log := e.log.WithField("command", command)
	log.Info("执行部署后命令")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.shell, "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	log = log.WithFields(logrus.Fields{
		"stdout": strings.TrimSpace(stdout.String()),
		"stderr": strings.TrimSpace(stderr.String()),
	})
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}

	log.Info("部署后命令执行成功")
	return nil
}

func expand(command string, vars map[string]string) string {
	for key, value := range vars {
		command = strings.ReplaceAll(command, "${"+key+"}", value)
	}
	return command
}

// buildVars 构建命令变量
func buildVars(domain, certDir, certFile, keyFile string) map[string]string {
	return map[string]string{
		"DOMAIN":    domain,
		"CERT_DIR":  certDir,
		"CERT_FILE": certFile,
		"KEY_FILE":  keyFile,
	}
}
