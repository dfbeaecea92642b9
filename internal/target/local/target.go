// Package local 将证书写入本机目录，可选执行本地命令
package local

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"certhub/internal/config"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
	"certhub/internal/servicekey"
)

// Target 本地目录部署目标
type Target struct {
	name        string
	dir         string
	postCommand string
	exec        *executor
	log         *logrus.Entry
}

// NewTarget 创建本地部署目标
func NewTarget(key string, cfg config.TargetConfig, log *logrus.Entry) (*Target, error) {
	if _, err := servicekey.Expect(key, servicekey.KindTarget, servicekey.VendorLocal); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return nil, certerrors.Config("%s: 未配置 dir", key)
	}

	l := log.WithField(logger.FieldTarget, key)
	return &Target{
		name:        key,
		dir:         cfg.Dir,
		postCommand: cfg.PostCommand,
		exec:        newExecutor(l),
		log:         l,
	}, nil
}

// Name 返回目标名称
func (t *Target) Name() string {
	return t.name
}

// Format 本地目标使用PEM分离格式
func (t *Target) Format() provider.Format {
	return provider.FormatSplit
}

// CertPath 证书文件路径
func (t *Target) CertPath(domainName string) string {
	return filepath.Join(t.dir, domainName+".crt")
}

// KeyPath 私钥文件路径
func (t *Target) KeyPath(domainName string) string {
	return filepath.Join(t.dir, domainName+".key")
}

// DeployCertificate 写入 <dir>/<domain>.crt 与 <dir>/<domain>.key
func (t *Target) DeployCertificate(ctx context.Context, domainName string, publicKey, privateKey []byte, _ string) error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return certerrors.Deploy("创建目录失败", err)
	}

	certPath, keyPath := t.CertPath(domainName), t.KeyPath(domainName)
	if err := writeFile(certPath, publicKey, 0o644); err != nil {
		return certerrors.Deploy("保存证书失败", err)
	}
	if err := writeFile(keyPath, privateKey, 0o600); err != nil {
		return certerrors.Deploy("保存私钥失败", err)
	}

	log := t.log.WithField(logger.FieldDomain, domainName)
	log.WithFields(logrus.Fields{"cert": certPath, "key": keyPath}).Info("证书已保存")

	vars := buildVars(domainName, t.dir, certPath, keyPath)
	if err := t.exec.run(ctx, t.postCommand, vars); err != nil {
		log.WithError(err).Warn("部署后命令执行失败")
	}
	return nil
}

// writeFile 先写临时文件再改名，避免读到写了一半的证书
func writeFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
