package softether

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"certhub/internal/config"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
	"certhub/internal/servicekey"
)

const defaultPort = 5555

// Target SoftEther VPN Server 部署目标
type Target struct {
	name   string
	client *Client
	log    *logrus.Entry
}

// NewTarget 创建 SoftEther 部署目标
func NewTarget(key string, cfg config.TargetConfig, log *logrus.Entry) (*Target, error) {
	if _, err := servicekey.Expect(key, servicekey.KindTarget, servicekey.VendorSoftEther); err != nil {
		return nil, err
	}
	if cfg.Host == "" || cfg.Password == "" {
		return nil, certerrors.Config("%s: host 与 password 必须配置", key)
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	t := &Target{
		name:   key,
		client: NewClient(cfg.Host, port, cfg.Password, cfg.Hub, cfg.VerifyTLS),
		log:    log.WithField(logger.FieldTarget, key),
	}
	t.log.Info("部署目标已初始化")
	return t, nil
}

// Name 返回目标名称
func (t *Target) Name() string {
	return t.name
}

// Format SoftEther 需要从证书包解出的DER证书与私钥
func (t *Target) Format() provider.Format {
	return provider.FormatBundle
}

// DeployCertificate 调用 SetServerCert
func (t *Target) DeployCertificate(ctx context.Context, domainName string, publicKey, privateKey []byte, _ string) error {
	_, err := t.client.SetServerCert(ctx, &ServerCert{Cert: publicKey, Key: privateKey})
	if err != nil {
		return classify("设置服务器证书失败", err)
	}

	t.log.WithField(logger.FieldDomain, domainName).Info("服务器证书已更新")
	return nil
}

// ServedCertificate 返回服务器当前使用的证书DER，用于部署后校验
func (t *Target) ServedCertificate(ctx context.Context) ([]byte, error) {
	cert, err := t.client.GetServerCert(ctx)
	if err != nil {
		return nil, classify("读取服务器证书失败", err)
	}
	return cert.Cert, nil
}

// classify 网络失败与认证失败归为连接错误，其余归为部署错误
func classify(msg string, err error) error {
	var te *transportError
	if errors.As(err, &te) {
		return certerrors.Connection(msg, err)
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.authFailure() {
		return certerrors.Connection(msg+"：认证失败", err)
	}
	return certerrors.Deploy(msg, err)
}
