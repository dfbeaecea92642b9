package core

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	domainpkg "certhub/internal/domain"
	"certhub/internal/target"
)

const verifyTimeout = 15 * time.Second

// servedCertificateReader 能直接读出线上证书的部署目标
type servedCertificateReader interface {
	ServedCertificate(ctx context.Context) ([]byte, error)
}

// Verifier 部署后核对线上证书，结果只记录日志
type Verifier struct {
	now func() time.Time
}

// NewVerifier 创建校验器
func NewVerifier() *Verifier {
	return &Verifier{now: time.Now}
}

// FetchLeaf 通过TLS握手取得 address 上的叶子证书
func (v *Verifier) FetchLeaf(ctx context.Context, address, serverName string) (*x509.Certificate, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: verifyTimeout},
		Config: &tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: true, //nolint:gosec // 只比较证书内容，不做信任链校验
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, fmt.Errorf("未找到证书")
	}
	return certs[0], nil
}

// Check 比较线上叶子证书与刚部署的叶子证书DER
// 配置了 address 时走TLS握手，否则目标支持时直接读取
func (v *Verifier) Check(ctx context.Context, t target.Target, address, domainName string, expected []byte, log *logrus.Entry) {
	var served []byte
	switch reader, ok := t.(servedCertificateReader); {
	case address != "":
		leaf, err := v.FetchLeaf(ctx, address, domainName)
		if err != nil {
			log.WithError(err).WithField("address", address).Warn("无法获取线上证书")
			return
		}
		v.inspect(leaf, domainName, log)
		served = leaf.Raw
	case ok:
		der, err := reader.ServedCertificate(ctx)
		if err != nil {
			log.WithError(err).Warn("无法读取目标当前证书")
			return
		}
		served = der
	default:
		return
	}

	if bytes.Equal(served, expected) {
		log.Info("线上证书与部署证书一致")
		return
	}
	log.Warn("线上证书与部署证书不一致")
}

// inspect 检查线上证书是否覆盖目标域名并记录剩余有效期
func (v *Verifier) inspect(leaf *x509.Certificate, domainName string, log *logrus.Entry) {
	var names []string
	if leaf.Subject.CommonName != "" {
		names = append(names, leaf.Subject.CommonName)
	}
	names = append(names, leaf.DNSNames...)

	if !matchAny(names, domainName) {
		log.WithField("cert_domains", names).Warn("线上证书域名不匹配")
	}

	days := int(leaf.NotAfter.Sub(v.now()).Hours() / 24)
	log.WithFields(logrus.Fields{
		"expires":        leaf.NotAfter.Format("2006-01-02"),
		"days_remaining": days,
	}).Debug("线上证书有效期")
}

func matchAny(certDomains []string, targetDomain string) bool {
	for _, certDomain := range certDomains {
		if domainpkg.MatchDomain(certDomain, targetDomain) {
			return true
		}
	}
	return false
}
