package provider

import (
	"sync"
	"time"

	"certhub/internal/domain"
)

// FindIssued 在已签发证书中查找覆盖域名且在 now+renewBefore 之后才过期的证书
// 只按域名（主域名与备用域名）匹配，不按备注名匹配；多张时取过期最晚的一张
func FindIssued(certs []*CertificateInfo, domainName string, renewBefore time.Duration, now time.Time) *CertificateInfo {
	var best *CertificateInfo
	deadline := now.Add(renewBefore)

	for _, c := range certs {
		if c == nil || !covers(c, domainName) {
			continue
		}
		if !c.NotAfter.After(deadline) {
			continue
		}
		if !c.NotBefore.IsZero() && c.NotBefore.After(now) {
			continue
		}
		if best == nil || c.NotAfter.After(best.NotAfter) {
			best = c
		}
	}

	return best
}

func covers(c *CertificateInfo, domainName string) bool {
	if domain.MatchDomain(c.Domain, domainName) {
		return true
	}
	for _, san := range c.Sans {
		if domain.MatchDomain(san, domainName) {
			return true
		}
	}
	return false
}

// BundleMemo 按证书ID缓存本地生成的证书包，保证重复下载得到相同字节
type BundleMemo struct {
	mu      sync.Mutex
	bundles map[string]*BundleCertificate
}

// NewBundleMemo 创建缓存
func NewBundleMemo() *BundleMemo {
	return &BundleMemo{bundles: make(map[string]*BundleCertificate)}
}

// Get 返回缓存的证书包，没有则调用 build 生成并缓存
func (m *BundleMemo) Get(certID string, build func() (*BundleCertificate, error)) (*BundleCertificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.bundles[certID]; ok {
		return b, nil
	}
	b, err := build()
	if err != nil {
		return nil, err
	}
	m.bundles[certID] = b
	return b, nil
}
