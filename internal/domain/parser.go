package domain

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// Validate 校验域名是否为合法的DNS名称（允许 *. 通配前缀）
func Validate(domain string) error {
	name := strings.TrimPrefix(domain, "*.")
	if name == "" {
		return fmt.Errorf("域名为空")
	}
	if strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	if !strings.Contains(name, ".") {
		return fmt.Errorf("域名缺少顶级域: %s", domain)
	}
	if _, err := idna.Lookup.ToASCII(name); err != nil {
		return fmt.Errorf("非法域名 %s: %w", domain, err)
	}
	return nil
}

// ExtractMainDomain 从完整域名提取可注册主域名
// 例如: www.example.com -> example.com, a.example.com.cn -> example.com.cn
func ExtractMainDomain(domain string) string {
	domain = strings.TrimPrefix(domain, "*.")
	if main, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		return main
	}
	parts := strings.Split(domain, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "." + parts[len(parts)-1]
	}
	return domain
}

// ExtractSubDomain 提取子域名部分（用于DNS记录的RR值）
// 例如: _dnsauth.www.example.com 中提取 _dnsauth.www
func ExtractSubDomain(fullRecord, mainDomain string) string {
	fullRecord = strings.TrimSuffix(fullRecord, ".")
	if fullRecord == mainDomain {
		return "@"
	}
	if strings.HasSuffix(fullRecord, "."+mainDomain) {
		return strings.TrimSuffix(fullRecord, "."+mainDomain)
	}
	return fullRecord
}

// IsSubDomain 检查是否为子域名
func IsSubDomain(domain, mainDomain string) bool {
	return strings.HasSuffix(domain, "."+mainDomain) || domain == mainDomain
}

// MatchDomain 检查证书域名是否覆盖目标域名
// 通配符只匹配一级标签: *.example.com 覆盖 a.example.com，不覆盖 example.com 与 a.b.example.com
func MatchDomain(certDomain, targetDomain string) bool {
	certDomain = strings.ToLower(certDomain)
	targetDomain = strings.ToLower(targetDomain)

	if certDomain == targetDomain {
		return true
	}

	if strings.HasPrefix(certDomain, "*.") {
		suffix := strings.TrimPrefix(certDomain, "*")
		if !strings.HasSuffix(targetDomain, suffix) {
			return false
		}
		label := strings.TrimSuffix(targetDomain, suffix)
		return label != "" && !strings.Contains(label, ".")
	}

	return false
}
