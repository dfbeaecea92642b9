// Package servicekey 解析形如 Kind:Vendor:Name 的注册键
//
// 证书提供商、DNS提供商与部署目标都通过注册键选择实现，例如
// CertProviders:TencentCloud:Jerry、Targets:SSH:ITV-WWW。
package servicekey

import (
	"strings"

	certerrors "certhub/internal/errors"
)

// 注册键的第一段
const (
	KindCertProvider = "CertProviders"
	KindDNSProvider  = "DnsProviders"
	KindTarget       = "Targets"
)

// 第二段：云厂商或目标类型
const (
	VendorTencent   = "TencentCloud"
	VendorAliyun    = "AliyunCloud"
	VendorHuawei    = "HuaweiCloud"
	VendorSSH       = "SSH"
	VendorSoftEther = "SoftEther"
	VendorLocal     = "Local"
)

// Key 已解析的注册键
type Key struct {
	Kind   string
	Vendor string
	Name   string
}

// String 还原为注册键字符串
func (k Key) String() string {
	return k.Kind + ":" + k.Vendor + ":" + k.Name
}

// Account 返回凭证所在的账户键（Vendor:Name）
func (k Key) Account() string {
	return k.Vendor + ":" + k.Name
}

// Parse 解析注册键，要求恰好三段且均非空
func Parse(raw string) (Key, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return Key{}, certerrors.Config("注册键格式错误，应为 Kind:Vendor:Name: %q", raw)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return Key{}, certerrors.Config("注册键包含空段: %q", raw)
		}
	}
	return Key{Kind: parts[0], Vendor: parts[1], Name: parts[2]}, nil
}

// Expect 解析注册键并校验前两段
func Expect(raw, kind, vendor string) (Key, error) {
	k, err := Parse(raw)
	if err != nil {
		return Key{}, err
	}
	if k.Kind != kind || k.Vendor != vendor {
		return Key{}, certerrors.Config("注册键 %q 不是 %s:%s 类型", raw, kind, vendor)
	}
	return k, nil
}
