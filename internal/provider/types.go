package provider

import "time"

// Format 证书交付格式
type Format int

const (
	// FormatSplit 证书链与私钥分别交付（未加密）
	FormatSplit Format = iota
	// FormatBundle 带密码的 PKCS#12 证书包，密码单独交付
	FormatBundle
)

// String 返回格式名称
func (f Format) String() string {
	switch f {
	case FormatSplit:
		return "split"
	case FormatBundle:
		return "bundle"
	default:
		return "unknown"
	}
}

// RequestOptions 申请证书的可选参数
type RequestOptions struct {
	Alias            string // 证书备注名
	CSRKeyPassword   string // 私钥密码
	OldCertificateID string // 被替换的旧证书ID
}

// SplitCertificate 分离格式的证书
type SplitCertificate struct {
	PublicKey  []byte // 证书（链）
	PrivateKey []byte // 私钥
}

// BundleCertificate 证书包格式
type BundleCertificate struct {
	Bundle   []byte // PKCS#12 数据
	Password string // 打开证书包的密码，不包含在 Bundle 中
}

// CertificateInfo 证书信息
type CertificateInfo struct {
	CertID    string    // 证书ID
	Domain    string    // 主域名
	Sans      []string  // 备用域名列表
	NotBefore time.Time // 生效时间
	NotAfter  time.Time // 过期时间
}
