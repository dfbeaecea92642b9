package provider

import "context"

// CertProvider 证书提供商接口，对应一个证书颁发机构账户
type CertProvider interface {
	// Name 返回注册键
	Name() string

	// RequestCertificate 申请证书，返回证书ID
	// 若该域名已有未过期的已签发证书，直接返回其ID而不重新申请
	RequestCertificate(ctx context.Context, domain string, opts RequestOptions) (certID string, err error)

	// CheckCertificateStatus 单次查询证书是否已签发，不做内部等待或重试
	// 尚未签发返回 false；查询失败或已被拒绝返回错误
	CheckCertificateStatus(ctx context.Context, certID string) (issued bool, err error)

	// DownloadSplit 下载证书链与私钥（分离格式），仅在已签发后调用
	DownloadSplit(ctx context.Context, certID string) (*SplitCertificate, error)

	// DownloadBundle 下载带密码保护的证书包及其密码，仅在已签发后调用
	DownloadBundle(ctx context.Context, certID string) (*BundleCertificate, error)
}

// Download 按格式下载证书
func Download(ctx context.Context, p CertProvider, certID string, format Format) (*SplitCertificate, *BundleCertificate, error) {
	switch format {
	case FormatBundle:
		bundle, err := p.DownloadBundle(ctx, certID)
		return nil, bundle, err
	default:
		split, err := p.DownloadSplit(ctx, certID)
		return split, nil, err
	}
}
