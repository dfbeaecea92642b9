package tencent

import (
	"archive/zip"
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	ssl "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/ssl/v20191205"

	"certhub/internal/config"
	"certhub/internal/domain"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
	"certhub/internal/servicekey"
)

// 腾讯云证书状态码
const (
	statusReviewing       = 0  // 审核中
	statusIssued          = 1  // 已通过
	statusReviewFailed    = 2  // 审核失败
	statusExpired         = 3  // 已过期
	statusDNSAdding       = 4  // DNS记录添加中
	statusPendingSubmit   = 5  // 企业证书，待提交
	statusCancelling      = 6  // 订单取消中
	statusCancelled       = 7  // 已取消
	statusPendingConfirm  = 8  // 已提交资料，待上传确认函
	statusRevoking        = 9  // 证书吊销中
	statusRevoked         = 10 // 已吊销
	statusReissuing       = 11 // 重颁发中
	statusPendingRevokeUp = 12 // 待上传吊销确认函
)

const listPageSize = 100

// sslAPI 证书接口中用到的方法
type sslAPI interface {
	ApplyCertificateWithContext(ctx context.Context, request *ssl.ApplyCertificateRequest) (*ssl.ApplyCertificateResponse, error)
	DescribeCertificatesWithContext(ctx context.Context, request *ssl.DescribeCertificatesRequest) (*ssl.DescribeCertificatesResponse, error)
	DescribeCertificateDetailWithContext(ctx context.Context, request *ssl.DescribeCertificateDetailRequest) (*ssl.DescribeCertificateDetailResponse, error)
	DownloadCertificateWithContext(ctx context.Context, request *ssl.DownloadCertificateRequest) (*ssl.DownloadCertificateResponse, error)
}

// CertProvider 腾讯云证书提供商
type CertProvider struct {
	name        string
	client      sslAPI
	dnsProvider string
	renewBefore time.Duration
	now         func() time.Time
	log         *logrus.Entry
}

// NewCertProvider 创建腾讯云证书提供商
func NewCertProvider(key string, cfg *config.TencentConfig, opts config.CertProviderConfig, log *logrus.Entry) (*CertProvider, error) {
	if _, err := servicekey.Expect(key, servicekey.KindCertProvider, servicekey.VendorTencent); err != nil {
		return nil, err
	}
	credential, err := newCredential(cfg)
	if err != nil {
		return nil, err
	}

	client, err := ssl.NewClient(credential, cfg.Region, newClientProfile("ssl.tencentcloudapi.com"))
	if err != nil {
		return nil, certerrors.Config("创建腾讯云SSL客户端失败: %v", err)
	}

	p := newCertProvider(key, client, log)
	p.dnsProvider = opts.DNSProvider
	p.renewBefore = time.Duration(opts.RenewBeforeDays) * 24 * time.Hour
	p.log.Info("证书提供商已初始化")
	return p, nil
}

func newCertProvider(name string, client sslAPI, log *logrus.Entry) *CertProvider {
	return &CertProvider{
		name:   name,
		client: client,
		now:    time.Now,
		log:    log.WithField(logger.FieldProvider, name),
	}
}

// Name 返回提供商名称
func (p *CertProvider) Name() string {
	return p.name
}

// RequestCertificate 申请证书；已有有效证书时直接返回其ID
func (p *CertProvider) RequestCertificate(ctx context.Context, domainName string, opts provider.RequestOptions) (string, error) {
	if err := domain.Validate(domainName); err != nil {
		return "", certerrors.Provider("域名校验失败", err)
	}

	existing, err := p.findIssued(ctx, domainName)
	if err != nil {
		return "", err
	}
	if existing != nil {
		p.log.WithFields(logrus.Fields{
			logger.FieldDomain: domainName,
			logger.FieldCertID: existing.CertID,
			"expire":           existing.NotAfter.Format(timeLayout),
		}).Info("已存在有效证书，直接复用")
		return existing.CertID, nil
	}

	if p.dnsProvider != "" {
		return "", certerrors.NotImplemented("DNS验证方式（" + p.dnsProvider + "）尚未实现")
	}

	p.log.WithField(logger.FieldDomain, domainName).Info("开始申请免费SSL证书")

	request := ssl.NewApplyCertificateRequest()
	request.DvAuthMethod = common.StringPtr("DNS_AUTO")
	request.DomainName = common.StringPtr(domainName)
	request.DeleteDnsAutoRecord = common.BoolPtr(true)
	if opts.Alias != "" {
		request.Alias = common.StringPtr(opts.Alias)
	}
	if opts.OldCertificateID != "" {
		request.OldCertificateId = common.StringPtr(opts.OldCertificateID)
	}
	if opts.CSRKeyPassword != "" {
		request.CsrKeyPassword = common.StringPtr(opts.CSRKeyPassword)
	}

	response, err := p.client.ApplyCertificateWithContext(ctx, request)
	if err != nil {
		return "", certerrors.Provider("申请证书失败", err)
	}
	if response.Response == nil || response.Response.CertificateId == nil {
		return "", certerrors.Provider("申请证书返回空的证书ID", nil)
	}

	certID := *response.Response.CertificateId
	p.log.WithFields(logrus.Fields{logger.FieldDomain: domainName, logger.FieldCertID: certID}).Info("证书申请已提交")
	return certID, nil
}

// CheckCertificateStatus 查询证书是否已签发
func (p *CertProvider) CheckCertificateStatus(ctx context.Context, certID string) (bool, error) {
	cert, err := p.describe(ctx, certID)
	if err != nil {
		return false, err
	}

	status := uint64(statusReviewing)
	if cert.Status != nil {
		status = *cert.Status
	}
	p.log.WithFields(logrus.Fields{logger.FieldCertID: certID, "status": status}).Debug("查询证书状态")

	switch status {
	case statusIssued:
		return true, nil
	case statusReviewing, statusDNSAdding, statusPendingSubmit, statusPendingConfirm, statusReissuing:
		return false, nil
	default:
		return false, certerrors.Provider("证书不可签发，状态码 "+strconv.FormatUint(status, 10), nil)
	}
}

// DownloadSplit 下载 Nginx 格式的证书链与私钥
func (p *CertProvider) DownloadSplit(ctx context.Context, certID string) (*provider.SplitCertificate, error) {
	domainName, zr, err := p.download(ctx, certID)
	if err != nil {
		return nil, err
	}

	certEntry, keyEntry := splitEntries(domainName)
	cert, err := readEntry(zr, certEntry)
	if err != nil {
		return nil, err
	}
	key, err := readEntry(zr, keyEntry)
	if err != nil {
		return nil, err
	}

	p.log.WithField(logger.FieldCertID, certID).Info("证书数据已提取")
	return &provider.SplitCertificate{PublicKey: cert, PrivateKey: key}, nil
}

// DownloadBundle 下载 IIS 格式的 pfx 证书包与密码
func (p *CertProvider) DownloadBundle(ctx context.Context, certID string) (*provider.BundleCertificate, error) {
	domainName, zr, err := p.download(ctx, certID)
	if err != nil {
		return nil, err
	}

	pfxEntry, passEntry := bundleEntries(domainName)
	pfx, err := readEntry(zr, pfxEntry)
	if err != nil {
		return nil, err
	}
	password, err := readEntry(zr, passEntry)
	if err != nil {
		return nil, err
	}

	p.log.WithField(logger.FieldCertID, certID).Info("证书数据已提取")
	return &provider.BundleCertificate{Bundle: pfx, Password: trimPassword(password)}, nil
}

// download 查询证书域名并下载压缩包
func (p *CertProvider) download(ctx context.Context, certID string) (string, *zip.Reader, error) {
	cert, err := p.describe(ctx, certID)
	if err != nil {
		return "", nil, err
	}
	if cert.Domain == nil || *cert.Domain == "" {
		return "", nil, certerrors.Provider("证书 "+certID+" 缺少域名", nil)
	}

	request := ssl.NewDownloadCertificateRequest()
	request.CertificateId = common.StringPtr(certID)

	response, err := p.client.DownloadCertificateWithContext(ctx, request)
	if err != nil {
		return "", nil, certerrors.Provider("下载证书失败", err)
	}
	if response.Response == nil || response.Response.Content == nil {
		return "", nil, certerrors.Provider("下载证书返回空内容", nil)
	}

	zr, err := openArchive(*response.Response.Content)
	if err != nil {
		return "", nil, err
	}
	p.log.WithFields(logrus.Fields{logger.FieldCertID: certID, logger.FieldDomain: *cert.Domain}).Info("证书已下载")
	return *cert.Domain, zr, nil
}

// describe 按证书ID查询证书详情
func (p *CertProvider) describe(ctx context.Context, certID string) (*ssl.DescribeCertificateDetailResponseParams, error) {
	request := ssl.NewDescribeCertificateDetailRequest()
	request.CertificateId = common.StringPtr(certID)

	response, err := p.client.DescribeCertificateDetailWithContext(ctx, request)
	if err != nil {
		return nil, certerrors.Provider("查询证书详情失败", err)
	}
	if response.Response == nil || response.Response.CertificateId == nil || *response.Response.CertificateId != certID {
		return nil, certerrors.Provider("证书 "+certID+" 不存在", nil)
	}
	return response.Response, nil
}

// findIssued 按域名查找未过期的已签发证书
func (p *CertProvider) findIssued(ctx context.Context, domainName string) (*provider.CertificateInfo, error) {
	var infos []*provider.CertificateInfo

	for offset := uint64(0); ; offset += listPageSize {
		request := ssl.NewDescribeCertificatesRequest()
		request.CertificateStatus = common.Uint64Ptrs([]uint64{statusIssued})
		request.Offset = common.Uint64Ptr(offset)
		request.Limit = common.Uint64Ptr(listPageSize)

		response, err := p.client.DescribeCertificatesWithContext(ctx, request)
		if err != nil {
			return nil, certerrors.Provider("获取证书列表失败", err)
		}
		if response.Response == nil {
			break
		}

		for _, c := range response.Response.Certificates {
			if info := toInfo(c); info != nil {
				infos = append(infos, info)
			}
		}

		if uint64(len(response.Response.Certificates)) < listPageSize {
			break
		}
	}

	p.log.WithField(logger.FieldDomain, domainName).Debugf("共查询到 %d 个已签发证书", len(infos))
	return provider.FindIssued(infos, domainName, p.renewBefore, p.now()), nil
}

func toInfo(c *ssl.Certificates) *provider.CertificateInfo {
	if c == nil || c.CertificateId == nil {
		return nil
	}
	if c.Status == nil || *c.Status != statusIssued {
		return nil
	}

	info := &provider.CertificateInfo{
		CertID:    *c.CertificateId,
		NotBefore: parseTime(c.CertBeginTime),
		NotAfter:  parseTime(c.CertEndTime),
	}
	if c.Domain != nil {
		info.Domain = *c.Domain
	}
	for _, s := range c.SubjectAltName {
		if s != nil {
			info.Sans = append(info.Sans, *s)
		}
	}
	return info
}
