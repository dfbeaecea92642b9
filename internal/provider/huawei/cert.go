package huawei

import (
	"context"
	"strings"
	"time"

	scm "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/scm/v3"
	scmModel "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/scm/v3/model"
	scmRegion "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/scm/v3/region"
	"github.com/sirupsen/logrus"

	"certhub/internal/config"
	"certhub/internal/domain"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
	"certhub/internal/servicekey"
)

const (
	statusIssued  = "ISSUED"
	timeLayout    = "2006-01-02 15:04:05"
	listPageLimit = int32(50)
)

// scmAPI SCM 接口中用到的方法
type scmAPI interface {
	ListCertificates(request *scmModel.ListCertificatesRequest) (*scmModel.ListCertificatesResponse, error)
	ShowCertificate(request *scmModel.ShowCertificateRequest) (*scmModel.ShowCertificateResponse, error)
	ExportCertificate(request *scmModel.ExportCertificateRequest) (*scmModel.ExportCertificateResponse, error)
}

// CertProvider 华为云证书提供商
// SCM 接口无法订购免费证书，只能复用控制台已签发的证书
type CertProvider struct {
	name        string
	client      scmAPI
	renewBefore time.Duration
	bundles     *provider.BundleMemo
	now         func() time.Time
	log         *logrus.Entry
}

// NewCertProvider 创建华为云证书提供商
func NewCertProvider(key string, cfg *config.HuaweiConfig, opts config.CertProviderConfig, log *logrus.Entry) (*CertProvider, error) {
	if _, err := servicekey.Expect(key, servicekey.KindCertProvider, servicekey.VendorHuawei); err != nil {
		return nil, err
	}
	auth, region, err := newCredentials(cfg)
	if err != nil {
		return nil, err
	}

	regionObj, err := scmRegion.SafeValueOf(region)
	if err != nil {
		return nil, certerrors.Config("无效的区域: %s", region)
	}

	hcClient, err := scm.ScmClientBuilder().
		WithRegion(regionObj).
		WithCredential(auth).
		SafeBuild()
	if err != nil {
		return nil, certerrors.Config("创建华为云SCM客户端失败: %v", err)
	}

	p := newCertProvider(key, scm.NewScmClient(hcClient), log)
	p.renewBefore = time.Duration(opts.RenewBeforeDays) * 24 * time.Hour
	p.log.Info("证书提供商已初始化")
	return p, nil
}

func newCertProvider(name string, client scmAPI, log *logrus.Entry) *CertProvider {
	return &CertProvider{
		name:    name,
		client:  client,
		bundles: provider.NewBundleMemo(),
		now:     time.Now,
		log:     log.WithField(logger.FieldProvider, name),
	}
}

// Name 返回提供商名称
func (p *CertProvider) Name() string {
	return p.name
}

// RequestCertificate 返回已签发的有效证书ID；没有时返回错误
func (p *CertProvider) RequestCertificate(ctx context.Context, domainName string, _ provider.RequestOptions) (string, error) {
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
			"expire":           existing.NotAfter.Format(time.DateOnly),
		}).Info("已存在有效证书，直接复用")
		return existing.CertID, nil
	}

	return "", certerrors.Provider("华为云暂不支持通过API申请免费证书，请在控制台手动申请后使用此工具管理", nil)
}

// CheckCertificateStatus 查询证书是否已签发
func (p *CertProvider) CheckCertificateStatus(ctx context.Context, certID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	response, err := p.client.ShowCertificate(&scmModel.ShowCertificateRequest{CertificateId: certID})
	if err != nil {
		return false, certerrors.Provider("获取证书状态失败", err)
	}

	status := ""
	if response.Status != nil {
		status = *response.Status
	}
	p.log.WithFields(logrus.Fields{logger.FieldCertID: certID, "status": status}).Debug("查询证书状态")

	switch status {
	case statusIssued:
		return true, nil
	case "REVOKED", "EXPIRED", "CANCELED", "CANCELCHECKING", "REJECTED":
		return false, certerrors.Provider("证书不可签发，状态: "+status, nil)
	default:
		return false, nil
	}
}

// DownloadSplit 导出证书链与私钥
func (p *CertProvider) DownloadSplit(ctx context.Context, certID string) (*provider.SplitCertificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	response, err := p.client.ExportCertificate(&scmModel.ExportCertificateRequest{CertificateId: certID})
	if err != nil {
		return nil, certerrors.Provider("下载证书失败", err)
	}

	var cert, chain, key string
	if response.Certificate != nil {
		cert = strings.TrimSpace(*response.Certificate)
	}
	if response.CertificateChain != nil {
		chain = strings.TrimSpace(*response.CertificateChain)
	}
	if response.PrivateKey != nil {
		key = *response.PrivateKey
	}

	if cert == "" || strings.TrimSpace(key) == "" {
		return nil, certerrors.Format("证书内容为空", nil)
	}
	// 叶子证书在前，中间证书在后
	if chain != "" {
		cert += "\n" + chain
	}

	p.log.WithField(logger.FieldCertID, certID).Info("证书已下载")
	return &provider.SplitCertificate{PublicKey: []byte(cert + "\n"), PrivateKey: []byte(key)}, nil
}

// DownloadBundle 本地封装为 PKCS#12；同一证书ID重复调用返回相同内容
func (p *CertProvider) DownloadBundle(ctx context.Context, certID string) (*provider.BundleCertificate, error) {
	return p.bundles.Get(certID, func() (*provider.BundleCertificate, error) {
		split, err := p.DownloadSplit(ctx, certID)
		if err != nil {
			return nil, err
		}
		return provider.EncodeBundle(split)
	})
}

// findIssued 按域名查找未过期的已签发证书
func (p *CertProvider) findIssued(ctx context.Context, domainName string) (*provider.CertificateInfo, error) {
	var infos []*provider.CertificateInfo

	for offset := int32(0); ; offset += listPageLimit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		limit, off, status := listPageLimit, offset, statusIssued
		response, err := p.client.ListCertificates(&scmModel.ListCertificatesRequest{
			Limit:  &limit,
			Offset: &off,
			Status: &status,
		})
		if err != nil {
			return nil, certerrors.Provider("获取证书列表失败", err)
		}
		if response.Certificates == nil {
			break
		}

		for _, c := range *response.Certificates {
			if c.Status != statusIssued {
				continue
			}
			info := &provider.CertificateInfo{CertID: c.Id, Domain: c.Domain}
			if c.ExpireTime != "" {
				info.NotAfter, _ = time.ParseInLocation(timeLayout, c.ExpireTime, time.UTC)
			}
			if c.Sans != "" {
				info.Sans = strings.Split(c.Sans, ",")
			}
			infos = append(infos, info)
		}

		if int32(len(*response.Certificates)) < listPageLimit {
			break
		}
	}

	p.log.WithField(logger.FieldDomain, domainName).Debugf("共查询到 %d 个已签发证书", len(infos))
	return provider.FindIssued(infos, domainName, p.renewBefore, p.now()), nil
}
