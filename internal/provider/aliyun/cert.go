package aliyun

import (
	"context"
	"strings"
	"time"

	cas "github.com/alibabacloud-go/cas-20200407/v3/client"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/sirupsen/logrus"

	"certhub/internal/config"
	"certhub/internal/domain"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
	"certhub/internal/servicekey"
)

const (
	defaultProductCode = "digicert-free-1-free"
	listPageSize       = 50
)

// casAPI 证书服务接口中用到的方法
type casAPI interface {
	CreateCertificateForPackageRequest(request *cas.CreateCertificateForPackageRequestRequest) (*cas.CreateCertificateForPackageRequestResponse, error)
	DescribeCertificateState(request *cas.DescribeCertificateStateRequest) (*cas.DescribeCertificateStateResponse, error)
	ListUserCertificateOrder(request *cas.ListUserCertificateOrderRequest) (*cas.ListUserCertificateOrderResponse, error)
	GetUserCertificateDetail(request *cas.GetUserCertificateDetailRequest) (*cas.GetUserCertificateDetailResponse, error)
}

// CertProvider 阿里云证书提供商
type CertProvider struct {
	name        string
	client      casAPI
	productCode string
	dnsProvider string
	renewBefore time.Duration
	bundles     *provider.BundleMemo
	now         func() time.Time
	log         *logrus.Entry
}

// NewCertProvider 创建阿里云证书提供商
func NewCertProvider(key string, cfg *config.AliyunConfig, opts config.CertProviderConfig, log *logrus.Entry) (*CertProvider, error) {
	if _, err := servicekey.Expect(key, servicekey.KindCertProvider, servicekey.VendorAliyun); err != nil {
		return nil, err
	}
	clientConfig, err := newOpenAPIConfig(cfg, "cas.aliyuncs.com")
	if err != nil {
		return nil, err
	}

	client, err := cas.NewClient(clientConfig)
	if err != nil {
		return nil, certerrors.Config("创建阿里云CAS客户端失败: %v", err)
	}

	p := newCertProvider(key, client, log)
	if opts.ProductCode != "" {
		p.productCode = opts.ProductCode
	}
	p.dnsProvider = opts.DNSProvider
	p.renewBefore = time.Duration(opts.RenewBeforeDays) * 24 * time.Hour
	p.log.Info("证书提供商已初始化")
	return p, nil
}

func newCertProvider(name string, client casAPI, log *logrus.Entry) *CertProvider {
	return &CertProvider{
		name:        name,
		client:      client,
		productCode: defaultProductCode,
		bundles:     provider.NewBundleMemo(),
		now:         time.Now,
		log:         log.WithField(logger.FieldProvider, name),
	}
}

// Name 返回提供商名称
func (p *CertProvider) Name() string {
	return p.name
}

// RequestCertificate 申请证书；已有有效证书时返回 cert:<id>，否则创建订单并返回 order:<id>
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
			"expire":           existing.NotAfter.Format(time.DateOnly),
		}).Info("已存在有效证书，直接复用")
		return existing.CertID, nil
	}

	if p.dnsProvider != "" {
		return "", certerrors.NotImplemented("DNS验证方式（" + p.dnsProvider + "）尚未实现")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.log.WithField(logger.FieldDomain, domainName).Info("开始申请免费SSL证书")

	request := &cas.CreateCertificateForPackageRequestRequest{
		Domain:       tea.String(domainName),
		ValidateType: tea.String("DNS"),
		ProductCode:  tea.String(p.productCode),
	}

	response, err := p.client.CreateCertificateForPackageRequest(request)
	if err != nil {
		return "", certerrors.Provider("创建证书订单失败", err)
	}
	if response.Body == nil || response.Body.OrderId == nil {
		return "", certerrors.Provider("创建证书订单返回空的订单ID", nil)
	}

	certID := orderCertID(tea.Int64Value(response.Body.OrderId))
	p.log.WithFields(logrus.Fields{logger.FieldDomain: domainName, logger.FieldCertID: certID}).Info("证书订单创建成功")
	return certID, nil
}

// CheckCertificateStatus 查询证书是否已签发
func (p *CertProvider) CheckCertificateStatus(ctx context.Context, certID string) (bool, error) {
	prefix, id, err := parseCertID(certID)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if prefix == prefixCert {
		// 证书ID只来自已签发列表，能查到详情即视为已签发
		if _, err := p.detail(id); err != nil {
			return false, err
		}
		return true, nil
	}

	state, err := p.state(id)
	if err != nil {
		return false, err
	}

	stateType := tea.StringValue(state.Type)
	p.log.WithFields(logrus.Fields{logger.FieldCertID: certID, "status": stateType}).Debug("查询证书状态")

	switch stateType {
	case "certificate":
		return true, nil
	case "verify_fail":
		return false, certerrors.Provider("证书审核失败", nil)
	default:
		return false, nil
	}
}

// DownloadSplit 下载PEM格式的证书链与私钥
func (p *CertProvider) DownloadSplit(ctx context.Context, certID string) (*provider.SplitCertificate, error) {
	prefix, id, err := parseCertID(certID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cert, key string
	if prefix == prefixCert {
		detail, err := p.detail(id)
		if err != nil {
			return nil, err
		}
		cert, key = tea.StringValue(detail.Cert), tea.StringValue(detail.Key)
	} else {
		state, err := p.state(id)
		if err != nil {
			return nil, err
		}
		if stateType := tea.StringValue(state.Type); stateType != "certificate" {
			return nil, certerrors.Provider("证书尚未签发，当前状态: "+stateType, nil)
		}
		cert, key = tea.StringValue(state.Certificate), tea.StringValue(state.PrivateKey)
	}

	if strings.TrimSpace(cert) == "" || strings.TrimSpace(key) == "" {
		return nil, certerrors.Format("证书内容为空", nil)
	}

	p.log.WithField(logger.FieldCertID, certID).Info("证书已下载")
	return &provider.SplitCertificate{PublicKey: []byte(cert), PrivateKey: []byte(key)}, nil
}

// DownloadBundle 阿里云只提供PEM，本地封装为 PKCS#12；同一证书ID重复调用返回相同内容
func (p *CertProvider) DownloadBundle(ctx context.Context, certID string) (*provider.BundleCertificate, error) {
	return p.bundles.Get(certID, func() (*provider.BundleCertificate, error) {
		split, err := p.DownloadSplit(ctx, certID)
		if err != nil {
			return nil, err
		}
		return provider.EncodeBundle(split)
	})
}

func (p *CertProvider) state(orderID int64) (*cas.DescribeCertificateStateResponseBody, error) {
	response, err := p.client.DescribeCertificateState(&cas.DescribeCertificateStateRequest{
		OrderId: tea.Int64(orderID),
	})
	if err != nil {
		return nil, certerrors.Provider("获取证书状态失败", err)
	}
	if response.Body == nil {
		return nil, certerrors.Provider("获取证书状态返回空内容", nil)
	}
	return response.Body, nil
}

func (p *CertProvider) detail(certID int64) (*cas.GetUserCertificateDetailResponseBody, error) {
	response, err := p.client.GetUserCertificateDetail(&cas.GetUserCertificateDetailRequest{
		CertId: tea.Int64(certID),
	})
	if err != nil {
		return nil, certerrors.Provider("获取证书详情失败", err)
	}
	if response.Body == nil {
		return nil, certerrors.Provider("获取证书详情返回空内容", nil)
	}
	return response.Body, nil
}

// findIssued 按域名查找未过期的已签发证书
func (p *CertProvider) findIssued(ctx context.Context, domainName string) (*provider.CertificateInfo, error) {
	var infos []*provider.CertificateInfo

	for page := int64(1); ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		response, err := p.client.ListUserCertificateOrder(&cas.ListUserCertificateOrderRequest{
			OrderType:   tea.String("CERT"),
			Status:      tea.String("ISSUED"),
			CurrentPage: tea.Int64(page),
			ShowSize:    tea.Int64(listPageSize),
		})
		if err != nil {
			return nil, certerrors.Provider("获取证书列表失败", err)
		}
		if response.Body == nil {
			break
		}

		for _, c := range response.Body.CertificateOrderList {
			if c == nil || c.CertificateId == nil {
				continue
			}
			info := &provider.CertificateInfo{
				CertID: issuedCertID(tea.Int64Value(c.CertificateId)),
				Domain: tea.StringValue(c.CommonName),
			}
			if info.Domain == "" {
				info.Domain = tea.StringValue(c.Domain)
			}
			if start := tea.Int64Value(c.CertStartTime); start > 0 {
				info.NotBefore = time.UnixMilli(start)
			}
			if end := tea.Int64Value(c.CertEndTime); end > 0 {
				info.NotAfter = time.UnixMilli(end)
			}
			if sans := tea.StringValue(c.Sans); sans != "" {
				info.Sans = strings.Split(sans, ",")
			}
			infos = append(infos, info)
		}

		if len(response.Body.CertificateOrderList) < listPageSize {
			break
		}
	}

	p.log.WithField(logger.FieldDomain, domainName).Debugf("共查询到 %d 个已签发证书", len(infos))
	return provider.FindIssued(infos, domainName, p.renewBefore, p.now()), nil
}
