package tencent

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	dnspod "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/dnspod/v20210323"

	"certhub/internal/config"
	"certhub/internal/domain"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
	"certhub/internal/servicekey"
)

const (
	recordTypeTXT = "TXT"
	recordLine    = "默认"
)

// dnspodAPI DNSPod 接口中用到的方法
type dnspodAPI interface {
	DescribeRecordListWithContext(ctx context.Context, request *dnspod.DescribeRecordListRequest) (*dnspod.DescribeRecordListResponse, error)
	CreateRecordWithContext(ctx context.Context, request *dnspod.CreateRecordRequest) (*dnspod.CreateRecordResponse, error)
	ModifyRecordWithContext(ctx context.Context, request *dnspod.ModifyRecordRequest) (*dnspod.ModifyRecordResponse, error)
	DeleteRecordWithContext(ctx context.Context, request *dnspod.DeleteRecordRequest) (*dnspod.DeleteRecordResponse, error)
}

// DNSProvider 腾讯云DNS提供商 (DNSPod)
type DNSProvider struct {
	name   string
	client dnspodAPI
	log    *logrus.Entry
}

// NewDNSProvider 创建腾讯云DNS提供商
func NewDNSProvider(key string, cfg *config.TencentConfig, log *logrus.Entry) (*DNSProvider, error) {
	if _, err := servicekey.Expect(key, servicekey.KindDNSProvider, servicekey.VendorTencent); err != nil {
		return nil, err
	}
	credential, err := newCredential(cfg)
	if err != nil {
		return nil, err
	}

	client, err := dnspod.NewClient(credential, "", newClientProfile("dnspod.tencentcloudapi.com"))
	if err != nil {
		return nil, certerrors.Config("创建腾讯云DNSPod客户端失败: %v", err)
	}

	return newDNSProvider(key, client, log), nil
}

func newDNSProvider(name string, client dnspodAPI, log *logrus.Entry) *DNSProvider {
	return &DNSProvider{
		name:   name,
		client: client,
		log:    log.WithField(logger.FieldProvider, name),
	}
}

// Name 返回提供商名称
func (p *DNSProvider) Name() string {
	return p.name
}

// AddVerificationRecord 添加TXT验证记录
func (p *DNSProvider) AddVerificationRecord(ctx context.Context, domainName, recordName, recordValue string) (provider.RecordID, error) {
	mainDomain := domain.ExtractMainDomain(domainName)
	subDomain := domain.ExtractSubDomain(recordName, mainDomain)
	log := p.log.WithFields(logrus.Fields{logger.FieldDomain: domainName, "record": subDomain})

	existing, err := p.findRecord(ctx, mainDomain, subDomain)
	if err != nil {
		return provider.RecordID{}, err
	}

	if existing != nil {
		id := *existing.RecordId
		if existing.Value != nil && *existing.Value == recordValue {
			log.WithField("record_id", id).Info("记录已存在且值相同")
			return provider.NumericRecordID(id), nil
		}

		request := dnspod.NewModifyRecordRequest()
		request.Domain = common.StringPtr(mainDomain)
		request.RecordId = common.Uint64Ptr(id)
		request.SubDomain = common.StringPtr(subDomain)
		request.RecordType = common.StringPtr(recordTypeTXT)
		request.RecordLine = common.StringPtr(recordLine)
		request.Value = common.StringPtr(recordValue)

		if _, err := p.client.ModifyRecordWithContext(ctx, request); err != nil {
			return provider.RecordID{}, certerrors.Provider("更新DNS记录失败", err)
		}
		log.WithField("record_id", id).Info("记录已更新")
		return provider.NumericRecordID(id), nil
	}

	request := dnspod.NewCreateRecordRequest()
	request.Domain = common.StringPtr(mainDomain)
	request.SubDomain = common.StringPtr(subDomain)
	request.RecordType = common.StringPtr(recordTypeTXT)
	request.RecordLine = common.StringPtr(recordLine)
	request.Value = common.StringPtr(recordValue)

	response, err := p.client.CreateRecordWithContext(ctx, request)
	if err != nil {
		return provider.RecordID{}, certerrors.Provider("添加DNS记录失败", err)
	}
	if response.Response == nil || response.Response.RecordId == nil {
		return provider.RecordID{}, certerrors.Provider("添加DNS记录返回空的记录ID", nil)
	}

	id := *response.Response.RecordId
	log.WithField("record_id", id).Info("记录已添加")
	return provider.NumericRecordID(id), nil
}

// RemoveVerificationRecord 删除验证记录
func (p *DNSProvider) RemoveVerificationRecord(ctx context.Context, domainName string, id provider.RecordID) error {
	recordID, ok := id.NumericValue()
	if !ok {
		return certerrors.Config("DNSPod 记录ID应为数字句柄: %s", id)
	}
	mainDomain := domain.ExtractMainDomain(domainName)

	request := dnspod.NewDeleteRecordRequest()
	request.Domain = common.StringPtr(mainDomain)
	request.RecordId = common.Uint64Ptr(recordID)

	if _, err := p.client.DeleteRecordWithContext(ctx, request); err != nil {
		if isNotFound(err) {
			return certerrors.NotFound("DNS记录 "+id.String()+" 不存在", err)
		}
		return certerrors.Provider("删除DNS记录失败", err)
	}

	p.log.WithFields(logrus.Fields{logger.FieldDomain: domainName, "record_id": recordID}).Info("记录已删除")
	return nil
}

// findRecord 按子域名精确查找TXT记录
func (p *DNSProvider) findRecord(ctx context.Context, mainDomain, subDomain string) (*dnspod.RecordListItem, error) {
	request := dnspod.NewDescribeRecordListRequest()
	request.Domain = common.StringPtr(mainDomain)
	request.Subdomain = common.StringPtr(subDomain)
	request.RecordType = common.StringPtr(recordTypeTXT)

	response, err := p.client.DescribeRecordListWithContext(ctx, request)
	if err != nil {
		// 没有记录时接口返回 ResourceNotFound.NoDataOfRecord
		if isNotFound(err) {
			return nil, nil
		}
		return nil, certerrors.Provider("查询DNS记录失败", err)
	}
	if response.Response == nil {
		return nil, nil
	}

	for _, record := range response.Response.RecordList {
		if record == nil || record.RecordId == nil {
			continue
		}
		if record.Name != nil && *record.Name == subDomain &&
			record.Type != nil && *record.Type == recordTypeTXT {
			return record, nil
		}
	}
	return nil, nil
}
