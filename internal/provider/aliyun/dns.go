package aliyun

import (
	"context"
	"errors"
	"fmt"

	alidns "github.com/alibabacloud-go/alidns-20150109/v4/client"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/sirupsen/logrus"

	"certhub/internal/config"
	"certhub/internal/domain"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
	"certhub/internal/servicekey"
)

const recordTypeTXT = "TXT"

// alidnsAPI 云解析接口中用到的方法
type alidnsAPI interface {
	AddDomainRecord(request *alidns.AddDomainRecordRequest) (*alidns.AddDomainRecordResponse, error)
	UpdateDomainRecord(request *alidns.UpdateDomainRecordRequest) (*alidns.UpdateDomainRecordResponse, error)
	DeleteDomainRecord(request *alidns.DeleteDomainRecordRequest) (*alidns.DeleteDomainRecordResponse, error)
	DescribeDomainRecords(request *alidns.DescribeDomainRecordsRequest) (*alidns.DescribeDomainRecordsResponse, error)
}

// DNSProvider 阿里云DNS提供商
type DNSProvider struct {
	name   string
	client alidnsAPI
	log    *logrus.Entry
}

// NewDNSProvider 创建阿里云DNS提供商
func NewDNSProvider(key string, cfg *config.AliyunConfig, log *logrus.Entry) (*DNSProvider, error) {
	if _, err := servicekey.Expect(key, servicekey.KindDNSProvider, servicekey.VendorAliyun); err != nil {
		return nil, err
	}

	endpoint := "alidns.cn-hangzhou.aliyuncs.com"
	if cfg != nil && cfg.Region != "" {
		endpoint = fmt.Sprintf("alidns.%s.aliyuncs.com", cfg.Region)
	}
	clientConfig, err := newOpenAPIConfig(cfg, endpoint)
	if err != nil {
		return nil, err
	}

	client, err := alidns.NewClient(clientConfig)
	if err != nil {
		return nil, certerrors.Config("创建阿里云DNS客户端失败: %v", err)
	}

	return newDNSProvider(key, client, log), nil
}

func newDNSProvider(name string, client alidnsAPI, log *logrus.Entry) *DNSProvider {
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
	if err := ctx.Err(); err != nil {
		return provider.RecordID{}, err
	}
	mainDomain := domain.ExtractMainDomain(domainName)
	rr := domain.ExtractSubDomain(recordName, mainDomain)
	log := p.log.WithFields(logrus.Fields{logger.FieldDomain: domainName, "record": rr})

	existing, err := p.findRecord(mainDomain, rr)
	if err != nil {
		return provider.RecordID{}, err
	}

	if existing != nil {
		id := tea.StringValue(existing.RecordId)
		if tea.StringValue(existing.Value) == recordValue {
			log.WithField("record_id", id).Info("记录已存在且值相同")
			return provider.StringRecordID(id), nil
		}

		_, err := p.client.UpdateDomainRecord(&alidns.UpdateDomainRecordRequest{
			RecordId: tea.String(id),
			RR:       tea.String(rr),
			Type:     tea.String(recordTypeTXT),
			Value:    tea.String(recordValue),
		})
		if err != nil {
			return provider.RecordID{}, certerrors.Provider("更新DNS记录失败", err)
		}
		log.WithField("record_id", id).Info("记录已更新")
		return provider.StringRecordID(id), nil
	}

	response, err := p.client.AddDomainRecord(&alidns.AddDomainRecordRequest{
		DomainName: tea.String(mainDomain),
		RR:         tea.String(rr),
		Type:       tea.String(recordTypeTXT),
		Value:      tea.String(recordValue),
	})
	if err != nil {
		return provider.RecordID{}, certerrors.Provider("添加DNS记录失败", err)
	}
	if response.Body == nil || tea.StringValue(response.Body.RecordId) == "" {
		return provider.RecordID{}, certerrors.Provider("添加DNS记录返回空的记录ID", nil)
	}

	id := tea.StringValue(response.Body.RecordId)
	log.WithField("record_id", id).Info("记录已添加")
	return provider.StringRecordID(id), nil
}

// RemoveVerificationRecord 删除验证记录
func (p *DNSProvider) RemoveVerificationRecord(ctx context.Context, domainName string, id provider.RecordID) error {
	recordID, ok := id.StringValue()
	if !ok {
		return certerrors.Config("阿里云DNS记录ID应为字符串句柄: %s", id)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.client.DeleteDomainRecord(&alidns.DeleteDomainRecordRequest{
		RecordId: tea.String(recordID),
	})
	if err != nil {
		if isNotFound(err) {
			return certerrors.NotFound("DNS记录 "+recordID+" 不存在", err)
		}
		return certerrors.Provider("删除DNS记录失败", err)
	}

	p.log.WithFields(logrus.Fields{logger.FieldDomain: domainName, "record_id": recordID}).Info("记录已删除")
	return nil
}

// findRecord 按主机记录精确查找TXT记录
func (p *DNSProvider) findRecord(mainDomain, rr string) (*alidns.DescribeDomainRecordsResponseBodyDomainRecordsRecord, error) {
	response, err := p.client.DescribeDomainRecords(&alidns.DescribeDomainRecordsRequest{
		DomainName: tea.String(mainDomain),
		RRKeyWord:  tea.String(rr),
		Type:       tea.String(recordTypeTXT),
	})
	if err != nil {
		return nil, certerrors.Provider("查询DNS记录失败", err)
	}

	if response.Body != nil && response.Body.DomainRecords != nil {
		for _, record := range response.Body.DomainRecords.Record {
			// RRKeyWord 是模糊匹配
			if tea.StringValue(record.RR) == rr && tea.StringValue(record.Type) == recordTypeTXT {
				return record, nil
			}
		}
	}
	return nil, nil
}

// isNotFound 判断是否为记录不存在的错误
func isNotFound(err error) bool {
	var sdkErr *tea.SDKError
	if !errors.As(err, &sdkErr) {
		return false
	}
	switch tea.StringValue(sdkErr.Code) {
	case "DomainRecordNotBelongToUser", "InvalidRR.NoExist", "InvalidRecordId.NotFound":
		return true
	}
	return false
}
