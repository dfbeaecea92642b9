package huawei

import (
	"context"
	"strings"

	dns "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2"
	dnsModel "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2/model"
	dnsRegion "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2/region"
	"github.com/sirupsen/logrus"

	"certhub/internal/config"
	"certhub/internal/domain"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
	"certhub/internal/servicekey"
)

const recordTypeTXT = "TXT"

// dnsAPI 云解析接口中用到的方法
type dnsAPI interface {
	ListPublicZones(request *dnsModel.ListPublicZonesRequest) (*dnsModel.ListPublicZonesResponse, error)
	ListRecordSetsByZone(request *dnsModel.ListRecordSetsByZoneRequest) (*dnsModel.ListRecordSetsByZoneResponse, error)
	CreateRecordSet(request *dnsModel.CreateRecordSetRequest) (*dnsModel.CreateRecordSetResponse, error)
	UpdateRecordSet(request *dnsModel.UpdateRecordSetRequest) (*dnsModel.UpdateRecordSetResponse, error)
	DeleteRecordSet(request *dnsModel.DeleteRecordSetRequest) (*dnsModel.DeleteRecordSetResponse, error)
}

// DNSProvider 华为云DNS提供商
type DNSProvider struct {
	name   string
	client dnsAPI
	log    *logrus.Entry
}

// NewDNSProvider 创建华为云DNS提供商
func NewDNSProvider(key string, cfg *config.HuaweiConfig, log *logrus.Entry) (*DNSProvider, error) {
	if _, err := servicekey.Expect(key, servicekey.KindDNSProvider, servicekey.VendorHuawei); err != nil {
		return nil, err
	}
	auth, region, err := newCredentials(cfg)
	if err != nil {
		return nil, err
	}

	regionObj, err := dnsRegion.SafeValueOf(region)
	if err != nil {
		return nil, certerrors.Config("无效的区域: %s", region)
	}

	hcClient, err := dns.DnsClientBuilder().
		WithRegion(regionObj).
		WithCredential(auth).
		SafeBuild()
	if err != nil {
		return nil, certerrors.Config("创建华为云DNS客户端失败: %v", err)
	}

	return newDNSProvider(key, dns.NewDnsClient(hcClient), log), nil
}

func newDNSProvider(name string, client dnsAPI, log *logrus.Entry) *DNSProvider {
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

	zoneID, err := p.zoneID(domainName)
	if err != nil {
		return provider.RecordID{}, err
	}

	fqdn := fullName(recordName, domainName)
	value := quoteTXT(recordValue)
	log := p.log.WithFields(logrus.Fields{logger.FieldDomain: domainName, "record": fqdn})

	existing, err := p.findRecord(zoneID, fqdn)
	if err != nil {
		return provider.RecordID{}, err
	}

	if existing != nil {
		id := *existing.Id
		if existing.Records != nil && len(*existing.Records) == 1 && (*existing.Records)[0] == value {
			log.WithField("record_id", id).Info("记录已存在且值相同")
			return provider.StringRecordID(id), nil
		}

		recordType := recordTypeTXT
		_, err := p.client.UpdateRecordSet(&dnsModel.UpdateRecordSetRequest{
			ZoneId:      zoneID,
			RecordsetId: id,
			Body: &dnsModel.UpdateRecordSetReq{
				Name:    &fqdn,
				Type:    &recordType,
				Records: &[]string{value},
			},
		})
		if err != nil {
			return provider.RecordID{}, certerrors.Provider("更新DNS记录失败", err)
		}
		log.WithField("record_id", id).Info("记录已更新")
		return provider.StringRecordID(id), nil
	}

	response, err := p.client.CreateRecordSet(&dnsModel.CreateRecordSetRequest{
		ZoneId: zoneID,
		Body: &dnsModel.CreateRecordSetRequestBody{
			Name:    fqdn,
			Type:    recordTypeTXT,
			Records: []string{value},
		},
	})
	if err != nil {
		return provider.RecordID{}, certerrors.Provider("添加DNS记录失败", err)
	}
	if response.Id == nil || *response.Id == "" {
		return provider.RecordID{}, certerrors.Provider("添加DNS记录返回空的记录ID", nil)
	}

	log.WithField("record_id", *response.Id).Info("记录已添加")
	return provider.StringRecordID(*response.Id), nil
}

// RemoveVerificationRecord 删除验证记录
func (p *DNSProvider) RemoveVerificationRecord(ctx context.Context, domainName string, id provider.RecordID) error {
	recordID, ok := id.StringValue()
	if !ok {
		return certerrors.Config("华为云DNS记录ID应为字符串句柄: %s", id)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	zoneID, err := p.zoneID(domainName)
	if err != nil {
		return err
	}

	_, err = p.client.DeleteRecordSet(&dnsModel.DeleteRecordSetRequest{
		ZoneId:      zoneID,
		RecordsetId: recordID,
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

// zoneID 获取域名所在公网Zone的ID
func (p *DNSProvider) zoneID(domainName string) (string, error) {
	mainDomain := domain.ExtractMainDomain(domainName)

	response, err := p.client.ListPublicZones(&dnsModel.ListPublicZonesRequest{})
	if err != nil {
		return "", certerrors.Provider("获取Zone列表失败", err)
	}

	if response.Zones != nil {
		for _, zone := range *response.Zones {
			if zone.Name != nil && zone.Id != nil && strings.TrimSuffix(*zone.Name, ".") == mainDomain {
				return *zone.Id, nil
			}
		}
	}
	return "", certerrors.Provider("未找到域名 "+mainDomain+" 的Zone", nil)
}

func (p *DNSProvider) findRecord(zoneID, fqdn string) (*dnsModel.ListRecordSets, error) {
	recordType := recordTypeTXT
	response, err := p.client.ListRecordSetsByZone(&dnsModel.ListRecordSetsByZoneRequest{
		ZoneId: zoneID,
		Name:   &fqdn,
		Type:   &recordType,
	})
	if err != nil {
		return nil, certerrors.Provider("查询DNS记录失败", err)
	}

	if response.Recordsets != nil {
		for _, rs := range *response.Recordsets {
			if rs.Id != nil && rs.Name != nil && *rs.Name == fqdn &&
				rs.Type != nil && *rs.Type == recordTypeTXT {
				return &rs, nil
			}
		}
	}
	return nil, nil
}

// fullName 返回以点结尾的完整记录名
func fullName(recordName, domainName string) string {
	mainDomain := domain.ExtractMainDomain(domainName)
	name := strings.TrimSuffix(recordName, ".")
	if !domain.IsSubDomain(name, mainDomain) {
		name += "." + mainDomain
	}
	return name + "."
}

// 华为云TXT记录值需要带双引号
func quoteTXT(v string) string {
	if strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		return v
	}
	return `"` + v + `"`
}
