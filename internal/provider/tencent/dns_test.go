package tencent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	tcerr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	dnspod "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/dnspod/v20210323"

	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
)

type fakeDNSPod struct {
	records  map[uint64]*dnspod.RecordListItem
	nextID   uint64
	created  int
	modified int
}

func newFakeDNSPod() *fakeDNSPod {
	return &fakeDNSPod{records: map[uint64]*dnspod.RecordListItem{}, nextID: 1000}
}

func (f *fakeDNSPod) DescribeRecordListWithContext(_ context.Context, req *dnspod.DescribeRecordListRequest) (*dnspod.DescribeRecordListResponse, error) {
	var list []*dnspod.RecordListItem
	for _, r := range f.records {
		if *r.Name == *req.Subdomain {
			list = append(list, r)
		}
	}
	if len(list) == 0 {
		return nil, tcerr.NewTencentCloudSDKError("ResourceNotFound.NoDataOfRecord", "记录列表为空", "req-1")
	}
	resp := dnspod.NewDescribeRecordListResponse()
	resp.Response = &dnspod.DescribeRecordListResponseParams{RecordList: list}
	return resp, nil
}

func (f *fakeDNSPod) CreateRecordWithContext(_ context.Context, req *dnspod.CreateRecordRequest) (*dnspod.CreateRecordResponse, error) {
	f.created++
	f.nextID++
	f.records[f.nextID] = &dnspod.RecordListItem{
		RecordId: common.Uint64Ptr(f.nextID),
		Name:     req.SubDomain,
		Type:     req.RecordType,
		Value:    req.Value,
	}
	resp := dnspod.NewCreateRecordResponse()
	resp.Response = &dnspod.CreateRecordResponseParams{RecordId: common.Uint64Ptr(f.nextID)}
	return resp, nil
}

func (f *fakeDNSPod) ModifyRecordWithContext(_ context.Context, req *dnspod.ModifyRecordRequest) (*dnspod.ModifyRecordResponse, error) {
	f.modified++
	f.records[*req.RecordId].Value = req.Value
	resp := dnspod.NewModifyRecordResponse()
	resp.Response = &dnspod.ModifyRecordResponseParams{RecordId: req.RecordId}
	return resp, nil
}

func (f *fakeDNSPod) DeleteRecordWithContext(_ context.Context, req *dnspod.DeleteRecordRequest) (*dnspod.DeleteRecordResponse, error) {
	if _, ok := f.records[*req.RecordId]; !ok {
		return nil, tcerr.NewTencentCloudSDKError("InvalidParameter.RecordIdInvalid", "记录编号错误", "req-2")
	}
	delete(f.records, *req.RecordId)
	resp := dnspod.NewDeleteRecordResponse()
	resp.Response = &dnspod.DeleteRecordResponseParams{}
	return resp, nil
}

func TestAddVerificationRecord(t *testing.T) {
	fake := newFakeDNSPod()
	p := newDNSProvider("DnsProviders:TencentCloud:Jerry", fake, logger.Discard())
	ctx := context.Background()

	id, err := p.AddVerificationRecord(ctx, "www.example.com", "_dnsauth.www.example.com", "v1")
	require.NoError(t, err)
	assert.Equal(t, provider.RecordIDNumeric, id.Kind())
	assert.Equal(t, 1, fake.created)

	// 值相同：返回原ID，不修改
	same, err := p.AddVerificationRecord(ctx, "www.example.com", "_dnsauth.www.example.com", "v1")
	require.NoError(t, err)
	assert.Equal(t, id, same)
	assert.Equal(t, 0, fake.modified)

	// 值不同：原地更新
	updated, err := p.AddVerificationRecord(ctx, "www.example.com", "_dnsauth.www.example.com", "v2")
	require.NoError(t, err)
	assert.Equal(t, id, updated)
	assert.Equal(t, 1, fake.modified)
	assert.Equal(t, 1, fake.created)

	num, _ := id.NumericValue()
	assert.Equal(t, "v2", *fake.records[num].Value)
	assert.Equal(t, "_dnsauth.www", *fake.records[num].Name)
}

func TestRemoveVerificationRecord(t *testing.T) {
	fake := newFakeDNSPod()
	p := newDNSProvider("DnsProviders:TencentCloud:Jerry", fake, logger.Discard())
	ctx := context.Background()

	id, err := p.AddVerificationRecord(ctx, "example.com", "_dnsauth.example.com", "v1")
	require.NoError(t, err)

	require.NoError(t, p.RemoveVerificationRecord(ctx, "example.com", id))
	assert.Empty(t, fake.records)

	err = p.RemoveVerificationRecord(ctx, "example.com", id)
	assert.True(t, certerrors.Is(err, certerrors.ErrNotFound), "got %v", err)
}

func TestRemoveVerificationRecordWrongHandle(t *testing.T) {
	p := newDNSProvider("DnsProviders:TencentCloud:Jerry", newFakeDNSPod(), logger.Discard())

	err := p.RemoveVerificationRecord(context.Background(), "example.com", provider.StringRecordID("abc"))
	assert.True(t, certerrors.Is(err, certerrors.ErrConfig))
}
