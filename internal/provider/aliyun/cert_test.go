package aliyun

import (
	"context"
	"testing"
	"time"

	cas "github.com/alibabacloud-go/cas-20200407/v3/client"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
	"certhub/internal/testutil"
)

type fakeCAS struct {
	orders    []*cas.ListUserCertificateOrderResponseBodyCertificateOrderList
	stateType string
	cert      string
	key       string
	created   []*cas.CreateCertificateForPackageRequestRequest
	detailErr error
}

func (f *fakeCAS) CreateCertificateForPackageRequest(req *cas.CreateCertificateForPackageRequestRequest) (*cas.CreateCertificateForPackageRequestResponse, error) {
	f.created = append(f.created, req)
	return &cas.CreateCertificateForPackageRequestResponse{
		Body: &cas.CreateCertificateForPackageRequestResponseBody{OrderId: tea.Int64(777)},
	}, nil
}

func (f *fakeCAS) DescribeCertificateState(*cas.DescribeCertificateStateRequest) (*cas.DescribeCertificateStateResponse, error) {
	return &cas.DescribeCertificateStateResponse{
		Body: &cas.DescribeCertificateStateResponseBody{
			Type:        tea.String(f.stateType),
			Certificate: tea.String(f.cert),
			PrivateKey:  tea.String(f.key),
		},
	}, nil
}

func (f *fakeCAS) ListUserCertificateOrder(*cas.ListUserCertificateOrderRequest) (*cas.ListUserCertificateOrderResponse, error) {
	return &cas.ListUserCertificateOrderResponse{
		Body: &cas.ListUserCertificateOrderResponseBody{CertificateOrderList: f.orders},
	}, nil
}

func (f *fakeCAS) GetUserCertificateDetail(*cas.GetUserCertificateDetailRequest) (*cas.GetUserCertificateDetailResponse, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return &cas.GetUserCertificateDetailResponse{
		Body: &cas.GetUserCertificateDetailResponseBody{Cert: tea.String(f.cert), Key: tea.String(f.key)},
	}, nil
}

func newTestProvider(client casAPI) *CertProvider {
	p := newCertProvider("CertProviders:AliyunCloud:Main", client, logger.Discard())
	p.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestRequestCertificateReusesIssued(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeCAS{
		orders: []*cas.ListUserCertificateOrderResponseBodyCertificateOrderList{
			{
				CertificateId: tea.Int64(42),
				CommonName:    tea.String("*.example.com"),
				CertStartTime: tea.Int64(now.Add(-24 * time.Hour).UnixMilli()),
				CertEndTime:   tea.Int64(now.Add(60 * 24 * time.Hour).UnixMilli()),
			},
		},
	}
	p := newTestProvider(fake)

	id, err := p.RequestCertificate(context.Background(), "shanghai.example.com", provider.RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cert:42", id)
	assert.Empty(t, fake.created)

	issued, err := p.CheckCertificateStatus(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, issued)
}

func TestRequestCertificateCreatesOrder(t *testing.T) {
	fake := &fakeCAS{}
	p := newTestProvider(fake)
	p.productCode = "custom-code"

	id, err := p.RequestCertificate(context.Background(), "www.example.com", provider.RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, "order:777", id)

	require.Len(t, fake.created, 1)
	assert.Equal(t, "DNS", tea.StringValue(fake.created[0].ValidateType))
	assert.Equal(t, "custom-code", tea.StringValue(fake.created[0].ProductCode))
}

func TestRequestCertificateDNSPathNotImplemented(t *testing.T) {
	fake := &fakeCAS{}
	p := newTestProvider(fake)
	p.dnsProvider = "DnsProviders:AliyunCloud:Main"

	_, err := p.RequestCertificate(context.Background(), "www.example.com", provider.RequestOptions{})
	assert.True(t, certerrors.Is(err, certerrors.ErrNotImplemented))
	assert.Empty(t, fake.created)
}

func TestCheckCertificateStatus(t *testing.T) {
	tests := []struct {
		stateType string
		issued    bool
		wantErr   bool
	}{
		{"domain_verify", false, false},
		{"process", false, false},
		{"payed", false, false},
		{"certificate", true, false},
		{"verify_fail", false, true},
	}

	for _, tt := range tests {
		p := newTestProvider(&fakeCAS{stateType: tt.stateType})

		issued, err := p.CheckCertificateStatus(context.Background(), "order:777")
		if tt.wantErr {
			assert.True(t, certerrors.Is(err, certerrors.ErrProvider), tt.stateType)
			continue
		}
		require.NoError(t, err, tt.stateType)
		assert.Equal(t, tt.issued, issued, tt.stateType)
	}
}

func TestCheckCertificateStatusBadID(t *testing.T) {
	p := newTestProvider(&fakeCAS{})

	_, err := p.CheckCertificateStatus(context.Background(), "777")
	assert.True(t, certerrors.Is(err, certerrors.ErrProvider))

	_, err = p.CheckCertificateStatus(context.Background(), "order:abc")
	assert.True(t, certerrors.Is(err, certerrors.ErrProvider))
}

func TestDownloadBundleIsMemoised(t *testing.T) {
	issued := testutil.SelfSignedECDSA(t, "www.example.com")
	p := newTestProvider(&fakeCAS{stateType: "certificate", cert: string(issued.CertPEM), key: string(issued.KeyPEM)})
	ctx := context.Background()

	split, err := p.DownloadSplit(ctx, "order:777")
	require.NoError(t, err)
	assert.Equal(t, issued.CertPEM, split.PublicKey)

	first, err := p.DownloadBundle(ctx, "order:777")
	require.NoError(t, err)
	second, err := p.DownloadBundle(ctx, "order:777")
	require.NoError(t, err)
	assert.Equal(t, first.Bundle, second.Bundle)
	assert.Equal(t, first.Password, second.Password)
	assert.NotEmpty(t, first.Password)

	decoded, err := provider.DecodeBundle(first)
	require.NoError(t, err)
	assert.Equal(t, issued.Cert.Raw, decoded.PublicKey)
}

func TestDownloadSplitNotIssued(t *testing.T) {
	p := newTestProvider(&fakeCAS{stateType: "process"})

	_, err := p.DownloadSplit(context.Background(), "order:777")
	assert.True(t, certerrors.Is(err, certerrors.ErrProvider))
}

func TestDownloadSplitEmptyContent(t *testing.T) {
	p := newTestProvider(&fakeCAS{})

	_, err := p.DownloadSplit(context.Background(), "cert:42")
	assert.True(t, certerrors.Is(err, certerrors.ErrFormat))
}
