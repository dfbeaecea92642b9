package aliyun

import (
	"strconv"
	"strings"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	"github.com/alibabacloud-go/tea/tea"

	"certhub/internal/config"
	certerrors "certhub/internal/errors"
)

// 证书ID前缀：申请得到的订单ID与已签发证书ID需要走不同的接口
const (
	prefixOrder = "order:"
	prefixCert  = "cert:"
)

func newOpenAPIConfig(cfg *config.AliyunConfig, endpoint string) (*openapi.Config, error) {
	if cfg == nil || cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" {
		return nil, certerrors.Config("阿里云凭证不完整")
	}
	return &openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
		Endpoint:        tea.String(endpoint),
	}, nil
}

func orderCertID(orderID int64) string {
	return prefixOrder + strconv.FormatInt(orderID, 10)
}

func issuedCertID(certID int64) string {
	return prefixCert + strconv.FormatInt(certID, 10)
}

// parseCertID 拆分带前缀的证书ID
func parseCertID(id string) (prefix string, num int64, err error) {
	for _, p := range []string{prefixOrder, prefixCert} {
		if rest, ok := strings.CutPrefix(id, p); ok {
			n, perr := strconv.ParseInt(rest, 10, 64)
			if perr != nil {
				break
			}
			return p, n, nil
		}
	}
	return "", 0, certerrors.Provider("无法识别的阿里云证书ID: "+id, nil)
}
