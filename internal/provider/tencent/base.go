package tencent

import (
	"errors"
	"strings"
	"time"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	tcerr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"

	"certhub/internal/config"
	certerrors "certhub/internal/errors"
)

// 腾讯云接口返回的时间为北京时间
var beijing = time.FixedZone("CST", 8*3600)

const timeLayout = "2006-01-02 15:04:05"

func newClientProfile(endpoint string) *profile.ClientProfile {
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = endpoint
	return cpf
}

func newCredential(cfg *config.TencentConfig) (*common.Credential, error) {
	if cfg == nil || cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, certerrors.Config("腾讯云凭证不完整")
	}
	return common.NewCredential(cfg.SecretID, cfg.SecretKey), nil
}

func parseTime(s *string) time.Time {
	if s == nil || *s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timeLayout, *s, beijing)
	if err != nil {
		return time.Time{}
	}
	return t
}

// sdkCode 取出腾讯云SDK错误码
func sdkCode(err error) string {
	var sdkErr *tcerr.TencentCloudSDKError
	if errors.As(err, &sdkErr) {
		return sdkErr.GetCode()
	}
	return ""
}

func isNotFound(err error) bool {
	code := sdkCode(err)
	return strings.HasPrefix(code, "ResourceNotFound") || code == "InvalidParameter.RecordIdInvalid"
}
