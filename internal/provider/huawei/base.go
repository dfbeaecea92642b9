package huawei

import (
	"errors"
	"net/http"

	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/auth/basic"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/sdkerr"

	"certhub/internal/config"
	certerrors "certhub/internal/errors"
)

const defaultRegion = "cn-north-4"

func newCredentials(cfg *config.HuaweiConfig) (*basic.Credentials, string, error) {
	if cfg == nil || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, "", certerrors.Config("华为云凭证不完整")
	}

	builder := basic.NewCredentialsBuilder().
		WithAk(cfg.AccessKey).
		WithSk(cfg.SecretKey)
	if cfg.ProjectID != "" {
		builder = builder.WithProjectId(cfg.ProjectID)
	}

	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	return builder.Build(), region, nil
}

// isNotFound 判断是否为资源不存在的错误
func isNotFound(err error) bool {
	var respErr *sdkerr.ServiceResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
