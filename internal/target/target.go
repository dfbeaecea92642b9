// Package target 定义证书部署目标
package target

import (
	"context"

	"certhub/internal/provider"
)

// Target 部署目标接口
//
// 每次部署自行建立并关闭连接，不在两次部署之间保留状态。
type Target interface {
	// Name 返回注册键
	Name() string

	// Format 目标需要的证书格式
	Format() provider.Format

	// DeployCertificate 部署证书
	// publicKey 与 privateKey 的编码取决于 Format：分离格式下为PEM，
	// 证书包解码后为DER；password 仅在证书包格式下有意义
	DeployCertificate(ctx context.Context, domain string, publicKey, privateKey []byte, password string) error
}
