// Package errors 定义证书流水线的错误分类
//
// 每个错误都带有一个 Code，调用方通过 errors.Is 与哨兵错误比较来判断类别：
//
//	if errors.Is(err, errors.ErrConnection) {
//	    // 目标不可达
//	}
//
// 需要上下文时使用 errors.As 取出 *CertHubError。
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误类别
type ErrorCode string

const (
	ErrCodeConfig         ErrorCode = "CONFIG"          // 配置缺失或非法
	ErrCodeProvider       ErrorCode = "PROVIDER"        // 证书颁发机构请求/查询/下载失败
	ErrCodeFormat         ErrorCode = "FORMAT"          // 证书压缩包缺少条目或证书包解码失败
	ErrCodeConnection     ErrorCode = "CONNECTION"      // 传输通道无法建立或认证失败
	ErrCodeDeploy         ErrorCode = "DEPLOY"          // 远端写入或RPC调用失败
	ErrCodeNotImplemented ErrorCode = "NOT_IMPLEMENTED" // 未实现的流程（DNS验证）
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"       // 句柄已失效
)

// CertHubError 带上下文的结构化错误
type CertHubError struct {
	Code    ErrorCode
	Message string
	Domain  string
	Err     error
}

// Error 实现 error 接口
func (e *CertHubError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Domain != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Domain, msg, e.Err)
	}
	if e.Domain != "" {
		return fmt.Sprintf("%s: %s", e.Domain, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap 返回底层错误
func (e *CertHubError) Unwrap() error {
	return e.Err
}

// Is 按错误类别比较
func (e *CertHubError) Is(target error) bool {
	t, ok := target.(*CertHubError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 哨兵错误，配合 errors.Is 使用
var (
	ErrConfig         = &CertHubError{Code: ErrCodeConfig, Message: "配置错误"}
	ErrProvider       = &CertHubError{Code: ErrCodeProvider, Message: "证书提供商错误"}
	ErrFormat         = &CertHubError{Code: ErrCodeFormat, Message: "证书格式错误"}
	ErrConnection     = &CertHubError{Code: ErrCodeConnection, Message: "连接失败"}
	ErrDeploy         = &CertHubError{Code: ErrCodeDeploy, Message: "部署失败"}
	ErrNotImplemented = &CertHubError{Code: ErrCodeNotImplemented, Message: "功能未实现"}
	ErrNotFound       = &CertHubError{Code: ErrCodeNotFound, Message: "记录不存在"}
)

// Config 创建配置错误
func Config(format string, args ...any) error {
	return &CertHubError{Code: ErrCodeConfig, Message: fmt.Sprintf(format, args...)}
}

// Provider 包装证书提供商错误
func Provider(msg string, err error) error {
	return &CertHubError{Code: ErrCodeProvider, Message: msg, Err: err}
}

// Format 创建格式错误
func Format(msg string, err error) error {
	return &CertHubError{Code: ErrCodeFormat, Message: msg, Err: err}
}

// Connection 包装连接错误
func Connection(msg string, err error) error {
	return &CertHubError{Code: ErrCodeConnection, Message: msg, Err: err}
}

// Deploy 包装部署错误
func Deploy(msg string, err error) error {
	return &CertHubError{Code: ErrCodeDeploy, Message: msg, Err: err}
}

// NotImplemented 创建未实现错误
func NotImplemented(msg string) error {
	return &CertHubError{Code: ErrCodeNotImplemented, Message: msg}
}

// NotFound 创建句柄失效错误
func NotFound(msg string, err error) error {
	return &CertHubError{Code: ErrCodeNotFound, Message: msg, Err: err}
}

// WithDomain 为错误附加域名；已是 CertHubError 时保留其类别
func WithDomain(domain string, err error) error {
	if err == nil {
		return nil
	}
	var he *CertHubError
	if errors.As(err, &he) && he.Domain == "" {
		return &CertHubError{Code: he.Code, Message: he.Message, Domain: domain, Err: he.Err}
	}
	return err
}

// CodeOf 返回错误链中第一个 CertHubError 的类别
func CodeOf(err error) ErrorCode {
	var he *CertHubError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// Is 转发标准库 errors.Is
var Is = errors.Is

// As 转发标准库 errors.As
var As = errors.As

// Join 转发标准库 errors.Join
var Join = errors.Join
