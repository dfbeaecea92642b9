// Package softether 通过 VPN Server 管理 JSON-RPC 接口部署证书
package softether

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// RPCError JSON-RPC 错误
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func newRPCError(code int, message string, data json.RawMessage) *RPCError {
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("JSON-RPC Error %d", code)
	}
	return &RPCError{Code: code, Message: message, Data: data}
}

// VPN Server 认证相关错误码
const (
	errAuthFailed   = 9
	errAccessDenied = 52
)

// authFailure 管理密码错误或无权访问
func (e *RPCError) authFailure() bool {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden, errAuthFailed, errAccessDenied:
		return true
	}
	return false
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("Code=%d, Message=%s, Data=%s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("Code=%d, Message=%s", e.Code, e.Message)
}

// ServerCert 服务器证书与私钥，JSON 中以 base64 编码
type ServerCert struct {
	Cert []byte `json:"Cert_bin"`
	Key  []byte `json:"Key_bin"`
}

type rpcRequest struct {
	Version string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Version string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// Client VPN Server JSON-RPC 客户端
type Client struct {
	baseURL    string
	hub        string
	password   string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient 创建客户端；verifyTLS 为 false 时不校验服务器证书
func NewClient(host string, port int, password, hub string, verifyTLS bool) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // VPN Server 默认使用自签名证书
	}

	return &Client{
		baseURL:  "https://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/api/",
		hub:      hub,
		password: password,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   defaultTimeout,
		},
		now: time.Now,
	}
}

// SetServerCert 设置 VPN Server 的SSL证书与私钥
func (c *Client) SetServerCert(ctx context.Context, cert *ServerCert) (*ServerCert, error) {
	var result ServerCert
	if err := c.Call(ctx, "SetServerCert", cert, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetServerCert 读取 VPN Server 当前的SSL证书
func (c *Client) GetServerCert(ctx context.Context) (*ServerCert, error) {
	var result ServerCert
	if err := c.Call(ctx, "GetServerCert", &ServerCert{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Call 调用 RPC 方法；HTTP 非 2xx 与响应中的 error 字段都返回 *RPCError
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{
		Version: "2.0",
		ID:      strconv.FormatInt(c.now().UnixNano(), 10),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-VPNADMIN-HUBNAME", c.hub)
	req.Header.Set("X-VPNADMIN-PASSWORD", c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newRPCError(resp.StatusCode, string(data), nil)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if rpcResp.Error != nil {
		return newRPCError(rpcResp.Error.Code, rpcResp.Error.Message, rpcResp.Error.Data)
	}

	if result != nil && len(rpcResp.Result) > 0 && string(rpcResp.Result) != "null" {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("解析结果失败: %w", err)
		}
	}
	return nil
}

// transportError 网络层失败，请求未得到 HTTP 响应
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "请求失败: " + e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }
