package softether

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certhub/internal/config"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
)

type recorded struct {
	method string
	hub    string
	pass   string
	path   string
	params ServerCert
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, req rpcRequest)) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.hub = r.Header.Get("X-VPNADMIN-HUBNAME")
		rec.pass = r.Header.Get("X-VPNADMIN-PASSWORD")

		var raw struct {
			rpcRequest
			Params ServerCert `json:"params"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		rec.method = raw.Method
		rec.params = raw.Params
		handler(w, raw.rpcRequest)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func targetConfig(t *testing.T, srv *httptest.Server) config.TargetConfig {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return config.TargetConfig{Host: host, Port: port, Password: "admin-pw", Hub: "DEFAULT"}
}

func TestDeployCertificate(t *testing.T) {
	srv, rec := newServer(t, func(w http.ResponseWriter, req rpcRequest) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"Cert_bin": []byte{1}, "Key_bin": []byte{2}},
		})
	})

	tg, err := NewTarget("Targets:SoftEther:WSY-Shanghai", targetConfig(t, srv), logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, provider.FormatBundle, tg.Format())

	cert := []byte{0x30, 0x82, 0x01, 0x0a}
	key := []byte{0x30, 0x82, 0x04, 0xa4}
	require.NoError(t, tg.DeployCertificate(context.Background(), "vpn.example.com", cert, key, ""))

	assert.Equal(t, "/api/", rec.path)
	assert.Equal(t, "SetServerCert", rec.method)
	assert.Equal(t, "DEFAULT", rec.hub)
	assert.Equal(t, "admin-pw", rec.pass)
	assert.Equal(t, cert, rec.params.Cert)
	assert.Equal(t, key, rec.params.Key)
}

func TestDeployRPCError(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, req rpcRequest) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": 29, "message": ""},
		})
	})

	tg, err := NewTarget("Targets:SoftEther:V", targetConfig(t, srv), logger.Discard())
	require.NoError(t, err)

	err = tg.DeployCertificate(context.Background(), "vpn.example.com", []byte{1}, []byte{2}, "")
	assert.True(t, certerrors.Is(err, certerrors.ErrDeploy), "got %v", err)

	var rpcErr *RPCError
	require.True(t, certerrors.As(err, &rpcErr))
	assert.Equal(t, 29, rpcErr.Code)
	assert.Equal(t, "JSON-RPC Error 29", rpcErr.Message)
}

func TestDeployHTTPError(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, _ rpcRequest) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	})

	tg, err := NewTarget("Targets:SoftEther:V", targetConfig(t, srv), logger.Discard())
	require.NoError(t, err)

	err = tg.DeployCertificate(context.Background(), "vpn.example.com", []byte{1}, []byte{2}, "")
	assert.True(t, certerrors.Is(err, certerrors.ErrDeploy))

	var rpcErr *RPCError
	require.True(t, certerrors.As(err, &rpcErr))
	assert.Equal(t, http.StatusInternalServerError, rpcErr.Code)
	assert.Equal(t, "internal error", rpcErr.Message)
}

func TestDeployAuthFailureIsConnectionError(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, req rpcRequest)
	}{
		{"http 401", func(w http.ResponseWriter, _ rpcRequest) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"http 403", func(w http.ResponseWriter, _ rpcRequest) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("access denied"))
		}},
		{"auth failed", func(w http.ResponseWriter, req rpcRequest) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": errAuthFailed, "message": "Error code 9: User authentication failed."},
			})
		}},
		{"access denied", func(w http.ResponseWriter, req rpcRequest) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": errAccessDenied, "message": ""},
			})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.handler)
			tg, err := NewTarget("Targets:SoftEther:V", targetConfig(t, srv), logger.Discard())
			require.NoError(t, err)

			err = tg.DeployCertificate(context.Background(), "vpn.example.com", []byte{1}, []byte{2}, "")
			assert.True(t, certerrors.Is(err, certerrors.ErrConnection), "got %v", err)
			assert.False(t, certerrors.Is(err, certerrors.ErrDeploy))

			_, err = tg.ServedCertificate(context.Background())
			assert.True(t, certerrors.Is(err, certerrors.ErrConnection), "got %v", err)
		})
	}
}

func TestDeployUnreachable(t *testing.T) {
	srv, _ := newServer(t, func(http.ResponseWriter, rpcRequest) {})
	cfg := targetConfig(t, srv)
	srv.Close()

	tg, err := NewTarget("Targets:SoftEther:V", cfg, logger.Discard())
	require.NoError(t, err)

	err = tg.DeployCertificate(context.Background(), "vpn.example.com", []byte{1}, []byte{2}, "")
	assert.True(t, certerrors.Is(err, certerrors.ErrConnection), "got %v", err)
}

func TestServedCertificate(t *testing.T) {
	srv, rec := newServer(t, func(w http.ResponseWriter, req rpcRequest) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"Cert_bin": []byte{9, 9}, "Key_bin": nil},
		})
	})

	tg, err := NewTarget("Targets:SoftEther:V", targetConfig(t, srv), logger.Discard())
	require.NoError(t, err)

	der, err := tg.ServedCertificate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, der)
	assert.Equal(t, "GetServerCert", rec.method)
}

func TestNewTargetValidation(t *testing.T) {
	_, err := NewTarget("Targets:SSH:V", config.TargetConfig{Host: "h", Password: "p"}, logger.Discard())
	assert.True(t, certerrors.Is(err, certerrors.ErrConfig))

	_, err = NewTarget("Targets:SoftEther:V", config.TargetConfig{Host: "h"}, logger.Discard())
	assert.True(t, certerrors.Is(err, certerrors.ErrConfig))

	tg, err := NewTarget("Targets:SoftEther:V", config.TargetConfig{Host: "vpn.example.com", Password: "p"}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, "https://vpn.example.com:5555/api/", tg.client.baseURL)
}

func TestRPCErrorMessage(t *testing.T) {
	assert.Equal(t, "JSON-RPC Error 7", newRPCError(7, "  ", nil).Message)
	assert.Equal(t, "Code=1, Message=boom, Data={\"x\":1}", newRPCError(1, "boom", json.RawMessage(`{"x":1}`)).Error())
}
