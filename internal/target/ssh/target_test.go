package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"certhub/internal/config"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
)

func writeKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func TestAuthPreference(t *testing.T) {
	key := writeKey(t, "")

	tests := []struct {
		name string
		cfg  config.TargetConfig
		want string
	}{
		{"identity files win", config.TargetConfig{IdentityFiles: []string{key}, Password: "pw"}, authPublicKey},
		{"password", config.TargetConfig{Password: "pw"}, authPassword},
		{"none", config.TargetConfig{}, authNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			methods, kind, err := authMethods(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
			if kind == authNone {
				assert.Empty(t, methods)
			} else {
				assert.Len(t, methods, 1)
			}
		})
	}
}

func TestEncryptedIdentityFile(t *testing.T) {
	key := writeKey(t, "hunter2")

	_, kind, err := authMethods(config.TargetConfig{IdentityFiles: []string{key}, Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, authPublicKey, kind)

	_, _, err = authMethods(config.TargetConfig{IdentityFiles: []string{key}})
	assert.True(t, certerrors.Is(err, certerrors.ErrConfig))
}

func TestInvalidIdentityFile(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad")
	require.NoError(t, os.WriteFile(bad, []byte("not a key"), 0o600))

	_, err := NewTarget("Targets:SSH:Web", config.TargetConfig{Host: "10.0.0.1", IdentityFiles: []string{bad}}, logger.Discard())
	assert.True(t, certerrors.Is(err, certerrors.ErrConfig))

	_, err = NewTarget("Targets:SSH:Web", config.TargetConfig{Host: "10.0.0.1", IdentityFiles: []string{bad + ".missing"}}, logger.Discard())
	assert.True(t, certerrors.Is(err, certerrors.ErrConfig))
}

func TestNewTargetDefaults(t *testing.T) {
	tg, err := NewTarget("Targets:SSH:ITV-WWW", config.TargetConfig{Host: "10.0.0.1"}, logger.Discard())
	require.NoError(t, err)

	assert.Equal(t, "Targets:SSH:ITV-WWW", tg.Name())
	assert.Equal(t, provider.FormatSplit, tg.Format())
	assert.Equal(t, "10.0.0.1:22", tg.addr)
	assert.Equal(t, "root", tg.user)

	cert, key := tg.remotePaths("www.itvtech.cn")
	assert.Equal(t, "/opt/docker/nginx/www.itvtech.cn.crt", cert)
	assert.Equal(t, "/opt/docker/nginx/www.itvtech.cn.key", key)
}

func TestNewTargetValidation(t *testing.T) {
	_, err := NewTarget("Targets:SoftEther:X", config.TargetConfig{Host: "h"}, logger.Discard())
	assert.True(t, certerrors.Is(err, certerrors.ErrConfig))

	_, err = NewTarget("Targets:SSH:X", config.TargetConfig{}, logger.Discard())
	assert.True(t, certerrors.Is(err, certerrors.ErrConfig))

	_, err = NewTarget("Targets:SSH:X", config.TargetConfig{Host: "h", KnownHostsFile: filepath.Join(t.TempDir(), "nope")}, logger.Discard())
	assert.True(t, certerrors.Is(err, certerrors.ErrConfig))
}

func TestDeployUnreachableHost(t *testing.T) {
	// 占用一个端口后立即关闭，确保连接被拒绝
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	tg, err := NewTarget("Targets:SSH:Down", config.TargetConfig{Host: "127.0.0.1", Port: addr.Port, Password: "pw"}, logger.Discard())
	require.NoError(t, err)

	err = tg.DeployCertificate(context.Background(), "www.example.com", []byte("cert"), []byte("key"), "")
	assert.True(t, certerrors.Is(err, certerrors.ErrConnection), "got %v", err)
}

func TestDeployHandshakeFailure(t *testing.T) {
	// 对端不是SSH服务
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
		conn.Close()
	}()

	port := l.Addr().(*net.TCPAddr).Port
	tg, err := NewTarget("Targets:SSH:Web", config.TargetConfig{Host: "127.0.0.1", Port: port}, logger.Discard())
	require.NoError(t, err)

	err = tg.DeployCertificate(context.Background(), "www.example.com", []byte("cert"), []byte("key"), "")
	assert.True(t, certerrors.Is(err, certerrors.ErrConnection), "got %v", err)
}
