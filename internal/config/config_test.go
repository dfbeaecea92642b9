package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	certerrors "certhub/internal/errors"
	"certhub/internal/servicekey"
)

const sampleConfig = `
accounts:
  tencent:
    Jerry:
      secret_id: "id"
      secret_key: "key"
  aliyun:
    Main:
      access_key_id: "ak"
      access_key_secret: "sk"

cert_providers:
  "CertProviders:TencentCloud:Jerry":
    renew_before_days: 7

targets:
  "Targets:SSH:ITV-WWW":
    host: "10.0.0.1"
    identity_files: ["~/.ssh/id_ed25519"]
    post_deploy_command: "nginx -s reload"
  "Targets:SoftEther:WSY-Shanghai":
    host: "vpn.example.com"
    password: "admin"
  "Targets:Local:Disk":
    dir: "/etc/ssl/certhub"

domains:
  - alias: "ITV-WWW"
    domain: "www.itvtech.cn"
    provider: "CertProviders:TencentCloud:Jerry"
    target: "Targets:SSH:ITV-WWW"
  - domain: "shanghai.wangshiyao.com"
    provider: "CertProviders:AliyunCloud:Main"
    target: "Targets:SoftEther:WSY-Shanghai"
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Len(t, cfg.Domains, 2)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.FailFast)

	assert.Equal(t, "ITV-WWW", cfg.Domains[0].GetAlias())
	assert.Equal(t, "shanghai.wangshiyao.com", cfg.Domains[1].GetAlias())

	assert.Equal(t, 7, cfg.CertProviders["CertProviders:TencentCloud:Jerry"].RenewBeforeDays)
	assert.Equal(t, "nginx -s reload", cfg.Targets["Targets:SSH:ITV-WWW"].PostDeployCommand)

	k, err := servicekey.Parse("CertProviders:TencentCloud:Jerry")
	require.NoError(t, err)
	assert.Equal(t, "id", cfg.TencentAccount(k).SecretID)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no domains",
			yaml: `targets: {}`,
		},
		{
			name: "invalid yaml",
			yaml: `domains: [`,
		},
		{
			name: "webhook without url",
			yaml: `
accounts: {tencent: {J: {secret_id: "x", secret_key: "y"}}}
targets: {"Targets:Local:D": {dir: "/tmp"}}
domains: [{domain: "a.com", provider: "CertProviders:TencentCloud:J", target: "Targets:Local:D"}]
webhook: {enabled: true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, certerrors.Is(err, certerrors.ErrConfig), "got %v", err)
		})
	}
}

func TestParseKeepsBrokenCollaborators(t *testing.T) {
	cfg, err := Parse([]byte(`
accounts: {tencent: {J: {secret_id: "x", secret_key: "y"}}}
targets:
  "Targets:SSH:Good": {host: "10.0.0.1"}
  "Targets:SSH:Broken": {user: "root"}
domains: [{domain: "a.com", provider: "CertProviders:TencentCloud:J", target: "Targets:SSH:Good"}]`))
	require.NoError(t, err)

	require.NoError(t, cfg.CheckTarget("Targets:SSH:Good"))
	require.NoError(t, cfg.CheckCertProvider("CertProviders:TencentCloud:J"))

	err = cfg.CheckTarget("Targets:SSH:Broken")
	assert.True(t, certerrors.Is(err, certerrors.ErrConfig), "got %v", err)
}

func TestCheckCollaborators(t *testing.T) {
	cfg, err := Parse([]byte(`
accounts:
  tencent:
    J: {secret_id: "x", secret_key: "y"}
    Half: {secret_id: "x"}
    Neg: {secret_id: "x", secret_key: "y"}
cert_providers:
  "CertProviders:TencentCloud:Neg": {renew_before_days: -1}
  "CertProviders:TencentCloud:J": {dns_provider: "Targets:SSH:J"}
targets:
  "Targets:SSH:S": {user: "root"}
  "Targets:SoftEther:V": {host: "vpn"}
  "Targets:Local:D": {dir: "/tmp"}
  "Targets:Local:P": {dir: "/tmp", port: 70000}
domains: [{domain: "a.com", provider: "CertProviders:TencentCloud:J", target: "Targets:Local:D"}]`))
	require.NoError(t, err)

	tests := []struct {
		name string
		err  error
	}{
		{"bad provider key", cfg.CheckCertProvider("Tencent:Jerry")},
		{"provider key of wrong kind", cfg.CheckCertProvider("Targets:Local:D")},
		{"missing account", cfg.CheckCertProvider("CertProviders:TencentCloud:Nobody")},
		{"incomplete credentials", cfg.CheckCertProvider("CertProviders:TencentCloud:Half")},
		{"negative renew window", cfg.CheckCertProvider("CertProviders:TencentCloud:Neg")},
		{"dns provider key of wrong kind", cfg.CheckCertProvider("CertProviders:TencentCloud:J")},
		{"unknown target", cfg.CheckTarget("Targets:SSH:Nope")},
		{"ssh target without host", cfg.CheckTarget("Targets:SSH:S")},
		{"softether without password", cfg.CheckTarget("Targets:SoftEther:V")},
		{"port out of range", cfg.CheckTarget("Targets:Local:P")},
		{"invalid domain", cfg.CheckDomain(DomainConfig{Domain: "not a domain"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.True(t, certerrors.Is(tt.err, certerrors.ErrConfig), "got %v", tt.err)
		})
	}

	assert.NoError(t, cfg.CheckTarget("Targets:Local:D"))
	assert.NoError(t, cfg.CheckDomain(DomainConfig{Domain: "*.example.com"}))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Targets, 3)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, certerrors.Is(err, certerrors.ErrConfig))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CERTHUB_CONFIG", "/etc/certhub.yaml")
	t.Setenv("CERTHUB_LOG_FORMAT", "json")
	t.Setenv("CERTHUB_FAIL_FAST", "true")
	t.Setenv("CERTHUB_CONCURRENCY", "4")

	e, err := LoadEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "/etc/certhub.yaml", e.ConfigPath)

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	e.Apply(cfg)

	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.FailFast)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestEnvFromDotenv(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("CERTHUB_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("CERTHUB_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("CERTHUB_LOG_LEVEL"))

	e, err := LoadEnv(dotenv)
	require.NoError(t, err)
	assert.Equal(t, "debug", e.LogLevel)
	assert.Equal(t, "config.yaml", e.ConfigPath)
	assert.Nil(t, e.FailFast)
}
