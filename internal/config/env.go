package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	certerrors "certhub/internal/errors"
)

// Env 可通过环境变量覆盖的运行参数
type Env struct {
	ConfigPath  string `env:"CERTHUB_CONFIG" envDefault:"config.yaml"`
	LogLevel    string `env:"CERTHUB_LOG_LEVEL"`
	LogFormat   string `env:"CERTHUB_LOG_FORMAT"`
	FailFast    *bool  `env:"CERTHUB_FAIL_FAST"`
	Concurrency int    `env:"CERTHUB_CONCURRENCY"`
}

// LoadEnv 读取 .env（可选）后解析环境变量
func LoadEnv(dotenvFiles ...string) (Env, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, certerrors.Config("读取 %s 失败: %v", f, err)
		}
	}

	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, certerrors.Config("解析环境变量失败: %v", err)
	}
	return e, nil
}

// Apply 用环境变量覆盖配置
func (e Env) Apply(c *Config) {
	if e.LogLevel != "" {
		c.Log.Level = e.LogLevel
	}
	if e.LogFormat != "" {
		c.Log.Format = e.LogFormat
	}
	if e.FailFast != nil {
		c.FailFast = *e.FailFast
	}
	if e.Concurrency > 0 {
		c.Concurrency = e.Concurrency
	}
}
