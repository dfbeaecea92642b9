package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"certhub/internal/domain"
	certerrors "certhub/internal/errors"
	"certhub/internal/servicekey"
)

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, certerrors.Config("读取配置文件失败: %v", err)
	}
	return Parse(data)
}

// Parse 解析并校验配置内容
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, certerrors.Config("解析配置文件失败: %v", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyDefaults 设置默认值
func applyDefaults(config *Config) {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// validate 只校验影响整个配置文件的问题，单个提供商或部署目标的问题由 Check* 在构建时报告
func validate(config *Config) error {
	if len(config.Domains) == 0 {
		return certerrors.Config("未配置任何域名")
	}

	if w := config.Webhook; w != nil && w.Enabled && w.URL == "" {
		return certerrors.Config("webhook 已启用但未配置 url")
	}

	return nil
}

// CheckDomain 校验域名条目本身
func (c *Config) CheckDomain(d DomainConfig) error {
	if err := domain.Validate(d.Domain); err != nil {
		return certerrors.Config("%v", err)
	}
	return nil
}

// CheckCertProvider 校验证书提供商注册键、账户凭证与提供商选项
func (c *Config) CheckCertProvider(key string) error {
	if _, err := c.certAccount(key); err != nil {
		return err
	}
	pc := c.CertProviders[key]
	if pc.RenewBeforeDays < 0 {
		return certerrors.Config("%s: renew_before_days 不能为负数", key)
	}
	if pc.DNSProvider != "" {
		if err := c.CheckDNSProvider(pc.DNSProvider); err != nil {
			return certerrors.Config("%s: %v", key, err)
		}
	}
	return nil
}

// CheckTarget 校验部署目标已配置且必填项完整
func (c *Config) CheckTarget(key string) error {
	tc, ok := c.Targets[key]
	if !ok {
		if _, err := servicekey.Parse(key); err != nil {
			return err
		}
		return certerrors.Config("部署目标 %q 未配置", key)
	}
	return validateTarget(key, tc)
}

// certAccount 校验证书提供商注册键并确认账户凭证存在
func (c *Config) certAccount(key string) (servicekey.Key, error) {
	k, err := servicekey.Parse(key)
	if err != nil {
		return servicekey.Key{}, err
	}
	if k.Kind != servicekey.KindCertProvider {
		return servicekey.Key{}, certerrors.Config("%q 不是证书提供商注册键", key)
	}
	return k, c.validateAccount(k)
}

// CheckDNSProvider 校验DNS提供商注册键与账户凭证
func (c *Config) CheckDNSProvider(key string) error {
	k, err := servicekey.Parse(key)
	if err != nil {
		return err
	}
	if k.Kind != servicekey.KindDNSProvider {
		return certerrors.Config("%q 不是DNS提供商注册键", key)
	}
	return c.validateAccount(k)
}

// validateAccount 检查注册键对应厂商账户的凭证是否存在
func (c *Config) validateAccount(k servicekey.Key) error {
	switch k.Vendor {
	case servicekey.VendorTencent:
		a := c.Accounts.Tencent[k.Name]
		if a == nil {
			return certerrors.Config("腾讯云账户 %s 未配置凭证", k.Name)
		}
		if a.SecretID == "" || a.SecretKey == "" {
			return certerrors.Config("腾讯云账户 %s 凭证不完整", k.Name)
		}
	case servicekey.VendorAliyun:
		a := c.Accounts.Aliyun[k.Name]
		if a == nil {
			return certerrors.Config("阿里云账户 %s 未配置凭证", k.Name)
		}
		if a.AccessKeyID == "" || a.AccessKeySecret == "" {
			return certerrors.Config("阿里云账户 %s 凭证不完整", k.Name)
		}
	case servicekey.VendorHuawei:
		a := c.Accounts.Huawei[k.Name]
		if a == nil {
			return certerrors.Config("华为云账户 %s 未配置凭证", k.Name)
		}
		if a.AccessKey == "" || a.SecretKey == "" {
			return certerrors.Config("华为云账户 %s 凭证不完整", k.Name)
		}
	default:
		return certerrors.Config("不支持的云厂商: %s", k.Vendor)
	}
	return nil
}

// validateTarget 按目标类型检查必填项
func validateTarget(key string, tc TargetConfig) error {
	k, err := servicekey.Parse(key)
	if err != nil {
		return err
	}
	if k.Kind != servicekey.KindTarget {
		return certerrors.Config("%q 不是部署目标注册键", key)
	}

	switch k.Vendor {
	case servicekey.VendorSSH:
		if tc.Host == "" {
			return certerrors.Config("%s: 未配置 SSH host", key)
		}
	case servicekey.VendorSoftEther:
		if tc.Host == "" || tc.Password == "" {
			return certerrors.Config("%s: SoftEther 需要 host 与 password", key)
		}
	case servicekey.VendorLocal:
		if tc.Dir == "" {
			return certerrors.Config("%s: 未配置 dir", key)
		}
	default:
		return certerrors.Config("不支持的部署目标类型: %s", k.Vendor)
	}

	if tc.Port < 0 || tc.Port > 65535 {
		return certerrors.Config("%s: 端口 %d 非法", key, tc.Port)
	}
	return nil
}

// TencentAccount 按注册键查找腾讯云账户
func (c *Config) TencentAccount(k servicekey.Key) *TencentConfig {
	return c.Accounts.Tencent[k.Name]
}

// AliyunAccount 按注册键查找阿里云账户
func (c *Config) AliyunAccount(k servicekey.Key) *AliyunConfig {
	return c.Accounts.Aliyun[k.Name]
}

// HuaweiAccount 按注册键查找华为云账户
func (c *Config) HuaweiAccount(k servicekey.Key) *HuaweiConfig {
	return c.Accounts.Huawei[k.Name]
}
