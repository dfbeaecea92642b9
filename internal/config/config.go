package config

// Config 配置结构
type Config struct {
	// 云平台账户凭证，按厂商与账户名索引
	Accounts AccountsConfig `yaml:"accounts"`

	// 证书提供商的附加配置，键为注册键，如 CertProviders:TencentCloud:Jerry
	CertProviders map[string]CertProviderConfig `yaml:"cert_providers,omitempty"`

	// 部署目标，键为注册键，如 Targets:SSH:ITV-WWW
	Targets map[string]TargetConfig `yaml:"targets"`

	// 待签发并部署的域名
	Domains []DomainConfig `yaml:"domains"`

	// 全局配置
	FailFast    bool `yaml:"fail_fast"`   // 任一域名失败即终止整次运行
	Concurrency int  `yaml:"concurrency"` // 并发处理数，默认1

	Log LogConfig `yaml:"log"`

	// Webhook 通知配置
	Webhook *WebhookConfig `yaml:"webhook,omitempty"`
}

// AccountsConfig 云平台账户
type AccountsConfig struct {
	Tencent map[string]*TencentConfig `yaml:"tencent,omitempty"`
	Aliyun  map[string]*AliyunConfig  `yaml:"aliyun,omitempty"`
	Huawei  map[string]*HuaweiConfig  `yaml:"huawei,omitempty"`
}

// AliyunConfig 阿里云配置
type AliyunConfig struct {
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Region          string `yaml:"region"`
}

// TencentConfig 腾讯云配置
type TencentConfig struct {
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// HuaweiConfig 华为云配置
type HuaweiConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	ProjectID string `yaml:"project_id"`
}

// CertProviderConfig 证书提供商配置
type CertProviderConfig struct {
	// DNS验证使用的DNS提供商注册键；配置后申请新证书会返回未实现错误
	DNSProvider string `yaml:"dns_provider,omitempty"`

	// 已有证书剩余有效期不足该天数时视为需要重新申请，默认0（未过期即复用）
	RenewBeforeDays int `yaml:"renew_before_days,omitempty"`

	// 阿里云免费证书产品码
	ProductCode string `yaml:"product_code,omitempty"`
}

// TargetConfig 部署目标配置，字段按目标类型取用
type TargetConfig struct {
	// SSH / SoftEther
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Password string `yaml:"password,omitempty"`

	// SSH
	User              string   `yaml:"user,omitempty"`
	IdentityFiles     []string `yaml:"identity_files,omitempty"`
	DeployPath        string   `yaml:"deploy_path,omitempty"`
	PostDeployCommand string   `yaml:"post_deploy_command,omitempty"`
	KnownHostsFile    string   `yaml:"known_hosts_file,omitempty"`

	// SoftEther
	Hub       string `yaml:"hub,omitempty"`
	VerifyTLS bool   `yaml:"verify_tls,omitempty"`

	// Local
	Dir         string `yaml:"dir,omitempty"`
	PostCommand string `yaml:"post_command,omitempty"`
}

// DomainConfig 域名配置：一条 (别名, 域名, 证书提供商, 部署目标)
type DomainConfig struct {
	Alias    string `yaml:"alias,omitempty"`
	Domain   string `yaml:"domain"`
	Provider string `yaml:"provider"`
	Target   string `yaml:"target"`

	// 部署后通过TLS握手核对线上证书，如 example.com:443
	VerifyAddress string `yaml:"verify_address,omitempty"`
}

// GetAlias 获取证书备注名，未配置时使用域名
func (d *DomainConfig) GetAlias() string {
	if d.Alias != "" {
		return d.Alias
	}
	return d.Domain
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// WebhookConfig Webhook 通知配置
type WebhookConfig struct {
	Enabled      bool              `yaml:"enabled"`                 // 是否启用
	URL          string            `yaml:"url"`                     // Webhook URL
	Headers      map[string]string `yaml:"headers,omitempty"`       // 自定义请求头
	Events       []string          `yaml:"events,omitempty"`        // 订阅的事件类型
	Timeout      int               `yaml:"timeout,omitempty"`       // 请求超时时间（秒），默认30
	Retries      int               `yaml:"retries,omitempty"`       // 重试次数，默认3
	BodyTemplate string            `yaml:"body_template,omitempty"` // 请求体模板（JSON格式）
}
