package core

import (
	"maps"
	"slices"

	"github.com/sirupsen/logrus"

	"certhub/internal/config"
	certerrors "certhub/internal/errors"
	"certhub/internal/provider"
	"certhub/internal/provider/aliyun"
	"certhub/internal/provider/huawei"
	"certhub/internal/provider/tencent"
	"certhub/internal/servicekey"
	"certhub/internal/target"
	"certhub/internal/target/local"
	"certhub/internal/target/softether"
	"certhub/internal/target/ssh"
)

// Factory 按注册键创建提供商与部署目标
type Factory struct {
	config *config.Config
	log    *logrus.Entry

	// 缓存已创建的实例
	certProviders map[string]provider.CertProvider
	dnsProviders  map[string]provider.DNSProvider
	targets       map[string]target.Target
}

// NewFactory 创建工厂
func NewFactory(cfg *config.Config, log *logrus.Entry) *Factory {
	return &Factory{
		config:        cfg,
		log:           log,
		certProviders: make(map[string]provider.CertProvider),
		dnsProviders:  make(map[string]provider.DNSProvider),
		targets:       make(map[string]target.Target),
	}
}

// Build 创建配置中的全部提供商与部署目标并注册。
// 构建失败的注册键记录在注册表中，只影响引用它的域名；返回的错误汇总全部失败项
func (f *Factory) Build() (*Registry, error) {
	registry := NewRegistry()
	var errs []error
	fail := func(key, domainName string, err error) {
		if !registry.Fail(key, err) {
			return
		}
		if domainName != "" {
			err = certerrors.WithDomain(domainName, err)
		}
		errs = append(errs, err)
	}

	for _, d := range f.config.Domains {
		if err := f.config.CheckDomain(d); err != nil {
			errs = append(errs, certerrors.WithDomain(d.Domain, err))
		}

		if p, err := f.GetCertProvider(d.Provider); err != nil {
			fail(d.Provider, d.Domain, err)
		} else {
			registry.AddCertProvider(p)
		}

		if t, err := f.GetTarget(d.Target); err != nil {
			fail(d.Target, d.Domain, err)
		} else {
			registry.AddTarget(t)
		}
	}

	// 未被域名引用的配置项同样构建，以便 validate 提前发现问题
	for _, key := range slices.Sorted(maps.Keys(f.config.CertProviders)) {
		if registry.isBroken(key) {
			continue
		}
		if p, err := f.GetCertProvider(key); err != nil {
			fail(key, "", err)
		} else {
			registry.AddCertProvider(p)
		}
	}
	for _, key := range slices.Sorted(maps.Keys(f.config.Targets)) {
		if registry.isBroken(key) {
			continue
		}
		if t, err := f.GetTarget(key); err != nil {
			fail(key, "", err)
		} else {
			registry.AddTarget(t)
		}
	}

	for _, key := range slices.Sorted(maps.Keys(f.config.CertProviders)) {
		dnsKey := f.config.CertProviders[key].DNSProvider
		if dnsKey == "" || registry.isBroken(key) || registry.isBroken(dnsKey) {
			continue
		}
		p, err := f.GetDNSProvider(dnsKey)
		if err != nil {
			fail(dnsKey, "", certerrors.Config("%s: %v", key, err))
			continue
		}
		registry.AddDNSProvider(p)
	}

	return registry, certerrors.Join(errs...)
}

// GetCertProvider 获取证书提供商
func (f *Factory) GetCertProvider(key string) (provider.CertProvider, error) {
	if p, ok := f.certProviders[key]; ok {
		return p, nil
	}

	if err := f.config.CheckCertProvider(key); err != nil {
		return nil, err
	}
	k, err := servicekey.Parse(key)
	if err != nil {
		return nil, err
	}

	opts := f.config.CertProviders[key]

	var p provider.CertProvider
	switch k.Vendor {
	case servicekey.VendorTencent:
		acct := f.config.TencentAccount(k)
		if acct == nil {
			return nil, certerrors.Config("腾讯云账户 %s 未配置", k.Name)
		}
		p, err = tencent.NewCertProvider(key, acct, opts, f.log)

	case servicekey.VendorAliyun:
		acct := f.config.AliyunAccount(k)
		if acct == nil {
			return nil, certerrors.Config("阿里云账户 %s 未配置", k.Name)
		}
		p, err = aliyun.NewCertProvider(key, acct, opts, f.log)

	case servicekey.VendorHuawei:
		acct := f.config.HuaweiAccount(k)
		if acct == nil {
			return nil, certerrors.Config("华为云账户 %s 未配置", k.Name)
		}
		p, err = huawei.NewCertProvider(key, acct, opts, f.log)

	default:
		return nil, certerrors.Config("不支持的证书提供商: %s", k.Vendor)
	}

	if err != nil {
		return nil, err
	}

	f.certProviders[key] = p
	return p, nil
}

// GetDNSProvider 获取DNS提供商
func (f *Factory) GetDNSProvider(key string) (provider.DNSProvider, error) {
	if p, ok := f.dnsProviders[key]; ok {
		return p, nil
	}

	if err := f.config.CheckDNSProvider(key); err != nil {
		return nil, err
	}
	k, err := servicekey.Parse(key)
	if err != nil {
		return nil, err
	}

	var p provider.DNSProvider
	switch k.Vendor {
	case servicekey.VendorTencent:
		acct := f.config.TencentAccount(k)
		if acct == nil {
			return nil, certerrors.Config("腾讯云账户 %s 未配置", k.Name)
		}
		p, err = tencent.NewDNSProvider(key, acct, f.log)

	case servicekey.VendorAliyun:
		acct := f.config.AliyunAccount(k)
		if acct == nil {
			return nil, certerrors.Config("阿里云账户 %s 未配置", k.Name)
		}
		p, err = aliyun.NewDNSProvider(key, acct, f.log)

	case servicekey.VendorHuawei:
		acct := f.config.HuaweiAccount(k)
		if acct == nil {
			return nil, certerrors.Config("华为云账户 %s 未配置", k.Name)
		}
		p, err = huawei.NewDNSProvider(key, acct, f.log)

	default:
		return nil, certerrors.Config("不支持的DNS提供商: %s", k.Vendor)
	}

	if err != nil {
		return nil, err
	}

	f.dnsProviders[key] = p
	return p, nil
}

// GetTarget 获取部署目标
func (f *Factory) GetTarget(key string) (target.Target, error) {
	if t, ok := f.targets[key]; ok {
		return t, nil
	}

	if err := f.config.CheckTarget(key); err != nil {
		return nil, err
	}
	k, err := servicekey.Parse(key)
	if err != nil {
		return nil, err
	}
	tc := f.config.Targets[key]

	var t target.Target
	switch k.Vendor {
	case servicekey.VendorSSH:
		t, err = ssh.NewTarget(key, tc, f.log)
	case servicekey.VendorSoftEther:
		t, err = softether.NewTarget(key, tc, f.log)
	case servicekey.VendorLocal:
		t, err = local.NewTarget(key, tc, f.log)
	default:
		return nil, certerrors.Config("不支持的部署目标类型: %s", k.Vendor)
	}

	if err != nil {
		return nil, err
	}

	f.targets[key] = t
	return t, nil
}
