package core

import (
	"sync"

	certerrors "certhub/internal/errors"
	"certhub/internal/provider"
	"certhub/internal/target"
)

// Registry 按注册键查找证书提供商、DNS提供商与部署目标
type Registry struct {
	mu            sync.RWMutex
	certProviders map[string]provider.CertProvider
	dnsProviders  map[string]provider.DNSProvider
	targets       map[string]target.Target

	// 构建失败的注册键及其原因
	broken map[string]error
}

// NewRegistry 创建空的注册表
func NewRegistry() *Registry {
	return &Registry{
		certProviders: make(map[string]provider.CertProvider),
		dnsProviders:  make(map[string]provider.DNSProvider),
		targets:       make(map[string]target.Target),
		broken:        make(map[string]error),
	}
}

// Fail 记录构建失败的注册键，之后查找该键返回此错误；已记录的键保留首次原因
func (r *Registry) Fail(key string, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.broken[key]; ok {
		return false
	}
	r.broken[key] = err
	return true
}

// Broken 返回全部构建失败的注册键
func (r *Registry) Broken() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error, len(r.broken))
	for k, err := range r.broken {
		out[k] = err
	}
	return out
}

// AddCertProvider 以 Name() 为键注册证书提供商，同名覆盖
func (r *Registry) AddCertProvider(p provider.CertProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.certProviders[p.Name()] = p
}

// AddDNSProvider 以 Name() 为键注册DNS提供商
func (r *Registry) AddDNSProvider(p provider.DNSProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dnsProviders[p.Name()] = p
}

// AddTarget 以 Name() 为键注册部署目标
func (r *Registry) AddTarget(t target.Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[t.Name()] = t
}

// CertProvider 查找证书提供商
func (r *Registry) CertProvider(key string) (provider.CertProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err, ok := r.broken[key]; ok {
		return nil, err
	}
	p, ok := r.certProviders[key]
	if !ok {
		return nil, certerrors.Config("证书提供商 %q 未注册", key)
	}
	return p, nil
}

// DNSProvider 查找DNS提供商
func (r *Registry) DNSProvider(key string) (provider.DNSProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err, ok := r.broken[key]; ok {
		return nil, err
	}
	p, ok := r.dnsProviders[key]
	if !ok {
		return nil, certerrors.Config("DNS提供商 %q 未注册", key)
	}
	return p, nil
}

// Target 查找部署目标
func (r *Registry) Target(key string) (target.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err, ok := r.broken[key]; ok {
		return nil, err
	}
	t, ok := r.targets[key]
	if !ok {
		return nil, certerrors.Config("部署目标 %q 未注册", key)
	}
	return t, nil
}

func (r *Registry) isBroken(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.broken[key]
	return ok
}
