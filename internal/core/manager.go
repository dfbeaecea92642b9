// Package core 编排证书的申请、等待签发、下载与部署
package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"certhub/internal/config"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
	"certhub/internal/target"
)

// Notifier 流水线事件通知
type Notifier interface {
	NotifyCertIssued(ctx context.Context, domain, certID string) error
	NotifyCertDeployed(ctx context.Context, domain, certID, target string, elapsed time.Duration) error
	NotifyCertFailed(ctx context.Context, domain, reason string) error
}

// DomainRequest 一条 (别名, 域名, 证书提供商, 部署目标)
type DomainRequest struct {
	Alias         string
	Domain        string
	Provider      string
	Target        string
	VerifyAddress string
}

// RequestFromConfig 由域名配置构造请求
func RequestFromConfig(d config.DomainConfig) DomainRequest {
	return DomainRequest{
		Alias:         d.GetAlias(),
		Domain:        d.Domain,
		Provider:      d.Provider,
		Target:        d.Target,
		VerifyAddress: d.VerifyAddress,
	}
}

func (r DomainRequest) alias() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Domain
}

// Result 单条请求的处理结果
type Result struct {
	Request DomainRequest
	CertID  string
	Elapsed time.Duration
	Err     error
	Skipped bool // fail_fast 触发后未执行
}

// Report 一次运行的汇总
type Report struct {
	RunID   string
	Results []Result
	Elapsed time.Duration
}

// Succeeded 成功部署的结果
func (r *Report) Succeeded() []Result {
	return r.filter(func(res Result) bool { return !res.Skipped && res.Err == nil })
}

// Failed 失败的结果
func (r *Report) Failed() []Result {
	return r.filter(func(res Result) bool { return res.Err != nil })
}

// Skipped 未执行的结果
func (r *Report) Skipped() []Result {
	return r.filter(func(res Result) bool { return res.Skipped })
}

func (r *Report) filter(keep func(Result) bool) []Result {
	var out []Result
	for _, res := range r.Results {
		if keep(res) {
			out = append(out, res)
		}
	}
	return out
}

// Manager 证书流水线编排器
type Manager struct {
	config   *config.Config
	registry *Registry
	notifier Notifier
	verifier *Verifier
	sleeper  Sleeper

	pollInterval    time.Duration
	maxPollAttempts int
	now             func() time.Time
	log             *logrus.Entry
}

// Option 管理器选项
type Option func(*Manager)

// WithRegistry 使用指定注册表，不再从配置创建
func WithRegistry(r *Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// WithNotifier 设置事件通知
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithSleeper 替换轮询等待的实现
func WithSleeper(s Sleeper) Option {
	return func(m *Manager) { m.sleeper = s }
}

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// WithMaxPollAttempts 设置最多查询次数，0 表示不限
func WithMaxPollAttempts(n int) Option {
	return func(m *Manager) { m.maxPollAttempts = n }
}

// WithVerifier 设置部署后校验器，传 nil 关闭校验
func WithVerifier(v *Verifier) Option {
	return func(m *Manager) { m.verifier = v }
}

// NewManager 创建管理器；未指定注册表时按配置创建全部提供商与目标
func NewManager(cfg *config.Config, log *logrus.Entry, opts ...Option) (*Manager, error) {
	m := &Manager{
		config:          cfg,
		verifier:        NewVerifier(),
		sleeper:         timerSleeper{},
		pollInterval:    PollInterval,
		maxPollAttempts: MaxPollAttempts,
		now:             time.Now,
		log:             log,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.registry == nil {
		registry, err := NewFactory(cfg, log).Build()
		if err != nil {
			log.WithError(err).Error("部分提供商或部署目标不可用，引用它们的域名将失败")
		}
		m.registry = registry
	}
	return m, nil
}

// Run 处理配置中的全部域名
// 默认逐条隔离失败；fail_fast 时首个失败后跳过剩余域名
func (m *Manager) Run(ctx context.Context) (*Report, error) {
	start := m.now()
	report := &Report{RunID: uuid.NewString()}
	log := m.log.WithField("run_id", report.RunID)

	requests := make([]DomainRequest, 0, len(m.config.Domains))
	for _, d := range m.config.Domains {
		requests = append(requests, RequestFromConfig(d))
	}
	log.WithField("domains", len(requests)).Info("========== 开始处理证书 ==========")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	limit := m.config.Concurrency
	if limit <= 0 {
		limit = 1
	}

	results := make([]Result, len(requests))
	g := new(errgroup.Group)
	g.SetLimit(limit)

	for i, req := range requests {
		g.Go(func() error {
			if runCtx.Err() != nil {
				results[i] = Result{Request: req, Skipped: true}
				return nil
			}
			results[i] = m.execute(runCtx, req, "", log)
			if results[i].Err != nil && m.config.FailFast {
				log.WithField(logger.FieldDomain, req.Domain).Warn("fail_fast 已开启，终止剩余域名")
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	report.Elapsed = m.now().Sub(start)

	var errs []error
	for _, res := range report.Failed() {
		errs = append(errs, res.Err)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	log.WithFields(logrus.Fields{
		"succeeded": len(report.Succeeded()),
		"failed":    len(report.Failed()),
		"skipped":   len(report.Skipped()),
		"elapsed":   report.Elapsed.Round(time.Millisecond).String(),
	}).Info("========== 处理完成 ==========")

	return report, certerrors.Join(errs...)
}

// ProcessDomain 处理单个域名：申请、等待签发、下载、部署
func (m *Manager) ProcessDomain(ctx context.Context, req DomainRequest) error {
	return m.execute(ctx, req, "", m.log).Err
}

// Resume 继续处理已申请的证书，不再发起新的申请
func (m *Manager) Resume(ctx context.Context, certID string, req DomainRequest) error {
	return m.execute(ctx, req, certID, m.log).Err
}

// RequestForAlias 按别名查找配置中的域名
func (m *Manager) RequestForAlias(alias string) (DomainRequest, error) {
	for _, d := range m.config.Domains {
		if d.GetAlias() == alias {
			return RequestFromConfig(d), nil
		}
	}
	return DomainRequest{}, certerrors.Config("配置中没有别名为 %q 的域名", alias)
}

// execute 执行一条请求；certID 非空时跳过申请
func (m *Manager) execute(ctx context.Context, req DomainRequest, certID string, base *logrus.Entry) Result {
	start := m.now()
	res := Result{Request: req, CertID: certID}

	log := base.WithFields(logrus.Fields{
		logger.FieldDomain:   req.Domain,
		logger.FieldAlias:    req.alias(),
		logger.FieldProvider: req.Provider,
		logger.FieldTarget:   req.Target,
	})
	if certID != "" {
		log = log.WithField(logger.FieldCertID, certID)
	}

	certID, err := m.pipeline(ctx, req, certID, log)
	res.CertID = certID
	res.Elapsed = m.now().Sub(start)

	if err != nil {
		res.Err = certerrors.WithDomain(req.Domain, err)
		if certID != "" {
			log = log.WithField(logger.FieldCertID, certID)
		}
		log.WithError(err).WithField("elapsed", res.Elapsed.Round(time.Millisecond).String()).Error("证书处理失败")
		if m.notifier != nil {
			if nerr := m.notifier.NotifyCertFailed(ctx, req.Domain, err.Error()); nerr != nil {
				log.WithError(nerr).Warn("发送失败通知失败")
			}
		}
		return res
	}

	log.WithFields(logrus.Fields{
		logger.FieldCertID: certID,
		"elapsed":          res.Elapsed.Round(time.Millisecond).String(),
	}).Info("证书已部署")
	if m.notifier != nil {
		if nerr := m.notifier.NotifyCertDeployed(ctx, req.Domain, certID, req.Target, res.Elapsed); nerr != nil {
			log.WithError(nerr).Warn("发送部署通知失败")
		}
	}
	return res
}

func (m *Manager) pipeline(ctx context.Context, req DomainRequest, certID string, log *logrus.Entry) (string, error) {
	if err := m.config.CheckDomain(config.DomainConfig{Domain: req.Domain}); err != nil {
		return certID, err
	}
	p, err := m.registry.CertProvider(req.Provider)
	if err != nil {
		return certID, err
	}
	t, err := m.registry.Target(req.Target)
	if err != nil {
		return certID, err
	}

	if certID == "" {
		certID, err = m.requestAndWait(ctx, p, req.Domain, req.alias(), log)
	} else {
		log.Info("继续等待已申请的证书")
		err = m.waitIssued(ctx, p, certID, log)
	}
	if err != nil {
		return certID, err
	}

	log = log.WithField(logger.FieldCertID, certID)
	if m.notifier != nil {
		if nerr := m.notifier.NotifyCertIssued(ctx, req.Domain, certID); nerr != nil {
			log.WithError(nerr).Warn("发送签发通知失败")
		}
	}

	return certID, m.deploy(ctx, p, t, req, certID, log)
}

// deploy 按目标格式下载并部署；证书包格式先在本地解码为DER
func (m *Manager) deploy(ctx context.Context, p provider.CertProvider, t target.Target, req DomainRequest, certID string, log *logrus.Entry) error {
	format := t.Format()
	split, bundle, err := provider.Download(ctx, p, certID, format)
	if err != nil {
		return err
	}
	log.WithField("format", format.String()).Debug("证书已下载")

	var password string
	if bundle != nil {
		password = bundle.Password
		if split, err = provider.DecodeBundle(bundle); err != nil {
			return err
		}
	}

	if err := t.DeployCertificate(ctx, req.Domain, split.PublicKey, split.PrivateKey, password); err != nil {
		return err
	}

	if m.verifier != nil {
		m.verify(ctx, t, req, split.PublicKey, bundle != nil, log)
	}
	return nil
}

func (m *Manager) verify(ctx context.Context, t target.Target, req DomainRequest, publicKey []byte, isDER bool, log *logrus.Entry) {
	leaf := publicKey
	if !isDER {
		der, err := provider.LeafDER(publicKey)
		if err != nil {
			log.WithError(err).Debug("无法解析部署证书，跳过校验")
			return
		}
		leaf = der
	}
	m.verifier.Check(ctx, t, req.VerifyAddress, req.Domain, leaf, log)
}
