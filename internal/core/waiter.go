package core

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
)

const (
	// PollInterval 两次状态查询之间的固定间隔
	PollInterval = 11 * time.Second

	// MaxPollAttempts 最多查询次数，0 表示不限
	MaxPollAttempts = 0
)

// Sleeper 可被 ctx 打断的等待
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitForIssuance 申请证书并等待签发，返回证书ID
func (m *Manager) WaitForIssuance(ctx context.Context, p provider.CertProvider, domainName, alias string) (string, error) {
	log := m.log.WithFields(logrus.Fields{
		logger.FieldDomain:   domainName,
		logger.FieldAlias:    alias,
		logger.FieldProvider: p.Name(),
	})
	return m.requestAndWait(ctx, p, domainName, alias, log)
}

func (m *Manager) requestAndWait(ctx context.Context, p provider.CertProvider, domainName, alias string, log *logrus.Entry) (string, error) {
	log.Info("申请证书")
	certID, err := p.RequestCertificate(ctx, domainName, provider.RequestOptions{Alias: alias})
	if err != nil {
		return "", err
	}

	log = log.WithField(logger.FieldCertID, certID)
	log.Info("证书申请已受理，等待签发")

	return certID, m.waitIssued(ctx, p, certID, log)
}

// waitIssued 查询状态直到签发；每次等待前检查 ctx
func (m *Manager) waitIssued(ctx context.Context, p provider.CertProvider, certID string, log *logrus.Entry) error {
	for attempt := 1; ; attempt++ {
		issued, err := p.CheckCertificateStatus(ctx, certID)
		if err != nil {
			return err
		}
		if issued {
			log.WithField("attempts", attempt).Info("证书已签发")
			return nil
		}

		if m.maxPollAttempts > 0 && attempt >= m.maxPollAttempts {
			return certerrors.Provider(fmt.Sprintf("查询 %d 次后证书 %s 仍未签发", attempt, certID), nil)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		log.WithField("attempt", attempt).Debugf("证书尚未签发，%s 后重试", m.pollInterval)
		if err := m.sleeper.Sleep(ctx, m.pollInterval); err != nil {
			return err
		}
	}
}
