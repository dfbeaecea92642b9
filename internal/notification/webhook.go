// Package notification 以 Webhook 推送证书流水线事件
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"certhub/internal/config"
	"certhub/internal/logger"
)

// EventType 事件类型
type EventType string

const (
	EventCertIssued   EventType = "cert_issued"   // 证书已签发
	EventCertDeployed EventType = "cert_deployed" // 证书已部署到目标
	EventCertFailed   EventType = "cert_failed"   // 流水线失败
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
)

// EventData 事件数据
type EventData struct {
	ID        string         `json:"id"`             // 事件ID
	Event     string         `json:"event"`          // 事件类型
	Domain    string         `json:"domain"`         // 域名
	Timestamp string         `json:"timestamp"`      // 时间戳
	Message   string         `json:"message"`        // 消息
	Data      map[string]any `json:"data,omitempty"` // 额外数据
}

// WebhookNotifier Webhook 通知器
type WebhookNotifier struct {
	config  *config.WebhookConfig
	client  *http.Client
	tmpl    *template.Template
	backoff func(attempt int) time.Duration
	now     func() time.Time
	log     *logrus.Entry
}

// NewWebhookNotifier 创建 Webhook 通知器，未启用时返回 nil
func NewWebhookNotifier(cfg *config.WebhookConfig, log *logrus.Entry) (*WebhookNotifier, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	w := &WebhookNotifier{
		config:  cfg,
		client:  &http.Client{Timeout: timeout},
		backoff: exponentialBackoff,
		now:     time.Now,
		log:     log.WithField("component", "webhook"),
	}

	if cfg.BodyTemplate != "" {
		tmpl, err := template.New("webhook").Funcs(template.FuncMap{"toJson": toJSON}).Parse(cfg.BodyTemplate)
		if err != nil {
			return nil, fmt.Errorf("解析 Webhook 请求体模板失败: %w", err)
		}
		w.tmpl = tmpl
	}
	return w, nil
}

// exponentialBackoff 1s, 2s, 4s ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// IsEnabled 检查是否启用
func (w *WebhookNotifier) IsEnabled() bool {
	return w != nil && w.config != nil && w.config.Enabled
}

// ShouldNotify 检查是否订阅了该事件；未配置事件列表时全部发送
func (w *WebhookNotifier) ShouldNotify(eventType EventType) bool {
	if !w.IsEnabled() {
		return false
	}
	if len(w.config.Events) == 0 {
		return true
	}
	for _, e := range w.config.Events {
		if e == string(eventType) {
			return true
		}
	}
	return false
}

// Notify 发送通知，失败按指数退避重试
func (w *WebhookNotifier) Notify(ctx context.Context, eventType EventType, domainName, message string, data map[string]any) error {
	if !w.ShouldNotify(eventType) {
		return nil
	}

	event := EventData{
		ID:        uuid.NewString(),
		Event:     string(eventType),
		Domain:    domainName,
		Timestamp: w.now().Format(time.RFC3339),
		Message:   message,
		Data:      data,
	}
	log := w.log.WithFields(logrus.Fields{
		logger.FieldDomain: domainName,
		"event":            eventType,
		"event_id":         event.ID,
	})

	body, err := w.render(event)
	if err != nil {
		log.WithError(err).Warn("渲染 Webhook 请求体模板失败，使用默认格式")
		if body, err = json.Marshal(event); err != nil {
			return fmt.Errorf("序列化事件数据失败: %w", err)
		}
	}

	retries := w.config.Retries
	if retries <= 0 {
		retries = defaultRetries
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		if i > 0 {
			backoff := w.backoff(i)
			log.WithError(lastErr).Warnf("Webhook 通知失败，%v 后重试 (第 %d/%d 次)", backoff, i+1, retries)
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
		}

		if lastErr = w.post(ctx, body); lastErr == nil {
			log.Debug("Webhook 通知发送成功")
			return nil
		}
	}

	log.WithError(lastErr).Errorf("Webhook 通知发送失败 (已尝试 %d 次)", retries)
	return lastErr
}

func (w *WebhookNotifier) render(event EventData) ([]byte, error) {
	if w.tmpl == nil {
		return json.Marshal(event)
	}

	var buf bytes.Buffer
	if err := w.tmpl.Execute(&buf, map[string]any{
		"ID":        event.ID,
		"Event":     event.Event,
		"Domain":    event.Domain,
		"Timestamp": event.Timestamp,
		"Message":   event.Message,
		"Data":      event.Data,
	}); err != nil {
		return nil, fmt.Errorf("渲染模板失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range w.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Webhook 返回错误状态码: %d", resp.StatusCode)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NotifyCertIssued 通知证书已签发
func (w *WebhookNotifier) NotifyCertIssued(ctx context.Context, domainName, certID string) error {
	return w.Notify(ctx, EventCertIssued, domainName, fmt.Sprintf("证书已签发: %s", domainName), map[string]any{
		"cert_id": certID,
	})
}

// NotifyCertDeployed 通知证书已部署
func (w *WebhookNotifier) NotifyCertDeployed(ctx context.Context, domainName, certID, target string, elapsed time.Duration) error {
	return w.Notify(ctx, EventCertDeployed, domainName, fmt.Sprintf("证书已部署: %s -> %s", domainName, target), map[string]any{
		"cert_id":         certID,
		"target":          target,
		"elapsed_seconds": elapsed.Seconds(),
	})
}

// NotifyCertFailed 通知证书处理失败
func (w *WebhookNotifier) NotifyCertFailed(ctx context.Context, domainName, reason string) error {
	return w.Notify(ctx, EventCertFailed, domainName, fmt.Sprintf("证书处理失败: %s", domainName), map[string]any{
		"reason": reason,
	})
}
