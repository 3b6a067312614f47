package service

import (
	"bytes"
	"context"
	"encoding/json"
	"mfs_literacy_backend/internal/config"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/pkg/logger"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notifier 告警通知下游，尽力而为：失败不影响主流程
type Notifier interface {
	Notify(ctx context.Context, alert *model.Alert, created bool)
}

// WebhookNotifier 把告警投递到配置的 webhook 地址
// 新开和抬升都会投递
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewWebhookNotifier(cfg config.NotificationConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

type alertNotification struct {
	Event        string              `json:"event"` // opened | bumped
	AlertID      uint                `json:"alertId"`
	Reference    string              `json:"reference"`
	Type         model.AlertType     `json:"type"`
	Priority     model.AlertPriority `json:"priority"`
	LearnerID    uint                `json:"learnerId"`
	Message      string              `json:"message"`
	TriggerCount int                 `json:"triggerCount"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert *model.Alert, created bool) {
	if n.webhookURL == "" {
		return
	}

	event := "bumped"
	if created {
		event = "opened"
	}
	payload, err := json.Marshal(alertNotification{
		Event:        event,
		AlertID:      alert.ID,
		Reference:    alert.Reference,
		Type:         alert.Type,
		Priority:     alert.Priority,
		LearnerID:    alert.LearnerID,
		Message:      alert.Message,
		TriggerCount: alert.TriggerCount,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		logger.Log.Warn("failed to build alert notification", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Log.Warn("alert notification delivery failed",
			zap.Uint("alert_id", alert.ID),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Log.Warn("alert notification rejected by webhook",
			zap.Uint("alert_id", alert.ID),
			zap.Int("status", resp.StatusCode),
		)
	}
}
