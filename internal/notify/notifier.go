// Package notify delivers step reminders through a pluggable Notifier and
// runs the polling dispatcher that feeds it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"doughline/internal/config"
)

const defaultTimeout = 5 * time.Second

// Message is one reminder for one step.
type Message struct {
	Phone      string `json:"phone"`
	Text       string `json:"text"`
	ScheduleID string `json:"schedule_id"`
	Step       int    `json:"step"`
}

// Notifier sends a message and reports failure for retry bookkeeping.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// WebhookNotifier posts messages as JSON to a gateway URL.
type WebhookNotifier struct {
	URL    string
	Secret string
	Client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WebhookNotifier{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Doughline-Schedule", msg.ScheduleID)
	req.Header.Set("X-Doughline-Delivery", fmt.Sprintf("%s/%d", msg.ScheduleID, msg.Step))
	if strings.TrimSpace(w.Secret) != "" {
		req.Header.Set("X-Doughline-Secret", w.Secret)
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// LogNotifier writes messages to a logger instead of sending them.
type LogNotifier struct {
	Logger *log.Logger
}

func (l LogNotifier) Send(_ context.Context, msg Message) error {
	if l.Logger != nil {
		l.Logger.Info("reminder", "phone", msg.Phone, "schedule", msg.ScheduleID, "step", msg.Step, "text", msg.Text)
	}
	return nil
}

// FromConfig builds the configured notifier. secret is sent with webhook deliveries when set.
func FromConfig(cfg config.NotifierConfig, secret string, logger *log.Logger) (Notifier, error) {
	switch cfg.Kind {
	case "", "log":
		return LogNotifier{Logger: logger}, nil
	case "webhook":
		if strings.TrimSpace(cfg.WebhookURL) == "" {
			return nil, fmt.Errorf("webhook notifier needs a url")
		}
		w := NewWebhookNotifier(cfg.WebhookURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
		w.Secret = secret
		return w, nil
	}
	return nil, fmt.Errorf("unknown notifier kind %q", cfg.Kind)
}
