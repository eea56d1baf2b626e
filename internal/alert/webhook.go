package alert

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// WebhookNotifier posts notifications as JSON to a URL. Per-endpoint cooldown
// suppresses bursts of flapping notifications.
type WebhookNotifier struct {
	webhookURL string
	cooldown   time.Duration
	client     *http.Client
	lastAlert  map[string]time.Time
	mu         sync.Mutex
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewWebhookNotifier creates a new WebhookNotifier. Pass nil logger to use the
// default logger.
func NewWebhookNotifier(webhookURL string, cooldown time.Duration, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		webhookURL: webhookURL,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: 10 * time.Second},
		lastAlert:  make(map[string]time.Time),
		logger:     logger,
	}
}

type webhookPayload struct {
	Notification
	Source string `json:"source"`
}

// Notify sends n unless the endpoint is within its cooldown.
func (w *WebhookNotifier) Notify(n Notification) {
	w.mu.Lock()
	last, exists := w.lastAlert[n.EndpointID]
	if exists && w.cooldown > 0 && time.Since(last) < w.cooldown {
		w.mu.Unlock()
		w.logger.Info("notification suppressed by cooldown", "endpoint", n.EndpointName)
		return
	}
	w.lastAlert[n.EndpointID] = time.Now()
	w.mu.Unlock()

	// Send asynchronously so Notify doesn't block the probe that triggered it.
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.send(n)
	}()
}

// Wait blocks until all in-flight webhook sends have finished.
func (w *WebhookNotifier) Wait() {
	w.wg.Wait()
}

func (w *WebhookNotifier) send(n Notification) {
	body, err := json.Marshal(webhookPayload{Notification: n, Source: "everwatch"})
	if err != nil {
		w.logger.Error("marshaling webhook payload", "endpoint", n.EndpointName, "error", err)
		return
	}

	resp, err := w.client.Post(w.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		w.logger.Error("sending webhook", "endpoint", n.EndpointName, "url", w.webhookURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.Warn("webhook returned non-2xx status",
			"endpoint", n.EndpointName,
			"status", resp.StatusCode,
		)
	}
}
