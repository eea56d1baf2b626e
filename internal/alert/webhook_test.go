package alert_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazz-dev/everwatch/internal/alert"
)

func makeNotification(id string, critical bool) alert.Notification {
	status := "200"
	if critical {
		status = "503"
	}
	return alert.Notification{
		EndpointID:   id,
		EndpointName: id,
		URL:          "https://" + id + ".example.com",
		Title:        alert.Title(true),
		Status:       status,
		Critical:     critical,
		At:           time.Now().UTC(),
	}
}

func countingServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var callCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&callCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &callCount
}

func TestWebhook_Sends(t *testing.T) {
	srv, calls := countingServer(t)

	w := alert.NewWebhookNotifier(srv.URL, time.Hour, nil)
	w.Notify(makeNotification("api", true))
	w.Wait()

	if got := atomic.LoadInt32(calls); got != 1 {
		t.Errorf("expected 1 webhook call, got %d", got)
	}
}

func TestWebhook_Cooldown_SuppressesAlerts(t *testing.T) {
	srv, calls := countingServer(t)

	w := alert.NewWebhookNotifier(srv.URL, time.Hour, nil)
	w.Notify(makeNotification("api", true))
	w.Notify(makeNotification("api", false))
	w.Wait()

	if got := atomic.LoadInt32(calls); got != 1 {
		t.Errorf("expected 1 webhook call (cooldown suppressed second), got %d", got)
	}
}

func TestWebhook_Cooldown_PerEndpoint(t *testing.T) {
	srv, calls := countingServer(t)

	w := alert.NewWebhookNotifier(srv.URL, time.Hour, nil)
	w.Notify(makeNotification("svc1", true))
	w.Notify(makeNotification("svc2", true))
	w.Wait()

	if got := atomic.LoadInt32(calls); got != 2 {
		t.Errorf("expected 2 webhook calls (one per endpoint), got %d", got)
	}
}

func TestWebhook_ZeroCooldownSendsEveryTime(t *testing.T) {
	srv, calls := countingServer(t)

	w := alert.NewWebhookNotifier(srv.URL, 0, nil)
	w.Notify(makeNotification("api", true))
	w.Notify(makeNotification("api", false))
	w.Wait()

	if got := atomic.LoadInt32(calls); got != 2 {
		t.Errorf("expected 2 webhook calls, got %d", got)
	}
}

func TestWebhook_Payload(t *testing.T) {
	var (
		mu      sync.Mutex
		payload map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &payload)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := alert.NewWebhookNotifier(srv.URL, time.Hour, nil)
	n := makeNotification("api", true)
	n.PreviousStatus = "200"
	w.Notify(n)
	w.Wait()

	mu.Lock()
	defer mu.Unlock()
	if payload["endpoint_id"] != "api" {
		t.Errorf("expected endpoint_id 'api', got %v", payload["endpoint_id"])
	}
	if payload["status"] != "503" {
		t.Errorf("expected status '503', got %v", payload["status"])
	}
	if payload["previous_status"] != "200" {
		t.Errorf("expected previous_status '200', got %v", payload["previous_status"])
	}
	if payload["critical"] != true {
		t.Errorf("expected critical true, got %v", payload["critical"])
	}
	if payload["source"] != "everwatch" {
		t.Errorf("expected source 'everwatch', got %v", payload["source"])
	}
}

func TestWebhook_HTTPError_DoesNotCrash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := alert.NewWebhookNotifier(srv.URL, time.Hour, nil)
	w.Notify(makeNotification("api", true))
	w.Wait()
}

func TestWebhook_UnreachableDoesNotCrash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	w := alert.NewWebhookNotifier(url, time.Hour, nil)
	w.Notify(makeNotification("api", true))
	w.Wait()
}
