package alerts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"homehub/internal/config"
	"homehub/internal/database"
	"homehub/internal/models"
	"homehub/internal/notifier"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			FilePath: filepath.Join(t.TempDir(), "homehub.db"),
		},
	}
	db, err := database.NewDatabase(cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func webhookServer(t *testing.T, hits *int32, last *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("webhook received invalid JSON: %v", err)
		}
		*last = payload
		w.WriteHeader(http.StatusOK)
	}))
}

func TestDeviceOfflineAlert(t *testing.T) {
	var hits int32
	var payload map[string]interface{}
	srv := webhookServer(t, &hits, &payload)
	defer srv.Close()

	cfg := &config.Config{
		Alerts: config.AlertsConfig{
			DeviceOfflineAlert: true,
			WebHookURL:         srv.URL,
		},
	}
	db := newTestDB(t)
	am := NewAlertManager(cfg, db, notifier.NewNotifier(cfg))

	device := models.Device{DeviceID: "cam_1", Name: "Front Door Camera", Room: "entrance"}
	if err := am.DeviceOffline(device); err != nil {
		t.Fatalf("DeviceOffline failed: %v", err)
	}

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("webhook hit %d times, want 1", hits)
	}
	if payload["alert_type"] != "DEVICE_OFFLINE" {
		t.Errorf("alert_type = %v", payload["alert_type"])
	}
	if payload["device_id"] != "cam_1" {
		t.Errorf("device_id = %v", payload["device_id"])
	}

	stored, err := db.GetAlerts(10, nil)
	if err != nil {
		t.Fatalf("failed to load alerts: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d stored alerts, want 1", len(stored))
	}
	if stored[0].AlertType != "DEVICE_OFFLINE" || stored[0].Acknowledged {
		t.Errorf("stored alert = %+v", stored[0])
	}
}

func TestDeviceOfflineCooldown(t *testing.T) {
	var hits int32
	var payload map[string]interface{}
	srv := webhookServer(t, &hits, &payload)
	defer srv.Close()

	cfg := &config.Config{
		Alerts: config.AlertsConfig{
			DeviceOfflineAlert: true,
			WebHookURL:         srv.URL,
		},
	}
	am := NewAlertManager(cfg, nil, notifier.NewNotifier(cfg))

	device := models.Device{DeviceID: "cam_1", Name: "Camera"}
	am.DeviceOffline(device)
	am.DeviceOffline(device)
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("webhook hit %d times, want 1 (cooldown suppresses repeats)", hits)
	}

	// A different device is not covered by the first device's cooldown
	am.DeviceOffline(models.Device{DeviceID: "cam_2", Name: "Other Camera"})
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("webhook hit %d times, want 2", hits)
	}

	// Expired cooldown lets the alert through again
	am.SetCooldown(time.Nanosecond)
	time.Sleep(time.Millisecond)
	am.DeviceOffline(device)
	if atomic.LoadInt32(&hits) != 3 {
		t.Errorf("webhook hit %d times, want 3 after cooldown expiry", hits)
	}
}

func TestDeviceOfflineDisabled(t *testing.T) {
	var hits int32
	var payload map[string]interface{}
	srv := webhookServer(t, &hits, &payload)
	defer srv.Close()

	cfg := &config.Config{
		Alerts: config.AlertsConfig{
			DeviceOfflineAlert: false,
			WebHookURL:         srv.URL,
		},
	}
	am := NewAlertManager(cfg, nil, notifier.NewNotifier(cfg))

	if err := am.DeviceOffline(models.Device{DeviceID: "cam_1"}); err != nil {
		t.Fatalf("DeviceOffline failed: %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("webhook hit %d times, want 0 when offline alerts disabled", hits)
	}
}

func TestCheckDailyCost(t *testing.T) {
	var hits int32
	var payload map[string]interface{}
	srv := webhookServer(t, &hits, &payload)
	defer srv.Close()

	cfg := &config.Config{
		Alerts: config.AlertsConfig{
			DailyCostThreshold: 10.0,
			WebHookURL:         srv.URL,
		},
	}
	am := NewAlertManager(cfg, nil, notifier.NewNotifier(cfg))

	if err := am.CheckDailyCost(5.0, "GBP"); err != nil {
		t.Fatalf("CheckDailyCost failed: %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("cost below threshold should not alert")
	}

	if err := am.CheckDailyCost(12.5, "GBP"); err != nil {
		t.Fatalf("CheckDailyCost failed: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("webhook hit %d times, want 1", hits)
	}
	if payload["alert_type"] != "ENERGY_COST_HIGH" {
		t.Errorf("alert_type = %v", payload["alert_type"])
	}
	if payload["current_value"] != 12.5 {
		t.Errorf("current_value = %v, want 12.5", payload["current_value"])
	}
}
