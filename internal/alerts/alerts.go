package alerts

import (
	"fmt"
	"log"
	"sync"
	"time"

	"homehub/internal/config"
	"homehub/internal/database"
	"homehub/internal/models"
	"homehub/internal/notifier"
)

type AlertManager struct {
	config        *config.Config
	db            *database.Database
	notifier      *notifier.Notifier
	lastAlert     map[string]time.Time
	mu            sync.Mutex
	alertCooldown time.Duration
}

func NewAlertManager(cfg *config.Config, db *database.Database, notif *notifier.Notifier) *AlertManager {
	return &AlertManager{
		config:        cfg,
		db:            db,
		notifier:      notif,
		lastAlert:     make(map[string]time.Time),
		alertCooldown: 5 * time.Minute,
	}
}

// DeviceOffline raises an alert when a previously online device stops
// responding to probes.
func (am *AlertManager) DeviceOffline(device models.Device) error {
	if !am.config.Alerts.DeviceOfflineAlert {
		return nil
	}

	now := time.Now()
	key := fmt.Sprintf("offline_%s", device.DeviceID)

	am.mu.Lock()
	if !am.canAlert(key, now) {
		am.mu.Unlock()
		return nil
	}
	am.lastAlert[key] = now
	am.mu.Unlock()

	alert := models.Alert{
		Timestamp: now,
		DeviceID:  device.DeviceID,
		AlertType: "DEVICE_OFFLINE",
		Severity:  "warning",
		Message:   fmt.Sprintf("Device %s (%s) in %s is offline", device.Name, device.DeviceID, device.Room),
	}

	return am.dispatch(&alert)
}

// CheckDailyCost raises an alert when the fleet's projected daily energy
// cost crosses the configured threshold.
func (am *AlertManager) CheckDailyCost(totalDailyCost float64, currency string) error {
	threshold := am.config.Alerts.DailyCostThreshold
	if threshold <= 0 || totalDailyCost < threshold {
		return nil
	}

	now := time.Now()
	key := "daily_cost"

	am.mu.Lock()
	if !am.canAlert(key, now) {
		am.mu.Unlock()
		return nil
	}
	am.lastAlert[key] = now
	am.mu.Unlock()

	alert := models.Alert{
		Timestamp:    now,
		AlertType:    "ENERGY_COST_HIGH",
		Severity:     "warning",
		Message:      fmt.Sprintf("Projected daily energy cost is %.2f %s (threshold: %.2f)", totalDailyCost, currency, threshold),
		MetricName:   "daily_energy_cost",
		Threshold:    threshold,
		CurrentValue: totalDailyCost,
	}

	return am.dispatch(&alert)
}

func (am *AlertManager) dispatch(alert *models.Alert) error {
	if am.db != nil {
		if err := am.db.SaveAlert(alert); err != nil {
			log.Printf("[Alerts] Failed to persist alert: %v", err)
		}
	}
	if err := am.notifier.SendAlert(alert); err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	return nil
}

func (am *AlertManager) canAlert(key string, now time.Time) bool {
	if lastTime, exists := am.lastAlert[key]; exists {
		return now.Sub(lastTime) > am.alertCooldown
	}
	return true
}

func (am *AlertManager) SetCooldown(duration time.Duration) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.alertCooldown = duration
}
