package database

import (
	"path/filepath"
	"testing"
	"time"

	"homehub/internal/config"
	"homehub/internal/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			FilePath: filepath.Join(t.TempDir(), "homehub.db"),
		},
	}
	db, err := NewDatabase(cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetDeviceByDeviceIDMissing(t *testing.T) {
	db := newTestDB(t)

	device, err := db.GetDeviceByDeviceID("no_such_device")
	if err != nil {
		t.Fatalf("missing device should not be an error, got %v", err)
	}
	if device != nil {
		t.Errorf("got %+v, want nil", device)
	}
}

func TestDeleteDeviceCascades(t *testing.T) {
	db := newTestDB(t)

	device := &models.Device{DeviceID: "plug_1", Name: "Plug", Type: models.TypePlug, Enabled: true}
	if err := db.CreateDevice(device); err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	if err := db.SaveEnergyReading(&models.EnergyReading{
		Timestamp: time.Now(), DeviceID: "plug_1", PowerWatts: 100,
	}); err != nil {
		t.Fatalf("failed to save reading: %v", err)
	}
	if err := db.UpsertReachabilityStat(&models.ReachabilityStat{DeviceID: "plug_1", AvgLatency: 4}); err != nil {
		t.Fatalf("failed to save stat: %v", err)
	}

	if err := db.DeleteDevice(device.ID); err != nil {
		t.Fatalf("DeleteDevice failed: %v", err)
	}

	if got, _ := db.GetDeviceByDeviceID("plug_1"); got != nil {
		t.Error("device still present after delete")
	}
	rows, err := db.AggregateEnergy(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("AggregateEnergy failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("energy readings not cascaded: %v", rows)
	}
	stats, _ := db.GetReachabilityStats()
	if len(stats) != 0 {
		t.Errorf("reachability stats not cascaded: %v", stats)
	}
}

func TestSetDeviceStatusUpdatesLastSeen(t *testing.T) {
	db := newTestDB(t)

	past := time.Now().Add(-time.Hour)
	device := &models.Device{DeviceID: "cam_1", Name: "Camera", Type: models.TypeCamera, Enabled: true, LastSeen: past}
	if err := db.CreateDevice(device); err != nil {
		t.Fatalf("failed to create device: %v", err)
	}

	if err := db.SetDeviceStatus("cam_1", models.StatusOnline); err != nil {
		t.Fatalf("SetDeviceStatus failed: %v", err)
	}
	got, _ := db.GetDeviceByDeviceID("cam_1")
	if got.Status != models.StatusOnline {
		t.Errorf("status = %q, want online", got.Status)
	}
	if !got.LastSeen.After(past) {
		t.Error("last_seen not refreshed when device came online")
	}

	seenAt := got.LastSeen
	if err := db.SetDeviceStatus("cam_1", models.StatusOffline); err != nil {
		t.Fatalf("SetDeviceStatus failed: %v", err)
	}
	got, _ = db.GetDeviceByDeviceID("cam_1")
	if got.Status != models.StatusOffline {
		t.Errorf("status = %q, want offline", got.Status)
	}
	if !got.LastSeen.Equal(seenAt) {
		t.Error("last_seen must not change when device goes offline")
	}
}

func TestCountDevicesIgnoresDisabled(t *testing.T) {
	db := newTestDB(t)

	for _, d := range []*models.Device{
		{DeviceID: "a", Name: "A", Type: models.TypeLight, Status: models.StatusOnline, Enabled: true},
		{DeviceID: "b", Name: "B", Type: models.TypeLight, Status: models.StatusOffline, Enabled: true},
		{DeviceID: "c", Name: "C", Type: models.TypeLight, Status: models.StatusOnline, Enabled: false},
	} {
		if err := db.CreateDevice(d); err != nil {
			t.Fatalf("failed to create device: %v", err)
		}
	}

	total, online, err := db.CountDevices()
	if err != nil {
		t.Fatalf("CountDevices failed: %v", err)
	}
	if total != 2 || online != 1 {
		t.Errorf("total=%d online=%d, want 2/1", total, online)
	}
}

func TestMarkRuleExecuted(t *testing.T) {
	db := newTestDB(t)

	rule := &models.AutomationRule{RuleID: "r1", Name: "Rule", TriggerType: "manual", Enabled: true}
	if err := db.CreateRule(rule); err != nil {
		t.Fatalf("failed to create rule: %v", err)
	}

	if err := db.MarkRuleExecuted(rule.ID); err != nil {
		t.Fatalf("MarkRuleExecuted failed: %v", err)
	}
	if err := db.MarkRuleExecuted(rule.ID); err != nil {
		t.Fatalf("MarkRuleExecuted failed: %v", err)
	}

	stored, _ := db.GetRuleByRuleID("r1")
	if stored.ExecutionCount != 2 {
		t.Errorf("execution count = %d, want 2", stored.ExecutionCount)
	}
	if stored.LastExecuted == nil {
		t.Error("last executed not set")
	}
}

func TestGetBestPricesOrdering(t *testing.T) {
	db := newTestDB(t)

	prices := []models.ComponentPrice{
		{Component: "Smart Plug", Name: "Plug A", Price: 19.99, Supplier: "Amazon UK", LastUpdated: time.Now()},
		{Component: "Smart Plug", Name: "Plug B", Price: 12.49, Supplier: "Currys", LastUpdated: time.Now()},
		{Component: "Smart Plug", Name: "Plug C", Price: 24.99, Supplier: "Amazon UK", LastUpdated: time.Now()},
		{Component: "LED Strip", Name: "Strip", Price: 9.99, Supplier: "Amazon UK", LastUpdated: time.Now()},
	}
	if err := db.SaveComponentPrices(prices); err != nil {
		t.Fatalf("SaveComponentPrices failed: %v", err)
	}

	best, err := db.GetBestPrices("Smart Plug", 2)
	if err != nil {
		t.Fatalf("GetBestPrices failed: %v", err)
	}
	if len(best) != 2 {
		t.Fatalf("got %d offers, want 2", len(best))
	}
	if best[0].Price != 12.49 || best[1].Price != 19.99 {
		t.Errorf("offers not price-ordered: %v, %v", best[0].Price, best[1].Price)
	}
	for _, p := range best {
		if p.Component != "Smart Plug" {
			t.Errorf("offer for wrong component: %q", p.Component)
		}
	}
}

func TestUpsertSetting(t *testing.T) {
	db := newTestDB(t)

	if err := db.UpsertSetting(&models.SystemSetting{Key: "tariff", Value: "0.28", Category: "energy"}); err != nil {
		t.Fatalf("UpsertSetting failed: %v", err)
	}
	if err := db.UpsertSetting(&models.SystemSetting{Key: "tariff", Value: "0.31", Category: "energy"}); err != nil {
		t.Fatalf("second UpsertSetting failed: %v", err)
	}

	settings, err := db.GetAllSettings()
	if err != nil {
		t.Fatalf("GetAllSettings failed: %v", err)
	}
	if len(settings) != 1 {
		t.Fatalf("got %d settings, want 1", len(settings))
	}
	if settings[0].Value != "0.31" {
		t.Errorf("value = %q, want updated 0.31", settings[0].Value)
	}
}

func TestInitAdminRunsOnce(t *testing.T) {
	db := newTestDB(t)

	if err := db.InitAdmin("admin", "hash-one"); err != nil {
		t.Fatalf("InitAdmin failed: %v", err)
	}
	if err := db.InitAdmin("admin", "hash-two"); err != nil {
		t.Fatalf("second InitAdmin failed: %v", err)
	}

	admin, err := db.GetAdminByUsername("admin")
	if err != nil || admin == nil {
		t.Fatalf("failed to load admin: %v", err)
	}
	if admin.Password != "hash-one" {
		t.Errorf("password = %q, InitAdmin must not overwrite", admin.Password)
	}
}

func TestCleanupOldData(t *testing.T) {
	db := newTestDB(t)

	old := time.Now().AddDate(0, 0, -100)
	fresh := time.Now()

	db.SaveEnergyReading(&models.EnergyReading{Timestamp: old, DeviceID: "a"})
	db.SaveEnergyReading(&models.EnergyReading{Timestamp: fresh, DeviceID: "a"})
	db.SaveLoginAttempt(&models.LoginAttempt{Timestamp: old, Username: "admin"})
	db.SaveAlert(&models.Alert{Timestamp: old, AlertType: "DEVICE_OFFLINE", Acknowledged: true})
	db.SaveAlert(&models.Alert{Timestamp: old, AlertType: "DEVICE_OFFLINE", Acknowledged: false})

	if err := db.CleanupOldData(90); err != nil {
		t.Fatalf("CleanupOldData failed: %v", err)
	}

	attempts, _ := db.GetLoginAttempts(old.Add(-time.Hour), 10)
	if len(attempts) != 0 {
		t.Errorf("old login attempts survived cleanup: %v", attempts)
	}

	alerts, _ := db.GetAlerts(10, nil)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1 (unacknowledged kept)", len(alerts))
	}
	if alerts[0].Acknowledged {
		t.Error("acknowledged old alert should have been pruned")
	}

	rows, _ := db.AggregateEnergy(old.Add(-time.Hour))
	if len(rows) != 1 {
		t.Fatalf("got %d energy rows, want 1 device", len(rows))
	}
}
