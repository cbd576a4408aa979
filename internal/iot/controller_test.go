package iot

import (
	"errors"
	"path/filepath"
	"testing"

	"homehub/internal/config"
	"homehub/internal/database"
	"homehub/internal/models"
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

func createDevice(t *testing.T, db *database.Database, device *models.Device) {
	t.Helper()
	if err := db.CreateDevice(device); err != nil {
		t.Fatalf("failed to create device %s: %v", device.DeviceID, err)
	}
}

func newLight(deviceID string, ratedWatts float64) *models.Device {
	d := &models.Device{
		DeviceID: deviceID,
		Name:     "Test Light",
		Type:     models.TypeLight,
		Status:   models.StatusOnline,
		Enabled:  true,
	}
	d.SetStateMap(map[string]interface{}{"power": "off", "rated_watts": ratedWatts})
	return d
}

func TestControlLightTurnOn(t *testing.T) {
	db := newTestDB(t)
	c := NewController(db, nil)
	createDevice(t, db, newLight("light_1", 9))

	result, err := c.Control("light_1", "turn_on", nil)
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if result.State["power"] != "on" {
		t.Errorf("power = %v, want on", result.State["power"])
	}

	stored, err := db.GetDeviceByDeviceID("light_1")
	if err != nil || stored == nil {
		t.Fatalf("failed to reload device: %v", err)
	}
	if stored.PowerWatts != 9 {
		t.Errorf("power draw = %v, want full rated 9", stored.PowerWatts)
	}
	if stored.StateMap()["power"] != "on" {
		t.Errorf("persisted state power = %v, want on", stored.StateMap()["power"])
	}
}

func TestControlLightBrightnessScalesPower(t *testing.T) {
	db := newTestDB(t)
	c := NewController(db, nil)
	createDevice(t, db, newLight("light_1", 9))

	result, err := c.Control("light_1", "set_brightness", map[string]interface{}{"brightness": 50.0})
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if result.State["brightness"] != 50.0 {
		t.Errorf("brightness = %v, want 50", result.State["brightness"])
	}

	stored, _ := db.GetDeviceByDeviceID("light_1")
	if stored.PowerWatts != 4.5 {
		t.Errorf("power draw = %v, want 4.5 (50%% of 9W)", stored.PowerWatts)
	}
}

func TestControlLightClampsBrightness(t *testing.T) {
	db := newTestDB(t)
	c := NewController(db, nil)
	createDevice(t, db, newLight("light_1", 9))

	result, err := c.Control("light_1", "set_brightness", map[string]interface{}{"brightness": 150.0})
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if result.State["brightness"] != 100.0 {
		t.Errorf("brightness = %v, want clamped to 100", result.State["brightness"])
	}
}

func TestControlLightClampsColorTemperature(t *testing.T) {
	db := newTestDB(t)
	c := NewController(db, nil)
	createDevice(t, db, newLight("light_1", 9))

	result, err := c.Control("light_1", "set_color_temperature", map[string]interface{}{"color_temperature": 10000.0})
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if result.State["color_temperature"] != 6500.0 {
		t.Errorf("color temperature = %v, want clamped to 6500", result.State["color_temperature"])
	}

	result, err = c.Control("light_1", "set_color_temperature", map[string]interface{}{"color_temperature": 500.0})
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if result.State["color_temperature"] != 2000.0 {
		t.Errorf("color temperature = %v, want clamped to 2000", result.State["color_temperature"])
	}
}

func TestControlLightTurnOffUsesStandbyDraw(t *testing.T) {
	db := newTestDB(t)
	c := NewController(db, nil)
	createDevice(t, db, newLight("light_1", 9))

	if _, err := c.Control("light_1", "turn_off", nil); err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	stored, _ := db.GetDeviceByDeviceID("light_1")
	if stored.PowerWatts != standbyWatts {
		t.Errorf("power draw = %v, want standby %v", stored.PowerWatts, standbyWatts)
	}
}

func TestControlThermostat(t *testing.T) {
	db := newTestDB(t)
	c := NewController(db, nil)

	thermostat := &models.Device{
		DeviceID: "thermo_1", Name: "Thermostat", Type: models.TypeThermostat,
		Status: models.StatusOnline, Enabled: true,
	}
	thermostat.SetStateMap(map[string]interface{}{"target_temperature": 20.0, "rated_watts": 3.5})
	createDevice(t, db, thermostat)

	result, err := c.Control("thermo_1", "set_temperature", map[string]interface{}{"temperature": 5.0})
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if result.State["target_temperature"] != 10.0 {
		t.Errorf("temperature = %v, want clamped to 10", result.State["target_temperature"])
	}

	result, err = c.Control("thermo_1", "set_temperature", map[string]interface{}{"temperature": 45.0})
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if result.State["target_temperature"] != 30.0 {
		t.Errorf("temperature = %v, want clamped to 30", result.State["target_temperature"])
	}

	if _, err := c.Control("thermo_1", "set_mode", map[string]interface{}{"mode": "eco"}); err == nil {
		t.Error("invalid thermostat mode should fail")
	}
	result, err = c.Control("thermo_1", "set_mode", map[string]interface{}{"mode": "heat"})
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if result.State["mode"] != "heat" {
		t.Errorf("mode = %v, want heat", result.State["mode"])
	}
}

func TestControlPlug(t *testing.T) {
	db := newTestDB(t)
	c := NewController(db, nil)

	plug := &models.Device{
		DeviceID: "plug_1", Name: "Plug", Type: models.TypePlug,
		Status: models.StatusOnline, Enabled: true,
	}
	plug.SetStateMap(map[string]interface{}{"power": "off", "rated_watts": 2200.0})
	createDevice(t, db, plug)

	if _, err := c.Control("plug_1", "turn_on", nil); err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	stored, _ := db.GetDeviceByDeviceID("plug_1")
	if stored.PowerWatts != 2200 {
		t.Errorf("power draw = %v, want 2200", stored.PowerWatts)
	}

	if _, err := c.Control("plug_1", "turn_off", nil); err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	stored, _ = db.GetDeviceByDeviceID("plug_1")
	if stored.PowerWatts != standbyWatts {
		t.Errorf("power draw = %v, want standby %v", stored.PowerWatts, standbyWatts)
	}
}

func TestControlCamera(t *testing.T) {
	db := newTestDB(t)
	c := NewController(db, nil)

	camera := &models.Device{
		DeviceID: "cam_1", Name: "Camera", Type: models.TypeCamera,
		Status: models.StatusOnline, Enabled: true,
	}
	createDevice(t, db, camera)

	result, err := c.Control("cam_1", "start_recording", nil)
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if result.State["recording"] != true {
		t.Errorf("recording = %v, want true", result.State["recording"])
	}
}

func TestControlErrors(t *testing.T) {
	db := newTestDB(t)
	c := NewController(db, nil)

	if _, err := c.Control("no_such_device", "turn_on", nil); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("got %v, want ErrDeviceNotFound", err)
	}

	disabled := newLight("light_off", 9)
	disabled.Enabled = false
	createDevice(t, db, disabled)
	if _, err := c.Control("light_off", "turn_on", nil); !errors.Is(err, ErrDeviceDisabled) {
		t.Errorf("got %v, want ErrDeviceDisabled", err)
	}

	createDevice(t, db, newLight("light_1", 9))
	if _, err := c.Control("light_1", "fly", nil); !errors.Is(err, ErrUnsupportedAction) {
		t.Errorf("got %v, want ErrUnsupportedAction", err)
	}
	if _, err := c.Control("light_1", "set_brightness", nil); err == nil {
		t.Error("missing brightness parameter should fail")
	}
}

type recordingPublisher struct {
	deviceID string
	state    map[string]interface{}
}

func (p *recordingPublisher) PublishState(deviceID string, state map[string]interface{}) error {
	p.deviceID = deviceID
	p.state = state
	return nil
}

func TestControlPublishesState(t *testing.T) {
	db := newTestDB(t)
	pub := &recordingPublisher{}
	c := NewController(db, pub)
	createDevice(t, db, newLight("light_1", 9))

	if _, err := c.Control("light_1", "turn_on", nil); err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if pub.deviceID != "light_1" {
		t.Errorf("published device = %q, want light_1", pub.deviceID)
	}
	if pub.state["power"] != "on" {
		t.Errorf("published state power = %v, want on", pub.state["power"])
	}
}
