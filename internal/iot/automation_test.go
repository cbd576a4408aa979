package iot

import (
	"testing"
	"time"

	"homehub/internal/database"
	"homehub/internal/models"
)

func createRule(t *testing.T, db *database.Database, rule *models.AutomationRule) {
	t.Helper()
	if err := db.CreateRule(rule); err != nil {
		t.Fatalf("failed to create rule %s: %v", rule.RuleID, err)
	}
}

func timeRule(ruleID, at, deviceID string) *models.AutomationRule {
	rule := &models.AutomationRule{
		RuleID:      ruleID,
		Name:        "Test Rule",
		TriggerType: TriggerTime,
		Enabled:     true,
	}
	rule.SetConditionMap(map[string]interface{}{"time": at})
	rule.SetActionList([]models.RuleAction{
		{DeviceID: deviceID, Action: "turn_on"},
	})
	return rule
}

func TestTimeTriggerFiresAtMatchingMinute(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, NewController(db, nil))

	createDevice(t, db, newLight("light_1", 9))
	now := time.Date(2026, 8, 31, 7, 0, 30, 0, time.UTC)
	createRule(t, db, timeRule("morning", "07:00", "light_1"))

	engine.Check(now)

	device, _ := db.GetDeviceByDeviceID("light_1")
	if device.StateMap()["power"] != "on" {
		t.Errorf("device power = %v, want on after rule fired", device.StateMap()["power"])
	}

	rule, err := db.GetRuleByRuleID("morning")
	if err != nil || rule == nil {
		t.Fatalf("failed to reload rule: %v", err)
	}
	if rule.ExecutionCount != 1 {
		t.Errorf("execution count = %d, want 1", rule.ExecutionCount)
	}
	if rule.LastExecuted == nil {
		t.Error("last executed not recorded")
	}
}

func TestTimeTriggerDoesNotFireAtOtherTimes(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, NewController(db, nil))

	createDevice(t, db, newLight("light_1", 9))
	createRule(t, db, timeRule("morning", "07:00", "light_1"))

	engine.Check(time.Date(2026, 8, 31, 8, 15, 0, 0, time.UTC))

	rule, _ := db.GetRuleByRuleID("morning")
	if rule.ExecutionCount != 0 {
		t.Errorf("execution count = %d, want 0", rule.ExecutionCount)
	}
}

func TestRuleDoesNotRetriggerWithinAMinute(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, NewController(db, nil))

	createDevice(t, db, newLight("light_1", 9))
	createRule(t, db, timeRule("morning", "07:00", "light_1"))

	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)
	engine.Check(now)
	engine.Check(now.Add(20 * time.Second))

	rule, _ := db.GetRuleByRuleID("morning")
	if rule.ExecutionCount != 1 {
		t.Errorf("execution count = %d, want 1 (no retrigger within a minute)", rule.ExecutionCount)
	}
}

func TestDisabledRuleIsIgnored(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, NewController(db, nil))

	createDevice(t, db, newLight("light_1", 9))
	rule := timeRule("morning", "07:00", "light_1")
	rule.Enabled = false
	createRule(t, db, rule)

	engine.Check(time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC))

	stored, _ := db.GetRuleByRuleID("morning")
	if stored.ExecutionCount != 0 {
		t.Errorf("disabled rule executed %d times", stored.ExecutionCount)
	}
}

func TestSensorTrigger(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, NewController(db, nil))

	sensor := &models.Device{
		DeviceID: "temp_sensor", Name: "Sensor", Type: models.TypeSensor,
		Status: models.StatusOnline, Enabled: true,
	}
	sensor.SetStateMap(map[string]interface{}{"value": 30.0})
	createDevice(t, db, sensor)
	createDevice(t, db, newLight("light_1", 9))

	rule := &models.AutomationRule{
		RuleID:      "too_warm",
		Name:        "Too Warm",
		TriggerType: TriggerSensor,
		Enabled:     true,
	}
	rule.SetConditionMap(map[string]interface{}{
		"device_id": "temp_sensor",
		"operator":  "above",
		"value":     25.0,
	})
	rule.SetActionList([]models.RuleAction{{DeviceID: "light_1", Action: "turn_on"}})
	createRule(t, db, rule)

	engine.Check(time.Now())

	stored, _ := db.GetRuleByRuleID("too_warm")
	if stored.ExecutionCount != 1 {
		t.Errorf("execution count = %d, want 1 (30 is above 25)", stored.ExecutionCount)
	}
}

func TestSensorTriggerBelowThresholdDoesNotFire(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, NewController(db, nil))

	sensor := &models.Device{
		DeviceID: "temp_sensor", Name: "Sensor", Type: models.TypeSensor,
		Status: models.StatusOnline, Enabled: true,
	}
	sensor.SetStateMap(map[string]interface{}{"value": 20.0})
	createDevice(t, db, sensor)
	createDevice(t, db, newLight("light_1", 9))

	rule := &models.AutomationRule{
		RuleID:      "too_warm",
		Name:        "Too Warm",
		TriggerType: TriggerSensor,
		Enabled:     true,
	}
	rule.SetConditionMap(map[string]interface{}{
		"device_id": "temp_sensor",
		"operator":  "above",
		"value":     25.0,
	})
	rule.SetActionList([]models.RuleAction{{DeviceID: "light_1", Action: "turn_on"}})
	createRule(t, db, rule)

	engine.Check(time.Now())

	stored, _ := db.GetRuleByRuleID("too_warm")
	if stored.ExecutionCount != 0 {
		t.Errorf("execution count = %d, want 0 (20 is not above 25)", stored.ExecutionCount)
	}
}

func TestExecuteFailsWhenAllActionsFail(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, NewController(db, nil))

	rule := &models.AutomationRule{
		RuleID:      "broken",
		Name:        "Broken",
		TriggerType: TriggerManual,
		Enabled:     true,
	}
	rule.SetActionList([]models.RuleAction{{DeviceID: "ghost", Action: "turn_on"}})
	createRule(t, db, rule)

	stored, _ := db.GetRuleByRuleID("broken")
	if err := engine.Execute(stored); err == nil {
		t.Error("executing a rule whose only action targets a missing device should fail")
	}
}

func TestExecuteRequiresActions(t *testing.T) {
	db := newTestDB(t)
	engine := NewEngine(db, NewController(db, nil))

	rule := &models.AutomationRule{RuleID: "empty", Name: "Empty", TriggerType: TriggerManual}
	if err := engine.Execute(rule); err == nil {
		t.Error("executing a rule with no actions should fail")
	}
}

func TestSeedDevicesIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	if err := SeedDevices(db, ""); err != nil {
		t.Fatalf("SeedDevices failed: %v", err)
	}
	devices, err := db.GetAllDevices()
	if err != nil {
		t.Fatalf("failed to list devices: %v", err)
	}
	seeded := len(devices)
	if seeded == 0 {
		t.Fatal("expected builtin devices to be seeded")
	}

	// Re-seeding must not duplicate or overwrite
	if err := SeedDevices(db, ""); err != nil {
		t.Fatalf("second SeedDevices failed: %v", err)
	}
	devices, _ = db.GetAllDevices()
	if len(devices) != seeded {
		t.Errorf("re-seeding changed device count from %d to %d", seeded, len(devices))
	}
}

func TestSeedRules(t *testing.T) {
	db := newTestDB(t)

	if err := SeedRules(db); err != nil {
		t.Fatalf("SeedRules failed: %v", err)
	}
	rules, err := db.GetAllRules()
	if err != nil {
		t.Fatalf("failed to list rules: %v", err)
	}
	if len(rules) == 0 {
		t.Fatal("expected builtin rules to be seeded")
	}
	for _, rule := range rules {
		if rule.TriggerType != TriggerTime {
			t.Errorf("rule %s trigger = %q, want time", rule.RuleID, rule.TriggerType)
		}
		if len(rule.ActionList()) == 0 {
			t.Errorf("rule %s has no actions", rule.RuleID)
		}
	}
}
