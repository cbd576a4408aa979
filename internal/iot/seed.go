package iot

import (
	"fmt"
	"log"
	"os"
	"time"

	"homehub/internal/database"
	"homehub/internal/models"

	"gopkg.in/yaml.v3"
)

// seedDevice is one entry in the optional YAML device seed file.
type seedDevice struct {
	DeviceID            string   `yaml:"device_id"`
	Name                string   `yaml:"name"`
	Type                string   `yaml:"type"`
	Brand               string   `yaml:"brand"`
	Model               string   `yaml:"model"`
	Room                string   `yaml:"room"`
	IPAddress           string   `yaml:"ip_address"`
	MACAddress          string   `yaml:"mac_address"`
	Capabilities        []string `yaml:"capabilities"`
	RatedWatts          float64  `yaml:"rated_watts"`
	AutomationPotential string   `yaml:"automation_potential"`
	SetupNotes          string   `yaml:"setup_notes"`
}

type seedFile struct {
	Devices []seedDevice `yaml:"devices"`
}

// SeedDevices populates the registry on first boot: from the YAML seed file
// when configured, otherwise from a builtin sample set. Existing devices are
// never overwritten.
func SeedDevices(db *database.Database, seedPath string) error {
	seeds := builtinDevices()
	if seedPath != "" {
		fromFile, err := loadSeedFile(seedPath)
		if err != nil {
			return fmt.Errorf("failed to load device seed file: %w", err)
		}
		seeds = fromFile
	}

	created := 0
	for _, s := range seeds {
		existing, err := db.GetDeviceByDeviceID(s.DeviceID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		device := models.Device{
			DeviceID:            s.DeviceID,
			Name:                s.Name,
			Type:                s.Type,
			Brand:               s.Brand,
			Model:               s.Model,
			Room:                s.Room,
			IPAddress:           s.IPAddress,
			MACAddress:          s.MACAddress,
			Status:              models.StatusOffline,
			PowerWatts:          standbyWatts,
			AutomationPotential: s.AutomationPotential,
			SetupNotes:          s.SetupNotes,
			Enabled:             true,
			LastSeen:            time.Now(),
		}
		device.SetCapabilityList(s.Capabilities)
		device.SetStateMap(map[string]interface{}{
			"power":       "off",
			"rated_watts": s.RatedWatts,
		})

		if err := db.CreateDevice(&device); err != nil {
			return fmt.Errorf("failed to seed device %s: %w", s.DeviceID, err)
		}
		created++
	}

	if created > 0 {
		log.Printf("[IoT] Seeded %d devices", created)
	}
	return nil
}

func loadSeedFile(path string) ([]seedDevice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Devices) == 0 {
		return nil, fmt.Errorf("seed file %s contains no devices", path)
	}
	return f.Devices, nil
}

func builtinDevices() []seedDevice {
	return []seedDevice{
		{
			DeviceID:            "philips_hue_001",
			Name:                "Living Room Light",
			Type:                models.TypeLight,
			Brand:               "Philips",
			Model:               "Hue White A19",
			Room:                "living_room",
			IPAddress:           "192.168.1.101",
			Capabilities:        []string{"turn_on", "turn_off", "set_brightness", "set_color_temperature"},
			RatedWatts:          9,
			AutomationPotential: "Schedule on/off times, dim in the evening",
		},
		{
			DeviceID:            "nest_thermostat_001",
			Name:                "Hallway Thermostat",
			Type:                models.TypeThermostat,
			Brand:               "Google",
			Model:               "Nest Learning Thermostat",
			Room:                "hallway",
			IPAddress:           "192.168.1.102",
			Capabilities:        []string{"set_temperature", "set_mode", "get_temperature"},
			RatedWatts:          3,
			AutomationPotential: "Lower target temperature overnight and when away",
		},
		{
			DeviceID:            "smart_plug_001",
			Name:                "Kitchen Kettle Plug",
			Type:                models.TypePlug,
			Brand:               "TP-Link",
			Model:               "Kasa HS110",
			Room:                "kitchen",
			IPAddress:           "192.168.1.103",
			Capabilities:        []string{"turn_on", "turn_off", "get_energy_usage"},
			RatedWatts:          2200,
			AutomationPotential: "Cut standby draw outside breakfast hours",
		},
		{
			DeviceID:            "security_cam_001",
			Name:                "Front Door Camera",
			Type:                models.TypeCamera,
			Brand:               "Ring",
			Model:               "Stick Up Cam",
			Room:                "entrance",
			IPAddress:           "192.168.1.104",
			Capabilities:        []string{"start_recording", "stop_recording", "enable_motion_alerts", "disable_motion_alerts"},
			RatedWatts:          5,
			AutomationPotential: "Arm motion alerts when everyone has left",
		},
		{
			DeviceID:            "motion_sensor_001",
			Name:                "Hallway Motion Sensor",
			Type:                models.TypeSensor,
			Brand:               "Aqara",
			Model:               "P1",
			Room:                "hallway",
			IPAddress:           "192.168.1.105",
			Capabilities:        []string{"read_value"},
			RatedWatts:          0.5,
			AutomationPotential: "Trigger hallway light on motion after dark",
		},
	}
}

// SeedRules installs the starter automation rules when none exist.
func SeedRules(db *database.Database) error {
	for _, rule := range builtinRules() {
		existing, err := db.GetRuleByRuleID(rule.RuleID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := db.CreateRule(&rule); err != nil {
			return fmt.Errorf("failed to seed rule %s: %w", rule.RuleID, err)
		}
		log.Printf("[IoT] Seeded automation rule %s", rule.RuleID)
	}
	return nil
}

func builtinRules() []models.AutomationRule {
	morning := models.AutomationRule{
		RuleID:      "morning_routine",
		Name:        "Morning Routine",
		Description: "Warm the house and light the living room at 07:00",
		TriggerType: TriggerTime,
		Enabled:     true,
	}
	morning.SetConditionMap(map[string]interface{}{"time": "07:00"})
	morning.SetActionList([]models.RuleAction{
		{DeviceID: "philips_hue_001", Action: "turn_on", Parameters: map[string]interface{}{}},
		{DeviceID: "philips_hue_001", Action: "set_brightness", Parameters: map[string]interface{}{"brightness": 80.0}},
		{DeviceID: "nest_thermostat_001", Action: "set_temperature", Parameters: map[string]interface{}{"temperature": 21.0}},
	})

	saver := models.AutomationRule{
		RuleID:      "energy_saver",
		Name:        "Evening Energy Saver",
		Description: "Dim the lights and drop the thermostat at 23:00",
		TriggerType: TriggerTime,
		Enabled:     true,
	}
	saver.SetConditionMap(map[string]interface{}{"time": "23:00"})
	saver.SetActionList([]models.RuleAction{
		{DeviceID: "philips_hue_001", Action: "set_brightness", Parameters: map[string]interface{}{"brightness": 20.0}},
		{DeviceID: "nest_thermostat_001", Action: "set_temperature", Parameters: map[string]interface{}{"temperature": 17.0}},
		{DeviceID: "smart_plug_001", Action: "turn_off", Parameters: map[string]interface{}{}},
	})

	return []models.AutomationRule{morning, saver}
}
