package models

import (
	"encoding/json"
	"time"
)

// Device status values
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusError   = "error"
)

// Device types
const (
	TypeLight      = "light"
	TypeThermostat = "thermostat"
	TypeCamera     = "camera"
	TypeSensor     = "sensor"
	TypeSwitch     = "switch"
	TypePlug       = "plug"
	TypeLock       = "lock"
	TypeSpeaker    = "speaker"
	TypeDisplay    = "display"
	TypeVacuum     = "vacuum"
)

type Device struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	DeviceID            string    `json:"device_id" gorm:"uniqueIndex;not null"`
	Name                string    `json:"name" gorm:"not null"`
	Type                string    `json:"type" gorm:"not null"`
	Brand               string    `json:"brand"`
	Model               string    `json:"model"`
	IPAddress           string    `json:"ip_address"`
	MACAddress          string    `json:"mac_address"`
	Room                string    `json:"room"`
	Status              string    `json:"status" gorm:"default:offline"`
	Capabilities        string    `json:"capabilities"`
	State               string    `json:"state"`
	LastSeen            time.Time `json:"last_seen"`
	PowerWatts          float64   `json:"power_watts"`
	AutomationPotential string    `json:"automation_potential"`
	SetupNotes          string    `json:"setup_notes"`
	Enabled             bool      `json:"enabled" gorm:"default:true"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// StateMap decodes the JSON state column. A broken or empty column
// decodes to an empty map rather than an error.
func (d *Device) StateMap() map[string]interface{} {
	state := map[string]interface{}{}
	if d.State != "" {
		if err := json.Unmarshal([]byte(d.State), &state); err != nil {
			return map[string]interface{}{}
		}
	}
	return state
}

func (d *Device) SetStateMap(state map[string]interface{}) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	d.State = string(data)
}

func (d *Device) CapabilityList() []string {
	var caps []string
	if d.Capabilities != "" {
		if err := json.Unmarshal([]byte(d.Capabilities), &caps); err != nil {
			return nil
		}
	}
	return caps
}

func (d *Device) SetCapabilityList(caps []string) {
	data, err := json.Marshal(caps)
	if err != nil {
		return
	}
	d.Capabilities = string(data)
}

type EnergyReading struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Timestamp       time.Time `json:"timestamp" gorm:"index"`
	DeviceID        string    `json:"device_id" gorm:"index"`
	PowerWatts      float64   `json:"power_watts"`
	DailyCost       float64   `json:"daily_cost"`
	EfficiencyScore float64   `json:"efficiency_score"`
}

type AutomationRule struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	RuleID            string     `json:"rule_id" gorm:"uniqueIndex;not null"`
	Name              string     `json:"name" gorm:"not null"`
	Description       string     `json:"description"`
	TriggerType       string     `json:"trigger_type"`
	TriggerConditions string     `json:"trigger_conditions"`
	Actions           string     `json:"actions"`
	Enabled           bool       `json:"enabled" gorm:"default:true"`
	LastExecuted      *time.Time `json:"last_executed"`
	ExecutionCount    int        `json:"execution_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// RuleAction is one device command inside an automation rule's action list.
type RuleAction struct {
	DeviceID   string                 `json:"device_id"`
	Action     string                 `json:"action"`
	Parameters map[string]interface{} `json:"parameters"`
}

func (r *AutomationRule) ActionList() []RuleAction {
	var actions []RuleAction
	if r.Actions != "" {
		if err := json.Unmarshal([]byte(r.Actions), &actions); err != nil {
			return nil
		}
	}
	return actions
}

func (r *AutomationRule) SetActionList(actions []RuleAction) {
	data, err := json.Marshal(actions)
	if err != nil {
		return
	}
	r.Actions = string(data)
}

func (r *AutomationRule) ConditionMap() map[string]interface{} {
	conditions := map[string]interface{}{}
	if r.TriggerConditions != "" {
		if err := json.Unmarshal([]byte(r.TriggerConditions), &conditions); err != nil {
			return map[string]interface{}{}
		}
	}
	return conditions
}

func (r *AutomationRule) SetConditionMap(conditions map[string]interface{}) {
	data, err := json.Marshal(conditions)
	if err != nil {
		return
	}
	r.TriggerConditions = string(data)
}

type ComponentPrice struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Component    string    `json:"component" gorm:"index"`
	Name         string    `json:"name" gorm:"not null"`
	Price        float64   `json:"price" gorm:"not null"`
	Currency     string    `json:"currency"`
	Supplier     string    `json:"supplier" gorm:"not null"`
	URL          string    `json:"url"`
	Availability string    `json:"availability"`
	LastUpdated  time.Time `json:"last_updated"`
}

type NewsItem struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Title          string    `json:"title" gorm:"not null"`
	Summary        string    `json:"summary"`
	URL            string    `json:"url" gorm:"uniqueIndex;not null"`
	Source         string    `json:"source"`
	PublishedAt    time.Time `json:"published_date"`
	RelevanceScore float64   `json:"relevance_score"`
	CreatedAt      time.Time `json:"created_at"`
}

type RoomScan struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Timestamp    time.Time `json:"timestamp" gorm:"index"`
	RoomType     string    `json:"room_type"`
	Confidence   float64   `json:"confidence"`
	WidthMeters  float64   `json:"width_meters"`
	HeightMeters float64   `json:"height_meters"`
	Lighting     string    `json:"lighting"`
	DeviceCount  int       `json:"device_count"`
	Suggestions  string    `json:"suggestions"`
}

type Alert struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Timestamp    time.Time `json:"timestamp"`
	DeviceID     string    `json:"device_id" gorm:"index"`
	AlertType    string    `json:"alert_type"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
	MetricName   string    `json:"metric_name"`
	Threshold    float64   `json:"threshold"`
	CurrentValue float64   `json:"current_value"`
	Notified     bool      `json:"notified"`
	Acknowledged bool      `json:"acknowledged"`
}

type ReachabilityStat struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	DeviceID   string    `json:"device_id" gorm:"uniqueIndex"`
	MinLatency float64   `json:"min_latency"`
	MaxLatency float64   `json:"max_latency"`
	AvgLatency float64   `json:"avg_latency"`
	PacketLoss float64   `json:"packet_loss"`
	Samples    int       `json:"samples"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type LoginAttempt struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	IPAddress string    `json:"ip_address"`
	Success   bool      `json:"success"`
	UserAgent string    `json:"user_agent"`
}

type Admin struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SystemSetting struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Key       string    `json:"key" gorm:"uniqueIndex;not null"`
	Value     string    `json:"value"`
	Type      string    `json:"type" gorm:"default:string"`
	Label     string    `json:"label"`
	Category  string    `json:"category"`
	IsSecret  bool      `json:"is_secret" gorm:"default:false"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Device) TableName() string           { return "devices" }
func (EnergyReading) TableName() string    { return "energy_readings" }
func (AutomationRule) TableName() string   { return "automation_rules" }
func (ComponentPrice) TableName() string   { return "component_prices" }
func (NewsItem) TableName() string         { return "news_items" }
func (RoomScan) TableName() string         { return "room_scans" }
func (Alert) TableName() string            { return "alerts" }
func (ReachabilityStat) TableName() string { return "reachability_stats" }
func (LoginAttempt) TableName() string     { return "login_attempts" }
func (Admin) TableName() string            { return "admins" }
func (SystemSetting) TableName() string    { return "system_settings" }

// DeviceSummary is the registry rollup returned by the devices endpoint.
type DeviceSummary struct {
	TotalDevices    int      `json:"total_devices"`
	OnlineDevices   int      `json:"online_devices"`
	OfflineDevices  int      `json:"offline_devices"`
	TotalPowerWatts float64  `json:"total_power_watts"`
	Devices         []Device `json:"devices"`
}

// AutomationSummary is the rules rollup returned by the automation endpoint.
type AutomationSummary struct {
	TotalRules      int              `json:"total_rules"`
	EnabledRules    int              `json:"enabled_rules"`
	TotalExecutions int              `json:"total_executions"`
	Rules           []AutomationRule `json:"rules"`
}

// DeviceEnergyReport is one device's row in the energy report.
type DeviceEnergyReport struct {
	DeviceID         string  `json:"device_id"`
	DeviceName       string  `json:"device_name"`
	AveragePower     float64 `json:"average_power"`
	AverageDailyCost float64 `json:"average_daily_cost"`
	EfficiencyScore  float64 `json:"efficiency_score"`
}

type EnergyReport struct {
	PeriodDays           int                  `json:"period_days"`
	TotalDailyCost       float64              `json:"total_estimated_daily_cost"`
	TotalMonthlyCost     float64              `json:"total_estimated_monthly_cost"`
	Currency             string               `json:"currency"`
	DeviceReports        []DeviceEnergyReport `json:"device_reports"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func SuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

func ErrorResponse(err string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   err,
	}
}

func MessageResponse(msg string) APIResponse {
	return APIResponse{
		Success: true,
		Message: msg,
	}
}
