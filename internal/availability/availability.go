package availability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"homehub/internal/config"
	"homehub/internal/database"
)

// Tracker records how long the hub has been running and how much of the
// device fleet is reachable.
type Tracker struct {
	config     *config.Config
	db         *database.Database
	mu         sync.RWMutex
	baseline   *Baseline
	startedAt  time.Time
	downEvents int
}

type Baseline struct {
	StartTime time.Time `json:"start_time"`
}

type Stats struct {
	HubUptimeSeconds  float64   `json:"hub_uptime_seconds"`
	HubUptimeHuman    string    `json:"hub_uptime"`
	TrackingSince     time.Time `json:"tracking_since"`
	RestartEvents     int       `json:"restart_events"`
	FleetAvailability float64   `json:"fleet_availability_percent"`
	DevicesTotal      int64     `json:"devices_total"`
	DevicesOnline     int64     `json:"devices_online"`
}

func NewTracker(cfg *config.Config, db *database.Database) *Tracker {
	t := &Tracker{
		config:    cfg,
		db:        db,
		startedAt: time.Now(),
	}

	if cfg.Availability.TrackingEnabled {
		t.loadBaseline()
	}

	return t
}

func (t *Tracker) loadBaseline() {
	if t.config.Availability.BaselineFile == "" {
		return
	}

	data, err := os.ReadFile(t.config.Availability.BaselineFile)
	if err != nil {
		t.baseline = &Baseline{StartTime: time.Now()}
		t.saveBaseline()
		return
	}

	var baseline Baseline
	if err := json.Unmarshal(data, &baseline); err != nil {
		t.baseline = &Baseline{StartTime: time.Now()}
		t.saveBaseline()
		return
	}

	// Each process start after the baseline was written is a restart
	t.baseline = &baseline
	t.downEvents++
}

func (t *Tracker) saveBaseline() {
	if t.config.Availability.BaselineFile == "" || t.baseline == nil {
		return
	}

	data, err := json.Marshal(t.baseline)
	if err != nil {
		log.Printf("[Availability] Failed to marshal baseline: %v", err)
		return
	}

	dir := filepath.Dir(t.config.Availability.BaselineFile)
	if dir == "." {
		dir = "/var/lib/homehub"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("[Availability] Failed to create baseline dir: %v", err)
		return
	}

	if err := os.WriteFile(t.config.Availability.BaselineFile, data, 0600); err != nil {
		log.Printf("[Availability] Failed to save baseline: %v", err)
	}
}

// GetStats reports hub uptime plus the share of enabled devices currently
// online.
func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	uptime := time.Since(t.startedAt)
	stats := Stats{
		HubUptimeSeconds: uptime.Seconds(),
		HubUptimeHuman:   FormatUptime(uptime),
		RestartEvents:    t.downEvents,
	}
	if t.baseline != nil {
		stats.TrackingSince = t.baseline.StartTime
	}

	if t.db != nil {
		total, online, err := t.db.CountDevices()
		if err != nil {
			log.Printf("[Availability] Failed to count devices: %v", err)
		} else {
			stats.DevicesTotal = total
			stats.DevicesOnline = online
			if total > 0 {
				stats.FleetAvailability = float64(online) / float64(total) * 100
			}
		}
	}

	return stats
}

func (t *Tracker) Reset() error {
	t.mu.Lock()
	t.baseline = &Baseline{StartTime: time.Now()}
	t.downEvents = 0
	t.mu.Unlock()

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.config.Availability.BaselineFile == "" {
		return nil
	}

	data, err := json.Marshal(t.baseline)
	if err != nil {
		return err
	}

	dir := filepath.Dir(t.config.Availability.BaselineFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(t.config.Availability.BaselineFile, data, 0600)
}

func FormatUptime(d time.Duration) string {
	seconds := int64(d.Seconds())

	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, secs)
	} else if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}
	return fmt.Sprintf("%ds", secs)
}
