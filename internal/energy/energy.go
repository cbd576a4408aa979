package energy

import (
	"fmt"
	"log"
	"math"
	"time"

	"homehub/internal/config"
	"homehub/internal/database"
	"homehub/internal/models"
)

// Recorder samples the current power draw of online devices and turns it
// into cost and efficiency figures.
type Recorder struct {
	db     *database.Database
	tariff float64
}

func NewRecorder(db *database.Database, cfg *config.Config) *Recorder {
	return &Recorder{db: db, tariff: cfg.Energy.TariffPerKWh}
}

// DailyCost projects a constant draw over 24 hours at the configured tariff.
func (r *Recorder) DailyCost(watts float64) float64 {
	return watts / 1000 * 24 * r.tariff
}

// EfficiencyScore rates a device's draw on a 0-100 scale; 1000 W and above
// scores zero.
func EfficiencyScore(watts float64) float64 {
	return math.Max(0, 100-watts/10)
}

// Sample records one reading per online device.
func (r *Recorder) Sample() error {
	devices, err := r.db.GetEnabledDevices()
	if err != nil {
		return fmt.Errorf("failed to load devices: %w", err)
	}

	now := time.Now()
	var readings []models.EnergyReading
	for _, device := range devices {
		if device.Status != models.StatusOnline {
			continue
		}
		readings = append(readings, models.EnergyReading{
			Timestamp:       now,
			DeviceID:        device.DeviceID,
			PowerWatts:      device.PowerWatts,
			DailyCost:       r.DailyCost(device.PowerWatts),
			EfficiencyScore: EfficiencyScore(device.PowerWatts),
		})
	}

	if len(readings) == 0 {
		return nil
	}
	if err := r.db.SaveEnergyReadings(readings); err != nil {
		return fmt.Errorf("failed to save readings: %w", err)
	}
	log.Printf("[Energy] Sampled %d devices", len(readings))
	return nil
}

// Report aggregates per-device averages over the last `days` days.
func (r *Recorder) Report(days int, currency string) (*models.EnergyReport, error) {
	if days <= 0 {
		days = 7
	}

	rows, err := r.db.AggregateEnergy(time.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate readings: %w", err)
	}

	report := &models.EnergyReport{
		PeriodDays:    days,
		Currency:      currency,
		DeviceReports: rows,
	}
	for _, row := range rows {
		report.TotalDailyCost += row.AverageDailyCost
	}
	report.TotalMonthlyCost = report.TotalDailyCost * 30
	return report, nil
}
