package energy

import (
	"math"
	"path/filepath"
	"testing"
	"time"

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

func testRecorder(db *database.Database) *Recorder {
	return NewRecorder(db, &config.Config{
		Energy: config.EnergyConfig{TariffPerKWh: 0.28, Currency: "GBP"},
	})
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDailyCost(t *testing.T) {
	r := testRecorder(nil)

	// 1 kW for 24 hours at 0.28/kWh
	if got := r.DailyCost(1000); !almostEqual(got, 6.72) {
		t.Errorf("DailyCost(1000) = %v, want 6.72", got)
	}
	if got := r.DailyCost(0); got != 0 {
		t.Errorf("DailyCost(0) = %v, want 0", got)
	}
}

func TestEfficiencyScore(t *testing.T) {
	tests := []struct {
		watts, want float64
	}{
		{0, 100},
		{500, 50},
		{1000, 0},
		{2000, 0},
	}
	for _, tt := range tests {
		if got := EfficiencyScore(tt.watts); !almostEqual(got, tt.want) {
			t.Errorf("EfficiencyScore(%v) = %v, want %v", tt.watts, got, tt.want)
		}
	}
}

func TestSampleRecordsOnlineDevicesOnly(t *testing.T) {
	db := newTestDB(t)
	r := testRecorder(db)

	online := &models.Device{
		DeviceID: "lamp_1", Name: "Lamp", Type: models.TypeLight,
		Status: models.StatusOnline, Enabled: true, PowerWatts: 9,
	}
	offline := &models.Device{
		DeviceID: "plug_1", Name: "Plug", Type: models.TypePlug,
		Status: models.StatusOffline, Enabled: true, PowerWatts: 2200,
	}
	if err := db.CreateDevice(online); err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	if err := db.CreateDevice(offline); err != nil {
		t.Fatalf("failed to create device: %v", err)
	}

	if err := r.Sample(); err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	rows, err := db.AggregateEnergy(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("AggregateEnergy failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d device rows, want 1 (offline devices skipped)", len(rows))
	}
	if rows[0].DeviceID != "lamp_1" {
		t.Errorf("sampled device = %q, want lamp_1", rows[0].DeviceID)
	}
	if !almostEqual(rows[0].AveragePower, 9) {
		t.Errorf("average power = %v, want 9", rows[0].AveragePower)
	}
}

func TestReportTotals(t *testing.T) {
	db := newTestDB(t)
	r := testRecorder(db)

	for _, d := range []*models.Device{
		{DeviceID: "lamp_1", Name: "Lamp", Type: models.TypeLight, Status: models.StatusOnline, Enabled: true, PowerWatts: 100},
		{DeviceID: "plug_1", Name: "Plug", Type: models.TypePlug, Status: models.StatusOnline, Enabled: true, PowerWatts: 200},
	} {
		if err := db.CreateDevice(d); err != nil {
			t.Fatalf("failed to create device: %v", err)
		}
	}
	if err := r.Sample(); err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	report, err := r.Report(7, "GBP")
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if report.PeriodDays != 7 {
		t.Errorf("period = %d, want 7", report.PeriodDays)
	}
	if report.Currency != "GBP" {
		t.Errorf("currency = %q, want GBP", report.Currency)
	}
	if len(report.DeviceReports) != 2 {
		t.Fatalf("got %d device reports, want 2", len(report.DeviceReports))
	}

	wantDaily := r.DailyCost(100) + r.DailyCost(200)
	if !almostEqual(report.TotalDailyCost, wantDaily) {
		t.Errorf("total daily cost = %v, want %v", report.TotalDailyCost, wantDaily)
	}
	if !almostEqual(report.TotalMonthlyCost, wantDaily*30) {
		t.Errorf("total monthly cost = %v, want %v", report.TotalMonthlyCost, wantDaily*30)
	}
}

func TestReportDefaultsPeriod(t *testing.T) {
	db := newTestDB(t)
	r := testRecorder(db)

	report, err := r.Report(0, "GBP")
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if report.PeriodDays != 7 {
		t.Errorf("period = %d, want default 7", report.PeriodDays)
	}
	if report.TotalDailyCost != 0 {
		t.Errorf("empty database should report zero cost, got %v", report.TotalDailyCost)
	}
}
