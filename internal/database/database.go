package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"homehub/internal/auth"
	"homehub/internal/config"
	"homehub/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

func (d *Database) Gorm() *gorm.DB {
	return d.db
}

func NewDatabase(cfg *config.Config) (*Database, error) {
	dbPath := cfg.Database.FilePath
	if dbPath == "" {
		dbPath = "/data/homehub.db"
	}

	dir := filepath.Dir(dbPath)
	if dir == "." {
		dir = "/data"
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite only supports one writer at a time; MaxOpenConns=1 prevents "database is locked" errors
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	d := &Database{db: db}
	if err := d.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return d, nil
}

func (d *Database) migrate() error {
	return d.db.AutoMigrate(
		&models.Device{},
		&models.EnergyReading{},
		&models.AutomationRule{},
		&models.ComponentPrice{},
		&models.NewsItem{},
		&models.RoomScan{},
		&models.Alert{},
		&models.ReachabilityStat{},
		&models.LoginAttempt{},
		&models.SystemSetting{},
		&models.Admin{},
	)
}

// Devices

func (d *Database) GetAllDevices() ([]models.Device, error) {
	var devices []models.Device
	err := d.db.Order("room, name").Find(&devices).Error
	return devices, err
}

func (d *Database) GetEnabledDevices() ([]models.Device, error) {
	var devices []models.Device
	err := d.db.Where("enabled = ?", true).Order("room, name").Find(&devices).Error
	return devices, err
}

func (d *Database) GetDevice(id uint) (*models.Device, error) {
	var device models.Device
	err := d.db.First(&device, id).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (d *Database) GetDeviceByDeviceID(deviceID string) (*models.Device, error) {
	var device models.Device
	err := d.db.Where("device_id = ?", deviceID).First(&device).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (d *Database) CreateDevice(device *models.Device) error {
	return d.db.Create(device).Error
}

func (d *Database) UpdateDevice(device *models.Device) error {
	return d.db.Save(device).Error
}

func (d *Database) DeleteDevice(id uint) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var device models.Device
		if err := tx.First(&device, id).Error; err != nil {
			return err
		}
		if err := tx.Where("device_id = ?", device.DeviceID).Delete(&models.EnergyReading{}).Error; err != nil {
			return err
		}
		if err := tx.Where("device_id = ?", device.DeviceID).Delete(&models.ReachabilityStat{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Device{}, id).Error
	})
}

func (d *Database) CountDevices() (total int64, online int64, err error) {
	if err = d.db.Model(&models.Device{}).Where("enabled = ?", true).Count(&total).Error; err != nil {
		return
	}
	err = d.db.Model(&models.Device{}).
		Where("enabled = ? AND status = ?", true, models.StatusOnline).
		Count(&online).Error
	return
}

func (d *Database) SetDeviceStatus(deviceID, status string) error {
	updates := map[string]interface{}{"status": status}
	if status == models.StatusOnline {
		updates["last_seen"] = time.Now()
	}
	return d.db.Model(&models.Device{}).Where("device_id = ?", deviceID).Updates(updates).Error
}

// Energy

func (d *Database) SaveEnergyReading(reading *models.EnergyReading) error {
	return d.db.Create(reading).Error
}

func (d *Database) SaveEnergyReadings(readings []models.EnergyReading) error {
	if len(readings) == 0 {
		return nil
	}
	return d.db.Create(&readings).Error
}

// AggregateEnergy returns per-device averages over the window.
func (d *Database) AggregateEnergy(since time.Time) ([]models.DeviceEnergyReport, error) {
	var rows []models.DeviceEnergyReport
	err := d.db.Model(&models.EnergyReading{}).
		Select("energy_readings.device_id, devices.name AS device_name, "+
			"AVG(energy_readings.power_watts) AS average_power, "+
			"AVG(energy_readings.daily_cost) AS average_daily_cost, "+
			"AVG(energy_readings.efficiency_score) AS efficiency_score").
		Joins("LEFT JOIN devices ON devices.device_id = energy_readings.device_id").
		Where("energy_readings.timestamp > ?", since).
		Group("energy_readings.device_id").
		Order("average_daily_cost DESC").
		Scan(&rows).Error
	return rows, err
}

// Automation rules

func (d *Database) GetAllRules() ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	err := d.db.Order("name").Find(&rules).Error
	return rules, err
}

func (d *Database) GetEnabledRules() ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	err := d.db.Where("enabled = ?", true).Find(&rules).Error
	return rules, err
}

func (d *Database) GetRule(id uint) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	err := d.db.First(&rule, id).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (d *Database) GetRuleByRuleID(ruleID string) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	err := d.db.Where("rule_id = ?", ruleID).First(&rule).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (d *Database) CreateRule(rule *models.AutomationRule) error {
	return d.db.Create(rule).Error
}

func (d *Database) UpdateRule(rule *models.AutomationRule) error {
	return d.db.Save(rule).Error
}

func (d *Database) DeleteRule(id uint) error {
	return d.db.Delete(&models.AutomationRule{}, id).Error
}

func (d *Database) MarkRuleExecuted(id uint) error {
	return d.db.Model(&models.AutomationRule{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_executed":   time.Now(),
			"execution_count": gorm.Expr("execution_count + 1"),
		}).Error
}

// Component prices

func (d *Database) SaveComponentPrices(prices []models.ComponentPrice) error {
	if len(prices) == 0 {
		return nil
	}
	return d.db.Create(&prices).Error
}

// GetBestPrices returns the cheapest current offers for a component,
// one row per supplier, ordered by price.
func (d *Database) GetBestPrices(component string, limit int) ([]models.ComponentPrice, error) {
	var prices []models.ComponentPrice
	err := d.db.Where("component = ?", component).
		Order("price ASC").Limit(limit).Find(&prices).Error
	return prices, err
}

// News

func (d *Database) SaveNewsItem(item *models.NewsItem) error {
	// Dedupe by URL: first write wins, later scrapes refresh the score
	existing := models.NewsItem{}
	err := d.db.Where("url = ?", item.URL).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return d.db.Create(item).Error
	}
	if err != nil {
		return err
	}
	existing.RelevanceScore = item.RelevanceScore
	return d.db.Save(&existing).Error
}

func (d *Database) GetNews(limit int) ([]models.NewsItem, error) {
	var items []models.NewsItem
	err := d.db.Order("relevance_score DESC, published_at DESC").Limit(limit).Find(&items).Error
	return items, err
}

// Room scans

func (d *Database) SaveRoomScan(scan *models.RoomScan) error {
	return d.db.Create(scan).Error
}

func (d *Database) GetRoomScans(limit int) ([]models.RoomScan, error) {
	var scans []models.RoomScan
	err := d.db.Order("timestamp DESC").Limit(limit).Find(&scans).Error
	return scans, err
}

// Alerts

func (d *Database) SaveAlert(alert *models.Alert) error {
	return d.db.Create(alert).Error
}

func (d *Database) GetAlerts(limit int, acknowledged *bool) ([]models.Alert, error) {
	var alerts []models.Alert
	query := d.db.Order("timestamp DESC").Limit(limit)
	if acknowledged != nil {
		query = query.Where("acknowledged = ?", *acknowledged)
	}
	err := query.Find(&alerts).Error
	return alerts, err
}

func (d *Database) AcknowledgeAlert(id uint) error {
	return d.db.Model(&models.Alert{}).Where("id = ?", id).Update("acknowledged", true).Error
}

// Reachability

func (d *Database) UpsertReachabilityStat(stat *models.ReachabilityStat) error {
	existing := models.ReachabilityStat{}
	err := d.db.Where("device_id = ?", stat.DeviceID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return d.db.Create(stat).Error
	}
	if err != nil {
		return err
	}
	stat.ID = existing.ID
	return d.db.Save(stat).Error
}

func (d *Database) GetReachabilityStats() ([]models.ReachabilityStat, error) {
	var stats []models.ReachabilityStat
	err := d.db.Find(&stats).Error
	return stats, err
}

// Login attempts

func (d *Database) SaveLoginAttempt(attempt *models.LoginAttempt) error {
	return d.db.Create(attempt).Error
}

func (d *Database) GetLoginAttempts(since time.Time, limit int) ([]models.LoginAttempt, error) {
	var attempts []models.LoginAttempt
	err := d.db.Where("timestamp > ?", since).Order("timestamp DESC").Limit(limit).Find(&attempts).Error
	return attempts, err
}

// Settings

func (d *Database) GetAllSettings() ([]models.SystemSetting, error) {
	var settings []models.SystemSetting
	err := d.db.Find(&settings).Error
	return settings, err
}

func (d *Database) UpsertSetting(setting *models.SystemSetting) error {
	existing := models.SystemSetting{Key: setting.Key}
	if err := d.db.FirstOrCreate(&existing, models.SystemSetting{Key: setting.Key}).Error; err != nil {
		return err
	}
	existing.Value = setting.Value
	existing.Label = setting.Label
	existing.Category = setting.Category
	return d.db.Save(&existing).Error
}

// Admin

func (d *Database) GetAdmin() (*models.Admin, error) {
	var admin models.Admin
	err := d.db.First(&admin).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &admin, err
}

func (d *Database) CreateAdmin(admin *models.Admin) error {
	return d.db.Create(admin).Error
}

func (d *Database) InitAdmin(username, password string) error {
	admin, err := d.GetAdmin()
	if err != nil {
		return err
	}
	if admin == nil {
		return d.CreateAdmin(&models.Admin{Username: username, Password: password})
	}
	log.Printf("Admin user already exists, skipping initialization")
	return nil
}

func (d *Database) GetAdminByUsername(username string) (*auth.AdminAuth, error) {
	var admin models.Admin
	err := d.db.Where("username = ?", username).First(&admin).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &auth.AdminAuth{
		ID:       admin.ID,
		Username: admin.Username,
		Password: admin.Password,
	}, nil
}

func (d *Database) UpdateAdminPassword(id uint, password string) error {
	return d.db.Model(&models.Admin{}).Where("id = ?", id).Update("password", password).Error
}

// CleanupOldData prunes readings, attempts, scans and acknowledged alerts
// older than the retention window.
func (d *Database) CleanupOldData(days int) error {
	cutoff := time.Now().AddDate(0, 0, -days)

	if err := d.db.Where("timestamp < ?", cutoff).Delete(&models.EnergyReading{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup energy_readings: %w", err)
	}
	if err := d.db.Where("timestamp < ?", cutoff).Delete(&models.LoginAttempt{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup login_attempts: %w", err)
	}
	if err := d.db.Where("timestamp < ?", cutoff).Delete(&models.RoomScan{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup room_scans: %w", err)
	}
	if err := d.db.Where("last_updated < ?", cutoff).Delete(&models.ComponentPrice{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup component_prices: %w", err)
	}
	if err := d.db.Where("acknowledged = true AND timestamp < ?", cutoff).Delete(&models.Alert{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup alerts: %w", err)
	}

	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
