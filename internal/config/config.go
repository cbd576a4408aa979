package config

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Hub          HubConfig
	Energy       EnergyConfig
	Pricing      PricingConfig
	Weather      WeatherConfig
	MQTT         MQTTConfig
	Alerts       AlertsConfig
	Availability AvailabilityConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	EnableTLS      bool
	TLSCertFile    string
	TLSKeyFile     string
	JWTSecretKey   string
	CookieSecure   bool
	AllowedOrigins string
}

type DatabaseConfig struct {
	FilePath string
}

type AuthConfig struct {
	AdminUsername    string
	AdminPassword    string
	BcryptCost       int
	TokenExpiry      time.Duration
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

type HubConfig struct {
	Version        string
	DeviceSeedFile string
	ProbeInterval  time.Duration
	ProbeTimeout   time.Duration
	ProbeCount     int
	RetentionDays  int
}

type EnergyConfig struct {
	TariffPerKWh   float64
	Currency       string
	SampleInterval time.Duration
}

type PricingConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	RequestDelay   time.Duration
	MaxConcurrent  int
	WatchList      []string
}

type WeatherConfig struct {
	APIKey  string
	City    string
	BaseURL string
}

type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
}

type AlertsConfig struct {
	EmailEnabled       bool
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	SMTPFrom           string
	SMTPTo             string
	SlackWebhookURL    string
	DiscordWebhookURL  string
	WebHookURL         string
	DailyCostThreshold float64
	DeviceOfflineAlert bool
}

type AvailabilityConfig struct {
	BaselineFile    string
	TrackingEnabled bool
}

func Load() *Config {
	// Clear the module-level default password after building the config
	defer func() { defaultPassword = "" }()

	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			EnableTLS:      getBoolEnv("SERVER_ENABLE_TLS", false),
			TLSCertFile:    getEnv("SERVER_TLS_CERT", "/etc/homehub/tls.crt"),
			TLSKeyFile:     getEnv("SERVER_TLS_KEY", "/etc/homehub/tls.key"),
			JWTSecretKey:   getEnv("JWT_SECRET_KEY", ""),
			CookieSecure:   getBoolEnv("COOKIE_SECURE", false),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			FilePath: getEnv("DB_FILE_PATH", "/data/homehub.db"),
		},
		Auth: AuthConfig{
			AdminUsername:    getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword:    getEnv("ADMIN_PASSWORD", getDefaultPassword()),
			BcryptCost:       getIntEnv("BCRYPT_COST", 12),
			TokenExpiry:      getDurationEnv("TOKEN_EXPIRY", 24*time.Hour),
			MaxLoginAttempts: getIntEnv("MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:  getDurationEnv("LOCKOUT_DURATION", 15*time.Minute),
		},
		Hub: HubConfig{
			Version:        "2.0.0",
			DeviceSeedFile: getEnv("DEVICE_SEED_FILE", ""),
			ProbeInterval:  getDurationEnv("PROBE_INTERVAL", 60*time.Second),
			ProbeTimeout:   getDurationEnv("PROBE_TIMEOUT", 3*time.Second),
			ProbeCount:     getIntEnv("PROBE_COUNT", 3),
			RetentionDays:  getIntEnv("RETENTION_DAYS", 90),
		},
		Energy: EnergyConfig{
			TariffPerKWh:   getFloatEnv("ENERGY_TARIFF", 0.28),
			Currency:       getEnv("ENERGY_CURRENCY", "GBP"),
			SampleInterval: getDurationEnv("ENERGY_SAMPLE_INTERVAL", time.Hour),
		},
		Pricing: PricingConfig{
			UserAgent:      getEnv("SCRAPER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
			RequestTimeout: getDurationEnv("SCRAPER_TIMEOUT", 15*time.Second),
			RequestDelay:   getDurationEnv("SCRAPER_DELAY", time.Second),
			MaxConcurrent:  getIntEnv("SCRAPER_MAX_CONCURRENT", 3),
			WatchList:      getListEnv("PRICE_WATCH_LIST", defaultWatchList),
		},
		Weather: WeatherConfig{
			APIKey:  getEnv("WEATHER_API_KEY", ""),
			City:    getEnv("WEATHER_CITY", "London,UK"),
			BaseURL: getEnv("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		},
		MQTT: MQTTConfig{
			BrokerURL:   getEnv("MQTT_BROKER_URL", ""),
			ClientID:    getEnv("MQTT_CLIENT_ID", "homehub"),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "home"),
		},
		Alerts: AlertsConfig{
			EmailEnabled:       getBoolEnv("EMAIL_ENABLED", false),
			SMTPHost:           getEnv("SMTP_HOST", ""),
			SMTPPort:           getIntEnv("SMTP_PORT", 587),
			SMTPUsername:       getEnv("SMTP_USERNAME", ""),
			SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:           getEnv("SMTP_FROM", "homehub@example.com"),
			SMTPTo:             getEnv("SMTP_TO", "admin@example.com"),
			SlackWebhookURL:    getEnv("SLACK_WEBHOOK_URL", ""),
			DiscordWebhookURL:  getEnv("DISCORD_WEBHOOK_URL", ""),
			WebHookURL:         getEnv("WEBHOOK_URL", ""),
			DailyCostThreshold: getFloatEnv("DAILY_COST_THRESHOLD", 10.0),
			DeviceOfflineAlert: getBoolEnv("DEVICE_OFFLINE_ALERT", true),
		},
		Availability: AvailabilityConfig{
			BaselineFile:    getEnv("AVAILABILITY_BASELINE_FILE", "/var/lib/homehub/availability.json"),
			TrackingEnabled: getBoolEnv("AVAILABILITY_TRACKING_ENABLED", true),
		},
	}
}

var defaultWatchList = []string{
	"Raspberry Pi 4",
	"Arduino Uno",
	"Smart Light Bulb",
	"Smart Thermostat",
	"Security Camera",
	"Motion Sensor",
	"Smart Plug",
	"LED Strip",
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

var defaultPassword string

func getDefaultPassword() string {
	if defaultPassword == "" {
		defaultPassword = generateRandomPassword(16)
	}
	return defaultPassword
}

func generateRandomPassword(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: crypto/rand failed: %v\n", err)
			os.Exit(1)
		}
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

// IsGeneratedPassword returns true if the admin password was auto-generated (not set via env)
func (c *Config) IsGeneratedPassword() bool {
	_, exists := os.LookupEnv("ADMIN_PASSWORD")
	return !exists
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		var items []string
		for _, item := range strings.Split(value, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return defaultValue
}

func init() {
	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		if err := loadEnvFile(configFile); err != nil {
			// Use fmt since log may not be initialized in init()
			fmt.Fprintf(os.Stderr, "Warning: failed to load config file %s: %v\n", configFile, err)
		}
	}
}

func loadEnvFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			// Strip surrounding quotes (single or double)
			if len(value) >= 2 {
				if (value[0] == '"' && value[len(value)-1] == '"') ||
					(value[0] == '\'' && value[len(value)-1] == '\'') {
					value = value[1 : len(value)-1]
				}
			}
			if key != "" && os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	}
	return nil
}
