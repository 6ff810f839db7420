package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"courtbook/internal/models"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App             AppConfig        `yaml:"app"`
	Database        DatabaseConfig   `yaml:"database"`
	Redis           RedisConfig      `yaml:"redis"`
	Locking         LockingConfig    `yaml:"locking"`
	Booking         BookingConfig    `yaml:"booking"`
	BookingDefaults BookingDefaults  `yaml:"booking_defaults"`
	Backup          BackupConfig     `yaml:"backup"`
	Monitoring      MonitoringConfig `yaml:"monitoring"`
	Logging         LoggingConfig    `yaml:"logging"`
	API             APIConfig        `yaml:"api"`
	Catalog         CatalogConfig    `yaml:"catalog"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled          bool           `yaml:"enabled"`
	HeaderAPIKey     string         `yaml:"header_api_key"`
	HeaderExtra      string         `yaml:"header_extra"`
	HeaderRequester  string         `yaml:"header_requester"`
	HeaderPrivileged string         `yaml:"header_privileged"`
	APIKeys          []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// LockingConfig tunes the per-(court, date) admission lock.
type LockingConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	WaitTimeout  time.Duration `yaml:"wait_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	KeyPrefix    string        `yaml:"key_prefix"`
}

type BookingConfig struct {
	AdmissionRetries int           `yaml:"admission_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay"`
	SweepSchedule    string        `yaml:"sweep_schedule"`
}

// BookingDefaults fills policy fields a catalog entry leaves empty. They are
// applied once when the venue is seeded.
type BookingDefaults struct {
	OpeningTime        string `yaml:"opening_time"`
	ClosingTime        string `yaml:"closing_time"`
	IncrementMinutes   int    `yaml:"increment_minutes"`
	MinDurationMinutes int    `yaml:"min_duration_minutes"`
	MaxDurationMinutes int    `yaml:"max_duration_minutes"`
	MaxAdvanceDays     *int   `yaml:"max_advance_days"`
	SameDayCutoffHours int    `yaml:"same_day_cutoff_hours"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return errors.New("redis address is required when redis is enabled")
	}
	if c.Booking.AdmissionRetries < 1 {
		return errors.New("booking.admission_retries must be at least 1")
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		return errors.New("backup storage_path is required when backup is enabled")
	}
	if _, err := cron.ParseStandard(c.Booking.SweepSchedule); err != nil {
		return fmt.Errorf("booking.sweep_schedule: %w", err)
	}
	if c.Backup.Enabled {
		if _, err := cron.ParseStandard(c.Backup.Schedule); err != nil {
			return fmt.Errorf("backup.schedule: %w", err)
		}
	}

	venue, err := c.BookingDefaults.Apply(models.Venue{Name: "booking_defaults"})
	if err != nil {
		return fmt.Errorf("booking_defaults: %w", err)
	}
	return venue.Validate()
}

// Apply fills the zero-valued hours and policy fields of v.
func (d BookingDefaults) Apply(v models.Venue) (models.Venue, error) {
	if v.OpeningTime == 0 && v.ClosingTime == 0 {
		open, err := models.ParseTimeOfDay(d.OpeningTime)
		if err != nil {
			return v, fmt.Errorf("opening_time: %w", err)
		}
		closing, err := models.ParseTimeOfDay(d.ClosingTime)
		if err != nil {
			return v, fmt.Errorf("closing_time: %w", err)
		}
		v.OpeningTime, v.ClosingTime = open, closing
	}
	if v.Policy.IncrementMinutes == 0 {
		v.Policy.IncrementMinutes = d.IncrementMinutes
	}
	if v.Policy.MinDurationMinutes == 0 {
		v.Policy.MinDurationMinutes = d.MinDurationMinutes
	}
	if v.Policy.MaxDurationMinutes == 0 {
		v.Policy.MaxDurationMinutes = d.MaxDurationMinutes
	}
	if v.Policy.MaxAdvanceDays == 0 && d.MaxAdvanceDays != nil {
		v.Policy.MaxAdvanceDays = *d.MaxAdvanceDays
	}
	if v.Policy.SameDayCutoffHours == 0 {
		v.Policy.SameDayCutoffHours = d.SameDayCutoffHours
	}
	return v, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "courtbook"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.Auth.HeaderRequester == "" {
		c.API.Auth.HeaderRequester = "x-requester-id"
	}
	if c.API.Auth.HeaderPrivileged == "" {
		c.API.Auth.HeaderPrivileged = "x-requester-privileged"
	}

	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = 5000
	}

	if c.Locking.TTL == 0 {
		c.Locking.TTL = 10 * time.Second
	}
	if c.Locking.WaitTimeout == 0 {
		c.Locking.WaitTimeout = 3 * time.Second
	}
	if c.Locking.PollInterval == 0 {
		c.Locking.PollInterval = 25 * time.Millisecond
	}
	if c.Locking.KeyPrefix == "" {
		c.Locking.KeyPrefix = "courtbook:lock"
	}

	if c.Booking.AdmissionRetries == 0 {
		c.Booking.AdmissionRetries = 3
	}
	if c.Booking.RetryDelay == 0 {
		c.Booking.RetryDelay = 50 * time.Millisecond
	}
	if c.Booking.RetryMaxDelay == 0 {
		c.Booking.RetryMaxDelay = time.Second
	}
	if c.Booking.SweepSchedule == "" {
		c.Booking.SweepSchedule = "*/5 * * * *"
	}

	d := &c.BookingDefaults
	if d.OpeningTime == "" {
		d.OpeningTime = models.DefaultOpeningTime
	}
	if d.ClosingTime == "" {
		d.ClosingTime = models.DefaultClosingTime
	}
	if d.IncrementMinutes == 0 {
		d.IncrementMinutes = models.DefaultIncrementMinutes
	}
	if d.MinDurationMinutes == 0 {
		d.MinDurationMinutes = models.DefaultMinDurationMinutes
	}
	if d.MaxDurationMinutes == 0 {
		d.MaxDurationMinutes = models.DefaultMaxDurationMinutes
	}
	if d.MaxAdvanceDays == nil {
		days := models.DefaultMaxAdvanceDays
		d.MaxAdvanceDays = &days
	}

	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
}
