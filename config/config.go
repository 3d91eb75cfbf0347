package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultRooms is the room pool used when the config file lists none.
var DefaultRooms = []string{
	"Ruang Sungkai",
	"Ruang Meranti",
	"Ruang Ulin",
	"Ruang Bengkirai",
	"Ruang Gaharu",
}

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Booking    BookingConfig    `yaml:"booking"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Files      FilesConfig      `yaml:"files"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the push notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// SchedulerConfig controls reminder timing and the expiry sweep.
type SchedulerConfig struct {
	Timezone              string        `yaml:"timezone"`
	ReminderWindowMinutes int           `yaml:"reminder_window_minutes"`
	ReminderWindow        time.Duration `yaml:"-"`
	SweepIntervalSeconds  int           `yaml:"sweep_interval_seconds"`
	SweepInterval         time.Duration `yaml:"-"`
}

// BookingConfig holds the reservation rules.
type BookingConfig struct {
	Rooms              []string      `yaml:"rooms"`
	MinDurationMinutes int           `yaml:"min_duration_minutes"`
	MinDuration        time.Duration `yaml:"-"`
}

// NotifierConfig points at the WhatsApp gateway that delivers messages.
type NotifierConfig struct {
	BaseURL            string        `yaml:"base_url"`
	Token              string        `yaml:"token"`
	SendTimeoutSeconds int           `yaml:"send_timeout_seconds"`
	SendTimeout        time.Duration `yaml:"-"`
}

// FilesConfig locates attachment storage.
type FilesConfig struct {
	Root string `yaml:"root"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset value and derives the durations.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Scheduler.ReminderWindowMinutes <= 0 {
		cfg.Scheduler.ReminderWindowMinutes = 60
	}
	cfg.Scheduler.ReminderWindow = time.Duration(cfg.Scheduler.ReminderWindowMinutes) * time.Minute

	if cfg.Scheduler.SweepIntervalSeconds <= 0 {
		cfg.Scheduler.SweepIntervalSeconds = 5
	}
	cfg.Scheduler.SweepInterval = time.Duration(cfg.Scheduler.SweepIntervalSeconds) * time.Second

	if len(cfg.Booking.Rooms) == 0 {
		cfg.Booking.Rooms = append([]string(nil), DefaultRooms...)
	}
	if cfg.Booking.MinDurationMinutes <= 0 {
		cfg.Booking.MinDurationMinutes = 15
	}
	cfg.Booking.MinDuration = time.Duration(cfg.Booking.MinDurationMinutes) * time.Minute

	if cfg.Notifier.SendTimeoutSeconds <= 0 {
		cfg.Notifier.SendTimeoutSeconds = 15
	}
	cfg.Notifier.SendTimeout = time.Duration(cfg.Notifier.SendTimeoutSeconds) * time.Second

	if cfg.Files.Root == "" {
		cfg.Files.Root = "./uploads"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 64
	}
}

// applyEnvOverrides lets secrets live outside the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("WA_GATEWAY_URL"); v != "" {
		cfg.Notifier.BaseURL = v
	}
	if v := os.Getenv("WA_GATEWAY_TOKEN"); v != "" {
		cfg.Notifier.Token = v
	}
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.PublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
}
