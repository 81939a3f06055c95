package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig            `yaml:"app"`
	HTTP       HTTPConfig           `yaml:"http"`
	GRPC       GRPCConfig           `yaml:"grpc"`
	Database   DatabaseConfig       `yaml:"database"`
	Redis      RedisConfig          `yaml:"redis"`
	Kafka      KafkaConfig          `yaml:"kafka"`
	Booking    BookingConfig        `yaml:"booking"`
	Worker     WorkerConfig         `yaml:"worker"`
	RateLimit  RateLimitConfig      `yaml:"rate_limit"`
	Categories domain.CategoryRules `yaml:"categories"`
	Calendar   CalendarConfig       `yaml:"calendar"`
}

type AppConfig struct {
	Environment string `yaml:"environment"`
	Timezone    string `yaml:"timezone"`
}

// Location resolves the shop timezone used for service clocks.
func (a AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	SlotEventsTopic    string   `yaml:"slot_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	HoldTTLMinutes           int `yaml:"hold_ttl_minutes"`
	PaymentTTLMinutes        int `yaml:"payment_ttl_minutes"`
	SlotMinutes              int `yaml:"slot_minutes"`
	AvailabilityCacheSeconds int `yaml:"availability_cache_seconds"`
	BulkWarnThreshold        int `yaml:"bulk_warn_threshold"`
	MaxAvailabilityDays      int `yaml:"max_availability_days"`
}

func (b BookingConfig) HoldTTL() time.Duration {
	return time.Duration(b.HoldTTLMinutes) * time.Minute
}

func (b BookingConfig) PaymentTTL() time.Duration {
	return time.Duration(b.PaymentTTLMinutes) * time.Minute
}

func (b BookingConfig) SlotLength() time.Duration {
	return time.Duration(b.SlotMinutes) * time.Minute
}

func (b BookingConfig) AvailabilityCacheTTL() time.Duration {
	return time.Duration(b.AvailabilityCacheSeconds) * time.Second
}

type WorkerConfig struct {
	ExpirationSweepMinutes int `yaml:"expiration_sweep_minutes"`
	BatchSize              int `yaml:"batch_size"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// CalendarConfig describes when the shop is open. Weekdays use Go numbering
// (0 = Sunday). Holidays are recurring MM-DD dates; overrides are
// YYYY-MM-DD -> open.
type CalendarConfig struct {
	OpenWeekdays []int           `yaml:"open_weekdays"`
	Holidays     []string        `yaml:"holidays"`
	Overrides    map[string]bool `yaml:"overrides"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// ${ENV_VAR} placeholders are resolved before parsing.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Categories.Validate(); err != nil {
		return nil, fmt.Errorf("invalid categories: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "UTC"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 25
	}
	if c.Booking.HoldTTLMinutes <= 0 {
		c.Booking.HoldTTLMinutes = 15
	}
	if c.Booking.PaymentTTLMinutes <= 0 {
		c.Booking.PaymentTTLMinutes = 30
	}
	if c.Booking.SlotMinutes <= 0 {
		c.Booking.SlotMinutes = 30
	}
	if c.Booking.AvailabilityCacheSeconds <= 0 {
		c.Booking.AvailabilityCacheSeconds = 10
	}
	if c.Booking.BulkWarnThreshold <= 0 {
		c.Booking.BulkWarnThreshold = 100
	}
	if c.Booking.MaxAvailabilityDays <= 0 {
		c.Booking.MaxAvailabilityDays = 62
	}
	if c.Worker.ExpirationSweepMinutes <= 0 {
		c.Worker.ExpirationSweepMinutes = 1
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 100
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = 2
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 5
	}
	if len(c.Calendar.OpenWeekdays) == 0 {
		c.Calendar.OpenWeekdays = []int{0, 1, 2, 3, 4, 5, 6}
	}
}
