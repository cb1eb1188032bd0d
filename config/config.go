package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP      HTTPConfig
	Store     StoreConfig
	Vision    ProviderConfig
	Lookup    ProviderConfig
	S3        S3Config
	Scheduler SchedulerConfig
	Quotes    QuoteConfig
	Pricing   *PricingConfig
	Analysis  AnalysisConfig
	Proxy     ProxyConfig
	Log       LogConfig
}

type LogConfig struct {
	Path     string
	MaxBytes int64
	Backups  int
}

type HTTPConfig struct {
	Addr string
}

type StoreConfig struct {
	Driver      string // memory, sqlite, postgres
	DBPath      string
	DatabaseURL string
}

// ProviderConfig selects and configures a vision or lookup provider
type ProviderConfig struct {
	Provider     string
	Endpoint     string
	APIKey       string
	FixturesPath string
	Timeout      time.Duration
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, MinIO
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether image archiving to S3 is configured
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type SchedulerConfig struct {
	ReportCron string
}

type QuoteConfig struct {
	ValidityDays      int
	StrictTransitions bool
}

type AnalysisConfig struct {
	// DefaultSquareFootage is used when the lookup has no square footage
	DefaultSquareFootage float64
	// DefaultServices are priced when a caller does not name any
	DefaultServices []string
}

type ProxyConfig struct {
	URL string
}

// PricingConfig is the rate card used by the pricing engine
type PricingConfig struct {
	StorySqFt             float64                `yaml:"story_sqft"`
	DifficultyPerStory    float64                `yaml:"difficulty_per_story"`
	SkylightAccessibility float64                `yaml:"skylight_accessibility"`
	Services              map[string]ServiceRate `yaml:"services"`
}

// ServiceRate prices one service per unit of its measure
// (window, sq ft, gutter foot or roof sq ft)
type ServiceRate struct {
	Rate           float64  `yaml:"rate"`
	MinutesPerUnit float64  `yaml:"minutes_per_unit"`
	Equipment      []string `yaml:"equipment"`
}

// DefaultPricing returns the standard rate card
func DefaultPricing() *PricingConfig {
	return &PricingConfig{
		StorySqFt:             1200,
		DifficultyPerStory:    0.3,
		SkylightAccessibility: 1.2,
		Services: map[string]ServiceRate{
			"window_cleaning": {
				Rate:           8,
				MinutesPerUnit: 3,
				Equipment:      []string{"Squeegees", "Extension poles", "Cleaning solution"},
			},
			"pressure_washing": {
				Rate:           0.15,
				MinutesPerUnit: 0.5,
				Equipment:      []string{"Pressure washer", "Surface cleaners", "Chemicals"},
			},
			"gutter_cleaning": {
				Rate:           12,
				MinutesPerUnit: 2,
				Equipment:      []string{"Ladder", "Gutter scoop", "Blower"},
			},
			"roof_cleaning": {
				Rate:           0.25,
				MinutesPerUnit: 1,
				Equipment:      []string{"Soft wash system", "Safety equipment", "Chemicals"},
			},
		},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Store: StoreConfig{
			Driver:      getEnv("STORE_DRIVER", "sqlite"),
			DBPath:      getEnv("DB_PATH", "estimator.db"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Vision: ProviderConfig{
			Provider:     getEnv("VISION_PROVIDER", "fixture"),
			Endpoint:     os.Getenv("VISION_ENDPOINT"),
			APIKey:       os.Getenv("VISION_API_KEY"),
			FixturesPath: getEnv("FIXTURES_PATH", "config/fixtures.yaml"),
			Timeout:      getEnvDuration("VISION_TIMEOUT", 60*time.Second),
		},
		Lookup: ProviderConfig{
			Provider:     getEnv("LOOKUP_PROVIDER", "fixture"),
			Endpoint:     os.Getenv("LOOKUP_ENDPOINT"),
			FixturesPath: getEnv("FIXTURES_PATH", "config/fixtures.yaml"),
			Timeout:      getEnvDuration("LOOKUP_TIMEOUT", 30*time.Second),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Scheduler: SchedulerConfig{
			ReportCron: os.Getenv("REPORT_CRON"),
		},
		Quotes: QuoteConfig{
			ValidityDays:      getEnvInt("QUOTE_VALIDITY_DAYS", 30),
			StrictTransitions: getEnvBool("QUOTE_STRICT_TRANSITIONS", true),
		},
		Analysis: AnalysisConfig{
			DefaultSquareFootage: getEnvFloat("DEFAULT_SQUARE_FOOTAGE", 2000),
			DefaultServices:      getEnvList("DEFAULT_SERVICES", []string{"window_cleaning", "pressure_washing", "gutter_cleaning"}),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("HTTP_PROXY_URL"),
		},
		Log: LogConfig{
			Path:     getEnv("LOG_PATH", "estimator.log"),
			MaxBytes: int64(getEnvInt("LOG_MAX_BYTES", 2*1024*1024)),
			Backups:  getEnvInt("LOG_BACKUPS", 1),
		},
	}

	pricing, err := LoadPricing(getEnv("PRICING_PATH", "config/pricing.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Pricing = pricing

	return cfg, nil
}

// LoadPricing reads a rate card from YAML on top of the defaults.
// A missing file yields the default rate card.
func LoadPricing(path string) (*PricingConfig, error) {
	pricing := DefaultPricing()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pricing, nil
		}
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	var file PricingConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pricing file %s: %w", path, err)
	}

	if file.StorySqFt > 0 {
		pricing.StorySqFt = file.StorySqFt
	}
	if file.DifficultyPerStory > 0 {
		pricing.DifficultyPerStory = file.DifficultyPerStory
	}
	if file.SkylightAccessibility > 0 {
		pricing.SkylightAccessibility = file.SkylightAccessibility
	}
	for name, rate := range file.Services {
		base := pricing.Services[name]
		if rate.Rate > 0 {
			base.Rate = rate.Rate
		}
		if rate.MinutesPerUnit > 0 {
			base.MinutesPerUnit = rate.MinutesPerUnit
		}
		if len(rate.Equipment) > 0 {
			base.Equipment = rate.Equipment
		}
		pricing.Services[name] = base
	}

	return pricing, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
