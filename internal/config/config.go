package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address            string `yaml:"address"`
		Password           string `yaml:"password"`
		DB                 int    `yaml:"db"`
		OrgCacheTTLSeconds int    `yaml:"org_cache_ttl_seconds"`
	} `yaml:"redis"`

	Parser struct {
		BaseURL         string  `yaml:"base_url"`
		APIKey          string  `yaml:"api_key"`
		ConfidenceFloor float64 `yaml:"confidence_floor"`
		RatePerSecond   float64 `yaml:"rate_per_second"`
		Burst           int     `yaml:"burst"`
	} `yaml:"parser"`

	Scheduling struct {
		SlotStepMinutes        int `yaml:"slot_step_minutes"`
		DefaultDurationMinutes int `yaml:"default_duration_minutes"`
		HighFrequencyThreshold int `yaml:"high_frequency_threshold"`
	} `yaml:"scheduling"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		StoragePath   string `yaml:"storage_path"`
		RetentionDays int    `yaml:"retention_days"`
		IntervalHours int    `yaml:"interval_hours"`
	} `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/caresched.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ServerPort() int {
	if c.Server.Port <= 0 {
		return 8080
	}
	return c.Server.Port
}

func (c *Config) ConfidenceFloor() float64 {
	if c.Parser.ConfidenceFloor <= 0 || c.Parser.ConfidenceFloor > 1 {
		return 0.5
	}
	return c.Parser.ConfidenceFloor
}

func (c *Config) SlotStep() int {
	if c.Scheduling.SlotStepMinutes <= 0 {
		return 30
	}
	return c.Scheduling.SlotStepMinutes
}

func (c *Config) DefaultDuration() int {
	if c.Scheduling.DefaultDurationMinutes <= 0 {
		return 60
	}
	return c.Scheduling.DefaultDurationMinutes
}

func (c *Config) HighFrequencyThreshold() int {
	if c.Scheduling.HighFrequencyThreshold <= 0 {
		return 3
	}
	return c.Scheduling.HighFrequencyThreshold
}

func (c *Config) OrgCacheTTL() time.Duration {
	if c.Redis.OrgCacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Redis.OrgCacheTTLSeconds) * time.Second
}

func (c *Config) ParserRate() (float64, int) {
	rate := c.Parser.RatePerSecond
	if rate <= 0 {
		rate = 5.0
	}
	burst := c.Parser.Burst
	if burst <= 0 {
		burst = 10
	}
	return rate, burst
}
