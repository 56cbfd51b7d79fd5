package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"preptracker/internal/clock"
	"preptracker/internal/model"
	"preptracker/internal/schedule"
	"preptracker/pkg/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	AdvisorAgent     = "agent"
	AdvisorAnthropic = "anthropic"
)

type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ScheduleConfig 计划范围与模板
type ScheduleConfig struct {
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Timezone string `yaml:"timezone"`
	// CatalogPath 为空时使用内置 catalog
	CatalogPath string `yaml:"catalog_path"`
}

type AdvisorConfig struct {
	Backend        string   `yaml:"backend"`
	URL            string   `yaml:"url"`
	APIKey         string   `yaml:"api_key"`
	Model          string   `yaml:"model"`
	MaxTokens      int64    `yaml:"max_tokens"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	QuickPrompts   []string `yaml:"quick_prompts"`
}

type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Time    string `yaml:"time"` // HH:MM in the schedule timezone
}

type OutboxConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	MaxRetries      int `yaml:"max_retries"`
	BatchSize       int `yaml:"batch_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Env      string              `yaml:"-"`
	Server   config.ServerConfig `yaml:"server"`
	Log      LogConfig           `yaml:"log"`
	Store    StoreConfig         `yaml:"store"`
	DB       config.DBConfig     `yaml:"db"`
	Redis    config.RedisConfig  `yaml:"redis"`
	MQ       config.MQConfig     `yaml:"mq"`
	Otel     config.OtelConfig   `yaml:"otel"`
	Schedule ScheduleConfig      `yaml:"schedule"`
	Advisor  AdvisorConfig       `yaml:"advisor"`
	Digest   DigestConfig        `yaml:"digest"`
	Outbox   OutboxConfig        `yaml:"outbox"`
}

// Load 读取 CONFIG_DIR 下的 base.yaml + <CONFIG_ENV>.yaml，再用环境变量覆盖
func Load() (*Config, error) {
	return LoadFrom(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
}

func LoadFrom(env, dir string) (*Config, error) {
	var cfg Config
	if err := config.Decode(env, dir, &cfg); err != nil {
		return nil, err
	}
	cfg.Env = env

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideOtelFromEnv(&cfg.Otel)
	overrideFromEnv(&cfg)

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("HORIZON_START"); v != "" {
		cfg.Schedule.Start = v
	}
	if v := os.Getenv("HORIZON_END"); v != "" {
		cfg.Schedule.End = v
	}
	if v := os.Getenv("TZ"); v != "" {
		cfg.Schedule.Timezone = v
	}
	if v := os.Getenv("CATALOG_PATH"); v != "" {
		cfg.Schedule.CatalogPath = v
	}
	if v := os.Getenv("AGENT_SERVICE_URL"); v != "" {
		cfg.Advisor.URL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Advisor.APIKey = v
		if cfg.Advisor.Backend == "" {
			cfg.Advisor.Backend = AdvisorAnthropic
		}
	}
	if v := os.Getenv("ADVISOR_BACKEND"); v != "" {
		cfg.Advisor.Backend = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DIGEST_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Digest.Enabled = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if !strings.Contains(c.Server.Port, ":") {
		c.Server.Port = ":" + c.Server.Port
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverPostgres
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/preptracker.db"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "UTC"
	}
	if c.Advisor.Backend == "" {
		c.Advisor.Backend = AdvisorAgent
	}
	if c.Advisor.TimeoutSeconds <= 0 {
		c.Advisor.TimeoutSeconds = 30
	}
	if c.Advisor.MaxTokens <= 0 {
		c.Advisor.MaxTokens = 1024
	}
	if c.Digest.Time == "" {
		c.Digest.Time = "21:00"
	}
	if c.Outbox.IntervalSeconds <= 0 {
		c.Outbox.IntervalSeconds = 5
	}
	if c.Outbox.MaxRetries <= 0 {
		c.Outbox.MaxRetries = 5
	}
	if c.Outbox.BatchSize <= 0 {
		c.Outbox.BatchSize = 100
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Advisor.Backend {
	case AdvisorAgent, AdvisorAnthropic:
	default:
		return fmt.Errorf("unknown advisor backend %q", c.Advisor.Backend)
	}
	h, err := c.Horizon()
	if err != nil {
		return err
	}
	if h.End.Before(h.Start) {
		return fmt.Errorf("schedule end %s is before start %s", c.Schedule.End, c.Schedule.Start)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Horizon() (model.Horizon, error) {
	h, err := model.NewHorizon(c.Schedule.Start, c.Schedule.End)
	if err != nil {
		return model.Horizon{}, fmt.Errorf("schedule horizon: %w", err)
	}
	return h, nil
}

func (c *Config) Location() (*time.Location, error) {
	return clock.Location(c.Schedule.Timezone)
}

// Catalog loads the configured catalog, falling back to the built-in one.
func (c *Config) Catalog() (schedule.Catalog, error) {
	if c.Schedule.CatalogPath == "" {
		return schedule.DefaultCatalog()
	}
	return schedule.LoadCatalog(c.Schedule.CatalogPath)
}

func (c *Config) AdvisorTimeout() time.Duration {
	return time.Duration(c.Advisor.TimeoutSeconds) * time.Second
}

func (c *Config) OutboxInterval() time.Duration {
	return time.Duration(c.Outbox.IntervalSeconds) * time.Second
}
