// Package config is the application configuration shared by the api, worker
// and runner binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"skillswap/pkg/config"
)

type OutboxConfig struct {
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
}

type SchedulerConfig struct {
	// DeadlineScan is a five-field cron expression.
	DeadlineScan string        `yaml:"deadline_scan"`
	Timeout      time.Duration `yaml:"timeout"`
}

type RealtimeConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RateLimitConfig bounds negotiation writes per user.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type WorkerConfig struct {
	Concurrency int           `yaml:"concurrency"`
	DedupTTL    time.Duration `yaml:"dedup_ttl"`
}

type Config struct {
	Env       string              `yaml:"env"`
	LogLevel  string              `yaml:"log_level"`
	DB        config.DBConfig     `yaml:"db"`
	MQ        config.MQConfig     `yaml:"mq"`
	Redis     config.RedisConfig  `yaml:"redis"`
	JWT       config.JWTConfig    `yaml:"jwt"`
	Server    config.ServerConfig `yaml:"server"`
	SMTP      config.SMTPConfig   `yaml:"smtp"`
	Outbox    OutboxConfig        `yaml:"outbox"`
	Scheduler SchedulerConfig     `yaml:"scheduler"`
	Realtime  RealtimeConfig      `yaml:"realtime"`
	RateLimit RateLimitConfig     `yaml:"rate_limit"`
	Worker    WorkerConfig        `yaml:"worker"`
	// Migrations is the directory of *.up.sql files applied on api start.
	Migrations string `yaml:"migrations"`
}

// Load reads the layered yaml for CONFIG_ENV from dir and applies env overrides.
func Load(dir string) (*Config, error) {
	env := config.GetConfigEnv()
	cfg := Default()
	if err := config.Decode(env, dir, cfg); err != nil {
		return nil, err
	}
	cfg.Env = env

	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideSMTPFromEnv(&cfg.SMTP)
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Realtime.AllowedOrigins = strings.Split(origins, ",")
	}
	if n := os.Getenv("WORKER_CONCURRENCY"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			cfg.Worker.Concurrency = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the values used when a key is absent from every layer.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		DB:       config.DBConfig{Port: 5432, MaxConns: 10, SlowQueryMillis: 200},
		MQ:       config.MQConfig{Driver: "rabbitmq", Prefetch: 10, MaxRetries: 5},
		Server:   config.ServerConfig{Port: "8080"},
		SMTP:     config.SMTPConfig{Port: "587", FromName: "SkillSwap"},
		Outbox:   OutboxConfig{Interval: 2 * time.Second, BatchSize: 100, MaxRetries: 10},
		Scheduler: SchedulerConfig{
			DeadlineScan: "0 * * * *",
			Timeout:      5 * time.Minute,
		},
		RateLimit:  RateLimitConfig{RPS: 5, Burst: 10},
		Worker:     WorkerConfig{Concurrency: 10, DedupTTL: 24 * time.Hour},
		Migrations: "migrations",
	}
}

func (c *Config) Validate() error {
	switch c.MQ.Driver {
	case "rabbitmq", "asynq":
	default:
		return fmt.Errorf("mq.driver must be rabbitmq or asynq, got %q", c.MQ.Driver)
	}
	if c.MQ.Driver == "rabbitmq" && c.MQ.URL == "" {
		return fmt.Errorf("mq.url is required for rabbitmq")
	}
	if c.JWT.Secret == "" || strings.Contains(c.JWT.Secret, "${") {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must be positive")
	}
	return nil
}
