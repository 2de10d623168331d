package config

import (
	"os"
	"strconv"
	"strings"
)

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	MaxConns int32  `yaml:"max_conns"`
	// SlowQueryMillis is the threshold above which queries are logged as slow.
	SlowQueryMillis int `yaml:"slow_query_ms"`
}

// MQConfig selects and configures the work queue backend.
type MQConfig struct {
	// Driver is "rabbitmq" (default) or "asynq".
	Driver     string `yaml:"driver"`
	URL        string `yaml:"url"`
	Prefetch   int    `yaml:"prefetch"`
	MaxRetries int64  `yaml:"max_retries"`
}

// RedisConfig Redis settings, shared by dedup, retry budgets, rooms and asynq.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// SMTPConfig configures the outgoing notification mailer.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

// OverrideDBFromEnv overrides database settings from the environment.
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv overrides queue settings from the environment.
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
	if driver := os.Getenv("MQ_DRIVER"); driver != "" {
		cfg.Driver = strings.ToLower(driver)
	}
}

// OverrideRedisFromEnv overrides redis settings from the environment.
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideSMTPFromEnv overrides mailer settings from the environment.
func OverrideSMTPFromEnv(cfg *SMTPConfig) {
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		cfg.Port = port
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		cfg.Username = user
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		cfg.From = from
	}
}
