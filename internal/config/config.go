package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmehra2102/vending-machine/pkg/apperr"
)

type Config struct {
	ServiceName      string        `yaml:"service_name"`
	HTTPAddr         string        `yaml:"http_addr"`
	LogLevel         string        `yaml:"log_level"`
	KafkaAddr        string        `yaml:"kafka_addr"`
	CommandTopic     string        `yaml:"command_topic"`
	NotifyTopic      string        `yaml:"notify_topic"`
	ConsumerGroup    string        `yaml:"consumer_group"`
	RedisAddr        string        `yaml:"redis_addr"`
	IdempotencyTTL   time.Duration `yaml:"idempotency_ttl"`
	OutboxMaxRetries int           `yaml:"outbox_max_retries"`
	OTELEndpoint     string        `yaml:"otel_endpoint"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		ServiceName:      "vending-service",
		HTTPAddr:         ":8080",
		LogLevel:         "info",
		CommandTopic:     "vending.commands",
		NotifyTopic:      "vending.notifications",
		ConsumerGroup:    "vending-service",
		IdempotencyTTL:   10 * time.Minute,
		OutboxMaxRetries: 5,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Load starts from Default, applies the YAML file at path when path is not
// empty, then environment variables, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse config %s: %v", apperr.ErrInvalidInput, path, err)
		}
	}

	cfg.ServiceName = env("SERVICE_NAME", cfg.ServiceName)
	cfg.HTTPAddr = env("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = env("LOG_LEVEL", cfg.LogLevel)
	cfg.KafkaAddr = env("KAFKA_ADDR", cfg.KafkaAddr)
	cfg.CommandTopic = env("COMMAND_TOPIC", cfg.CommandTopic)
	cfg.NotifyTopic = env("NOTIFY_TOPIC", cfg.NotifyTopic)
	cfg.ConsumerGroup = env("CONSUMER_GROUP", cfg.ConsumerGroup)
	cfg.RedisAddr = env("REDIS_ADDR", cfg.RedisAddr)
	cfg.OTELEndpoint = env("OTEL_ENDPOINT", cfg.OTELEndpoint)

	var err error
	if cfg.IdempotencyTTL, err = envDuration("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("OUTBOX_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: OUTBOX_MAX_RETRIES: %v", apperr.ErrInvalidInput, err)
		}
		cfg.OutboxMaxRetries = n
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http_addr is empty"))
	}
	if strings.TrimSpace(c.ServiceName) == "" {
		errs = append(errs, errors.New("service_name is empty"))
	}
	if c.KafkaAddr != "" && (c.CommandTopic == "" || c.NotifyTopic == "" || c.ConsumerGroup == "") {
		errs = append(errs, errors.New("kafka topics and consumer group are required with kafka_addr"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("idempotency_ttl must be positive"))
	}
	if c.OutboxMaxRetries < 1 {
		errs = append(errs, errors.New("outbox_max_retries must be at least 1"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// Brokers splits KafkaAddr on commas.
func (c Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaAddr, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidInput, k, err)
	}
	return d, nil
}
