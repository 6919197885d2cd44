package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultWorkerConcurrency      = 1
	DefaultPollInterval           = 1 * time.Second
	DefaultHeartbeatInterval      = 30 * time.Second
	DefaultPromoteInterval        = 5 * time.Second
	DefaultSchedulerCheckInterval = 10 * time.Second
	DefaultScheduleBatchSize      = 100
	DefaultOrphanCheckInterval    = 60 * time.Second
	DefaultStaleThreshold         = 90 * time.Second
	DefaultRecoveryDelay          = 5 * time.Second
	DefaultRecoveryPageSize       = 100
	DefaultWebhookTimeout         = 10 * time.Second
	DefaultWebhookMaxAttempts     = 3
	DefaultWebhookRetryInterval   = 30 * time.Second
	DefaultWebhookRetryBaseDelay  = 5 * time.Second
	DefaultWebhookRetryMaxDelay   = 5 * time.Minute
	DefaultWebhookRetryBatchSize  = 50
	DefaultHTTPAddr               = ":8080"
)

// Config carries every tunable of the service. Zero values are filled with
// the defaults above; options validate their inputs and accumulate errors so
// a misconfigured process reports everything at once.
type Config struct {
	Instance    string
	PostgresURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MigrationsDir string

	WorkerConcurrency int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	PromoteInterval   time.Duration

	SchedulerCheckInterval time.Duration
	ScheduleBatchSize      int

	OrphanCheckInterval time.Duration
	StaleThreshold      time.Duration
	RecoveryDelay       time.Duration
	RecoveryPageSize    int

	WebhookTimeout        time.Duration
	WebhookMaxAttempts    int
	WebhookRetryInterval  time.Duration
	WebhookRetryBaseDelay time.Duration
	WebhookRetryMaxDelay  time.Duration
	WebhookRetryBatchSize int

	HTTPAddr string
}

type Option func(*Config) error

// New builds a Config for the named instance with defaults applied before
// options run.
func New(instance string, opts ...Option) (*Config, error) {
	if instance == "" {
		return nil, errors.New("config: instance name is required")
	}

	cfg := &Config{
		Instance:               instance,
		RedisAddr:              "localhost:6379",
		MigrationsDir:          "./migrations",
		WorkerConcurrency:      DefaultWorkerConcurrency,
		PollInterval:           DefaultPollInterval,
		HeartbeatInterval:      DefaultHeartbeatInterval,
		PromoteInterval:        DefaultPromoteInterval,
		SchedulerCheckInterval: DefaultSchedulerCheckInterval,
		ScheduleBatchSize:      DefaultScheduleBatchSize,
		OrphanCheckInterval:    DefaultOrphanCheckInterval,
		StaleThreshold:         DefaultStaleThreshold,
		RecoveryDelay:          DefaultRecoveryDelay,
		RecoveryPageSize:       DefaultRecoveryPageSize,
		WebhookTimeout:         DefaultWebhookTimeout,
		WebhookMaxAttempts:     DefaultWebhookMaxAttempts,
		WebhookRetryInterval:   DefaultWebhookRetryInterval,
		WebhookRetryBaseDelay:  DefaultWebhookRetryBaseDelay,
		WebhookRetryMaxDelay:   DefaultWebhookRetryMaxDelay,
		WebhookRetryBatchSize:  DefaultWebhookRetryBatchSize,
		HTTPAddr:               DefaultHTTPAddr,
	}

	validationErrs := &ValidationError{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			validationErrs.Add(err)
		}
	}
	if validationErrs.HasError() {
		return nil, validationErrs
	}
	return cfg, nil
}

func WithPostgresURL(url string) Option {
	return func(c *Config) error {
		if url == "" {
			return errors.New("postgres: connection URL is required")
		}
		c.PostgresURL = url
		return nil
	}
}

func WithRedis(addr, password string, db int) Option {
	return func(c *Config) error {
		if addr == "" {
			return errors.New("redis: address is required")
		}
		if db < 0 {
			return fmt.Errorf("redis: invalid db %d", db)
		}
		c.RedisAddr = addr
		c.RedisPassword = password
		c.RedisDB = db
		return nil
	}
}

func WithMigrationsDir(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return errors.New("migrations: directory is required")
		}
		c.MigrationsDir = dir
		return nil
	}
}

func WithWorkerConcurrency(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("worker: concurrency must be >= 1, got %d", n)
		}
		c.WorkerConcurrency = n
		return nil
	}
}

func WithWorkerIntervals(poll, heartbeat, promote time.Duration) Option {
	return func(c *Config) error {
		if poll <= 0 || heartbeat <= 0 || promote <= 0 {
			return errors.New("worker: intervals must be positive")
		}
		c.PollInterval = poll
		c.HeartbeatInterval = heartbeat
		c.PromoteInterval = promote
		return nil
	}
}

func WithSchedulerCheckInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return errors.New("scheduler: check interval must be positive")
		}
		c.SchedulerCheckInterval = interval
		return nil
	}
}

func WithOrphanRecovery(checkInterval, staleThreshold, recoveryDelay time.Duration) Option {
	return func(c *Config) error {
		if checkInterval <= 0 || staleThreshold <= 0 || recoveryDelay <= 0 {
			return errors.New("recovery: intervals must be positive")
		}
		if staleThreshold <= checkInterval/2 {
			return errors.New("recovery: stale threshold too small relative to check interval")
		}
		c.OrphanCheckInterval = checkInterval
		c.StaleThreshold = staleThreshold
		c.RecoveryDelay = recoveryDelay
		return nil
	}
}

func WithWebhookPolicy(timeout time.Duration, maxAttempts int, retryInterval, retryBaseDelay time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return errors.New("webhook: timeout must be positive")
		}
		if maxAttempts < 1 {
			return fmt.Errorf("webhook: max attempts must be >= 1, got %d", maxAttempts)
		}
		if retryInterval <= 0 || retryBaseDelay <= 0 {
			return errors.New("webhook: retry intervals must be positive")
		}
		c.WebhookTimeout = timeout
		c.WebhookMaxAttempts = maxAttempts
		c.WebhookRetryInterval = retryInterval
		c.WebhookRetryBaseDelay = retryBaseDelay
		return nil
	}
}

func WithHTTPAddr(addr string) Option {
	return func(c *Config) error {
		if addr == "" {
			return errors.New("http: listen address is required")
		}
		c.HTTPAddr = addr
		return nil
	}
}
