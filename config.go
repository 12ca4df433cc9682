package gocelery

import "time"

// Config stores the configuration information for a gocelery client.
// It is consumed once when the client is created and never read again.
type Config struct {
	// BrokerURL in the format amqp://user:password@<host>/<virtualhost>
	BrokerURL string
	// BackendURL points at the result backend, e.g. redis://localhost:6379/0
	BackendURL string
	// LogLevel: debug, info, warn, error, fatal
	LogLevel string
	// DefaultQueue is the routing key task messages are published on.
	DefaultQueue string
	// ReadyTimeout bounds how long a queued message may wait for the
	// broker and backend connections to become usable. Zero waits
	// forever.
	ReadyTimeout time.Duration
	// ResultPollInterval is the delay between result backend polls in
	// AsyncResult.Get.
	ResultPollInterval time.Duration
	// SendEvents turns on celery task-sent event publishing.
	SendEvents bool
}

// withDefaults copies the config and fills in the zero values. The
// caller's struct is never mutated.
func withDefaults(config *Config) *Config {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "amqp://localhost"
	}
	if cfg.BackendURL == "" {
		cfg.BackendURL = "redis://localhost:6379/0"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DefaultQueue == "" {
		cfg.DefaultQueue = "celery"
	}
	if cfg.ResultPollInterval <= 0 {
		cfg.ResultPollInterval = 500 * time.Millisecond
	}
	return &cfg
}
