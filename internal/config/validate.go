package config

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

/*
Validate checks the settings every command relies on:
- Database driver and DSN
- Classifier provider, model and pool sizes
- Coding bases
- Logging
- Pricing (if present)

Redis and worker settings are only checked by ValidateQueue, for the
commands that talk to the background queue.
*/
func (c *Config) Validate() error {
	// Database config
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	// Input config
	if c.Input.ChunkSize <= 0 {
		return errors.New("input.chunk_size must be a positive integer")
	}

	// Classifier config
	switch c.Classifier.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("classifier.provider must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.Classifier.Provider)
	}
	if c.Classifier.Model == "" {
		return errors.New("classifier.model is required")
	}
	if c.Classifier.BatchSize <= 0 {
		return errors.New("classifier.batch_size must be a positive integer")
	}
	if c.Classifier.Workers <= 0 {
		return errors.New("classifier.workers must be a positive integer")
	}
	if c.Classifier.MaxAttempts <= 0 {
		return errors.New("classifier.max_attempts must be at least 1")
	}
	if c.Classifier.BaseDelayMs < 0 {
		return errors.New("classifier.base_delay_ms must not be negative")
	}
	if c.Classifier.Throttle < 0 {
		return errors.New("classifier.throttle must not be negative")
	}
	if c.Classifier.Timeout < 0 {
		return errors.New("classifier.timeout must not be negative")
	}
	for i, col := range c.Classifier.Columns {
		if strings.TrimSpace(col.Name) == "" {
			return fmt.Errorf("classifier.columns[%d].name is required", i)
		}
	}

	// Coding config
	if c.Coding.TypeOrdinalBase < 0 || c.Coding.SequenceBase < 0 {
		return fmt.Errorf("coding bases must not be negative (type_ordinal_base=%d, sequence_base=%d)", c.Coding.TypeOrdinalBase, c.Coding.SequenceBase)
	}

	// Log config
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}

	// Pricing config (optional, but if present, must be valid)
	for provider, models := range c.Pricing {
		if provider == "" {
			return errors.New("pricing contains an empty provider name")
		}
		for model, price := range models {
			if model == "" {
				return fmt.Errorf("pricing for provider '%s' contains an empty model name", provider)
			}
			if price.InputPerToken < 0 || price.OutputPerToken < 0 {
				return fmt.Errorf("pricing for provider '%s', model '%s' has negative token cost", provider, model)
			}
		}
	}

	return nil
}

// ValidateQueue checks the Redis and worker settings used by enqueue and worker.
func (c *Config) ValidateQueue() error {
	// Redis config
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}

	// Worker config
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}
	return nil
}
