// Package config loads the settings of an application built on this module.
//
// Values are resolved in three layers: struct defaults, an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/creasty/defaults"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/eventhandling"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/repository"
)

const (
	EngineMemory   = "memory"
	EngineBolt     = "bolt"
	EnginePostgres = "postgres"
	yieldAfterTx   = "after_transaction"
	yieldNever     = "never"
)

var ErrUnknownEngine = errors.New("unknown storage engine")
var ErrUnknownYieldPolicy = errors.New("unknown yield policy")
var ErrMissingDSN = errors.New("postgres dsn must be set for the postgres engine")
var ErrInvalidValue = errors.New("invalid configuration value")

type (
	Config struct {
		Storage    Storage    `yaml:"storage"`
		Bolt       Bolt       `yaml:"bolt"`
		Postgres   Postgres   `yaml:"postgres"`
		Repository Repository `yaml:"repository"`
		Bus        Bus        `yaml:"bus"`
		Listener   Listener   `yaml:"listener"`
		Log        Log        `yaml:"log"`
		Metrics    Metrics    `yaml:"metrics"`
	}

	Storage struct {
		Engine    string `env:"EVENTSOURCING_STORAGE_ENGINE" default:"bolt" yaml:"engine"`
		TableName string `env:"EVENTSOURCING_STORAGE_TABLE_NAME" default:"events" yaml:"tableName"`
	}

	Bolt struct {
		File        string        `env:"EVENTSOURCING_BOLT_FILE" default:"events.db" yaml:"file"`
		OpenTimeout time.Duration `env:"EVENTSOURCING_BOLT_OPEN_TIMEOUT" default:"1s" yaml:"openTimeout"`
	}

	Postgres struct {
		DSN               string        `env:"EVENTSOURCING_POSTGRES_DSN" yaml:"dsn"`
		ReplicaDSN        string        `env:"EVENTSOURCING_POSTGRES_REPLICA_DSN" yaml:"replicaDsn"`
		MaxConns          int32         `env:"EVENTSOURCING_POSTGRES_MAX_CONNS" default:"50" yaml:"maxConns"`
		MinConns          int32         `env:"EVENTSOURCING_POSTGRES_MIN_CONNS" default:"2" yaml:"minConns"`
		MaxConnLifetime   time.Duration `env:"EVENTSOURCING_POSTGRES_MAX_CONN_LIFETIME" default:"1h" yaml:"maxConnLifetime"`
		MaxConnIdleTime   time.Duration `env:"EVENTSOURCING_POSTGRES_MAX_CONN_IDLE_TIME" default:"5m" yaml:"maxConnIdleTime"`
		HealthCheckPeriod time.Duration `env:"EVENTSOURCING_POSTGRES_HEALTH_CHECK_PERIOD" default:"1m" yaml:"healthCheckPeriod"`
		ConnectTimeout    time.Duration `env:"EVENTSOURCING_POSTGRES_CONNECT_TIMEOUT" default:"5s" yaml:"connectTimeout"`
	}

	Repository struct {
		LockingStrategy string `env:"EVENTSOURCING_LOCKING_STRATEGY" default:"optimistic" yaml:"lockingStrategy"`
		CacheSize       int    `env:"EVENTSOURCING_CACHE_SIZE" default:"0" yaml:"cacheSize"`
	}

	Bus struct {
		WorkerCount   int `env:"EVENTSOURCING_BUS_WORKERS" default:"5" yaml:"workerCount"`
		QueueCapacity int `env:"EVENTSOURCING_BUS_QUEUE_CAPACITY" default:"0" yaml:"queueCapacity"`
	}

	Listener struct {
		CommitThreshold int           `env:"EVENTSOURCING_LISTENER_COMMIT_THRESHOLD" default:"50" yaml:"commitThreshold"`
		YieldPolicy     string        `env:"EVENTSOURCING_LISTENER_YIELD_POLICY" default:"after_transaction" yaml:"yieldPolicy"`
		MaxAttempts     int           `env:"EVENTSOURCING_LISTENER_MAX_ATTEMPTS" default:"3" yaml:"maxAttempts"`
		RetryDelay      time.Duration `env:"EVENTSOURCING_LISTENER_RETRY_DELAY" default:"50ms" yaml:"retryDelay"`
		JitterFactor    float64       `env:"EVENTSOURCING_LISTENER_JITTER_FACTOR" default:"0.3" yaml:"jitterFactor"`
	}

	Log struct {
		Level  string `env:"EVENTSOURCING_LOG_LEVEL" default:"info" yaml:"level"`
		Format string `env:"EVENTSOURCING_LOG_FORMAT" default:"text" yaml:"format"`
	}

	Metrics struct {
		Enable bool   `env:"EVENTSOURCING_METRICS_ENABLE" default:"false" yaml:"enable"`
		Addr   string `env:"EVENTSOURCING_METRICS_ADDR" default:":2112" yaml:"addr"`
	}
)

// Load applies the defaults, then the YAML file at path if path is not empty, then the environment,
// and validates the result.
func Load(path string) (*Config, error) {
	conf := &Config{}

	if err := defaults.Set(conf); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if err = yaml.Unmarshal(data, conf); err != nil {
			return nil, fmt.Errorf("could not unmarshal %s: %w", path, err)
		}
	}

	if err := env.Parse(conf); err != nil {
		return nil, err
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

// Validate checks the values that cannot be checked by the components they configure.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EngineMemory, EngineBolt:
	case EnginePostgres:
		if c.Postgres.DSN == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, c.Storage.Engine)
	}

	strategy, err := c.Repository.Strategy()
	if err != nil {
		return err
	}

	if _, err := c.Listener.Yield(); err != nil {
		return err
	}

	if c.Repository.CacheSize < 0 {
		return fmt.Errorf("%w: cache size %d", ErrInvalidValue, c.Repository.CacheSize)
	}

	if c.Repository.CacheSize > 0 && strategy != repository.Pessimistic {
		return fmt.Errorf("%w: cache size %d with %s locking", repository.ErrCachingRequiresPessimisticLocking, c.Repository.CacheSize, strategy)
	}

	if _, err = logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Join(ErrInvalidValue, err)
	}

	return nil
}

// Strategy returns the configured locking strategy.
func (r Repository) Strategy() (repository.LockingStrategy, error) {
	return repository.ParseLockingStrategy(r.LockingStrategy)
}

// Options returns the AsyncEventBus options for the configured pool.
func (b Bus) Options() []eventhandling.Option {
	return []eventhandling.Option{
		eventhandling.WithWorkerCount(b.WorkerCount),
		eventhandling.WithQueueCapacity(b.QueueCapacity),
	}
}

// Yield returns the configured yield policy.
func (l Listener) Yield() (eventhandling.YieldPolicy, error) {
	switch l.YieldPolicy {
	case yieldAfterTx:
		return eventhandling.YieldAfterTransaction, nil
	case yieldNever:
		return eventhandling.DoNotYield, nil
	default:
		return eventhandling.YieldAfterTransaction, fmt.Errorf("%w: %q", ErrUnknownYieldPolicy, l.YieldPolicy)
	}
}

// Options returns the TransactionalListener options for the configured batching and retries.
func (l Listener) Options() []eventhandling.TransactionalOption {
	yield, _ := l.Yield()

	return []eventhandling.TransactionalOption{
		eventhandling.WithDefaultCommitThreshold(l.CommitThreshold),
		eventhandling.WithDefaultYieldPolicy(yield),
		eventhandling.WithRetries(l.MaxAttempts, l.RetryDelay),
		eventhandling.WithJitterFactor(l.JitterFactor),
	}
}

// PGXPoolConfig builds the pool configuration for dsn.
func (p Postgres) PGXPoolConfig(dsn string) (*pgxpool.Config, error) {
	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	dbConfig.MaxConns = p.MaxConns
	dbConfig.MinConns = p.MinConns
	dbConfig.MaxConnLifetime = p.MaxConnLifetime
	dbConfig.MaxConnIdleTime = p.MaxConnIdleTime
	dbConfig.HealthCheckPeriod = p.HealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = p.ConnectTimeout

	return dbConfig, nil
}

// NewLogger creates a logrus logger with the configured level and format.
func (l Log) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)

	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger, nil
}
