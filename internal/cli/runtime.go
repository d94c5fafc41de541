// Package cli wires configuration into the components the palaver commands
// run: logger, storage, locks, metrics and the bot itself.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/palaver"
	"github.com/aretw0/palaver/internal/config"
	"github.com/aretw0/palaver/internal/logging"
	"github.com/aretw0/palaver/pkg/adapters/file"
	"github.com/aretw0/palaver/pkg/adapters/memory"
	redisadapter "github.com/aretw0/palaver/pkg/adapters/redis"
	sqladapter "github.com/aretw0/palaver/pkg/adapters/sql"
	"github.com/aretw0/palaver/pkg/observability"
	pmw "github.com/aretw0/palaver/pkg/persistence/middleware"
	"github.com/aretw0/palaver/pkg/ports"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Runtime holds the long lived components built from a Config.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Storage  ports.Storage
	Locker   ports.DistributedLocker
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	middleware []pmw.Middleware
	closers    []io.Closer
}

// NewRuntime builds the runtime. Logs go to logOut (stderr by default).
func NewRuntime(cfg *config.Config, logOut io.Writer) (*Runtime, error) {
	if logOut == nil {
		logOut = os.Stderr
	}
	rt := &Runtime{
		Config: cfg,
		Logger: logging.NewWithFormat(logOut, logging.ParseLevel(cfg.Log.Level), logging.Format(cfg.Log.Format)),
	}

	if err := rt.openStorage(); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.buildStorageMiddleware(); err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Metrics.Enabled {
		rt.Registry = prometheus.NewRegistry()
		rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rt.Metrics = observability.NewMetrics(
			observability.WithNamespace(cfg.Metrics.Namespace),
			observability.WithRegisterer(rt.Registry),
		)
	}
	return rt, nil
}

func (rt *Runtime) openStorage() error {
	sc := rt.Config.Storage
	switch sc.Driver {
	case config.DriverMemory:
		rt.Storage = memory.NewStore()
	case config.DriverFile:
		rt.Storage = file.New(sc.Path)
	case config.DriverRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		rt.closers = append(rt.closers, client)

		opts := []redisadapter.Option{redisadapter.WithPrefix(sc.Redis.Prefix)}
		if sc.TTL > 0 {
			opts = append(opts, redisadapter.WithTTL(sc.TTL))
		}
		rt.Storage = redisadapter.NewFromClient(client, opts...)
		if rt.Config.Lock.Distributed {
			rt.Locker = redisadapter.NewLocker(client, sc.Redis.Prefix+"lock:")
		}
	case config.DriverSQL:
		db, err := gorm.Open(sqlite.Open(sc.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return fmt.Errorf("cli: open sql storage: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			rt.closers = append(rt.closers, sqlDB)
		}
		store, err := sqladapter.New(db)
		if err != nil {
			return err
		}
		rt.Storage = store
	default:
		return fmt.Errorf("cli: unknown storage driver %q", sc.Driver)
	}
	rt.Logger.Debug("storage ready", "driver", sc.Driver)
	return nil
}

func (rt *Runtime) buildStorageMiddleware() error {
	if patterns := rt.Config.PII.Patterns; len(patterns) > 0 {
		pii, err := pmw.NewPIIMiddleware(patterns)
		if err != nil {
			return err
		}
		rt.middleware = append(rt.middleware, pii)
	}

	active, fallback, err := rt.Config.Encryption.Keys()
	if err != nil {
		return err
	}
	if active != nil {
		enc, err := pmw.NewEncryptionMiddleware(pmw.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return err
		}
		rt.middleware = append(rt.middleware, enc)
	}
	return nil
}

// StateStorage returns the storage with PII masking and encryption applied,
// as the bot sees it.
func (rt *Runtime) StateStorage() ports.Storage {
	return pmw.Chain(rt.Storage, rt.middleware...)
}

// BotOptions translates the runtime into palaver options.
func (rt *Runtime) BotOptions() []palaver.Option {
	opts := []palaver.Option{
		palaver.WithLogger(rt.Logger),
		palaver.WithStorage(rt.Storage),
		palaver.WithStorageMiddleware(rt.middleware...),
	}
	if rt.Locker != nil {
		opts = append(opts, palaver.WithLocker(rt.Locker), palaver.WithLockTTL(rt.Config.Lock.TTL))
	}
	if rt.Metrics != nil {
		opts = append(opts, palaver.WithMetrics(rt.Metrics))
	}
	return opts
}

// Close releases connections opened by the runtime.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
