package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/docstore"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

// app boots the process-wide dependencies and registers them in its
// container; commands resolve what they need from the returned context.
type app struct {
	cfg       *config.Config
	logger    ectologger.Logger
	startup   *startup.Startup
	container ectocontainer.DIContainer

	tracer  *sdktrace.TracerProvider
	metrics *http.Server
}

type appOptions struct {
	memoryStore bool
	withRedis   bool
	withKafka   bool
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.AppName, cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, err
	}
	container, err := newContainer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:       cfg,
		logger:    logger,
		startup:   startup.NewStartup(logger, clockwork.NewRealClock(), cfg.StartupMaxAttempts),
		container: container,
	}, nil
}

// newContainer creates a container holding the config and logger. Container
// ids are process-global, so each app gets its own.
func newContainer(cfg *config.Config, logger ectologger.Logger) (ectocontainer.DIContainer, error) {
	containerConfig := ectoinject.DefaultContainerConfig
	containerConfig.ID = cfg.AppName + "-" + uuid.NewString()
	containerConfig.LoggerConfig = &ectocontainer.DIContainerLoggerConfig{
		Prefix:   "ectoinject",
		LogLevel: loglevel.WARN,
		Enabled:  true,
		LogFunc: func(ctx context.Context, level, msg string) {
			if level == loglevel.WARN {
				logger.WithContext(ctx).Warn(msg)
				return
			}
			logger.WithContext(ctx).Debug(msg)
		},
	}

	container, err := ectoinject.NewDIContainer(containerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dependency container: %w", err)
	}
	if err := ectoinject.RegisterInstance[*config.Config](container, cfg); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return nil, err
	}
	return container, nil
}

// resolve fetches T from the container active on ctx.
func resolve[T any](ctx context.Context) (context.Context, T, error) {
	ctx, dep, err := ectoinject.GetContext[T](ctx)
	if err != nil {
		return ctx, dep, fmt.Errorf("failed to resolve dependency: %w", err)
	}
	return ctx, dep, nil
}

// start boots the dependencies a command needs and returns ctx with the
// app's container active.
func (a *app) start(ctx context.Context, opts appOptions) (context.Context, error) {
	if a.cfg.TracingEnabled {
		exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: a.cfg.OTLPEndpoint,
			Protocol: a.cfg.OTLPProtocol,
			Insecure: a.cfg.OTLPInsecure,
		})
		if err != nil {
			return ctx, err
		}
		a.tracer = tracing.Install(a.cfg.AppName, exporter)
	}

	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metrics = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	if opts.memoryStore || a.cfg.StoreDriver == "memory" {
		a.logger.Warn("Using the in-memory document store; nothing is persisted")
		if err := ectoinject.RegisterInstance[docstore.Provider](a.container, docstore.NewMemoryStore()); err != nil {
			return ctx, err
		}
	} else {
		var db database.DB
		a.startup.AddDependency(&startup.Dependency{
			Name: "postgres",
			StartFunc: func(ctx context.Context) error {
				conn, err := database.Connect(ctx, database.ConnectionConfig{
					Driver:          a.cfg.DatabaseDriver,
					DSN:             a.cfg.DatabaseDSN(),
					MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
					MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
					ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
				}, a.logger)
				if err != nil {
					return err
				}
				db = conn
				if err := ectoinject.RegisterInstance[database.DB](a.container, conn); err != nil {
					return err
				}
				return ectoinject.RegisterInstance[docstore.Provider](a.container, docstore.NewPostgresProvider(conn, a.logger))
			},
			StopFunc: func(context.Context) error {
				if db == nil {
					return nil
				}
				return db.Close()
			},
		})
	}

	if opts.withRedis && a.cfg.RedisEnabled {
		var client *redis.Client
		a.startup.AddDependency(&startup.Dependency{
			Name: "redis",
			StartFunc: func(ctx context.Context) error {
				c, err := redis.NewClient(ctx, redis.Config{
					Host:     a.cfg.RedisHost,
					Port:     a.cfg.RedisPort,
					Password: a.cfg.RedisPassword,
					DB:       a.cfg.RedisDB,
				}, a.logger)
				if err != nil {
					return err
				}
				client = c
				return ectoinject.RegisterInstance[*redis.Locker](a.container, redis.NewLocker(c, ""))
			},
			StopFunc: func(context.Context) error {
				if client == nil {
					return nil
				}
				return client.Close()
			},
		})
	}

	if opts.withKafka && a.cfg.KafkaEnabled {
		var producer *kafka.Producer
		a.startup.AddDependency(&startup.Dependency{
			Name: "kafka",
			StartFunc: func(context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      a.cfg.KafkaBrokers,
					Topic:        a.cfg.KafkaOutputTopic,
					BatchSize:    a.cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: a.cfg.KafkaRequiredAcks,
					Compression:  a.cfg.KafkaCompression,
				}, a.logger)
				return ectoinject.RegisterInstance[*events.Emitter](a.container, events.NewEmitter(producer, a.logger))
			},
			StopFunc: func(context.Context) error {
				if producer == nil {
					return nil
				}
				return producer.Close()
			},
		})
	}

	if err := a.startup.Start(ctx); err != nil {
		return ctx, err
	}
	return ectoinject.SetActiveContainer(ctx, a.container.GetContainerID())
}

func (a *app) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.startup.Stop(ctx); err != nil {
		a.logger.WithError(err).Warn("Failed to stop dependencies")
	}
	if a.metrics != nil {
		_ = a.metrics.Shutdown(ctx)
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Warn("Failed to flush traces")
		}
	}
}
