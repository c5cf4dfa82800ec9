package main

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/vending-machine/internal/config"
	"github.com/dmehra2102/vending-machine/internal/orchestrator/application"
	orchestratorhttp "github.com/dmehra2102/vending-machine/internal/orchestrator/infrastructure/http"
	orchestratorkafka "github.com/dmehra2102/vending-machine/internal/orchestrator/infrastructure/kafka"
	orchestratorlog "github.com/dmehra2102/vending-machine/internal/orchestrator/infrastructure/logging"
	tenantapp "github.com/dmehra2102/vending-machine/internal/tenant/application"
	"github.com/dmehra2102/vending-machine/pkg/idempotency"
	"github.com/dmehra2102/vending-machine/pkg/logging"
	"github.com/dmehra2102/vending-machine/pkg/metrics"
	"github.com/dmehra2102/vending-machine/pkg/outbox"
	"github.com/dmehra2102/vending-machine/pkg/shutdown"
	"github.com/dmehra2102/vending-machine/pkg/tracing"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTELEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	// Idempotency
	var idem *idempotency.Store
	var checker idempotency.Checker
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis ping failed", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		idem = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
		checker = idem
	}

	m := metrics.NewRegistry()
	tenants := tenantapp.NewStore(log)

	var (
		wg       sync.WaitGroup
		writer   *orchestratorkafka.Writer
		consumer *orchestratorkafka.Consumer
		gateway  application.NotificationGateway
	)
	brokers := cfg.Brokers()
	if len(brokers) > 0 {
		writer = orchestratorkafka.NewWriter(brokers)
		store := outbox.NewMemoryStore(cfg.OutboxMaxRetries, outbox.OnDrop(func(e outbox.Event) {
			var lastErr string
			if e.LastError != nil {
				lastErr = *e.LastError
			}
			m.OutboxDropped.Inc()
			log.Error("outbox event dropped", "event_id", e.ID, "type", e.Type, "aggregate_id", e.AggregateID, "retries", e.RetryCount, "err", lastErr)
		}))
		m.TrackOutbox(store.Pending)
		dispatch := outbox.NewDispatcher(log, writer, cfg.NotifyTopic)
		relay := outbox.NewRelay(log, store, dispatch, cfg.ServiceName+"-relay")
		gateway = orchestratorkafka.NewGateway(log, dispatch, store)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	} else {
		log.Warn("KAFKA_ADDR not set, notifications are only logged")
		gateway = orchestratorlog.NewGateway(log)
	}

	coord := application.NewCoordinator(log, tenants, gateway, m)

	if len(brokers) > 0 {
		var dedupe orchestratorkafka.Deduper
		if idem != nil {
			dedupe = idem
		}
		consumer = orchestratorkafka.NewConsumer(log, brokers, cfg.CommandTopic, cfg.ConsumerGroup, coord, dedupe)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				log.Error("command consumer stopped with error", "err", err)
				cancel()
			}
		}()
	}

	handler := orchestratorhttp.NewHandler(log, cfg.ServiceName, coord, tenants, m, checker)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	steps := []shutdown.Step{
		{Name: "http", Fn: srv.Shutdown},
		{Name: "workers", Fn: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() { wg.Wait(); close(done) }()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
	}
	if writer != nil {
		steps = append(steps, shutdown.Step{Name: "kafka writer", Fn: func(context.Context) error { return writer.Close() }})
	}
	if rdb != nil {
		steps = append(steps, shutdown.Step{Name: "redis", Fn: func(context.Context) error { return rdb.Close() }})
	}
	steps = append(steps, shutdown.Step{Name: "tracing", Fn: tp.Shutdown})

	if err := shutdown.Drain(log, cfg.ShutdownTimeout, steps...); err != nil {
		log.Error("shutdown finished with errors", "err", err)
	}
	log.Info("vending-service shutdown complete")
}
