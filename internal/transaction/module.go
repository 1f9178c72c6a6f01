// Package transaction wires the webhook intake and settlement pipeline:
// idempotency gate, transaction store, dispatch queue, worker pool, and the
// HTTP endpoints in front of them.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gosettle/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/gosettle/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/gosettle/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/gosettle/internal/pkg/pkguid"
	"github.com/shandysiswandi/gosettle/internal/transaction/dispatch"
	"github.com/shandysiswandi/gosettle/internal/transaction/gate"
	"github.com/shandysiswandi/gosettle/internal/transaction/inbound"
	"github.com/shandysiswandi/gosettle/internal/transaction/settlement"
	"github.com/shandysiswandi/gosettle/internal/transaction/store"
	"github.com/shandysiswandi/gosettle/internal/transaction/usecase"
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context
	ID        pkguid.StringID
}

// New assembles the module from config-selected drivers and returns a closer
// that stops the consumer and releases every connection it opened.
func New(dep Dependency) (func(context.Context) error, error) {
	if dep.ID == nil {
		dep.ID = pkguid.NewUUID()
	}

	var closers []func(context.Context) error

	storage, err := newStore(dep.Config, &closers)
	if err != nil {
		return nil, err
	}

	admission, err := newGate(dep.Config, &closers)
	if err != nil {
		return nil, err
	}

	settler := settlement.NewSimulated(dep.Config.GetDuration("transaction.settlement.delay"))

	policy := dispatch.Policy{
		MaxRetries:  int(dep.Config.GetInt("transaction.worker.max_retries")),
		BaseBackoff: dep.Config.GetDuration("transaction.worker.base_backoff"),
	}

	build := func(queue usecase.Queue) *usecase.Usecase {
		return usecase.New(usecase.Dependency{
			Store:   storage,
			Gate:    admission,
			Queue:   queue,
			Settler: settler,
			Runner:  dep.Goroutine,
			ID:      dep.ID,
			RootCtx: dep.Context,
		})
	}

	var uc *usecase.Usecase
	switch dep.Config.GetString("transaction.dispatch.driver") {
	case "kafka":
		brokers := dep.Config.GetArray("transaction.dispatch.kafka.brokers")
		topic := dep.Config.GetString("transaction.dispatch.kafka.topic")
		group := dep.Config.GetString("transaction.dispatch.kafka.group")

		queue := dispatch.NewKafkaQueue(brokers, topic)
		uc = build(queue)

		consumer := dispatch.NewKafkaConsumer(brokers, topic, group, uc, policy)
		consumer.Start()

		closers = append(closers, consumer.Stop)
		closers = append(closers, func(context.Context) error { return queue.Close() })
	default:
		bus := dispatch.NewBus(int(dep.Config.GetInt("transaction.dispatch.buffer")))
		uc = build(bus)

		consumer := dispatch.NewConsumer(bus, uc, dispatch.ConsumerConfig{
			Workers: int(dep.Config.GetInt("transaction.worker.count")),
			Policy:  policy,
		})
		consumer.Start()

		closers = append(closers, consumer.Stop)
	}

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return func(ctx context.Context) error {
		var errs []error
		for _, closer := range closers {
			if err := closer(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}, nil
}

func newStore(cfg pkgconfig.Config, closers *[]func(context.Context) error) (usecase.Store, error) {
	switch cfg.GetString("transaction.storage.driver") {
	case "postgres":
		db, err := sql.Open("postgres", cfg.GetString("transaction.storage.postgres.dsn"))
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}

		db.SetMaxOpenConns(int(cfg.GetInt("transaction.storage.postgres.max_open_conns")))
		db.SetMaxIdleConns(int(cfg.GetInt("transaction.storage.postgres.max_idle_conns")))
		db.SetConnMaxLifetime(cfg.GetDuration("transaction.storage.postgres.conn_max_lifetime"))

		*closers = append(*closers, func(context.Context) error { return db.Close() })

		return store.NewPostgres(db), nil
	default:
		sf, err := pkguid.NewSnowflake()
		if err != nil {
			return nil, fmt.Errorf("init snowflake: %w", err)
		}

		return store.NewMemory(sf), nil
	}
}

func newGate(cfg pkgconfig.Config, closers *[]func(context.Context) error) (usecase.Gate, error) {
	ttl := cfg.GetDuration("transaction.gate.ttl")
	if ttl <= 0 {
		ttl = gate.DefaultTTL
	}

	switch cfg.GetString("transaction.gate.driver") {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.GetString("transaction.gate.redis.address"),
		})

		*closers = append(*closers, func(context.Context) error { return client.Close() })

		return gate.NewRedis(client, ttl), nil
	default:
		return gate.NewMemory(ttl), nil
	}
}
