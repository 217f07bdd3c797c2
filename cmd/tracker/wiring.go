package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"curator-signal-lab/internal/config"
	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/ingestion"
	"curator-signal-lab/internal/ledger"
	"curator-signal-lab/internal/logger"
	"curator-signal-lab/internal/market"
	"curator-signal-lab/internal/observability"
	"curator-signal-lab/internal/solana"
	"curator-signal-lab/internal/storage"
	chstore "curator-signal-lab/internal/storage/clickhouse"
	"curator-signal-lab/internal/storage/memory"
	"curator-signal-lab/internal/storage/migrations"
	pgstore "curator-signal-lab/internal/storage/postgres"
	"curator-signal-lab/internal/storage/snapshot"
	"curator-signal-lab/internal/storage/sqlite"
	"curator-signal-lab/internal/tracker"
)

// stores bundles the persistence backends chosen by config.
type stores struct {
	trades       storage.PaperTradeStore
	observations storage.ObservationLog
	snapshot     *snapshot.Writer
	previous     *domain.Document // last snapshot, nil on first start
	closers      []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores opens the trade store, the optional ClickHouse observation log
// and the snapshot writer. The memory backend is seeded from the snapshot.
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	s := &stores{snapshot: snapshot.NewWriter(cfg.Storage.SnapshotPath)}

	prev, err := snapshot.Read(cfg.Storage.SnapshotPath)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		s.previous = prev
	}

	switch cfg.Storage.Backend {
	case "memory":
		store := memory.NewPaperTradeStore()
		if s.previous != nil {
			if err := store.Seed(s.previous.Trades); err != nil {
				return nil, fmt.Errorf("seed from snapshot: %w", err)
			}
			log.Info("restored trades from snapshot",
				logger.String("path", cfg.Storage.SnapshotPath),
				logger.Int("trades", len(s.previous.Trades)),
			)
		}
		s.trades = store

	case "sqlite":
		if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { db.Close() })
		s.trades = sqlite.NewPaperTradeStore(db)

	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.trades = pgstore.NewPaperTradeStore(pool)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.observations = chstore.NewObservationLog(conn)
	} else {
		s.observations = memory.NewObservationLog()
	}

	return s, nil
}

func newLedger(ctx context.Context, s *stores, log *logger.Logger) (*ledger.Ledger, error) {
	opts := ledger.Options{
		Store:        s.trades,
		Observations: s.observations,
		Snapshot:     s.snapshot,
		Logger:       log,
	}
	if s.previous != nil {
		opts.StartedAt = s.previous.StartedAt
	}
	return ledger.New(ctx, opts)
}

// adapters holds the external data clients.
type adapters struct {
	rpc      *solana.HTTPClient
	oracle   tracker.PriceOracle
	probe    tracker.LiquidityProbe
	metadata tracker.MetadataSource
	age      tracker.AgeSource
	closers  []func()
}

func (a *adapters) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newAdapters(cfg *config.Config, metrics *observability.Metrics, log *logger.Logger) (*adapters, error) {
	rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint,
		solana.WithTimeout(cfg.Tracker.CallTimeout),
		solana.WithCommitment(cfg.Solana.Commitment),
		solana.WithObserver(func(method string, start time.Time, err error) {
			metrics.ObserveCall("solana", method, start, err)
		}),
	)

	birdeye := market.NewBirdeyeClient(cfg.Market.BirdeyeURL, cfg.Market.BirdeyeAPIKey, cfg.Tracker.CallTimeout, metrics)
	a := &adapters{
		rpc:      rpc,
		oracle:   birdeye,
		probe:    market.NewJupiterProbe(cfg.Market.JupiterURL, rpc, cfg.Tracker.CallTimeout, metrics),
		metadata: birdeye,
		age:      market.NewTokenAgeLookup(rpc, cfg.Market.AgeMaxPages),
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { client.Close() })
		a.oracle = market.NewCachedOracle(birdeye, client, cfg.Market.PriceCacheTTL, log)
		log.Info("price cache enabled", logger.String("redis", cfg.Redis.Addr))
	}
	return a, nil
}

// subscribe starts the configured event source for every curator wallet.
func subscribe(ctx context.Context, cfg *config.Config, a *adapters, metrics *observability.Metrics, log *logger.Logger) (<-chan domain.TradeEvent, error) {
	switch cfg.Ingestion.Source {
	case "kafka":
		src := ingestion.NewKafkaSource(ingestion.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, log, metrics)
		a.closers = append(a.closers, func() { src.Close() })
		return src.Subscribe(ctx, cfg.Curators.Wallets)

	case "ws":
		var parser ingestion.TxParser
		switch cfg.Ingestion.Parser {
		case "helius":
			parser = ingestion.NewHeliusParser(cfg.Ingestion.HeliusURL, cfg.Ingestion.HeliusAPIKey, cfg.Tracker.CallTimeout, metrics)
		default:
			parser = ingestion.NewRPCParser(a.rpc)
		}

		wsCfg := solana.DefaultWSConfig()
		wsCfg.Commitment = cfg.Solana.Commitment
		wsCfg.Logger = log
		ws, err := solana.NewWSClient(ctx, cfg.Solana.WSEndpoint, &wsCfg)
		if err != nil {
			return nil, fmt.Errorf("connect websocket: %w", err)
		}
		a.closers = append(a.closers, func() { ws.Close() })

		src := ingestion.NewWalletSource(ws, parser, ingestion.WalletSourceConfig{}, log, metrics)
		events, err := src.Subscribe(ctx, cfg.Curators.Wallets)
		if err != nil {
			return nil, err
		}

		if cfg.Kafka.PublishTopic != "" {
			pub := ingestion.NewKafkaPublisher(ingestion.KafkaConfig{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.PublishTopic,
			}, log)
			a.closers = append(a.closers, func() { pub.Close() })
			events = ingestion.Tee(ctx, events, pub, log)
		}
		return events, nil

	default:
		return nil, fmt.Errorf("unknown ingestion source %q", cfg.Ingestion.Source)
	}
}
