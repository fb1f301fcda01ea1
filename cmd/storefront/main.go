package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopline/storefront/internal/cache"
	"github.com/shopline/storefront/internal/checkout"
	"github.com/shopline/storefront/internal/config"
	storefrontgrpc "github.com/shopline/storefront/internal/grpc"
	h "github.com/shopline/storefront/internal/http"
	"github.com/shopline/storefront/internal/logging"
	"github.com/shopline/storefront/internal/metrics"
	"github.com/shopline/storefront/internal/payment"
	"github.com/shopline/storefront/internal/poller"
	"github.com/shopline/storefront/internal/publisher"
	"github.com/shopline/storefront/internal/repository"
	"github.com/shopline/storefront/internal/repository/postgres"
	"github.com/shopline/storefront/internal/service"
	"github.com/shopline/storefront/internal/store/memory"
	"github.com/shopline/storefront/internal/tracing"
	"golang.org/x/sync/errgroup"
)

// stores is every persistence dependency, whichever backend provides it.
type stores struct {
	carts     repository.CartRepository
	products  repository.ProductRepository
	orders    repository.OrderRepository
	wishlists repository.WishlistRepository
	outbox    repository.OutboxRepository
	closers   []func(context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("storefront stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("storefront stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing.Setup()
	m := metrics.New()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		for _, c := range st.closers {
			if err := c(closeCtx); err != nil {
				log.Warn("failed to close store", slog.Any("error", err))
			}
		}
	}()

	var (
		cartCache cache.CartCache = cache.NoopCache{}
		idem      checkout.IdempotencyStore
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("redis ping succeeded", slog.String("addr", cfg.RedisAddr))
		cartCache = cache.NewRedisCache(redisClient, cache.WithTTL(cfg.CartCacheTTL))
		idem = checkout.NewRedisIdempotencyStore(redisClient, checkout.DefaultIdempotencyTTL,
			checkout.WithPendingTTL(cfg.PendingKeyTTL))
	} else {
		log.Warn("REDIS_ADDR not set, cart cache disabled and idempotency keys kept in process")
		idem = checkout.NewMemoryIdempotencyStore()
	}

	gateway, err := newGateway(cfg, log)
	if err != nil {
		return err
	}

	catalog := service.NewCatalogService(st.products)
	if cfg.SeedCatalog {
		if err := catalog.Seed(ctx, service.DemoCatalog()); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		log.Info("demo catalog seeded")
	}

	orchestrator := checkout.NewOrchestrator(st.carts, st.products, st.orders, gateway, log, m,
		checkout.WithIdempotencyStore(idem),
		checkout.WithOutbox(st.outbox),
		checkout.WithCartCache(cartCache),
		checkout.WithCurrency(cfg.Currency))

	router := h.NewRouter(h.Handlers{
		Products: h.NewProductHandler(catalog),
		Cart:     h.NewCartHandler(service.NewCartService(st.carts, st.products, cartCache, log, m), cfg.Currency),
		Wishlist: h.NewWishlistHandler(service.NewWishlistService(st.wishlists, st.products)),
		Orders:   h.NewOrdersHandler(service.NewOrderService(st.orders)),
		Checkout: h.NewCheckoutHandler(orchestrator),
	}, m, log, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := storefrontgrpc.NewServer(log)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return grpcServer.Serve(lis)
	})

	if len(cfg.KafkaBrokers) > 0 {
		outboxPoller := publisher.NewOutboxPoller(st.outbox, st.orders,
			publisher.NewKafkaWriter(cfg.OrderEventsTopic, cfg.KafkaBrokers...), log, m)
		defer outboxPoller.Close()
		g.Go(func() error {
			outboxPoller.Run(gctx)
			return nil
		})

		cartPoller := poller.NewPoller(poller.NewKafkaReader(cfg.OrderEventsTopic, cfg.KafkaBrokers...), cartCache, log)
		defer cartPoller.Close()
		g.Go(func() error {
			cartPoller.Run(gctx)
			return nil
		})
	} else {
		log.Warn("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		grpcServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *stores, err error) {
	var st stores
	defer func() {
		if err != nil {
			for _, c := range st.closers {
				_ = c(context.Background())
			}
		}
	}()

	switch cfg.StorageBackend {
	case config.BackendMemory:
		mem := memory.NewMemoryStore()
		st = stores{carts: mem, products: mem, orders: mem, wishlists: mem, outbox: mem}
		st.closers = append(st.closers, func(context.Context) error { return mem.Close() })
		log.Warn("using in-memory storage, data is lost on restart")

	default:
		db, errConnect := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if errConnect != nil {
			return nil, errConnect
		}
		st.closers = append(st.closers, func(ctx context.Context) error { return db.Client().Disconnect(ctx) })
		if err := repository.CreateIndexes(ctx, db); err != nil {
			return nil, fmt.Errorf("create indexes: %w", err)
		}
		log.Info("connected to MongoDB", slog.String("database", cfg.MongoDBName))

		st.carts = repository.NewMongoCartRepository(db)
		st.products = repository.NewMongoProductRepository(db)
		st.orders = repository.NewMongoOrderRepository(db)
		st.wishlists = repository.NewMongoWishlistRepository(db)
		st.outbox = repository.NewMongoOutboxRepository(db)
	}

	if cfg.OrderStore == config.BackendPostgres {
		creds := &postgres.Credentials{
			Host:              cfg.DBHost,
			Port:              cfg.DBPort,
			User:              cfg.DBUser,
			Password:          cfg.DBPassword,
			DBName:            cfg.DBName,
			MigrationsDirPath: cfg.MigrationsPath,
		}
		repo, errConnect := postgres.NewRepository(creds)
		if errConnect != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", errConnect)
		}
		st.closers = append(st.closers, func(context.Context) error { return repo.Close() })
		if err := repo.RunMigrations(creds); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database migrations completed")
		st.orders = repo
	}

	return &st, nil
}

func newGateway(cfg *config.Config, log *slog.Logger) (payment.Gateway, error) {
	var next payment.Gateway
	switch cfg.PaymentProvider {
	case config.ProviderStripe:
		gw, err := payment.NewStripeGateway(cfg.StripeSecretKey)
		if err != nil {
			return nil, err
		}
		next = gw
	default:
		log.Warn("using simulated payment provider")
		next = payment.NewSimulatedGateway()
	}
	return payment.NewBreakerGateway(next, payment.DefaultBreakerSettings(), log), nil
}
