package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-ticketsync/internal/auth"
	"ms-ticketsync/internal/config"
	"ms-ticketsync/internal/database/migrations"
	"ms-ticketsync/internal/kafka"
	"ms-ticketsync/internal/logger"
	"ms-ticketsync/internal/provider"
	"ms-ticketsync/internal/syncer"
	syncapi "ms-ticketsync/internal/syncer/api"
	syncdb "ms-ticketsync/internal/syncer/db"
	syncredis "ms-ticketsync/internal/syncer/redis"
)

func connectPostgres(cfg *config.Config, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting ticket sync service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg, log)
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to run migrations: %v", err))
		}
		log.Info("DATABASE", "Migrations applied")
	}

	var passLock syncer.Locker
	if cfg.Redis.Enabled {
		redisClient := connectRedis(ctx, cfg, log)
		defer redisClient.Close()
		passLock = syncredis.NewLock(redisClient, uuid.New().String())
	} else {
		log.Warn("CONFIG", "Redis disabled, manual sync trigger is guarded per-process only")
	}

	var producer syncer.Publisher
	var checkinConsumer *kafka.Consumer
	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	defer cancelConsumer()

	store := &syncdb.DB{Bun: bunDB}

	if cfg.Kafka.Enabled && !cfg.Kafka.MockMode {
		requiredTopics := []string{
			cfg.Kafka.Topics.MembershipReload,
			cfg.Kafka.Topics.SyncCompleted,
			cfg.Kafka.Topics.TicketCheckin,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}

		kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer kafkaProducer.Close()
		producer = kafkaProducer
		log.Info("KAFKA", "Kafka producer initialized successfully")

		// Check-in messages from downstream redemption flip is_consumed;
		// the sync engine never writes that flag itself.
		checkinConsumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketCheckin, cfg.Kafka.GroupID)
		go checkinConsumer.Start(consumerCtx, func(msg kafka.CheckinMessage) {
			if err := store.ConsumeTicket(msg.PositionID); err != nil {
				log.Error("CHECKIN", fmt.Sprintf("Failed to consume ticket %s: %v", msg.PositionID, err))
				return
			}
			log.Info("CHECKIN", fmt.Sprintf("Ticket %s marked consumed", msg.PositionID))
		})
		log.Info("KAFKA", fmt.Sprintf("Check-in consumer started on %s", cfg.Kafka.Topics.TicketCheckin))
	} else if cfg.Kafka.MockMode {
		producer = &kafka.MockProducer{}
		log.Warn("KAFKA", "Kafka mock mode enabled, events will be discarded")
	} else {
		log.Warn("KAFKA", "Kafka disabled")
	}

	providerClient := provider.NewClient(&http.Client{
		Timeout: cfg.Sync.RequestTimeout,
	})

	source := config.NewFileSource(cfg.Sync.OrganizersFile)

	engine := syncer.NewEngine(providerClient, store, source, log, cfg.Sync.Interval)
	engine.Producer = producer
	engine.Lock = passLock
	engine.Topics = syncer.Topics{
		MembershipReload: cfg.Kafka.Topics.MembershipReload,
		SyncCompleted:    cfg.Kafka.Topics.SyncCompleted,
	}

	handler := syncapi.NewHandler(engine, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", handler.Healthz)
	r.Get("/readyz", handler.Readyz)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireServiceToken(cfg.Server.ServiceToken))
		r.Post("/sync", handler.TriggerSync)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Server listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("Server error: %v", err))
		}
	}()

	log.Info("SYNC", fmt.Sprintf("Starting sync loop (interval %s)", cfg.Sync.Interval))
	engine.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutting down")
	engine.Stop()
	cancelConsumer()
	if checkinConsumer != nil {
		checkinConsumer.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown error: %v", err))
	}
	log.Info("APP", "Shutdown complete")
}
