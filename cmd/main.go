/**
 * @description
 * This is the main entry point for the wallet-service. It is responsible for
 * initializing all components of the service, including configuration, the
 * database connection, the Andino environment directory, message brokers,
 * repositories, the core application service, the snapshot refresher, and
 * the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/migrate, internal/store: Internal packages for the service.
 * - pkg/andinoclient: Client for the Andino wallet provider API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/lumapay/wallet-service/internal/api"
	"github.com/lumapay/wallet-service/internal/app"
	"github.com/lumapay/wallet-service/internal/config"
	"github.com/lumapay/wallet-service/internal/migrate"
	"github.com/lumapay/wallet-service/internal/store"
	"github.com/lumapay/wallet-service/pkg/andinoclient"
	rmrabbit "github.com/lumapay/wallet-service/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting wallet-service\" port=%s", cfg.ServerPort)

	if cfg.RunMigrations {
		runMigrations(cfg.DatabaseURL)
	}

	dbpool := connectDatabase(cfg.DatabaseURL)
	defer dbpool.Close()

	eventProducer := buildEventProducer(cfg.RabbitMQURL)
	defer eventProducer.Close()

	environments := buildEnvironmentDirectory(cfg)

	redisClient := connectRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	repository := store.NewPostgresRepository(dbpool)

	walletService := app.NewService(repository, environments, eventProducer, cfg.AndinoDemoSMSCode)
	if redisClient != nil {
		walletService.SetSMSRateLimiter(
			app.NewRedisSMSRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
			cfg.SMSRateLimitPerHour,
			time.Hour,
		)
	}

	// Periodic snapshot refresher, enabled by configuring a cron schedule.
	var scheduler *app.Scheduler
	if strings.TrimSpace(cfg.SnapshotRefreshSchedule) != "" {
		jobs := app.NewJobs(repository, walletService, cfg.SnapshotRefreshBatchLimit)
		scheduler = app.NewScheduler(jobs, cfg.SnapshotRefreshSchedule)
		scheduler.Start()
	}

	walletHandlers := api.NewWalletHandlers(walletService, cfg.JWTSecret)
	router := api.WalletRoutes(walletHandlers, cfg.AllowedOriginList())

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{Addr: serverAddr, Handler: router}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	if scheduler != nil {
		<-scheduler.Stop().Done() // Wait for in-flight refresh runs to finish
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}

// runMigrations applies pending schema migrations before the pool opens.
func runMigrations(dsn string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := migrate.Up(ctx, dsn); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"migrations failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"migrations applied\"")
}

// connectDatabase opens the pgx connection pool, tuned the same way across
// lumapay services.
func connectDatabase(dsn string) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"database connected\"")
	return dbpool
}

// buildEventProducer connects the RabbitMQ producer. This service only
// publishes, so a broker outage degrades to a logging fallback instead of
// blocking startup.
func buildEventProducer(amqpURL string) rmrabbit.Publisher {
	producer, err := rmrabbit.NewEventProducer(amqpURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		return &rmrabbit.EventProducerFallback{}
	}
	log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	return producer
}

// buildEnvironmentDirectory maps the configured Andino endpoints to clients.
// The service cannot run without at least the default environment.
func buildEnvironmentDirectory(cfg config.Config) *andinoclient.EnvironmentDirectory {
	environments, err := andinoclient.NewEnvironmentDirectory(
		cfg.AndinoDefaultEnvironment,
		cfg.AndinoEndpoints(),
		cfg.DemoEnvironmentList(),
	)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"andino environment setup failed\" err=%v", err)
	}
	log.Printf("level=info component=bootstrap msg=\"andino environments configured\" environments=%s default=%s",
		strings.Join(environments.Environments(), ","), environments.DefaultEnvironment())
	return environments
}

// connectRedis opens the Redis client backing the SMS rate limiter. A missing
// or broken Redis disables limiting rather than blocking startup.
func connectRedis(cfg config.Config) *redis.Client {
	if cfg.SMSRateLimitPerHour <= 0 {
		return nil
	}
	if cfg.RedisURL == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; sms rate limiting disabled\" env=REDIS_URL")
		return nil
	}

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; sms rate limiting disabled\" err=%v", err)
		return nil
	}

	client := redis.NewClient(redisOptions)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed; sms rate limiting disabled\" err=%v", err)
		client.Close()
		return nil
	}

	log.Println("level=info component=bootstrap msg=\"redis connected\"")
	return client
}
