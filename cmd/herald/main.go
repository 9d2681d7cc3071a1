package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/layer-3/herald/adapters/events"
	sessionstore "github.com/layer-3/herald/adapters/session"
	"github.com/layer-3/herald/adapters/siwe"
	"github.com/layer-3/herald/adapters/storage"
	"github.com/layer-3/herald/adapters/ticket"
	"github.com/layer-3/herald/config"
	"github.com/layer-3/herald/realtime"
	"github.com/layer-3/herald/service"
	herald_http "github.com/layer-3/herald/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", "herald").
		Logger()

	ctx := context.Background()

	// Ticket signing key. Production deployments load this from a secret
	// store; an ephemeral key only invalidates tickets on restart, which
	// their short TTL already tolerates.
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate ticket key")
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse redis url")
	}
	redisClient := redis.NewClient(opts)

	if err := storage.RunMigrations(cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	db, err := storage.NewPostgresDB(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer db.Close()

	wmLogger := watermill.NewStdLogger(false, false)
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		wmLogger,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create redis publisher")
	}

	sessions := sessionstore.NewRedisStore(redisClient, cfg.Auth.SessionTTL)
	users := storage.NewUserDirectory(db)
	notifications := storage.NewNotificationLog(db)
	verifier := siwe.NewVerifier(cfg.Auth.Domain)
	tickets := ticket.NewJWTIssuer(signKey, cfg.Auth.TicketTTL)
	eventPub := events.NewWatermillPublisher(publisher)

	registry := realtime.NewRegistry(log)

	authService := service.NewAuthService(log, sessions, users, verifier, tickets, eventPub)
	deliveryService := service.NewDeliveryService(log, notifications, registry, eventPub, cfg.Delivery.FlushDelay)

	gateway := realtime.NewGateway(log, registry, tickets, deliveryService, realtime.GatewayConfig{
		SendQueueSize: cfg.Delivery.SendQueueSize,
	})

	router := herald_http.SetupRouter(log, authService, deliveryService, sessions, gateway, herald_http.RouterConfig{
		NoncePerSecond: cfg.Auth.NoncePerSecond,
		NonceBurst:     cfg.Auth.NonceBurst,
	})

	log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
