package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/questfall/walletgate/adapters/events"
	"github.com/questfall/walletgate/adapters/postgres"
	redisadapter "github.com/questfall/walletgate/adapters/redis"
	"github.com/questfall/walletgate/internal/config"
	"github.com/questfall/walletgate/service"
	transport "github.com/questfall/walletgate/transport/http"
)

const sweepInterval = 10 * time.Minute

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse redis URL")
	}
	redisClient := redis.NewClient(opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	users := postgres.NewUserRepository(db)
	devices := postgres.NewDeviceRepository(db)
	sessions := postgres.NewSessionRepository(db)
	refreshTokens := postgres.NewRefreshTokenRepository(db)
	challenges := redisadapter.NewChallengeStore(redisClient)
	eventPub := events.NewWatermillPublisher(publisher)

	deviceService := service.NewDeviceService(devices, cfg.SkipDeviceCheck, log)
	sessionService := service.NewSessionService(sessions, cfg.SessionTTL, cfg.SessionRetention, log)
	tokenService := service.NewTokenService(
		users, refreshTokens, sessionService,
		cfg.JWTSecret, cfg.JWTRefreshSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
		log,
	)
	authService := service.NewAuthService(
		users, challenges, deviceService, sessionService, tokenService, eventPub,
		cfg.ChallengeDomain, cfg.ChallengeTTL, cfg.BypassWalletSignature,
		log,
	)
	guard := service.NewSessionSecurityService(sessionService, deviceService, service.SecurityPolicy{
		EnableDeviceFingerprinting: cfg.EnableDeviceFingerprinting,
		EnableUserAgentValidation:  cfg.EnableUserAgentValidation,
		StrictIPValidation:         cfg.StrictIPValidation,
		UserAgentThreshold:         cfg.UserAgentThreshold,
		IPMatchLevel:               cfg.IPMatchLevel,
	}, log)

	go runSweeps(ctx, sessionService, tokenService, log)

	router := transport.SetupRouter(authService, tokenService, guard)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close redis client")
	}
}

// runSweeps periodically ends expired sessions, purges old ones and
// removes expired refresh tokens. The sweeps are idempotent and safe
// to run concurrently with live traffic.
func runSweeps(ctx context.Context, sessions *service.SessionService, tokens *service.TokenService, log zerolog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sessions.CleanupExpiredSessions(ctx); err != nil {
				log.Warn().Err(err).Msg("session expiry sweep failed")
			}
			if _, err := sessions.PurgeOldSessions(ctx); err != nil {
				log.Warn().Err(err).Msg("session retention sweep failed")
			}
			if _, err := tokens.CleanupExpired(ctx); err != nil {
				log.Warn().Err(err).Msg("refresh token sweep failed")
			}
		}
	}
}
