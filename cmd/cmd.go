package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transitwatch/internal/config"
	"transitwatch/internal/handlers"
	"transitwatch/internal/models"
	"transitwatch/internal/repository"
	"transitwatch/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const configEnv = "TRANSITWATCH_CONFIG"

func Run() {
	// Load configuration
	path := os.Getenv(configEnv)
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Storage
	var (
		identities services.IdentityStore
		profiles   services.ProfileStore
		reports    services.ReportStore
		resets     services.ResetTokenStore
	)

	if cfg.Database.Host != "" {
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := db.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping database")
		}
		if err := repository.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
		log.Info().Msg("Database connection established")

		identities = repository.NewIdentityRepository(db)
		profiles = repository.NewUserRepository(db)
		reports = repository.NewReportRepository(db)
	} else {
		log.Warn().Msg("No database configured, data is kept in memory")

		identities = repository.NewMemoryIdentityRepository()
		profiles = repository.NewMemoryUserRepository()
		reports = repository.NewMemoryReportRepository()
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping redis")
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")

		resets = repository.NewResetTokenRepository(rdb)
	} else {
		log.Warn().Msg("No redis configured, live feed is limited to this instance")
		resets = repository.NewMemoryResetTokenRepository()
	}

	// Initialize services
	authService := services.NewAuthService(
		identities,
		resets,
		services.NewMailjetMailer(cfg.Mail),
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.TTLDays)*24*time.Hour,
		cfg.Mail.ResetURL,
	)
	profileService := services.NewProfileService(profiles)

	hub := services.NewFeedHub(reports, rdb)
	go func() {
		if err := hub.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Feed hub stopped")
		}
	}()

	var notifier services.ReportNotifier
	if pushers := setupPushers(ctx, cfg); len(pushers) > 0 {
		notifier = services.NewPushNotifier(profiles, pushers)
	}
	reportService := services.NewReportService(reports, hub, notifier)

	var imageService *services.ImageService
	if cfg.AWS.S3Bucket != "" {
		imageService, err = services.NewImageService(ctx, cfg.AWS)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create image service")
		}
	} else {
		log.Warn().Msg("No S3 bucket configured, report images are disabled")
	}

	// Setup router
	r := handlers.NewRouter(handlers.Services{
		Auth:    authService,
		Profile: profileService,
		Report:  reportService,
		Image:   imageService,
		Hub:     hub,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hijacked feed connections are not closed by Shutdown
	stop()
	hub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupPushers creates a pusher for every configured push platform
func setupPushers(ctx context.Context, cfg *config.Config) map[models.PushPlatform]services.Pusher {
	pushers := make(map[models.PushPlatform]services.Pusher)

	if cfg.APNs.CertFile != "" {
		p, err := services.NewAPNsPusher(cfg.APNs)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		pushers[models.PlatformIOS] = p
	}

	if cfg.Firebase.CredentialsPath != "" {
		p, err := services.NewFCMPusher(ctx, cfg.Firebase)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create FCM client")
		}
		pushers[models.PlatformAndroid] = p
	}

	if len(pushers) == 0 {
		log.Warn().Msg("No push platform configured, report notifications are disabled")
	}
	return pushers
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
