package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/logging"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/notification"
	"github.com/clinic/clinic/internal/platform/telemetry"
)

const (
	requestBodyLimit = "1M"
	requestTimeout   = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
	rateLimitWindow  = time.Minute
)

func newLogger(cfg *config.Config) (zerolog.Logger, func()) {
	logger, closer := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Console:    cfg.IsDev(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	logger = logger.With().Str("service", cfg.ServiceName).Logger()
	return logger, func() { closer.Close() }
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	logger, closeLog := newLogger(cfg)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracer(ctx, telemetry.TracingConfig{
		Enabled:     cfg.OTELEnabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Endpoint:    cfg.OTELEndpoint,
		SampleRate:  cfg.OTELSampleRate,
	})
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())
	metrics := telemetry.NewMetrics("clinic")

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	limiter, closeLimiter := newLimiter(ctx, cfg, logger)
	defer closeLimiter()

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()
	emitter := events.NewEmitter(publisher, logger, metrics)
	defer emitter.Close()

	key := signingKey(cfg, logger)
	e, api := newEcho(cfg, logger, metrics, tp, limiter, key)
	e.GET("/health/db", db.HealthHandler(pool))

	// Services
	patientSvc := patient.NewService(patient.NewRepoPG(pool), emitter, logger, cfg.PhoneRegion, loc)
	doctorSvc := doctor.NewService(doctor.NewRepoPG(pool), emitter, logger, cfg.PhoneRegion)
	schedulingSvc := scheduling.NewService(scheduling.NewRepoPG(pool), patientSvc, doctorSvc,
		db.NewTxRunner(pool), emitter, metrics, logger, loc)
	identitySvc := identity.NewService(identity.NewRepoPG(pool),
		auth.NewTokenIssuer(cfg.AuthIssuer, key, cfg.AuthTokenTTL), logger)

	// Routes
	identity.NewHandler(identitySvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	doctor.NewHandler(doctorSvc).RegisterRoutes(api)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newEcho builds the server with its middleware chain and the public
// endpoints, and returns the authenticated /api/v1 group.
func newEcho(cfg *config.Config, logger zerolog.Logger, metrics *telemetry.Metrics, tp trace.TracerProvider,
	limiter middleware.Limiter, key []byte) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(telemetry.TracingMiddleware(tp))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.BodyLimit(requestBodyLimit))
	e.Use(middleware.RequestTimeout(requestTimeout))

	jwtCfg := auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: key, Skipper: auth.AuthSkipper}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.GET("/health", db.LivenessHandler())
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(limiter, rateLimitHeader(cfg), logger))
	return e, api
}

// newLimiter shares request counts through Redis when REDIS_URL is set and
// falls back to per-process token buckets otherwise.
func newLimiter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (middleware.Limiter, func()) {
	memory := middleware.NewMemoryLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})
	if cfg.RedisURL == "" {
		return memory, func() {}
	}
	client, err := middleware.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, rate limiting per process")
		return memory, func() {}
	}
	perWindow := int(math.Ceil(cfg.RateLimitRPS * rateLimitWindow.Seconds()))
	return middleware.NewRedisLimiter(client, perWindow, rateLimitWindow), func() { client.Close() }
}

func rateLimitHeader(cfg *config.Config) int {
	if cfg.RedisURL != "" {
		return int(math.Ceil(cfg.RateLimitRPS * rateLimitWindow.Seconds()))
	}
	return cfg.RateLimitBurst
}

// newPublisher fans domain events out to RabbitMQ and to patient email
// notifications, whichever are configured.
func newPublisher(cfg *config.Config, logger zerolog.Logger) events.Publisher {
	var fan events.Fanout

	if cfg.RabbitMQURL != "" {
		rp, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.EventsExchange)
		if err != nil {
			logger.Warn().Err(err).Msg("rabbitmq unavailable, events will not be published")
		} else {
			fan = append(fan, rp)
			logger.Info().Str("exchange", cfg.EventsExchange).Msg("publishing events to rabbitmq")
		}
	}

	if cfg.SMTPHost != "" {
		sender, err := notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("smtp misconfigured, email notifications disabled")
		} else {
			fan = append(fan, notification.NewNotifier(sender, notification.NewTemplateEngine(), logger))
		}
	}

	if len(fan) == 0 {
		return events.Noop{}
	}
	return fan
}

// signingKey returns the configured key. Development servers without one get
// a random key, so their tokens stop verifying after a restart.
func signingKey(cfg *config.Config, logger zerolog.Logger) []byte {
	if cfg.AuthSigningKey != "" {
		return []byte(cfg.AuthSigningKey)
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logger.Fatal().Err(err).Msg("generate signing key")
	}
	logger.Warn().Msg("AUTH_SIGNING_KEY not set, using an ephemeral key")
	return []byte(hex.EncodeToString(buf))
}
