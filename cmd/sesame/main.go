package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/getsesame/sesame/api"
	"github.com/getsesame/sesame/config"
	"github.com/getsesame/sesame/flow"
	"github.com/getsesame/sesame/health"
	"github.com/getsesame/sesame/logger"
	"github.com/getsesame/sesame/mail"
	"github.com/getsesame/sesame/session"
	"github.com/getsesame/sesame/sgorm"
	"github.com/getsesame/sesame/telemetry"
	"github.com/getsesame/sesame/token"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	logger.Log.Info("Starting Sesame Magic Link Service",
		zap.Int("port", cfg.Port),
		zap.String("dsn", cfg.DSN),
	)

	repo, err := sgorm.NewStorage(cfg.DBType, cfg.DSN, nil)
	if err != nil {
		logger.Log.Fatal("failed to initialize storage", zap.Error(err))
	}

	tel, err := telemetry.NewProvider(telemetry.Config{
		ServiceName:    "sesame",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer tel.Shutdown(context.Background())

	policy := cfg.Policy()
	engine := token.NewEngine(repo, policy, logger.Log)

	notifier := mail.NewDispatcher(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	var sessions session.Strategy
	if cfg.SessionStrategy == "jwt" {
		if cfg.SessionSecret == "" {
			logger.Log.Fatal("SESSION_SECRET is required for the jwt session strategy")
		}
		sessions = session.NewJWTStrategy([]byte(cfg.SessionSecret))
	} else {
		sessions = session.NewDatabaseStrategy(repo)
	}

	login := flow.NewLoginManager(engine, notifier, cfg.BaseURL, logger.Log)
	login.SetAllowedHosts(cfg.AllowedHostList())
	login.SetAuditStore(repo)
	login.SetTelemetry(tel)

	verifier := flow.NewVerifier(engine, repo, sessions, logger.Log)
	verifier.SetAuditStore(repo)
	verifier.SetTelemetry(tel)

	h := api.NewHandler(login, verifier, sessions, policy, logger.Log)
	h.SetRateLimiter(flow.NewMemoryRateLimiter(), cfg.VerifyRateLimit, time.Duration(cfg.VerifyRateWindow)*time.Second)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h.RegisterRoutes(e)

	hm := health.NewManager("1.0.0")
	hm.RegisterFunc("database", health.NewDatabaseCheck("database", func(ctx context.Context) error {
		db, err := repo.DB().DB()
		if err != nil {
			return err
		}
		return db.PingContext(ctx)
	}))
	e.GET("/healthz", echo.WrapHandler(hm.LiveHandler()))
	e.GET("/ready", echo.WrapHandler(hm.ReadyHandler()))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	logger.Log.Info("Server is starting", zap.Int("port", cfg.Port))
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server failed to start", zap.Error(err))
	}
}
