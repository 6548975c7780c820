package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	auth "github.com/placesapp/go-auth"
	"github.com/placesapp/go-auth/activitymap"
	"github.com/placesapp/go-auth/mailer"
	"github.com/placesapp/go-auth/migrations"
)

type App struct {
	config   *auth.Options
	logger   *slog.Logger
	bunDB    *bun.DB
	repo     auth.RepositoryManager
	registry *prometheus.Registry
	srv      *fiber.App
}

func (a *App) GetLogger(name string) auth.Logger {
	return auth.NewSlogLogger(a.logger.With("logger", name))
}

func main() {
	configPath := flag.String("config", "authd.toml", "path to the TOML configuration file")
	flag.Parse()

	lgr := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := auth.LoadOptions(*configPath)
	if err != nil {
		lgr.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{
		config:   cfg,
		logger:   lgr,
		registry: prometheus.NewRegistry(),
	}

	if err := WithPersistence(ctx, app); err != nil {
		lgr.Error("failed to set up persistence", "error", err)
		os.Exit(1)
	}
	defer app.bunDB.Close()

	if err := WithHTTPServer(ctx, app); err != nil {
		lgr.Error("failed to set up http server", "error", err)
		os.Exit(1)
	}

	errc := make(chan error, 1)
	go func() {
		lgr.Info("listening", "addr", cfg.HTTPAddr)
		errc <- app.srv.Listen(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			lgr.Error("http server stopped", "error", err)
		}
	}

	if err := app.srv.ShutdownWithTimeout(10 * time.Second); err != nil {
		lgr.Error("graceful shutdown failed", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open("pgx", app.config.DatabaseURL)
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		return errors.Join(err, sqldb.Close())
	}

	if err := migrations.Up(ctx, sqldb); err != nil {
		return errors.Join(err, sqldb.Close())
	}

	app.bunDB = bun.NewDB(sqldb, pgdialect.New())
	app.repo = auth.NewRepositoryManager(app.bunDB)
	auth.MustValidate(app.repo)

	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	cfg := app.config

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := auth.NewMetricsActivitySink(app.registry)
	if err != nil {
		return err
	}
	sink := auth.MultiActivitySink{metrics, activitymap.SlogSink(app.logger)}

	clock := auth.SystemClock{}
	passwords := auth.NewBcryptStrategy(cfg.BcryptCost)
	codec := auth.NewTokenCodec([]byte(cfg.GetSigningKey()), clock)

	issuer := auth.NewAccessTokenIssuer(codec, clock).
		WithTTL(cfg.GetAccessTokenTTL()).
		WithAudience(cfg.GetAudience())

	ledger := auth.NewRefreshTokenLedger(app.repo, auth.UUIDGenerator{}, auth.CryptoRandom{}, clock).
		WithTTL(cfg.GetRefreshTokenTTL())

	memberCodes := auth.NewMemberCodeActivation(app.repo).
		WithActivitySink(sink).
		WithLogger(app.GetLogger("member_codes")).
		WithClock(clock)

	sessions := auth.NewSessionOrchestrator(app.repo, passwords, issuer, ledger, memberCodes).
		WithActivitySink(sink).
		WithLogger(app.GetLogger("sessions")).
		WithClock(clock)

	smtp := mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.GetMailFrom())
	resets := auth.NewPasswordResetFlow(app.repo, smtp, passwords).
		WithActivitySink(sink).
		WithLogger(app.GetLogger("password_reset")).
		WithClock(clock).
		WithTTL(cfg.GetPasswordResetTTL()).
		WithSender(cfg.GetMailFrom())

	access := auth.NewUserAccessUpdater(app.repo).
		WithActivitySink(sink).
		WithLogger(app.GetLogger("user_access")).
		WithClock(clock)

	authorizer := auth.NewAuthorizer(codec).
		WithAudience(cfg.GetAudience()).
		WithLogger(app.GetLogger("authorizer"))

	logger := app.GetLogger("http")
	controller := auth.NewAuthController(
		auth.NewGuard(authorizer),
		sessions,
		resets,
		memberCodes,
		access,
		auth.WithControllerLogger(logger),
		auth.WithControllerThrottle(auth.NewResetThrottle(cfg.ResetsPerHour)),
		auth.WithControllerMetrics(app.registry),
	)

	app.srv = fiber.New(fiber.Config{
		AppName:               "places-auth",
		DisableStartupMessage: true,
		ErrorHandler:          auth.ErrorHandler(logger),
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})
	auth.RegisterAuthRoutes(app.srv, controller)

	return nil
}
