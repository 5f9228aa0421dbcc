package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/graph"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/mail"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/search"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/config"
	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.AppSecret, "APP_SECRET")
	config.MustNonEmpty(cfg.StripeSecret, "STRIPE_SECRET")

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db init error: %v", err)
	}
	store := &repo.GormRepo{DB: gdb}
	if err := store.Migrate(initCtx); err != nil {
		cancel()
		log.Fatalf("db migrate error: %v", err)
	}

	var publisher events.Publisher = events.Nop{}
	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers)
		publisher = producer
	} else {
		logger.Info("kafka disabled", "reason", "KAFKA_BROKERS is empty")
	}

	var index search.Indexer
	if cfg.ESURL != "" {
		es, err := search.NewClient(initCtx, search.Config{
			URL:      cfg.ESURL,
			Username: cfg.ESUser,
			Password: cfg.ESPassword,
			Index:    cfg.ESIndex,
		})
		if err != nil {
			logger.Warn("elasticsearch unavailable, searching the store instead", "error", err)
		} else {
			index = es
		}
	}
	cancel()

	var mailer mail.Sender = mail.LogSender{Logger: logger}
	if cfg.MailHost != "" {
		smtp, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.MailHost,
			Port:     cfg.MailPort,
			Username: cfg.MailUser,
			Password: cfg.MailPass,
		})
		if err != nil {
			log.Fatalf("mail init error: %v", err)
		}
		mailer = smtp
	}

	m := metrics.New(cfg.ServiceName)
	issuer := tokens.NewIssuer(cfg.AppSecret)

	charger := payment.NewStripe(cfg.StripeSecret, nil)
	orders := &service.OrderService{
		Repo:     store,
		Charger:  charger,
		Events:   publisher,
		Metrics:  m,
		Currency: cfg.Currency,
	}
	schema, err := graph.NewSchema(&graph.Resolver{
		Accounts: &service.AccountService{
			Repo:        store,
			Hasher:      hash.Bcrypt{},
			Tokens:      issuer,
			Mailer:      mailer,
			Events:      publisher,
			FrontendURL: cfg.FrontendURL,
			MailFrom:    cfg.MailFrom,
		},
		Catalog:  &service.CatalogService{Repo: store, Index: index, Events: publisher},
		Carts:    &service.CartService{Repo: store, Events: publisher},
		Checkout: orders,
	})
	if err != nil {
		log.Fatalf("graphql schema error: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		loggingmw.RequestLogger(logger),
		m.Middleware(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     []string{cfg.FrontendURL},
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderContentType, "X-CSRF-Token"},
			ExposeHeaders:    []string{"X-CSRF-Token"},
		}),
	)

	deps := &httpserver.Deps{
		GraphQL: &httpserver.GraphQLHTTP{Schema: schema, SecureCookie: cfg.CookieSecure},
		Session: session.Middleware(issuer, store),
		Store:   store,
		Metrics: m,
	}
	if cfg.CSRFEnabled {
		deps.CSRF = csrf.Middleware(csrf.Config{AllowedOrigins: []string{cfg.FrontendURL}})
	}
	httpserver.Register(e, deps)

	reconciler := &service.Reconciler{Repo: store, Charger: charger, Events: publisher, Metrics: m, Grace: cfg.ReconcileGrace}
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.ReconcileSchedule, func() {
		ctx, cancel := context.WithTimeout(logging.IntoContext(context.Background(), logger), time.Minute)
		defer cancel()
		rep, err := reconciler.Run(ctx)
		if err != nil {
			logger.Error("reconcile run failed", "error", err)
			return
		}
		if rep != (service.ReconcileReport{}) {
			logger.Info("reconcile run", "completed", rep.Completed, "declined", rep.Declined, "abandoned", rep.Abandoned, "failed", rep.Failed)
		}
	}); err != nil {
		log.Fatalf("bad RECONCILE_SCHEDULE %q: %v", cfg.ReconcileSchedule, err)
	}
	sched.Start()

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	<-sched.Stop().Done()

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db close error", "error", err)
	}
	logger.Info("shutdown complete")
}
