package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parley/internal/chat"
	"github.com/parley/internal/config"
	"github.com/parley/internal/handler"
	"github.com/parley/internal/housekeeping"
	"github.com/parley/internal/logger"
	"github.com/parley/internal/middleware"
	"github.com/parley/internal/notify"
	"github.com/parley/internal/presence"
	"github.com/parley/internal/pubsub"
	"github.com/parley/internal/push"
	"github.com/parley/internal/repository"
	"github.com/parley/internal/session"
	"github.com/parley/internal/startup"
	"github.com/parley/internal/storage"
	"github.com/parley/internal/storage/memory"
	"github.com/parley/internal/ws"
)

func main() {
	logger.SetPrefix("chat")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	inMemory := flag.Bool("memory", false, "keep all state in process memory")
	flag.Parse()

	logger.Info("starting chat service")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	if *inMemory {
		cfg.StoreDriver = config.StoreDriverMemory
	}

	var store storage.Store
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Info("using in-memory store")
		store = memory.New()
	} else {
		if *dev {
			embeddedDB, err := startEmbeddedPostgres(cfg)
			if err != nil {
				logger.Errorf("embedded postgres: %v", err)
				os.Exit(1)
			}
			defer func() {
				logger.Info("stopping embedded postgres...")
				if err := embeddedDB.Stop(); err != nil {
					logger.Errorf("embedded postgres stop: %v", err)
				}
			}()
		}
		pgStore := connectPostgres(cfg)
		if *migrate && !*dev {
			pgStore.Close()
			return
		}
		store = pgStore
	}
	defer store.Close()

	tracker := presence.NewTracker(store)
	resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if n, err := tracker.ResetAllOffline(resetCtx); err != nil {
		logger.Errorf("reset online status: %v", err)
	} else if n > 0 {
		logger.Infof("reset %d users left online by the previous run", n)
	}
	resetCancel()

	hub := ws.NewHub(cfg.MaxWSConnections)
	publisher := pubsub.Fanout{hub}
	if cfg.Redis.URL != "" {
		rdb := startup.ConnectRedisWithRetry(cfg.Redis.URL, 30*time.Second, "")
		defer rdb.Close()
		publisher = append(publisher, pubsub.NewRedisPublisher(rdb, cfg.Redis.Prefix))
		logger.Infof("mirroring events to redis (prefix %q)", cfg.Redis.Prefix)
	}
	if cfg.NATS.URL != "" {
		nc := startup.ConnectNATSWithRetry(cfg.NATS.URL, 30*time.Second, "")
		defer nc.Close()
		publisher = append(publisher, pubsub.NewNATSPublisher(nc, cfg.NATS.Subject))
		logger.Infof("mirroring events to nats (subject %q)", cfg.NATS.Subject)
	}

	pushClient := push.NewClient(cfg.PushServiceURL)
	notifications := notify.NewDispatcher(store, notify.DefaultChannels(publisher, pushClient)...)
	sessions := session.NewResolver(store)
	router := chat.NewRouter(tracker, sessions, store, notifications, publisher, chat.Options{
		HistoryLimit:  cfg.Chat.HistoryLimit,
		AnnounceLeave: cfg.Chat.AnnounceLeave,
	})
	hub.Bind(router, chat.NewDispatcher(router))

	bgCtx, bgCancel := context.WithCancel(context.Background())
	var bgWg sync.WaitGroup
	bgWg.Add(2)
	go func() {
		defer bgWg.Done()
		hub.Run(bgCtx)
	}()
	retention := housekeeping.NewRetention(notifications, cfg.Notifications.Retention(), cfg.Notifications.CleanupInterval())
	go func() {
		defer bgWg.Done()
		retention.Run(bgCtx)
	}()

	handlers := &handler.Handlers{
		Chat:          handler.NewChatHandler(router, sessions),
		Users:         handler.NewUserHandler(tracker, router),
		Notifications: handler.NewNotificationHandler(notifications),
		Push:          handler.NewPushHandler(pushClient),
		Config:        handler.NewConfigHandler(cfg),
		WS:            handler.NewWSHandler(hub, cfg.CORSAllowedOrigins),
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// compressing would hide http.Hijacker from the websocket upgrade
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Username"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Group(func(r chi.Router) {
		r.Use(middleware.Principal)
		handlers.Mount(r)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	bgCancel()
	bgWg.Wait()
	logger.Info("hub and housekeeping stopped")
	srvWg.Wait()
}

func connectPostgres(cfg *config.Config) *repository.Store {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 2

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	store := repository.NewStore(pool)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Migrate(ctx); err != nil {
		logger.Errorf("migrations: %v", err)
		os.Exit(1)
	}
	logger.Info("database connected, migrations applied")
	return store
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "parley"
		password = "parley_secret"
		database = "parley"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
