package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/carepoint/portal-api/internal/blob"
	"github.com/carepoint/portal-api/internal/config"
	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/docstore/postgres"
	"github.com/carepoint/portal-api/internal/email"
	adminhandler "github.com/carepoint/portal-api/internal/handler/admin"
	authhandler "github.com/carepoint/portal-api/internal/handler/auth"
	doctorhandler "github.com/carepoint/portal-api/internal/handler/doctor"
	fileshandler "github.com/carepoint/portal-api/internal/handler/files"
	healthhandler "github.com/carepoint/portal-api/internal/handler/health"
	patienthandler "github.com/carepoint/portal-api/internal/handler/patient"
	profilehandler "github.com/carepoint/portal-api/internal/handler/profile"
	wshandler "github.com/carepoint/portal-api/internal/handler/ws"
	"github.com/carepoint/portal-api/internal/middleware"
	"github.com/carepoint/portal-api/internal/query"
	"github.com/carepoint/portal-api/internal/realtime"
	"github.com/carepoint/portal-api/internal/roster"
	"github.com/carepoint/portal-api/internal/router"
	appointmentsvc "github.com/carepoint/portal-api/internal/service/appointment"
	authsvc "github.com/carepoint/portal-api/internal/service/auth"
	emergencysvc "github.com/carepoint/portal-api/internal/service/emergency"
	notesvc "github.com/carepoint/portal-api/internal/service/note"
	reportsvc "github.com/carepoint/portal-api/internal/service/report"
	schedulesvc "github.com/carepoint/portal-api/internal/service/schedule"
	usersvc "github.com/carepoint/portal-api/internal/service/user"
	waitlistsvc "github.com/carepoint/portal-api/internal/service/waitlist"
	"github.com/carepoint/portal-api/internal/subscription"
	"github.com/carepoint/portal-api/pkg/auth"
	"github.com/carepoint/portal-api/pkg/logger"
	"github.com/carepoint/portal-api/pkg/messaging/redis"
	"github.com/carepoint/portal-api/pkg/metrics"
	"github.com/carepoint/portal-api/pkg/security"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})
	log.Info("starting portal API")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(cfg.Database.StoreConfig())
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.Redis.BrokerConfig(), log.Zerolog())
	if err != nil {
		log.Fatal(err, "failed to connect to redis")
	}
	defer broker.Close()

	m := metrics.NewMetrics("portal", "api")

	pgStore := postgres.NewStore(db, broker, log)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		log.Fatal(err, "failed to ensure document schema")
	}
	store := docstore.WithMetrics(pgStore, m)
	composer := query.NewComposer(store, m)

	// Realtime plumbing: the hub fans snapshots out to websocket
	// clients, the manager watches the store per subscription, and the
	// bridge ties the two together.
	hub := realtime.NewHub(log, m)
	manager := subscription.NewManager(composer, pgStore, log, m)
	bridge := realtime.NewBridge(ctx, hub, manager, log)
	defer bridge.Close()

	rosterSvc := roster.NewService(store, composer, log, m)
	refresher := roster.NewRefresher(
		rosterSvc,
		roster.RefresherConfig{Interval: cfg.Roster.RefreshInterval},
		bridge.RosterTargets,
		func(doctorID string, entries []roster.Entry) {
			bridge.PublishRoster(doctorID, entries)
		},
		log,
	)
	go refresher.Start(ctx)

	blobs, err := blob.NewDiskStore(cfg.Blob.Dir, cfg.Blob.MaxSizeMB<<20)
	if err != nil {
		log.Fatal(err, "failed to open blob store", "dir", cfg.Blob.Dir)
	}

	cipher, err := security.NewFieldCipher(cfg.Security.NotesEncryptionKey)
	if err != nil {
		log.Fatal(err, "failed to initialise note encryption")
	}
	if cipher != nil {
		log.Info("medical note encryption enabled")
	}

	jwtSvc := auth.NewJWTService(cfg.JWT.AuthConfig())
	hasher := security.NewBcryptHasher(0)
	emailSvc := email.NewSMTPService(cfg.SMTP.EmailConfig(), log)

	authService := authsvc.NewService(store, jwtSvc, hasher, emailSvc, log)
	userService := usersvc.NewService(store, composer)
	appointmentService := appointmentsvc.NewService(store, composer)
	waitlistService := waitlistsvc.NewService(store, composer)
	emergencyService := emergencysvc.NewService(store, composer)
	scheduleService := schedulesvc.NewService(store, composer)
	noteService := notesvc.NewService(store, composer, cipher)
	reportService := reportsvc.NewService(composer)

	authMiddleware := middleware.NewAuthMiddleware(jwtSvc, store)

	handlers := router.Handlers{
		Health: healthhandler.NewHandler(map[string]healthhandler.Pinger{
			"database": db.PingContext,
			"redis":    broker.HealthCheck,
		}),
		Auth:    authhandler.NewHandler(authService),
		Profile: profilehandler.NewHandler(userService, blobs),
		Patient: patienthandler.NewHandler(
			appointmentService, waitlistService, emergencyService,
			scheduleService, noteService, userService,
		),
		Doctor: doctorhandler.NewHandler(
			rosterSvc, appointmentService, waitlistService,
			emergencyService, scheduleService, noteService,
		),
		Admin: adminhandler.NewHandler(
			userService, appointmentService, waitlistService,
			emergencyService, reportService,
		),
		Files: fileshandler.NewHandler(blobs),
		WS:    wshandler.NewHandler(hub, log),
	}

	r := router.NewRouter(log, authMiddleware, handlers, router.Config{
		Timeout: cfg.Server.WriteTimeout,
		CORS: middleware.CORSConfig{
			AllowOrigins: cfg.CORS.AllowedOrigins,
			AllowMethods: cfg.CORS.AllowedMethods,
			AllowHeaders: cfg.CORS.AllowedHeaders,
		},
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		MaxUploadBytes: cfg.Blob.MaxSizeMB << 20,
	})
	r.Setup()
	r.MustRegisterMetrics(prometheus.DefaultRegisterer)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "forced shutdown")
	}
	log.Info("server stopped")
}
