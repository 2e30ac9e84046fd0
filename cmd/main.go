package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soro-core/internal/clients"
	"soro-core/internal/config"
	"soro-core/internal/repository"
	"soro-core/internal/schedule"
	"soro-core/internal/service"
	"soro-core/internal/transport/auth"
	"soro-core/internal/transport/rest"
	"soro-core/internal/transport/websocket"
	"soro-core/pkg/database/postgres"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	db := mustInitPostgres(cfg.Postgres)
	defer postgres.Close(db)

	redisClient := mustInitRedis(cfg.Redis)
	defer redisClient.Close()

	// Schedule snapshots are an audit convenience, not a hard dependency:
	// a missing object store degrades to no archiving.
	archive, err := clients.NewScheduleArchive(ctx, clients.ArchiveConfig{
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Bucket:          cfg.S3.Bucket,
		UseSSL:          cfg.S3.UseSSL,
		Region:          cfg.S3.Region,
		Prefix:          cfg.S3.Prefix,
	})
	if err != nil {
		log.Printf("schedule archive unavailable: %v", err)
		archive = nil
	}

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	events := clients.NewEventClient(wsHub)

	loanRepo := repository.NewLoanRepository(db)
	installmentRepo := repository.NewInstallmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	subsidyRepo := repository.NewSubsidyRepository(db)
	tokenRepo := repository.NewActorTokenRepository(db)

	penalty := schedule.PenaltyPolicy{
		LateFeeBpsPerDay: int64(cfg.Policy.LateFeeBpsPerDay),
		DefaultAfterDays: cfg.Policy.DefaultAfterDays,
	}

	subsidySvc := service.NewSubsidyService(subsidyRepo, events, cfg.Policy.SubsidyLowBalancePct)
	loanSvc := service.NewLoanService(loanRepo, installmentRepo, subsidySvc, penalty, redisClient, events, archive)
	paymentSvc := service.NewPaymentService(
		loanRepo,
		installmentRepo,
		paymentRepo,
		penalty,
		service.OverpaymentPolicy(cfg.Policy.OverpaymentPolicy),
		redisClient,
		events,
	)

	actorMiddleware := auth.ActorMiddleware(tokenRepo)

	handler := rest.NewHandler(loanSvc, paymentSvc, subsidySvc)
	router := handler.InitRouterWithAuth(actorMiddleware)

	// create a public root router and mount the protected (auth) router
	// underneath so /health stays reachable for probes
	root := chi.NewRouter()

	root.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// protected websocket endpoint; clients subscribe to one channel,
	// either an SFD feed ("sfd#<id>") or a single loan ("loan#<id>")
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.GetActorID(r.Context()); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		channel := r.URL.Query().Get("channel")
		if channel == "" {
			http.Error(w, "channel required", http.StatusBadRequest)
			return
		}

		log.Printf("WS connected: channel=%s", channel)
		wsHub.HandleWebSocket(w, r, channel)
	})

	// mount protected router on root
	root.Mount("/", router)

	corsHandler := withCORS(root)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run HTTP server in goroutine so we can listen for shutdown signals
	srvErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	// periodic sweep that marks overdue installments, accrues late fees
	// and defaults loans past the configured threshold
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Policy.OverdueSweepMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := loanSvc.RefreshAllOverdue(ctx, time.Now()); err != nil {
					log.Printf("overdue sweep error: %v", err)
				}
			}
		}
	}()

	// Listen for OS shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Shutdown signal received: %v", sig)

		// Give server up to 10 seconds to finish ongoing requests
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server Shutdown error: %v", err)
		}

		// Cancel top-level context so background services (websocket hub,
		// overdue sweep) stop
		cancel()

		// Close database & redis explicitly to free resources promptly
		postgres.Close(db)
		redisClient.Close()

		log.Println("Shutdown complete")
	}
}

func mustInitPostgres(cfg config.PostgresConfig) *sql.DB {
	db, err := postgres.NewPostgresConnection(postgres.ConnectionInfo{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
		Password: cfg.Password,
	})
	if err != nil {
		log.Fatalf("postgres init error: %v", err)
	}
	return db
}

func mustInitRedis(cfg config.RedisConfig) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	return client
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
