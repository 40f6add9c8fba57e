package trackingservice

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"school-ride/internal/directory"
	"school-ride/internal/gateway"
	"school-ride/internal/general/config"
	"school-ride/internal/general/expo"
	"school-ride/internal/general/jwt"
	"school-ride/internal/general/logger"
	"school-ride/internal/general/metrics"
	"school-ride/internal/general/postgres"
	"school-ride/internal/general/rabbitmq"
	"school-ride/internal/ingest"
	"school-ride/internal/push"
	"school-ride/internal/relay"
	"school-ride/internal/router"

	"github.com/google/uuid"
)

func Run(ctx context.Context, maxConcurrent int) error {
	// set up a new logger for the tracking service with a static request ID for startup logs
	logger := logger.New("tracking-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load configuration
	cfg, err := config.LoadFromFile("./config/config.yaml")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// every envelope this instance publishes carries its producer id, so
	// the routers can tell instances apart in logs
	producer := "tracking-" + uuid.NewString()[:8]

	// set up a Postgres connection pool
	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	// connect to Redis for tokens, ride rosters and presence
	dir, err := directory.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB, logger)
	if err != nil {
		logger.Error(ctx, "redis_connection_failed", "Failed to connect to Redis", err, nil)
		return err
	}
	defer dir.Close()

	// connect to RabbitMQ; the client reconnects forever on its own
	rmq, err := rabbitmq.Connect(ctx, cfg, rabbitmq.AlwaysReconnect{Step: time.Second, Cap: 30 * time.Second}, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()

	// the relay bridges this instance to every other one
	rel := relay.NewAMQP(rmq, logger)

	// set up the JWT manager
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)

	// rooms, router, and the sink that turns routed envelopes into frames
	rooms := router.NewRooms()
	rt := router.New(logger)
	if err := rt.Bind(router.NewRoomSink(rooms, logger)); err != nil {
		return err
	}

	subs, err := rt.Start(ctx, rel)
	if err != nil {
		logger.Error(ctx, "router_start_failed", "Failed to subscribe the router to the relay", err, nil)
		return err
	}
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()

	// ingest pipeline: validate, persist last-known, publish
	ingestor := ingest.NewService(postgres.NewLocationStore(pool), rel, logger, producer)

	// push fallback for offline parents
	provider := expo.NewClient(cfg.Push.BaseURL, cfg.Push.AccessToken)
	dispatcher := push.NewDispatcher(provider, logger, cfg.Push.ChunkSize, cfg.Push.ReceiptChunkSize)

	// set up the websocket gateway and its routes
	mux := http.NewServeMux()
	gw := gateway.New(logger, jwtManager, rooms, ingestor, dispatcher, dir, rel, producer)
	gw.Register(mux)

	// prometheus scrape endpoint on its own port
	go func() {
		if err := metrics.Serve(strconv.Itoa(cfg.Service.MetricsPort)); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "metrics_server_error", "Metrics server terminated with error", err, nil)
		}
	}()

	// concurrency limiter (global) — blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	// set up the server configurations
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Service.Port),              // listen on the specified port
		Handler:           limitedHandler,                                    // apply the concurrency limiter to HTTP handler
		ReadHeaderTimeout: 5 * time.Second,                                   // time to read headers
		WriteTimeout:      15 * time.Second,                                  // full response write timeout
		IdleTimeout:       60 * time.Second,                                  // keep-alive window
		BaseContext:       func(net.Listener) context.Context { return ctx }, // pass base ctx to all handlers
	}

	// log service start
	logger.Info(ctx, "service_started",
		fmt.Sprintf("Tracking Service started on port %d", cfg.Service.Port),
		map[string]any{"port": cfg.Service.Port, "max_concurrent": maxConcurrent, "producer": producer},
	)

	// start the server in a background goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	// wait for context cancellation or server error
	select {
	case <-ctx.Done():
		// graceful HTTP shutdown on context cancel
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		// server returned a terminal error at startup or during run
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.Service.Port})
			return err
		}
		return nil
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
// Websocket upgrades hold a slot for the life of the connection, so the
// limit doubles as a connection cap.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
