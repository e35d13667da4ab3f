package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/activitylog"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/api"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/realtime"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway-service/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	logger := log.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(parseRedisOptions(redisConn))
	defer rc.Close()

	store := storage.NewCache(backend, rc, envDuration("TASKS_CACHE_TTL", 5*time.Minute))
	broker := realtime.NewBroker(rc, logger)
	stamp := func() int64 { return time.Now().UnixNano() }

	var sink activitylog.Sink = activitylog.NewDirectSink(store, broker, stamp)
	if queueName := os.Getenv("ACTIVITY_QUEUE"); queueName != "" {
		queue, err := activitylog.NewAzureQueue(os.Getenv("STORAGE_CONNECTION_STRING"), queueName)
		if err != nil {
			log.Fatalf("activity queue: %v", err)
		}
		if err := queue.EnsureQueue(ctx); err != nil {
			log.Fatalf("activity queue: %v", err)
		}
		sink = activitylog.NewQueueSink(queue)
		worker := activitylog.NewWorker(queue, store, broker, logger, stamp)
		go worker.Run(ctx)
		log.WithField("queue", queueName).Info("activity write-behind enabled")
	}

	auth, err := newAuth()
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(api.GzipRequestMiddleware())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}))

	api.Register(e, api.Deps{
		Store:      store,
		Activity:   sink,
		Publisher:  broker,
		Subscriber: broker,
		Auth:       auth,
		Deduper:    api.NewRedisDeduper(rc, envDuration("DEDUPER_TTL", 24*time.Hour)),
		Logger:     logger,
	})

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("GATEWAY_PORT"); ok {
		listenAddr = ":" + val
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	if err := e.Start(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func openBackend(ctx context.Context) (storage.Backend, error) {
	switch kind := os.Getenv("STORAGE_BACKEND"); kind {
	case "", "tables":
		connStr := os.Getenv("STORAGE_CONNECTION_STRING")
		names := storage.TableNames{
			Tasks:    os.Getenv("TASKS_TABLE"),
			Boards:   os.Getenv("BOARDS_TABLE"),
			Activity: os.Getenv("ACTIVITY_TABLE"),
		}
		if connStr == "" || names.Tasks == "" || names.Boards == "" || names.Activity == "" {
			return nil, errors.New("missing storage config")
		}
		tables, err := storage.NewTables(connStr, names)
		if err != nil {
			return nil, err
		}
		if err := tables.EnsureTables(ctx); err != nil {
			return nil, fmt.Errorf("ensure tables: %w", err)
		}
		return tables, nil
	case "postgres":
		databaseURL := os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			return nil, errors.New("missing DATABASE_URL")
		}
		db, err := storage.Open(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		pg := storage.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	case "memory":
		log.Warn("using in-memory storage; data is lost on restart")
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", kind)
	}
}

func newAuth() (*api.Auth, error) {
	if os.Getenv("LOCAL_AUTH_MODE") != "" || os.Getenv("AUTH0_TEST_MODE") == "1" {
		return api.NewAuth(nil, "", "", os.Getenv)
	}
	audience := os.Getenv("AUTH0_AUDIENCE")
	domain := os.Getenv("AUTH0_DOMAIN")
	if audience == "" || domain == "" {
		return nil, errors.New("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, audience, "https://"+domain+"/", os.Getenv)
}

func envDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return d
}
