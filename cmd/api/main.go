package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/air593-booking/internal/auth"
	"github.com/noah-isme/air593-booking/internal/cart"
	"github.com/noah-isme/air593-booking/internal/checkout"
	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/config"
	"github.com/noah-isme/air593-booking/internal/events"
	"github.com/noah-isme/air593-booking/internal/guard"
	"github.com/noah-isme/air593-booking/internal/health"
	"github.com/noah-isme/air593-booking/internal/lock"
	"github.com/noah-isme/air593-booking/internal/notify"
	"github.com/noah-isme/air593-booking/internal/obs"
	"github.com/noah-isme/air593-booking/internal/orders"
	"github.com/noah-isme/air593-booking/internal/ratelimit"
	"github.com/noah-isme/air593-booking/internal/remote"
	"github.com/noah-isme/air593-booking/internal/reservation"
	"github.com/noah-isme/air593-booking/internal/resilience"
	"github.com/noah-isme/air593-booking/internal/security"
	"github.com/noah-isme/air593-booking/internal/session"
	"github.com/noah-isme/air593-booking/internal/storage"
	"github.com/noah-isme/air593-booking/internal/user"
)

// remoteStore is what the services need from the remote database.
type remoteStore interface {
	user.Store
	orders.Remote
	health.RemotePinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "api").Logger()

	metricsEnabled := envBool("OBS_ENABLE_METRICS", true)
	if metricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.TracingExporter != "" && cfg.TracingExporter != "none"
	if tracingEnabled {
		shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   envOrDefault("OTEL_SERVICE_NAME", "air593-booking-api"),
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSampleRatio,
			Environment:   cfg.AppEnv,
			Logger:        &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	store := newRemote(cfg, logger)

	scopes := storage.New(redisClient, cfg.SessionTTL)
	locker := lock.Locker{R: redisClient, TTL: cfg.LockTTL, RetryBackoff: cfg.LockRetryBackoff}

	tokens, err := auth.NewTokens(cfg.JWTSecret, 30*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise tokens")
	}
	userService := user.NewService(store, cfg.UsersResource)
	authService := &auth.Service{
		Users:       userService,
		Sessions:    session.Store{Storage: scopes},
		Tokens:      tokens,
		AccessTTL:   cfg.AccessTokenTTL,
		RememberTTL: cfg.RememberTTL,
		Logger:      logger,
	}
	authHandler := &auth.Handler{
		Service:        authService,
		CookieName:     cfg.AuthCookieName,
		CookieDomain:   cfg.CookieDomain,
		CookieSecure:   cfg.CookieSecure,
		CookieSameSite: cfg.CookieSameSite,
	}
	authMiddleware := auth.Middleware{Tokens: tokens, CookieName: cfg.AuthCookieName}
	userHandler := &user.Handler{Service: userService}

	reservations := &reservation.Source{Storage: scopes, Locker: locker}
	cartStore := &cart.Store{
		Storage:      scopes,
		Reservations: reservations,
		Locker:       locker,
		Logger:       logger,
	}
	orderStore := orders.NewStore(store, cfg.OrdersResource)

	taskClient := mustInitTaskClient(cfg, logger)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()
	receipts := notify.ReceiptNotifier{Client: taskClient, Queue: cfg.ReceiptQueue, MaxRetry: cfg.ReceiptMaxRetry}
	bus := &events.Bus{Notifiers: []events.Notifier{receipts}}
	if cfg.AMQPURL != "" {
		publisher, conn, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error().Err(err).Msg("connect amqp; order events stay local")
		} else {
			defer func() {
				_ = publisher.Close()
				_ = conn.Close()
			}()
			bus.Notifiers = append(bus.Notifiers, publisher)
		}
	}

	flows := checkout.NewRegistry(&checkout.Deps{
		Cart:            cartStore,
		Orders:          orderStore,
		Events:          bus,
		NavigationDelay: cfg.NavigationDelay,
		Logger:          logger,
	}, cfg.SessionTTL)

	reservationHandler := &reservation.Handler{Source: reservations}
	cartHandler := &cart.Handler{Store: cartStore, Busy: flows.Submitting}
	checkoutHandler := &checkout.Handler{Flows: flows}
	orderAdmin := &orders.AdminHandler{Store: orderStore}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	loginLimiter, err := ratelimit.NewRedisLimiter(redisClient, cfg.LoginRateLimit, "air593:ratelimit:login")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise login rate limiter")
	}
	loginLimit := ratelimit.Handler{
		Limiter: loginLimiter,
		OnError: func(err error) { logger.Warn().Err(err).Msg("login rate limiter unavailable") },
		OnReject: func(*http.Request) {
			obs.Inc(obs.LoginAttemptsTotal, "rate_limited")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.HSTSEnabled}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(),
			envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""),
			envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")))
	}

	healthHandler := health.Handler{
		Checker:       health.Probes{Redis: redisClient, Remote: store, RemoteResource: cfg.OrdersResource},
		RedisTimeout:  cfg.ReadinessTimeout,
		RemoteTimeout: cfg.ReadinessTimeout,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(storage.Scopes{Secure: cfg.CookieSecure, SameSite: cfg.CookieSameSite, Domain: cfg.CookieDomain}.Middleware)
		v.Use(authMiddleware.Authenticate)
		v.Use(obs.RequestLogger{Logger: logger}.Middleware)
		if cfg.CSRFEnabled {
			v.Use(security.CSRF{Secure: cfg.CookieSecure, SameSite: cfg.CookieSameSite, Domain: cfg.CookieDomain}.Middleware)
		}

		v.Route("/auth", func(a chi.Router) {
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.Post("/logout", authHandler.Logout)
			a.With(loginLimit.Middleware).Post("/register", authHandler.Register)
			a.Get("/me", authHandler.Me)
		})

		v.Get("/reservations", reservationHandler.List)
		v.Post("/reservations", reservationHandler.Add)

		v.Group(func(c chi.Router) {
			c.Use(guard.Require(authService, guard.Customer))

			c.Get("/cart", cartHandler.Get)
			c.Post("/cart/reload", cartHandler.Reload)
			c.Delete("/cart", cartHandler.Clear)
			c.Delete("/cart/items/{index}", cartHandler.RemoveItem)

			c.Get("/checkout", checkoutHandler.Get)
			c.Post("/checkout/open", checkoutHandler.Open)
			c.Post("/checkout/close", checkoutHandler.Close)
			c.Patch("/checkout/form", checkoutHandler.UpdateForm)
			c.With(idem.Middleware).Post("/checkout/submit", checkoutHandler.Submit)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(guard.Require(authService, guard.Admin))
			admin.Get("/users", userHandler.List)
			admin.Post("/users", userHandler.Create)
			admin.Get("/users/{userID}", userHandler.Get)
			admin.Put("/users/{userID}", userHandler.Update)
			admin.Delete("/users/{userID}", userHandler.Delete)
			admin.Get("/orders", orderAdmin.List)
			admin.Get("/orders/{orderID}", orderAdmin.Get)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Bool("memory_remote", cfg.UsesMemoryRemote()).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func newRemote(cfg *config.Config, logger zerolog.Logger) remoteStore {
	if cfg.UsesMemoryRemote() {
		logger.Warn().Msg("using in-process remote store; data is lost on restart")
		return remote.NewMemory()
	}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "remote-db",
		MinRequests:  cfg.BreakerMinRequests,
		FailureRatio: cfg.BreakerFailureRatio,
		OpenFor:      cfg.BreakerOpenFor,
		Logger:       &logger,
	})
	return remote.New(cfg.RemoteBaseURL, resilience.HTTPClient{
		Client:      remote.HTTPTransportClient(cfg.RemoteTimeout),
		Breaker:     breaker,
		BaseBackoff: cfg.RetryBase,
		MaxAttempts: cfg.RetryMaxAttempts,
		Jitter:      cfg.RetryJitterPercent,
		Timeout:     cfg.RemoteTimeout,
	})
}

func mustInitTaskClient(cfg *config.Config, logger zerolog.Logger) *asynq.Client {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for task queue")
	}
	return asynq.NewClient(opt)
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
