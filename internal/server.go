package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/liftlog/gamify/internal/auth"
	"github.com/liftlog/gamify/internal/config"
	"github.com/liftlog/gamify/internal/db"
	"github.com/liftlog/gamify/internal/gamification/achievements"
	"github.com/liftlog/gamify/internal/gamification/completion"
	"github.com/liftlog/gamify/internal/gamification/profile"
	"github.com/liftlog/gamify/internal/gamification/records"
	"github.com/liftlog/gamify/internal/gamification/xp"
	"github.com/liftlog/gamify/internal/middleware"
	"github.com/liftlog/gamify/internal/sessions"
	"github.com/liftlog/gamify/internal/telemetry/metrics"
	"github.com/liftlog/gamify/internal/telemetry/tracing"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	clientAppSecret   string // used by the mobile / web client
	versionInfo       string

	config *config.Config
	dbPool *pgxpool.Pool

	redisClient  *redis.Client
	loginChecker *auth.LoginChecker
	authService  *auth.Service

	catalog  *achievements.Catalog
	resolver *xp.Resolver

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	ClientAppSecret         string
	VersionInfo             string
	AdminUsername           string
	AdminPasswordHash       string
	PostgresPassword        string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		DBUser:         params.Config.PostgresUser,
		DBPassword:     params.PostgresPassword,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("gamify", "backend", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	authService := auth.NewAuthService(&auth.Admin{
		Username:     params.AdminUsername,
		PasswordHash: params.AdminPasswordHash,
	}, auth.DefaultTTL, rdb)
	go func() {
		for range time.Tick(time.Hour * 8) {
			authService.ScanAndClean(ctx)
		}
	}()

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "gamify-backend")
	if err != nil {
		return nil, err
	}

	catalog, err := achievements.LoadCatalog(params.Config.AchievementsCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load achievement catalog: %w", err)
	}
	log.Debugf("achievement catalog loaded: %d achievements", catalog.Len())

	levels := make([]xp.Level, 0, len(params.Config.Levels))
	for _, lt := range params.Config.Levels {
		levels = append(levels, xp.Level{MinXP: lt.MinXP, Name: lt.Name})
	}
	resolver, err := xp.NewResolver(levels)
	if err != nil {
		return nil, fmt.Errorf("new level resolver: %w", err)
	}

	return &Server{
		config:          params.Config,
		dbPool:          dbPool,
		clientAppSecret: params.ClientAppSecret,
		versionInfo:     params.VersionInfo,

		redisClient:  rdb,
		authService:  authService,
		loginChecker: auth.NewLoginChecker(auth.DefaultTTL, rdb),

		catalog:  catalog,
		resolver: resolver,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("gamify-router"))

	profileRepo := profile.NewRepo(s.dbPool)
	recordsRepo := records.NewRepo(s.dbPool)
	grantsRepo := xp.NewRepo(s.dbPool)
	unlocksRepo := achievements.NewRepo(s.dbPool)
	sessionsRepo := sessions.NewRepo(s.dbPool)

	ledger := xp.NewLedger(grantsRepo, profileRepo, s.resolver)
	detector := records.NewDetector(recordsRepo)
	engine := achievements.NewEngine(s.catalog, profileRepo, recordsRepo, sessionsRepo, unlocksRepo)

	orchestrator := completion.NewOrchestrator(
		completion.Config{
			BaseXP:             s.config.BaseXP,
			PRBonusXP:          s.config.PRBonusXP,
			AchievementBonusXP: s.config.AchievementBonusXP,
			Multiplier: xp.MultiplierCurve{
				Step: s.config.StreakMultiplierStep,
				Max:  s.config.StreakMultiplierMax,
			},
			ApplyMultiplierOnRepeat: s.config.ApplyMultiplierOnRepeat,
		},
		sessionsRepo,
		profileRepo,
		detector,
		ledger,
		grantsRepo,
		engine,
		s.metricsManager,
	)

	completionHandler := completion.NewHandler(orchestrator, completion.NewResultCache(s.redisClient))
	r.HandleFunc("/gamification/complete", completionHandler.HandleComplete).
		Methods("POST", "OPTIONS").Name("complete-workout")

	profileHandler := profile.NewHandler(profileRepo)
	r.HandleFunc("/gamification/profile/{userId}", profileHandler.HandleGet).
		Methods("GET", "OPTIONS").Name("get-profile")
	r.HandleFunc("/gamification/profile/{userId}", profileHandler.HandleEnsure).
		Methods("POST", "OPTIONS").Name("ensure-profile")

	recordsHandler := records.NewHandler(recordsRepo)
	r.HandleFunc("/gamification/records/{userId}", recordsHandler.HandleCurrentBests).
		Methods("GET", "OPTIONS").Name("current-records")
	r.HandleFunc("/gamification/records/{userId}/history", recordsHandler.HandleHistory).
		Methods("GET", "OPTIONS").Name("record-history")

	achievementsHandler := achievements.NewHandler(engine, s.catalog)
	r.HandleFunc("/gamification/achievements/{userId}", achievementsHandler.HandleList).
		Methods("GET", "OPTIONS").Name("list-achievements")
	r.HandleFunc("/gamification/catalog", achievementsHandler.HandleCatalog).
		Methods("GET", "OPTIONS").Name("achievement-catalog")

	xpHandler := xp.NewHandler(ledger, profileRepo)
	r.HandleFunc("/gamification/ledger/{userId}", xpHandler.HandleLedger).
		Methods("GET", "OPTIONS").Name("xp-ledger")
	r.HandleFunc("/gamification/reconcile/{userId}", xpHandler.HandleReconcile).
		Methods("GET", "OPTIONS").Name("xp-reconcile")

	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("I'm OK, thanks ;)"))
	}).Methods("GET").Name("root")
	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(s.versionInfo))
	}).Methods("GET").Name("version")

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)

	authHandler := auth.NewHandler(s.authService)
	loginSubrouter := r.PathPrefix("/a").Subrouter()
	authHandler.SetupRoutes(loginSubrouter)
	// rate limit the /login and /logout endpoints to prevent abuse
	loginSubrouter.Use(middleware.RateLimit(reqRateLimiter, "login", 15, s.metricsManager))

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(
		s.clientAppSecret,
		s.loginChecker,
	)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.RateLimit(reqRateLimiter, "main", s.config.RateLimitAllowedPerMin, s.metricsManager))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("gamify service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
