package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chromabot/referee/internal/api/handlers"
	"github.com/chromabot/referee/internal/api/middleware"
	"github.com/chromabot/referee/internal/auth"
	"github.com/chromabot/referee/internal/config"
	"github.com/chromabot/referee/internal/engine"
	"github.com/chromabot/referee/internal/forum"
	"github.com/chromabot/referee/internal/websocket"
	"github.com/chromabot/referee/internal/world"
	"github.com/chromabot/referee/pkg/database"
	"github.com/chromabot/referee/pkg/logger"
	"github.com/chromabot/referee/pkg/redis"

	"github.com/gorilla/mux"
)

// Server wires together the referee's HTTP surface, the engine services
// backing it, and the background world-tick loop.
type Server struct {
	config *config.Config
	router *mux.Router
	server *http.Server

	db    *database.Database
	redis *redis.Client

	authService *auth.AuthService
	store       *world.Store
	pathfinder  *world.Pathfinder
	movement    *engine.MovementService
	battle      *engine.BattleService
	recruiter   *engine.RecruitmentService
	reporter    *engine.Reporter
	ticker      *engine.Ticker

	wsHub *websocket.Hub

	tickCancel context.CancelFunc
	startTime  time.Time
}

// New строит и инициализирует сервер из конфигурации cfg.
func New(cfg *config.Config) *Server {
	s := &Server{
		config:    cfg,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}

	if err := s.initializeComponents(); err != nil {
		log.Fatalf("failed to initialize components: %v", err)
	}

	s.setupRoutes()
	return s
}

func (s *Server) initializeComponents() error {
	if err := logger.InitDefaultLogger(
		logger.ParseLevel(s.config.Log.Level),
		s.config.Log.Format,
		s.config.Log.FilePath,
	); err != nil {
		return err
	}

	db, err := database.New(&s.config.Database)
	if err != nil {
		return err
	}
	s.db = db

	redisClient, err := redis.New(&s.config.Redis)
	if err != nil {
		return err
	}
	s.redis = redisClient

	s.authService = auth.New(s.db, s.redis, logger.DefaultLogger, s.config.JWT.Secret, s.config.JWT.Expiration)

	s.store = world.New(s.db, logger.DefaultLogger)
	s.pathfinder = world.NewPathfinder(s.store)
	s.movement = engine.NewMovementService(s.store, logger.DefaultLogger)
	s.battle = engine.NewBattleService(s.store, logger.DefaultLogger)
	rng := engine.NewRand(time.Now().UnixNano())
	s.recruiter = engine.NewRecruitmentService(s.store, logger.DefaultLogger, rng)
	s.reporter = engine.NewReporter(s.store, s.redis, logger.DefaultLogger)
	s.ticker = engine.NewTicker(s.store, s.pathfinder, s.movement, s.battle, s.recruiter, forum.NullHost{}, logger.DefaultLogger, engine.SystemClock{}, rng, s.config.Game)

	s.wsHub = websocket.NewHub()
	go s.wsHub.Run()

	tickCtx, cancel := context.WithCancel(context.Background())
	s.tickCancel = cancel
	go s.ticker.Run(tickCtx, s.db.GetConnection(), s.config.Game.Speed)

	logger.Info("all components initialized successfully")
	return nil
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RecoveryMiddleware())
	s.router.Use(middleware.CORSMiddleware())
	s.router.Use(middleware.RateLimitMiddleware(100, time.Minute))
	s.router.Use(s.loggingMiddleware)

	authHandler := handlers.NewAuthHandler(s.authService)
	worldHandler := handlers.NewWorldHandler(s.db, s.reporter)
	adminHandler := handlers.NewAdminHandler(s.db, s.store, s.ticker, logger.DefaultLogger)
	healthHandler := handlers.NewHealthHandler(s.db, s.redis)

	authHandler.RegisterRoutes(s.router, s.config.JWT.Secret)
	worldHandler.RegisterRoutes(s.router)
	healthHandler.RegisterRoutes(s.router)

	adminRouter := s.router.PathPrefix("").Subrouter()
	adminRouter.Use(middleware.AuthMiddleware(s.config.JWT.Secret))
	adminHandler.RegisterRoutes(adminRouter)

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	logger.Info("routes configured successfully")
}

// Start launches the HTTP server and blocks until an interrupt signal
// triggers graceful shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.config.Server.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("referee server starting on %s", s.config.Server.Address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	<-sigChan
	log.Printf("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("handled request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("referee"))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error": "Not Found", "message": "The requested resource was not found"}`))
}

// handleWebSocket upgrades a connection and registers it to watch a region's
// battle thread, optionally authenticated via a query-string token.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("failed to upgrade to websocket", "error", err)
		return
	}

	playerName := ""
	if token := r.URL.Query().Get("token"); token != "" {
		if user, err := s.authService.ValidateToken(token); err == nil {
			playerName = user.Username
		}
	}

	var regionID int64
	if rid := r.URL.Query().Get("region_id"); rid != "" {
		regionID = parseRegionID(rid)
	}

	client := websocket.NewClient(s.wsHub, conn, playerName, regionID)
	s.wsHub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

func parseRegionID(s string) int64 {
	var id int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		id = id*10 + int64(c-'0')
	}
	return id
}

// Shutdown gracefully stops the tick loop, HTTP server, and backing stores.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down server...")

	if s.tickCancel != nil {
		s.tickCancel()
	}
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
