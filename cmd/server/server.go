package main

import (
	"context"
	"log"
	"time"

	"arena-platform/backend/internal/auth"
	"arena-platform/backend/internal/bracket"
	"arena-platform/backend/internal/coordinator"
	"arena-platform/backend/internal/db"
	"arena-platform/backend/internal/events"
	"arena-platform/backend/internal/history"
	"arena-platform/backend/internal/locks"
	"arena-platform/backend/internal/middleware"
	"arena-platform/backend/internal/redis"
	"arena-platform/backend/internal/rooms"
	"arena-platform/backend/internal/server/handlers"
	"arena-platform/backend/internal/server/websocket"
	"arena-platform/backend/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server holds all dependencies and configuration for the arena server
type Server struct {
	config Config
	db     *db.DB
	redis  *redis.Client

	authService *auth.Service
	store       *store.TournamentStore
	journal     *history.Journal
	registry    *rooms.Registry
	bus         *events.Bus
	hub         *websocket.Hub
	coordinator *coordinator.Coordinator
	starter     *coordinator.Starter
	rateLimiter *middleware.RateLimiter
}

// NewServer creates and initializes a new Server instance
func NewServer(config Config) (*Server, error) {
	// Initialize database
	database, err := db.New(config.DBConfig)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:      config,
		db:          database,
		authService: auth.NewService(config.JWTSecret, config.TokenTTL),
		store:       store.NewTournamentStore(database.DB),
		journal:     history.NewJournal(database.DB),
		registry:    rooms.NewRegistry(),
		rateLimiter: middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig),
	}

	// Distributed locks when Redis is configured, in-process otherwise.
	var lockManager locks.Manager
	if config.RedisConfig.Host != "" {
		redisClient, err := redis.New(config.RedisConfig)
		if err != nil {
			return nil, err
		}
		s.redis = redisClient
		lockManager = locks.NewRedisManager(redisClient.Client)
	} else {
		log.Println("[LOCK] Redis not configured, using in-process locks")
		lockManager = locks.NewLocalManager()
	}

	// The bus hands each event to the hub for fan-out. The closure keeps
	// construction order simple: nothing publishes before Run.
	s.bus = events.NewBus(s.registry, func(sessionID string, ev events.Event) {
		s.hub.Deliver(sessionID, ev)
	})
	s.bus.SetRecorder(s.journal)

	engine := bracket.NewEngine()
	engine.RequireConfirmation = config.RequireConfirmation

	s.coordinator = coordinator.New(engine, s.store, lockManager, s.bus)
	s.starter = coordinator.NewStarter(s.coordinator, config.StarterInterval)

	s.hub = websocket.NewHub(s.registry, s.bus, s.authService, s.coordinator, middleware.NewMessageLimiter(), websocket.Config{
		QueueSize: config.WSQueueSize,
		AuthGrace: config.WSAuthGrace,
	})

	return s, nil
}

// Run starts the server and blocks until it exits
func (s *Server) Run() error {
	// Validate persisted brackets before accepting traffic
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	recovered, err := s.coordinator.RecoverActiveTournaments(ctx)
	cancel()
	if err != nil {
		return err
	}
	log.Printf("[RECOVERY] %d active tournaments recovered", recovered)

	// Seed due tournaments in the background
	go s.starter.Start()

	// Set Gin mode based on environment
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := s.setupRoutes()

	log.Printf("Server starting on port %s", s.config.ServerPort)
	return r.Run(":" + s.config.ServerPort)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *gin.Engine {
	r := gin.Default()

	// Configure CORS
	corsConfig := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true // Allow all origins
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400 * time.Second,
	}
	r.Use(cors.New(corsConfig))

	// Public routes
	r.POST("/api/auth/register", func(c *gin.Context) { handlers.HandleRegister(c, s.db, s.authService) })
	r.POST("/api/auth/login", func(c *gin.Context) { handlers.HandleLogin(c, s.db, s.authService) })

	// Protected routes
	authorized := r.Group("/")
	authorized.Use(handlers.AuthMiddleware(s.authService))
	authorized.Use(s.rateLimiter.GinMiddleware())
	{
		authorized.GET("/api/user", func(c *gin.Context) { handlers.HandleGetCurrentUser(c, s.db) })

		// Tournament endpoints
		authorized.POST("/api/tournaments", func(c *gin.Context) { handlers.HandleCreateTournament(c, s.coordinator) })
		authorized.GET("/api/tournaments", func(c *gin.Context) { handlers.HandleListTournaments(c, s.coordinator) })
		authorized.GET("/api/tournaments/:id", func(c *gin.Context) { handlers.HandleGetTournament(c, s.coordinator) })
		authorized.GET("/api/tournaments/:id/bracket", func(c *gin.Context) { handlers.HandleGetBracket(c, s.coordinator) })
		authorized.GET("/api/tournaments/:id/standings", func(c *gin.Context) { handlers.HandleGetStandings(c, s.coordinator) })
		authorized.POST("/api/tournaments/:id/register", func(c *gin.Context) { handlers.HandleRegisterParticipant(c, s.coordinator) })
		authorized.POST("/api/tournaments/:id/unregister", func(c *gin.Context) { handlers.HandleUnregisterParticipant(c, s.coordinator) })
		authorized.POST("/api/tournaments/:id/seed", func(c *gin.Context) { handlers.HandleSeedTournament(c, s.coordinator) })

		// Match endpoints
		authorized.POST("/api/tournaments/:id/matches/:matchId/start", func(c *gin.Context) { handlers.HandleStartMatch(c, s.coordinator) })
		authorized.POST("/api/tournaments/:id/matches/:matchId/report", func(c *gin.Context) { handlers.HandleReportResult(c, s.coordinator) })
		authorized.POST("/api/tournaments/:id/matches/:matchId/confirm", func(c *gin.Context) { handlers.HandleConfirmResult(c, s.coordinator) })
		authorized.POST("/api/tournaments/:id/matches/:matchId/dispute", func(c *gin.Context) { handlers.HandleDisputeResult(c, s.coordinator) })
		authorized.POST("/api/tournaments/:id/matches/:matchId/resolve", func(c *gin.Context) { handlers.HandleResolveDispute(c, s.coordinator) })
	}

	// WebSocket endpoint (handles auth internally)
	r.GET("/ws", s.hub.HandleWebSocket)

	return r
}

// Close cleanly shuts down the server
func (s *Server) Close() error {
	s.starter.Stop()
	s.rateLimiter.Stop()
	if s.redis != nil {
		s.redis.Close()
	}
	sqlDB, err := s.db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
