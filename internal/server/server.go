// Package server contains the HTTP handlers for the forum API.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"forum/internal/bootstrap"
	"forum/internal/config"
	"forum/internal/mail"
	"forum/internal/middleware"
	"forum/internal/models"
	"forum/internal/notifications"
	"forum/internal/repository"
	"forum/internal/service"
	"forum/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config      *config.Config
	db          *gorm.DB
	redis       *redis.Client
	app         *fiber.App
	shutdownCtx context.Context
	shutdownFn  context.CancelFunc
	sessions    session.Store
	notifier    *notifications.Notifier
	authService *service.AuthService
	postService *service.PostService
	userService *service.UserService
}

// NewServer connects to the database and Redis and builds a server on top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required for sessions")
	}

	mailer, err := mail.NewSender(cfg.MailDriver, redisClient)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	voteRepo := repository.NewUpvoteRepository(db)

	server := &Server{
		config:   cfg,
		db:       db,
		redis:    redisClient,
		sessions: session.NewRedisStore(redisClient, cfg.SessionTTL),
		notifier: notifications.NewNotifier(redisClient),
	}

	server.authService = service.NewAuthService(
		userRepo,
		server.sessions,
		repository.NewResetTokenStore(redisClient),
		mailer,
		service.AuthConfig{
			ResetTokenTTL:    cfg.ResetTokenTTL,
			ResetLinkBaseURL: cfg.ResetLinkBaseURL,
			MailFrom:         cfg.MailFrom,
		},
	)
	server.postService = service.NewPostService(postRepo, voteRepo, server.notifier)
	server.userService = service.NewUserService(userRepo)

	return server, nil
}

// NewApp builds a fiber app with the server's middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Forum API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, models.NewValidationError(fe.Message))
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Session cookie values are encrypted at rest in the browser
	app.Use(encryptcookie.New(encryptcookie.Config{
		Key: s.config.CookieKey,
	}))

	app.Use(middleware.TracingMiddleware())

	// Resolves the session before ContextMiddleware so logs carry the user ID
	app.Use(s.SessionLoader())

	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	middleware.InitMetrics(app)
	app.Use(middleware.MetricsMiddleware())

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Forum API Metrics",
	}))

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.Logout)
	auth.Get("/me", s.Me)
	auth.Post("/forgot-password", middleware.RateLimit(
		s.redis, 3, 15*time.Minute, "forgot_password"), s.ForgotPassword)
	auth.Post("/change-password", s.ChangePassword)

	api.Get("/users/:id", s.GetUser)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Get("/:id", s.GetPost)

	protected := posts.Group("", s.AuthRequired())
	protected.Post("/", s.CreatePost)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	protected.Post("/:id/vote", s.VotePost)
	protected.Put("/:id", s.UpdatePost)
	protected.Delete("/:id", s.DeletePost)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// SessionLoader resolves the session cookie into the userID and sessionID locals.
// Requests without a valid session continue anonymously.
func (s *Server) SessionLoader() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(s.config.CookieName)
		if id == "" {
			return c.Next()
		}

		ctx := c.UserContext()
		sess, err := s.sessions.Get(ctx, id)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "session lookup failed", "error", err)
			return c.Next()
		}
		if sess == nil {
			return c.Next()
		}

		c.Locals("userID", sess.UserID)
		c.Locals("sessionID", sess.ID)

		if err := s.sessions.Touch(ctx, sess.ID); err != nil {
			middleware.Logger.WarnContext(ctx, "session touch failed", "error", err)
		}
		return c.Next()
	}
}

// AuthRequired rejects requests that carry no session.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals("userID").(uint); !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("not authenticated"))
		}
		return c.Next()
	}
}

// Start builds the app, starts the notification subscriber and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	err := s.notifier.StartPatternSubscriber(s.shutdownCtx, func(channel, payload string) {
		middleware.Logger.Debug("notification", "channel", channel, "payload", payload)
	})
	if err != nil {
		log.Printf("failed to start notification subscriber: %v", err)
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if rerr := s.redis.Close(); rerr != nil {
		log.Printf("error closing redis: %v", rerr)
	}

	log.Println("Server shutdown complete")
	return nil
}
