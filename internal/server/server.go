package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"vahub-messaging/internal/config"
	"vahub-messaging/internal/handler"
	"vahub-messaging/internal/middleware"
	"vahub-messaging/internal/redis"
	"vahub-messaging/internal/transport/httpdto"
	"vahub-messaging/pkg/logger"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	db         *gorm.DB
	logger     *logger.Logger
}

var (
	ProductionEnv  = "production"
	DevelopmentEnv = "development"
	TestEnv        = "test"
)

type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	Presence     *handler.PresenceHandler
	Intercept    *handler.InterceptHandler
	Notification *handler.NotificationHandler
	WebSocket    *WebSocketHandler
}

func New(cfg *config.Config, db *gorm.DB, l *logger.Logger) *Server {
	switch cfg.Server.Environment {
	case ProductionEnv:
		gin.SetMode(gin.ReleaseMode)
	case TestEnv:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		db:     db,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, rateLimiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.GET("/ws", handlers.WebSocket.Handle)

	auth := middleware.AuthMiddleware(s.config.Auth.JWTSecret)

	conversations := s.engine.Group("/v1/conversations", auth)
	{
		conversations.POST("", handlers.Conversation.Start)
		conversations.GET("", handlers.Conversation.List)
		conversations.GET("/:id", handlers.Conversation.Get)
		conversations.PUT("/:id/archive", handlers.Conversation.Archive)
		conversations.PUT("/:id/pin", handlers.Conversation.Pin)
		conversations.PUT("/:id/mute", handlers.Conversation.Mute)
		conversations.PUT("/:id/block", handlers.Conversation.Block)

		conversations.POST("/:id/messages", middleware.MessageRateLimitMiddleware(rateLimiter), handlers.Message.Send)
		conversations.GET("/:id/messages", handlers.Message.List)
		conversations.POST("/:id/read", handlers.Message.MarkRead)
	}

	messages := s.engine.Group("/v1/messages", auth)
	{
		messages.PUT("/:messageId", handlers.Message.Edit)
		messages.DELETE("/:messageId", handlers.Message.Delete)
		messages.PUT("/:messageId/reactions", handlers.Message.React)
		messages.DELETE("/:messageId/reactions", handlers.Message.Unreact)
	}

	presence := s.engine.Group("/v1/presence", auth)
	{
		presence.GET("/:userId", handlers.Presence.Get)
		presence.POST("/batch", handlers.Presence.GetBatch)
		presence.PUT("/status", handlers.Presence.UpdateStatus)
		presence.POST("/heartbeat", handlers.Presence.Heartbeat)
	}

	notifications := s.engine.Group("/v1/notifications", auth)
	{
		notifications.GET("", handlers.Notification.List)
		notifications.PUT("/:id/read", handlers.Notification.MarkRead)
	}

	admin := s.engine.Group("/v1/admin/intercepted", auth, middleware.AdminOnly())
	{
		admin.GET("", handlers.Intercept.List)
		admin.GET("/stats", handlers.Intercept.Stats)
		admin.POST("/batch", handlers.Intercept.Batch)
		admin.POST("/:id/read", handlers.Intercept.MarkRead)
		admin.POST("/:id/forward", handlers.Intercept.Forward)
		admin.POST("/:id/reply", handlers.Intercept.ReplyAsVA)
		admin.PUT("/:id/notes", handlers.Intercept.UpdateNotes)
		admin.PUT("/:id/status", handlers.Intercept.UpdateStatus)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.Server.Port)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.Server.Port)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
