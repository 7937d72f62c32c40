package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"vahub-messaging/internal/config"
	"vahub-messaging/internal/domain/conversation"
	"vahub-messaging/internal/domain/message"
	"vahub-messaging/internal/domain/notification"
	"vahub-messaging/internal/domain/presence"
	"vahub-messaging/internal/handler"
	"vahub-messaging/internal/platform"
	vahub_redis "vahub-messaging/internal/redis"
	"vahub-messaging/internal/repository"
	"vahub-messaging/internal/server"
	"vahub-messaging/internal/services"
	"vahub-messaging/pkg/database"
	"vahub-messaging/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logMode := logger.DevelopmentMode
	if cfg.Server.Environment == server.ProductionEnv {
		logMode = logger.ProductionMode
	}
	l := logger.New(logMode)
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&conversation.Conversation{},
		&conversation.Participant{},
		&conversation.AdminAction{},
		&message.Message{},
		&message.Attachment{},
		&message.Reaction{},
		&message.Edit{},
		&presence.Record{},
		&notification.Notification{},
	); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}

	redisClient, err := vahub_redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	publisher := vahub_redis.NewPublisher(redisClient)
	typingStore := vahub_redis.NewTypingStore(redisClient, publisher, cfg.Presence.TypingTTL)
	rateLimiter := vahub_redis.NewRateLimiter(redisClient, vahub_redis.DefaultRateLimitConfig())

	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	presenceRepo := repository.NewPresenceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	counter := services.NewUnreadCounter(conversationRepo)
	emailSender := &platform.LoggingEmailSender{Log: l}
	completion := platform.NewEnvCompletionProvider()

	// services start with a noop broadcaster; the hub replaces it below
	presenceService := services.NewPresenceService(presenceRepo, conversationRepo, typingStore, services.NoopBroadcaster{}, l)
	conversationService := services.NewConversationService(conversationRepo, completion, services.NoopBroadcaster{}, l)
	messageService := services.NewMessageService(messageRepo, conversationRepo, counter, services.NoopBroadcaster{}, nil, l, cfg.Message.EditWindow)
	notificationService := services.NewNotificationService(notificationRepo, conversationRepo, emailSender, services.NoopBroadcaster{}, l)
	interceptService := services.NewInterceptService(conversationRepo, messageRepo, messageService, counter, services.NoopBroadcaster{}, notificationService, l)

	hub := server.NewHub(presenceService, conversationService, messageService)
	presenceService.SetBroadcaster(hub)
	conversationService.SetBroadcaster(hub)
	messageService.SetBroadcaster(hub)
	messageService.SetNotifier(notificationService)
	notificationService.SetBroadcaster(hub)
	interceptService.SetBroadcaster(hub)

	go hub.Run()
	defer hub.Stop()

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go presenceService.RunSweeper(sweepCtx, cfg.Presence.SweepInterval, cfg.Presence.StaleThreshold, cfg.Presence.AwayTimeout)

	srv := server.New(cfg, db, l)
	srv.SetupRoutes(&server.Handlers{
		Conversation: handler.NewConversationHandler(conversationService),
		Message:      handler.NewMessageHandler(messageService),
		Presence:     handler.NewPresenceHandler(presenceService),
		Intercept:    handler.NewInterceptHandler(interceptService),
		Notification: handler.NewNotificationHandler(notificationService),
		WebSocket:    server.NewWebSocketHandler(hub, cfg.Auth.JWTSecret, rateLimiter),
	}, rateLimiter)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
