package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"pairchat/internal/chat"
	"pairchat/internal/config"
	"pairchat/internal/db"
	"pairchat/internal/friend"
	myMiddleware "pairchat/internal/middleware"
	"pairchat/internal/presence"
	"pairchat/internal/user"
)

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// 2. Platform layer: Postgres + Redis
	database, err := db.NewDatabase(cfg.DatabaseDSN)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	logrus.Info("connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		logrus.WithError(err).Fatal("migration failed")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.WithError(err).Fatal("failed to connect to redis")
	}
	logrus.Info("connected to Redis")

	// 3. User feature (identity store + auth)
	userRepo := user.NewRepository(database)
	userService := user.NewService(userRepo, cfg.JWTSecret)
	userHandler := user.NewHandler(userService)

	// 4. Message ledger + friend resolver
	chatRepo := chat.NewRepository(database)
	friendRepo := friend.NewRepository(database)
	resolver := friend.NewResolver(friendRepo, chatRepo)
	friendHandler := friend.NewHandler(friendRepo, resolver, userService, cfg.PageSize)

	// 5. Presence: registry + fan-out hub
	registry := presence.NewRegistry()
	hub := presence.NewHub(registry, resolver, userService, redisClient)
	go hub.Run()
	go hub.SubscribeToRedis()
	presenceHandler := presence.NewHandler(hub)

	// 6. Chat service on top of ledger, directory and hub
	chatService := chat.NewService(chatRepo, userService, resolver, hub, cfg.PageSize)
	chatHandler := chat.NewHandler(chatService)

	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// 7. Routes
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)

	// Protected
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/api/users/search", userHandler.SearchUsers)
		r.Get("/api/users/me", userHandler.Me)

		r.Post("/api/friends/requests", friendHandler.SendRequest)
		r.Get("/api/friends/requests", friendHandler.ListPending)
		r.Put("/api/friends/requests/{userID}/accept", friendHandler.AcceptRequest)
		r.Get("/api/friends", friendHandler.ListFriends)

		r.Post("/api/messages", chatHandler.SendMessage)
		r.Get("/api/messages/{userID}", chatHandler.GetHistory)
		r.Put("/api/messages/{userID}/seen", chatHandler.MarkSeen)
		r.Get("/api/conversations", chatHandler.GetConversations)

		// WebSocket (presence + real-time pushes)
		r.Get("/ws", presenceHandler.ServeWs)
	})

	logrus.WithField("addr", cfg.Addr).Info("server starting")
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
