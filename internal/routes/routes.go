package routes

import (
	"fmt"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arman-d/ChatterBack/internal/config"
	"github.com/arman-d/ChatterBack/internal/dispatch"
	"github.com/arman-d/ChatterBack/internal/handlers"
	"github.com/arman-d/ChatterBack/internal/middleware"
	"github.com/arman-d/ChatterBack/internal/presence"
	"github.com/arman-d/ChatterBack/internal/repository"
	"github.com/arman-d/ChatterBack/internal/services"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) error {
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	storageService, err := buildStorageService(cfg)
	if err != nil {
		return err
	}

	registry := presence.NewRegistry()
	dispatcher := dispatch.NewDispatcher(registry)

	messageService := services.NewMessageService(messageRepo, userRepo, storageService, dispatcher)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	messageHandler := handlers.NewMessageHandler(messageService, registry, dispatcher, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	messages := api.Group("/messages", middleware.AuthRequired(cfg.JWTSecret))
	messages.Get("/users", messageHandler.ListSidebarUsers)
	messages.Get("/:id", messageHandler.GetMessages)
	messages.Post("/send/:id", messageHandler.SendMessage)
	messages.Put("/pin/:id", messageHandler.ForcePin) // deprecated, see TogglePin
	messages.Put("/:id/pin", messageHandler.TogglePin)

	api.Use("/ws", messageHandler.WebSocketAuth)
	api.Get("/ws", websocket.New(messageHandler.HandleWebSocket))

	return nil
}

func buildStorageService(cfg *config.Config) (services.StorageService, error) {
	switch cfg.StorageDriver {
	case "minio":
		if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
			return nil, nil
		}
		return services.NewMinioStorageService(
			cfg.MinioEndpoint,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
			cfg.MinioUseSSL,
		)
	case "supabase":
		if cfg.SupabaseURL == "" || cfg.SupabaseBucket == "" || cfg.SupabaseServiceKey == "" {
			return nil, nil
		}
		return services.NewSupabaseStorageService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
