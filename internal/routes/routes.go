package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/sango-id/sango_id/internal/config"
	"github.com/sango-id/sango_id/internal/middleware"
	"github.com/sango-id/sango_id/internal/notification"
	"github.com/sango-id/sango_id/internal/provider"
	"github.com/sango-id/sango_id/internal/verification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *mongo.Database
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce Mongo/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("mongodb is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	var store verification.Store
	if d.DB != nil {
		store = verification.NewMongoStore(d.DB)
	} else {
		store = verification.NewMemoryStore()
	}

	signer := provider.NewSigner(d.Cfg.ProviderAppToken, d.Cfg.ProviderSecretKey)
	client := provider.NewClient(d.Cfg.ProviderBaseURL, d.Cfg.ProviderLevelName, signer, d.Cfg.RequestTimeout, d.Logger)
	notifier := notification.NewLoggerNotifier(d.Logger)
	svc := verification.NewService(client, store, notifier, d.Logger)
	verifier := verification.NewWebhookVerifier(d.Cfg.ProviderWebhookSecret)
	handler := verification.NewHandler(svc, verifier)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Webhook stays outside the API key guard; it carries its own signature.
	RegisterWebhookRoutes(api, handler)

	// Protected routes
	protected := api.Group("", middleware.APIKeyAuth(d.Cfg.APIKey))
	rateLimiter := middleware.StartRateLimit(d.Cache, 5)
	RegisterVerificationRoutes(protected, handler, rateLimiter)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
