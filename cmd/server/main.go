package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/clipforge/api/internal/client"
	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/handler"
	"github.com/clipforge/api/internal/ledger"
	"github.com/clipforge/api/internal/middleware"
	"github.com/clipforge/api/internal/orchestrator"
	"github.com/clipforge/api/internal/service"
	ws "github.com/clipforge/api/internal/websocket"
	"github.com/clipforge/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize remote clients
	workerClient := client.NewWorkerClient(&cfg.Worker)
	libraryClient := client.NewLibraryClient(&cfg.Library)
	if !workerClient.IsConfigured() {
		log.Printf("Warning: clip worker API key not configured")
	}

	// Initialize core components
	guard := ledger.NewGuard(redisClient, &cfg.Credits)
	jobService := service.NewJobService(redisClient, asynqClient)
	facade := orchestrator.NewFacade(workerClient, libraryClient, guard, jobService, cfg.Polling.AttemptBudget)

	// Initialize handlers
	generateHandler := handler.NewGenerateHandler(facade, validate)
	creditsHandler := handler.NewCreditsHandler(guard, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Clip generation routes
	clips := api.Group("/clips")
	clips.Get("/intake/:mediaId", generateHandler.Intake)
	clips.Post("/generate", generateHandler.Generate)
	clips.Get("/generate/:jobId", generateHandler.Status)
	clips.Post("/generate/:jobId/cancel", generateHandler.Cancel)
	clips.Get("/gallery", generateHandler.Gallery)

	// Credit routes
	credits := api.Group("/credits")
	credits.Get("/", creditsHandler.Balance)
	credits.Post("/grant", creditsHandler.Grant)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, workerClient, libraryClient, guard, jobService, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, workerClient client.ClipWorker, libraryClient client.MediaLibrary, guard *ledger.Guard, jobService *service.JobService, hub *ws.Hub) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Each task spends most of its time waiting on poll timers, so
			// a handful of concurrent jobs is plenty.
			Concurrency: 10,
			Queues: map[string]int{
				"clips": 10,
			},
		},
	)

	clipJobWorker := worker.NewClipJobWorker(
		workerClient, libraryClient, guard, jobService, hub,
		cfg.Polling.Interval, cfg.Polling.AttemptBudget,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeGenerate, clipJobWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
