package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"quest-tracking-system/handlers"
	"quest-tracking-system/middleware"
	"quest-tracking-system/models"
	"quest-tracking-system/services"
	"quest-tracking-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Category{},
		&models.Quest{},
		&models.Challenge{},
		&models.QuestUser{},
		&models.UserQuestProgress{},
		&models.QuestChallengeCompletion{},
		&models.PartnerOrganization{},
		&models.Partnership{},
		&models.QueuedTask{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Core services
	taskQueue := services.NewTaskQueueService(db)
	rewards := services.NewRewardDispatcher(db, taskQueue)
	progressService := services.NewProgressService(db, rewards, taskQueue)
	questService := services.NewQuestService(db, progressService)
	partnerService := services.NewPartnerService(db, taskQueue)
	reconciler := services.NewReconciler(db, progressService)
	digestService := services.NewDigestService(db, taskQueue)

	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	notifyServiceURL := os.Getenv("NOTIFY_SERVICE_URL")
	if notifyServiceURL == "" {
		log.Fatal("NOTIFY_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("QUEST_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("QUEST_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background workers: user mirror sync + durable task queue drain
	syncWorker := workers.NewUserSyncWorker(db, progressService, syncServiceURL, "/api/v1/public/profiles", serviceToken)
	syncWorker.Start(ctx)

	notifier := workers.NewNotifier(notifyServiceURL, serviceToken)
	taskWorker := workers.NewTaskWorker(db)
	taskWorker.Register(models.TaskQuestCompleted, notifier.HandlerFor(models.TaskQuestCompleted))
	taskWorker.Register(models.TaskWelcomeUser, notifier.HandlerFor(models.TaskWelcomeUser))
	taskWorker.Register(models.TaskPartnershipCreated, notifier.HandlerFor(models.TaskPartnershipCreated))
	taskWorker.Register(models.TaskDailyDigest, notifier.HandlerFor(models.TaskDailyDigest))
	taskWorker.Start(ctx)

	// Hourly reconciliation + daily digest schedule
	sched, err := services.StartScheduler(ctx, reconciler, digestService)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}

	handlers.SetupQuestRoutes(app, questService)
	handlers.SetupProgressRoutes(app, progressService, reconciler)
	handlers.SetupPartnerRoutes(app, partnerService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ User Sync Worker running")
	log.Println("✅ Task Worker running (queued_tasks drain)")
	log.Println("✅ Reconciler scheduled hourly, daily digest scheduled")

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = sched.Shutdown()
	_ = app.Shutdown()
}
