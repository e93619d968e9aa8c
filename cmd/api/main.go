package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examflow/examflow-api/internal/config"
	"github.com/examflow/examflow-api/internal/database"
	"github.com/examflow/examflow-api/internal/handler"
	"github.com/examflow/examflow-api/internal/middleware"
	"github.com/examflow/examflow-api/internal/models"
	"github.com/examflow/examflow-api/internal/repository"
	"github.com/examflow/examflow-api/internal/router"
	"github.com/examflow/examflow-api/internal/service"
	cloud "github.com/examflow/examflow-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Department{},
		&models.Subject{},
		&models.Profile{},
		&models.UserRole{},
		&models.TeacherSubjectAssignment{},
		&models.Paper{},
		&models.Notification{},
		&models.AuditLog{},
		&models.ExamSchedule{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	if err := database.EnsureSelectionIndex(db); err != nil {
		log.Fatalf("failed to create selection index: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, notifications stay node-local")
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)

	auditService := service.NewAuditService(auditRepo, validate, logger)
	paperService := service.NewPaperService(paperRepo, subjectRepo, uploader, auditService, validate, cfg.MaxPaperSizeMB, logger)
	reviewService := service.NewReviewService(paperRepo, auditService, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, subjectRepo, redisClient, "examflow", natsConn, validate, logger)
	adminUserService := service.NewAdminUserService(userRepo, departmentRepo, subjectRepo, auditService, validate, logger)
	rosterService := service.NewRosterService(userRepo, subjectRepo, auditService, validate, logger)
	statsService := service.NewStatsService(statsRepo, auditRepo, userRepo, redisClient, cfg.StatsCacheTTL, cfg.AuditRecentLimit, logger)
	scheduleService := service.NewScheduleService(scheduleRepo, paperRepo, auditService, validate, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	notificationService.Start(ctx)

	paperHandler := handler.NewPaperHandler(paperService, logger)
	reviewHandler := handler.NewReviewHandler(reviewService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, 30*time.Second)
	adminUserHandler := handler.NewAdminUserHandler(adminUserService, logger)
	rosterHandler := handler.NewRosterHandler(rosterService, logger)
	statsHandler := handler.NewStatsHandler(statsService, logger)
	scheduleHandler := handler.NewScheduleHandler(scheduleService, logger)
	auditHandler := handler.NewAuditHandler(auditService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		PaperHandler:        paperHandler,
		ReviewHandler:       reviewHandler,
		NotificationHandler: notificationHandler,
		AdminUserHandler:    adminUserHandler,
		RosterHandler:       rosterHandler,
		StatsHandler:        statsHandler,
		ScheduleHandler:     scheduleHandler,
		AuditHandler:        auditHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		ActorMiddleware:     middleware.LoadActor(userRepo),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
