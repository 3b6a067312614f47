package app

import (
	"context"
	"log"
	"mfs_literacy_backend/internal/config"
	"mfs_literacy_backend/internal/controller"
	"mfs_literacy_backend/internal/repository"
	"mfs_literacy_backend/internal/service"
	"mfs_literacy_backend/internal/util"
	"mfs_literacy_backend/pkg/database"
	"mfs_literacy_backend/pkg/logger"
	"mfs_literacy_backend/pkg/monitoring"
	"mfs_literacy_backend/pkg/security"
	"mfs_literacy_backend/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
}

type repositories struct {
	learner    *repository.LearnerRepository
	lesson     *repository.LessonRepository
	submission *repository.SubmissionRepository
	evaluation *repository.EvaluationRepository
	adjustment *repository.AdjustmentRepository
	alert      *repository.AlertRepository
}

type services struct {
	evaluator   *service.EvaluatorService
	proficiency *service.ProficiencyService
	policy      *service.PolicyService
	alert       *service.AlertService
	notifier    *service.WebhookNotifier
	archive     *service.ArchiveService
	submission  *service.SubmissionService
}

type controllers struct {
	essay  *controller.EssayController
	alert  *controller.AlertController
	health *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		learner:    repository.NewLearnerRepository(db),
		lesson:     repository.NewLessonRepository(db),
		submission: repository.NewSubmissionRepository(db),
		evaluation: repository.NewEvaluationRepository(db),
		adjustment: repository.NewAdjustmentRepository(db),
		alert:      repository.NewAlertRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.evaluator = service.NewEvaluatorService(cfg.Evaluator)
	s.proficiency = service.NewProficiencyService(repos.evaluation, rdb, cfg.Proficiency.Window)
	s.policy = service.NewPolicyService(repos.adjustment)
	s.alert = service.NewAlertService(db, repos.alert)
	s.notifier = service.NewWebhookNotifier(cfg.Notification)
	s.archive = service.NewArchiveService(cfg)

	s.submission = service.NewSubmissionService(
		db,
		repos.learner,
		repos.lesson,
		repos.submission,
		repos.evaluation,
		s.evaluator,
		s.proficiency,
		s.policy,
		s.alert,
		s.notifier,
		s.archive,
	)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB) *controllers {
	return &controllers{
		essay:  controller.NewEssayController(s.submission, s.proficiency),
		alert:  controller.NewAlertController(s.alert, repos.evaluation, repos.adjustment),
		health: controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(func(c *gin.Context) {
		c.Set("config", a.Config)
		c.Next()
	})
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	windowMinutes := cfg.RateLimit.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	router.Use(security.RateLimiter(maxRequests, time.Duration(windowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	// 开放告警数指标定期刷新
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		for range ticker.C {
			s.alert.RefreshOpenGauge()
		}
	}()
}

// ApplyConfig 配置热更新回调，由配置监听器驱动
func (a *App) ApplyConfig(cfg *config.Config) {
	a.services.evaluator.ApplyConfig(cfg.Evaluator)
	a.services.proficiency.SetWindow(cfg.Proficiency.Window)
	logger.Log.Info("runtime config reloaded")
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式默认不自动迁移，需显式 --migrate
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Log.Info("Database migration completed")
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, repos, db)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		_, err := tracing.InitTracer("literacy-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/archive", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Log.Sync()
	log.Println("Server exiting")
}
