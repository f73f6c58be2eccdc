package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"tuteck_exam_backend/internal/config"
	"tuteck_exam_backend/internal/controller"
	"tuteck_exam_backend/internal/repository"
	"tuteck_exam_backend/internal/service"
	"tuteck_exam_backend/pkg/clock"
	"tuteck_exam_backend/pkg/configwatcher"
	"tuteck_exam_backend/pkg/database"
	"tuteck_exam_backend/pkg/logger"
	"tuteck_exam_backend/pkg/monitoring"
	"tuteck_exam_backend/pkg/security"
	"tuteck_exam_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configDir = "configs"

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services

	tracer *sdktrace.TracerProvider

	mu              sync.Mutex
	configCallbacks []func(*config.Config)

	// 后台任务
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type repositories struct {
	user        *repository.UserRepository
	survey      *repository.SurveyRepository
	session     *repository.SessionRepository
	result      *repository.ResultRepository
	certificate *repository.CertificateRepository
	audit       *repository.AuditRepository
}

type services struct {
	storage     *service.StorageService
	audit       *service.AuditService
	hierarchy   *service.HierarchyService
	certificate *service.CertificateService
	engine      *service.SessionEngine
	result      *service.ResultService
	assignment  *service.AssignmentService
}

type controllers struct {
	session     *controller.SessionController
	result      *controller.ResultController
	certificate *controller.CertificateController
	admin       *controller.AdminController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		survey:      repository.NewSurveyRepository(db),
		session:     repository.NewSessionRepository(db),
		result:      repository.NewResultRepository(db),
		certificate: repository.NewCertificateRepository(db),
		audit:       repository.NewAuditRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}
	clk := clock.NewReal()

	s.storage = service.NewStorageService(&cfg.Storage)
	s.audit = service.NewAuditService(repos.audit)
	s.hierarchy = service.NewHierarchyService(
		repos.user,
		rdb,
		cfg.Engine.HierarchyCacheTTL(),
		cfg.Engine.HierarchyMaxDepth,
		clk,
	)
	s.certificate = service.NewCertificateService(
		repos.certificate,
		repos.result,
		repos.survey,
		repos.user,
		s.storage,
		s.audit,
		clk,
		cfg.Engine.CertificateSequenceWidth,
	)
	s.engine = service.NewSessionEngine(
		repos.survey,
		repos.session,
		repos.result,
		s.certificate,
		s.audit,
		clk,
		cfg.Exam,
	)
	s.result = service.NewResultService(repos.result, s.hierarchy)
	s.assignment = service.NewAssignmentService(repos.survey, repos.survey, repos.user, s.audit, repos.audit)

	// 配置热更新：考试设置对下一次操作生效
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.engine.UpdateSettings(newCfg.Exam)
		logger.Log.Info("Exam settings updated",
			zap.Bool("autoSubmitOnTimeout", newCfg.Exam.AutoSubmitOnTimeout),
			zap.Int("maxPauseMinutes", newCfg.Exam.MaxPauseMinutes))
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		session:     controller.NewSessionController(s.engine, s.result),
		result:      controller.NewResultController(s.result, s.hierarchy),
		certificate: controller.NewCertificateController(s.certificate, s.result),
		admin:       controller.NewAdminController(s.assignment),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// every runs fn on a ticker until the app shuts down.
func (a *App) every(name string, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		logger.Log.Warn("Background task disabled", zap.String("task", name))
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.ctx.Done():
				return
			case <-ticker.C:
				fn(a.ctx)
			}
		}
	}()
}

func (a *App) startBackgroundTasks(s *services, cfg *config.Config) {
	a.every("session-deadline-sweep", cfg.Engine.SweepInterval(), func(ctx context.Context) {
		n, err := s.engine.SweepExpired(ctx)
		if err != nil {
			logger.Log.Error("Session deadline sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Log.Info("Session deadline sweep", zap.Int("handled", n))
		}
	})

	a.every("certificate-expiry", cfg.Engine.CertificateExpirySweep(), func(ctx context.Context) {
		n, err := s.certificate.ExpireDue(ctx, s.certificate.Clock.Now())
		if err != nil {
			logger.Log.Error("Certificate expiry sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Log.Info("Certificates expired", zap.Int("count", n))
		}
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		path := filepath.Join(configDir, "config.yaml")
		if err := configwatcher.WatchConfig(a.ctx, path, a.applyConfig); err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	// Redis 只用于层级缓存，连不上时退化为进程内缓存
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, hierarchy cache stays in-process", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb
	app.ctx, app.cancel = context.WithCancel(context.Background())

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("tuteck-exam-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 停止后台任务，正在进行的 sweep 会跑完当前会话
	a.cancel()
	a.wg.Wait()

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
