package app

import (
	"time"

	"tuteck_exam_backend/internal/config"
	"tuteck_exam_backend/internal/middleware"
	"tuteck_exam_backend/pkg/monitoring"
	"tuteck_exam_backend/pkg/security"

	"github.com/gin-gonic/gin"
)

// roleLevelRevoke is the least privileged tier allowed to revoke certificates.
const roleLevelRevoke = 2

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerSessionRoutes(authGroup, c, cfg)
		a.registerReportRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RequireRoleLevel(roleLevelRevoke))
	{
		admin.POST("/certificates/:id/revoke", c.certificate.Revoke)
		admin.POST("/results/:id/certificate", c.certificate.Reissue)
		admin.POST("/surveys/:id/assignments", c.admin.AssignSurvey)
		admin.GET("/audit", c.admin.AuditTrail)
	}
}

func (a *App) registerSessionRoutes(group *gin.RouterGroup, c *controllers, cfg *config.Config) {
	// 作答接口按用户限流：同一考场的考生共用出口 IP
	answers := security.NewLimiter(cfg.AnswerBudget(), time.Minute)

	sessions := group.Group("/sessions")
	{
		sessions.POST("", c.session.Start)
		sessions.GET("/:id", c.session.Get)
		sessions.POST("/:id/answers", answers.Middleware(middleware.UserRateKey), c.session.SubmitAnswer)
		sessions.POST("/:id/pause", c.session.Pause)
		sessions.POST("/:id/resume", c.session.Resume)
		sessions.POST("/:id/complete", c.session.Complete)
		sessions.GET("/:id/time-remaining", c.session.TimeRemaining)
	}
}

func (a *App) registerReportRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/results", c.result.List)
	group.GET("/results/:id", c.result.Get)
	group.GET("/users/visible", c.result.VisibleUsers)
	group.GET("/certificates/:id/download", c.certificate.Download)
}
