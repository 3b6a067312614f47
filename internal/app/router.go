package app

import (
	"mfs_literacy_backend/docs"
	"mfs_literacy_backend/internal/middleware"
	"mfs_literacy_backend/internal/model"
	"mfs_literacy_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 学习者接口
	essays := router.Group("/api/essays")
	essays.Use(middleware.AuthMiddleware(), middleware.ActivityMiddleware(repos.learner))
	{
		essays.POST("", c.essay.SubmitEssay)
		essays.GET("/history", c.essay.GetHistory)
		essays.GET("/proficiency", c.essay.GetProficiency)
		essays.GET("/:id", c.essay.GetSubmission)
	}

	// 管理员/辅导老师接口
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RoleMiddleware(model.Tutor, model.Admin))
	{
		admin.GET("/alerts", c.alert.ListOpenAlerts)
		admin.POST("/alerts/:id/resolve", c.alert.ResolveAlert)
		admin.PUT("/evaluations/:id/note", c.alert.AppendEvaluationNote)
		admin.GET("/learners/:id/adjustments", c.alert.ListAdjustments)
	}
}
