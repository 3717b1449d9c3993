package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/classbook-api/internal/handler"
	"github.com/noah-isme/classbook-api/internal/middleware"
	"github.com/noah-isme/classbook-api/internal/models"
	"github.com/noah-isme/classbook-api/internal/service"
	"github.com/noah-isme/classbook-api/pkg/config"
	"github.com/noah-isme/classbook-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/classbook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classbook-api/pkg/middleware/requestid"
	"github.com/noah-isme/classbook-api/pkg/response"
)

type routeHandlers struct {
	statistics *handler.StatisticsHandler
	weights    *handler.WeightHandler
	reports    *handler.ReportHandler
	metrics    *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, auth *service.AuthService, access *service.AccessService, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(response.Timed())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	secured := api.Group("", middleware.JWT(auth))

	secured.GET("/system/metrics", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), h.metrics.Snapshot)

	classes := secured.Group("/classes/:classId", middleware.ClassAccess(access))
	classes.GET("/statistics/attendance", h.statistics.Attendance)
	classes.GET("/statistics/grades", h.statistics.Grades)
	classes.GET("/students/:studentId/report", h.statistics.StudentReport)
	classes.GET("/weights", h.weights.List)
	classes.GET("/weights/:subject", h.weights.Get)
	classes.PUT("/weights/:subject", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher), h.weights.Upsert)

	if h.reports != nil {
		classes.GET("/reports", h.reports.ClassReports)
		secured.POST("/reports/generate", h.reports.GenerateReport)
		secured.GET("/reports/status/:id", h.reports.ReportStatus)
		// the signed token is the credential
		api.GET("/export/:token", h.reports.DownloadReport)
	}

	return r
}
