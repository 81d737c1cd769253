package api

import (
	"backend/internal/config"
	"backend/internal/metrics"
	"backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRouter 构建 Gin 路由与应用容器
// 调用方负责启动容器中的编排器与 worker，并在退出时关闭
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *AppContainer) {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		RequestLogger(),
		CORS(),
		metrics.PrometheusMiddleware(),
	)

	// 公开探针与指标端点（不走认证）
	router.GET("/health", HealthCheck(db))
	router.GET("/ready", ReadinessCheck(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	container := InitContainer(db, cfg)
	handlers := InitHandlers(container)
	RegisterRoutes(router, container, handlers)

	return router, container
}
