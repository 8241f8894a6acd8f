package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/doc-ingest/api/handler"
	"github.com/fyerfyer/doc-ingest/api/middleware"
	"github.com/fyerfyer/doc-ingest/internal/metrics"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	ingestHandler *handler.IngestHandler,
	healthHandler *handler.HealthHandler,
	m *metrics.Metrics,
) *gin.Engine {
	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(Cors())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics(m))
	router.Use(middleware.ErrorMiddleware())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	api := router.Group("/api")
	{
		// 上传并切分文档 - POST /api/ingest
		api.POST("/ingest", ingestHandler.Ingest)

		// 下载已生成的产物 - GET /api/artifacts/:id
		api.GET("/artifacts/:id", ingestHandler.GetArtifact)

		// 健康检查 - GET /api/health
		api.GET("/health", healthHandler.Health)
	}

	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	return router
}

// Cors 跨域资源共享中间件
// 暴露产物相关的响应头，预检请求直接返回204
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Artifact-ID, X-Chunk-Count, X-Chunk-Strategy, X-Trace-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
