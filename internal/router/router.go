package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/student-records-api/api/swagger"
	"github.com/noah-isme/student-records-api/internal/handler"
	internalmiddleware "github.com/noah-isme/student-records-api/internal/middleware"
	"github.com/noah-isme/student-records-api/internal/service"
	"github.com/noah-isme/student-records-api/pkg/config"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-records-api/pkg/middleware/requestid"
	"github.com/noah-isme/student-records-api/pkg/response"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Students *handler.StudentHandler
	System   *handler.MetricsHandler
}

// Setup builds the gin engine with middleware and every route.
func Setup(cfg *config.Config, h Handlers, metrics *service.MetricsService, accessLog *zap.Logger) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(accessLog))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(response.ExposeDetails(cfg.ExposeErrorDetails))

	r.GET("/", h.System.Welcome)
	r.GET("/health", h.System.Health)
	r.GET("/ready", h.System.Ready)
	r.GET("/test-db", h.System.TestDB)
	r.GET("/metrics", h.System.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	students := r.Group(cfg.APIPrefix + "/students")
	{
		students.GET("/all", h.Students.List)
		students.POST("/new", h.Students.Create)
		students.GET("/export", h.Students.Export)
		students.GET("/:id/student", h.Students.Get)
		students.PATCH("/patch/:id", h.Students.Patch)
		students.PUT("/update/:id", h.Students.Update)
		students.DELETE("/soft-delete/:id", h.Students.SoftDelete)
		students.DELETE("/hard-delete/:id", h.Students.HardDelete)
	}

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Describe(appErrors.ErrNotFound, "Route not found", c.Request.Method+" "+c.Request.URL.Path+" is not served"))
	})

	return r
}
