package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/charity-tasks-api/internal/middleware"
	"github.com/noah-isme/charity-tasks-api/internal/service"
	"github.com/noah-isme/charity-tasks-api/pkg/config"
	"github.com/noah-isme/charity-tasks-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/charity-tasks-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/charity-tasks-api/pkg/middleware/requestid"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Tokens   middleware.TokenValidator
	Actors   middleware.ActorResolver
	Accounts accountService
	Tasks    taskService
	Metrics  *service.MetricsService
	Store    Pinger
}

// NewRouter assembles the gin engine with operational and API routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if deps.Logger != nil {
		r.Use(logger.GinMiddleware(deps.Logger))
	}
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(deps.Metrics))

	ops := NewMetricsHandler(deps.Metrics, deps.Store)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	if cfg.Metrics.Enabled && deps.Metrics != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, ops.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.Tokens), middleware.Actor(deps.Actors), middleware.AuditContext())

	accounts := NewAccountHandler(deps.Accounts)
	api.GET("/users/me", accounts.Me)
	api.PUT("/users/me", accounts.UpdateMe)
	api.POST("/charities", accounts.RegisterCharity)
	api.POST("/benefactors", accounts.RegisterBenefactor)

	tasks := NewTaskHandler(deps.Tasks)
	taskRoutes := api.Group("/tasks")
	taskRoutes.GET("", tasks.List)
	taskRoutes.POST("", middleware.RequireCharity(), tasks.Create)
	taskRoutes.GET("/export", tasks.Export)
	taskRoutes.GET("/:id", tasks.Get)
	taskRoutes.POST("/:id/request", middleware.RequireBenefactor(), tasks.Request)
	taskRoutes.POST("/:id/response", tasks.Respond)
	taskRoutes.POST("/:id/done", tasks.Done)

	return r
}
