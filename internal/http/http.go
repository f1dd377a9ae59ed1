package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kerem-kaynak/dashjs/internal/appcontext"
	"github.com/kerem-kaynak/dashjs/internal/http/middleware"
)

type APIService struct {
	engine  *gin.Engine
	context *appcontext.Context
}

func NewHTTPService(ctx *appcontext.Context) *APIService {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.MetricsMiddleware())
	engine.Use(middleware.CORSMiddleware(ctx.IsProduction(), ctx.AllowedOrigins))

	service := &APIService{
		engine:  engine,
		context: ctx,
	}
	service.setupRoutes()
	return service
}

func (h *APIService) Engine() *gin.Engine {
	return h.engine
}

func (h *APIService) setupRoutes() {
	h.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h.engine.GET("/metrics", middleware.MetricsHandler())

	api := h.engine.Group("/api")
	api.Use(middleware.SessionMiddleware(h.context.SessionSecret, h.context.PhantomSecret))
	h.setupAuthRoutes(api)
	h.setupDatasetRoutes(api)
	h.setupDashboardRoutes(api)
	h.setupWidgetRoutes(api)
	api.GET("/search", SearchResources(h.context))

	h.setupExternalRoutes(h.engine.Group("/dash"))

	h.engine.NoRoute(func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})
}

func (h *APIService) setupAuthRoutes(group *gin.RouterGroup) {
	auth := group.Group("/auth")

	auth.GET("/login", Login(h.context))
	auth.GET("/callback", Callback(h.context))
	auth.POST("/logout", Logout(h.context))
	auth.GET("/me", middleware.RequireSession(), GetUserInfo(h.context))
}

func (h *APIService) setupDatasetRoutes(group *gin.RouterGroup) {
	datasets := group.Group("/datasets")

	datasets.GET("/:id", GetDataset(h.context))

	datasets.Use(middleware.RequireSession())
	datasets.GET("", ListDatasets(h.context))
	datasets.POST("/uploadFile", UploadDataset(h.context))
	datasets.POST("/:id/replaceDataset", ReplaceDataset(h.context))
	datasets.POST("/:id/entries", PatchDatasetEntries(h.context))
	datasets.DELETE("/:id/entries", DeleteDatasetEntries(h.context))
	datasets.DELETE("/:id", DeleteDataset(h.context))
	datasets.POST("/:id/fork", ForkDataset(h.context))
}

func (h *APIService) setupDashboardRoutes(group *gin.RouterGroup) {
	dashboards := group.Group("/dashboards")

	dashboards.GET("", ListDashboards(h.context))
	dashboards.GET("/:id", GetDashboard(h.context))
	dashboards.GET("/:id/widgets", GetDashboardWidgets(h.context))
	dashboards.GET("/:id/graphGroups", GetGraphGroups(h.context))

	dashboards.Use(middleware.RequireSession())
	dashboards.POST("", CreateDashboard(h.context))
	dashboards.PUT("/:id", UpdateDashboard(h.context))
	dashboards.DELETE("/:id", DeleteDashboard(h.context))
	dashboards.POST("/:id/graphGroups", AddGraphGroup(h.context))
	dashboards.POST("/:id/share", ShareDashboard(h.context))
}

func (h *APIService) setupWidgetRoutes(group *gin.RouterGroup) {
	widgets := group.Group("/widgets")

	widgets.GET("/:id", GetWidget(h.context))

	widgets.Use(middleware.RequireSession())
	widgets.POST("", CreateWidget(h.context))
	widgets.PUT("/:id", UpdateWidget(h.context))
	widgets.DELETE("/:id", DeleteWidget(h.context))
}

func (h *APIService) setupExternalRoutes(group *gin.RouterGroup) {
	limiter := middleware.NewRateLimiter(h.context.TokenRateLimit, h.context.TokenRateBurst, h.context.Logger)
	group.Use(middleware.TokenMiddleware(h.context.TokenSecret), limiter.Handler())

	group.GET("/datasets", ExternalListDatasets(h.context))
	group.POST("/datasets", ExternalCreateDataset(h.context))
	group.POST("/datasets/:id/entries", ExternalPatchEntries(h.context))
	group.DELETE("/datasets/:id/entries", ExternalDeleteEntries(h.context))
}
