package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/nercompare/internal/api/handler"
	"github.com/timmy/nercompare/internal/api/middleware"
	"github.com/timmy/nercompare/internal/config"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Health *handler.HealthHandler
	Jobs   *handler.JobHandler
	Tasks  *handler.TaskHandler
	Upload *handler.UploadHandler
	GUI    *handler.GUIHandler
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg config.ServerConfig, h Handlers) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	if cfg.MaxUploadMB > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadMB << 20
	}

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS))

	r.GET("/", h.GUI.Index)
	r.GET("/health", h.Health.Health)
	r.GET("/uploads/:filename", h.Upload.Serve)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/jobs", h.Jobs.StartJob)
		v1.GET("/jobs/:id/status", h.Jobs.JobStatus)

		v1.GET("/tasks/:id/output", h.Tasks.TaskOutput)
		v1.GET("/tasks/:id/input_content", h.Tasks.InputContent)
	}

	return r
}
