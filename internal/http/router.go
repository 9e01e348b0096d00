package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/nearby-backend/internal/http/handlers"
	httpMW "github.com/yungbote/nearby-backend/internal/http/middleware"
	"github.com/yungbote/nearby-backend/internal/observability"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	NearbyHandler   *httpH.NearbyHandler
	ScheduleHandler *httpH.ScheduleHandler
	AnalysisHandler *httpH.AnalysisHandler
	ProfileHandler  *httpH.ProfileHandler
	BlockHandler    *httpH.BlockHandler
	RealtimeHandler *httpH.RealtimeHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Observe(cfg.Log, cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// authenticates on its first frame
		if cfg.RealtimeHandler != nil {
			api.GET("/ws", cfg.RealtimeHandler.Socket)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.NearbyHandler != nil {
			protected.GET("/nearby", cfg.NearbyHandler.GetNearby)
		}

		if cfg.ScheduleHandler != nil {
			protected.POST("/schedule/neighborhood", cfg.ScheduleHandler.Neighborhood)
			protected.POST("/schedule/promote", cfg.ScheduleHandler.Promote)
		}

		if cfg.AnalysisHandler != nil {
			protected.GET("/analyses/:userId", cfg.AnalysisHandler.Get)
		}

		if cfg.ProfileHandler != nil {
			protected.GET("/me/profile", cfg.ProfileHandler.GetMe)
			protected.PUT("/me/location", cfg.ProfileHandler.PutLocation)
			protected.PUT("/me/visibility", cfg.ProfileHandler.PutVisibility)
			protected.PUT("/me/descriptor", cfg.ProfileHandler.PutDescriptor)
		}

		if cfg.BlockHandler != nil {
			protected.POST("/blocks/:userId", cfg.BlockHandler.Block)
			protected.DELETE("/blocks/:userId", cfg.BlockHandler.Unblock)
		}
	}

	return r
}
