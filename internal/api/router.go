package api

import (
	"github.com/gin-gonic/gin"

	"github.com/callsight/callqa_go_server/config"
	"github.com/callsight/callqa_go_server/internal/api/handler"
	"github.com/callsight/callqa_go_server/internal/api/middleware"
)

type Router struct {
	authHandler      *handler.AuthHandler
	recordingHandler *handler.RecordingHandler
	pipelineHandler  *handler.PipelineHandler
	criteriaHandler  *handler.CriteriaHandler
	commentHandler   *handler.CommentHandler
	quotaHandler     *handler.QuotaHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	recordingHandler *handler.RecordingHandler,
	pipelineHandler *handler.PipelineHandler,
	criteriaHandler *handler.CriteriaHandler,
	commentHandler *handler.CommentHandler,
	quotaHandler *handler.QuotaHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		recordingHandler: recordingHandler,
		pipelineHandler:  pipelineHandler,
		criteriaHandler:  criteriaHandler,
		commentHandler:   commentHandler,
		quotaHandler:     quotaHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket（进度推送）
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户
			authenticated.GET("/user/quota", r.quotaHandler.GetQuota)

			// 录音与流水线
			recordings := authenticated.Group("/recordings")
			{
				recordings.POST("", r.recordingHandler.Upload)
				recordings.GET("", r.recordingHandler.List)
				recordings.GET("/:id", r.recordingHandler.Get)
				recordings.DELETE("/:id", r.recordingHandler.Delete)

				recordings.POST("/:id/transcription", r.pipelineHandler.RequestTranscription)
				recordings.GET("/:id/transcription", r.pipelineHandler.GetTranscription)
				recordings.POST("/:id/analysis", r.pipelineHandler.RequestAnalysis)
				recordings.GET("/:id/analysis", r.pipelineHandler.GetAnalysis)
				recordings.GET("/:id/scorecard", r.pipelineHandler.GetScoreCard)
				recordings.POST("/:id/share", r.pipelineHandler.ShareReport)

				recordings.POST("/:id/comments", r.commentHandler.Create)
				recordings.GET("/:id/comments", r.commentHandler.List)
			}
			authenticated.DELETE("/comments/:id", r.commentHandler.Delete)

			// 评分标准
			criteria := authenticated.Group("/criteria")
			{
				criteria.POST("", r.criteriaHandler.Create)
				criteria.GET("", r.criteriaHandler.List)
				criteria.GET("/:id", r.criteriaHandler.Get)
				criteria.PUT("/:id", r.criteriaHandler.Update)
				criteria.DELETE("/:id", r.criteriaHandler.Delete)
			}
		}
	}

	return engine
}
