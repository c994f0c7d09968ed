package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/callsight/callqa_go_server/config"
	"github.com/callsight/callqa_go_server/internal/api"
	"github.com/callsight/callqa_go_server/internal/api/handler"
	"github.com/callsight/callqa_go_server/internal/database"
	"github.com/callsight/callqa_go_server/internal/pkg/cron"
	"github.com/callsight/callqa_go_server/internal/pkg/email"
	"github.com/callsight/callqa_go_server/internal/pkg/oss"
	"github.com/callsight/callqa_go_server/internal/pkg/pubsub"
	"github.com/callsight/callqa_go_server/internal/pkg/queue"
	"github.com/callsight/callqa_go_server/internal/pkg/storage"
	"github.com/callsight/callqa_go_server/internal/pkg/ws"
	"github.com/callsight/callqa_go_server/internal/repository"
	"github.com/callsight/callqa_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化存储：OSS 已配置用 OSS，否则本地磁盘
	var recordingStorage service.RecordingStorage
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Fatalf("Failed to init OSS client: %v", err)
		}
		recordingStorage = ossClient
		log.Println("OSS storage initialized")
	} else {
		localDir := cfg.Upload.LocalDir
		if localDir == "" {
			localDir = "./data/recordings"
		}
		local, err := storage.NewLocal(localDir)
		if err != nil {
			log.Fatalf("Failed to init local storage: %v", err)
		}
		recordingStorage = local
		log.Printf("Local storage initialized at %s (OSS not configured)", localDir)
	}

	// 初始化 Queue 和 Pub/Sub
	pipelineQueue := queue.NewQueue(rdb, cfg.Queue.PipelineQueue)
	subscriber := pubsub.NewSubscriber(rdb)

	// 初始化 WebSocket Hub，并把进度消息桥接到在线用户
	wsHub := ws.NewHub()
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
			wsHub.SendProgress(msg.UserID, msg.RecordingID, &ws.Message{Type: msg.Type, Data: msg})
		})
		if err != nil && err != context.Canceled {
			log.Printf("Progress subscriber stopped: %v", err)
		}
	}()
	log.Println("WebSocket hub started")

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	recordingRepo := repository.NewRecordingRepository(db)
	transcriptionRepo := repository.NewTranscriptionRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	criteriaRepo := repository.NewCriteriaRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	// 初始化 Service
	guard := service.NewAccessGuard(userRepo)
	quotaService := service.NewQuotaService(userRepo, cfg)
	authService := service.NewAuthService(userRepo, cfg)
	emailService := email.NewService(&cfg.Email)
	recordingService := service.NewRecordingService(recordingRepo, transcriptionRepo, analysisRepo, guard, recordingStorage, cfg)
	pipelineService := service.NewPipelineService(recordingRepo, transcriptionRepo, analysisRepo, criteriaRepo, guard, quotaService, pipelineQueue, emailService)
	criteriaService := service.NewCriteriaService(criteriaRepo)
	commentService := service.NewCommentService(commentRepo, recordingRepo, userRepo, guard)

	// 定时任务：每日配额重置 + 卡死阶段兜底
	cronService := cron.NewService(quotaService, transcriptionRepo, analysisRepo, 30*time.Minute)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	recordingHandler := handler.NewRecordingHandler(recordingService, guard)
	pipelineHandler := handler.NewPipelineHandler(pipelineService, guard)
	criteriaHandler := handler.NewCriteriaHandler(criteriaService, guard)
	commentHandler := handler.NewCommentHandler(commentService, guard)
	quotaHandler := handler.NewQuotaHandler(quotaService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		recordingHandler,
		pipelineHandler,
		criteriaHandler,
		commentHandler,
		quotaHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
