package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callsight/callqa_go_server/config"
	"github.com/callsight/callqa_go_server/internal/database"
	"github.com/callsight/callqa_go_server/internal/pkg/email"
	"github.com/callsight/callqa_go_server/internal/pkg/llm"
	"github.com/callsight/callqa_go_server/internal/pkg/oss"
	"github.com/callsight/callqa_go_server/internal/pkg/pubsub"
	"github.com/callsight/callqa_go_server/internal/pkg/queue"
	"github.com/callsight/callqa_go_server/internal/pkg/storage"
	"github.com/callsight/callqa_go_server/internal/pkg/stt"
	"github.com/callsight/callqa_go_server/internal/repository"
	"github.com/callsight/callqa_go_server/internal/service"
	"github.com/callsight/callqa_go_server/internal/worker"
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

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化存储（签名 URL 供转写服务拉音频）
	var urls worker.SignedURLProvider
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Fatalf("Failed to init OSS client: %v", err)
		}
		urls = ossClient
	} else {
		localDir := cfg.Upload.LocalDir
		if localDir == "" {
			localDir = "./data/recordings"
		}
		local, err := storage.NewLocal(localDir)
		if err != nil {
			log.Fatalf("Failed to init local storage: %v", err)
		}
		urls = local
	}

	// 初始化外部服务客户端
	sttClient := stt.NewClient(&cfg.STT)
	llmClient, err := llm.NewClient(ctx, &cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to init llm client: %v", err)
	}

	// 初始化 Queue 和 Pub/Sub
	pipelineQueue := queue.NewQueue(rdb, cfg.Queue.PipelineQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 Repository 和编排服务（worker 通过它落终态）
	userRepo := repository.NewUserRepository(db)
	recordingRepo := repository.NewRecordingRepository(db)
	transcriptionRepo := repository.NewTranscriptionRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	criteriaRepo := repository.NewCriteriaRepository(db)

	guard := service.NewAccessGuard(userRepo)
	quotaService := service.NewQuotaService(userRepo, cfg)
	emailService := email.NewService(&cfg.Email)
	pipelineService := service.NewPipelineService(recordingRepo, transcriptionRepo, analysisRepo, criteriaRepo, guard, quotaService, pipelineQueue, emailService)

	// 创建任务处理器
	processor := worker.NewProcessor(
		recordingRepo, transcriptionRepo, criteriaRepo,
		pipelineService, sttClient, llmClient, urls, publisher, cfg)

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	maxWorkers := cfg.Queue.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	log.Printf("Worker started, max workers: %d", maxWorkers)

	// 启动 worker 循环
	for i := 0; i < maxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					msg, err := pipelineQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop task: %v", workerID, err)
						continue
					}

					if msg == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: processing %s for recording %d", workerID, msg.Stage, msg.RecordingID)
					if err := processor.Process(ctx, msg); err != nil {
						log.Printf("Worker %d: recording %d %s failed: %v", workerID, msg.RecordingID, msg.Stage, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}
