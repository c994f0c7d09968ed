package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/callsight/callqa_go_server/config"
	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/pkg/llm"
	"github.com/callsight/callqa_go_server/internal/pkg/pubsub"
	"github.com/callsight/callqa_go_server/internal/pkg/queue"
	"github.com/callsight/callqa_go_server/internal/pkg/stt"
	"github.com/callsight/callqa_go_server/internal/repository"
	"github.com/callsight/callqa_go_server/internal/service"
)

// Transcriber 语音转写服务
type Transcriber interface {
	Submit(ctx context.Context, audioURL string, diarize bool) (string, error)
	WaitForResult(ctx context.Context, jobID string, maxWait time.Duration) (*stt.Result, error)
}

// Analyzer AI 质检分析服务
type Analyzer interface {
	Analyze(ctx context.Context, transcript string, weights llm.Weights) (*llm.AnalysisResult, error)
}

// SignedURLProvider 生成供上游拉取的音频临时链接
type SignedURLProvider interface {
	GetSignedURL(key string, expireSeconds ...int64) (string, error)
}

// ProgressPublisher 阶段进度推送
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, msg *pubsub.ProgressMessage) error
}

// StageCompleter 阶段终态回写，由流水线编排服务实现。
// worker 自己绝不直接改状态字段。
type StageCompleter interface {
	CompleteTranscription(recordingID int64, jobID, text string) error
	FailTranscription(recordingID int64, detail string) error
	CompleteAnalysis(recordingID int64, result *llm.AnalysisResult, criteria *model.Criteria, transcript string) error
	FailAnalysis(recordingID int64, detail string) error
}

// Processor 阶段任务处理器。一条消息对应一次已进入 processing
// 的阶段执行：调用外部服务，把结果交回编排层落终态。
type Processor struct {
	recordingRepo     *repository.RecordingRepository
	transcriptionRepo *repository.TranscriptionRepository
	criteriaRepo      *repository.CriteriaRepository
	completer         StageCompleter
	transcriber       Transcriber
	analyzer          Analyzer
	urls              SignedURLProvider
	publisher         ProgressPublisher
	cfg               *config.Config
}

func NewProcessor(
	recordingRepo *repository.RecordingRepository,
	transcriptionRepo *repository.TranscriptionRepository,
	criteriaRepo *repository.CriteriaRepository,
	completer StageCompleter,
	transcriber Transcriber,
	analyzer Analyzer,
	urls SignedURLProvider,
	publisher ProgressPublisher,
	cfg *config.Config,
) *Processor {
	return &Processor{
		recordingRepo:     recordingRepo,
		transcriptionRepo: transcriptionRepo,
		criteriaRepo:      criteriaRepo,
		completer:         completer,
		transcriber:       transcriber,
		analyzer:          analyzer,
		urls:              urls,
		publisher:         publisher,
		cfg:               cfg,
	}
}

// Process 处理一条阶段任务
func (p *Processor) Process(ctx context.Context, msg *queue.StageMessage) error {
	switch msg.Stage {
	case queue.StageTranscription:
		return p.processTranscription(ctx, msg)
	case queue.StageAnalysis:
		return p.processAnalysis(ctx, msg)
	default:
		return fmt.Errorf("unknown stage: %s", msg.Stage)
	}
}

func (p *Processor) processTranscription(ctx context.Context, msg *queue.StageMessage) error {
	publishProgress := func(step, status, errMsg string) {
		if p.publisher == nil {
			return
		}
		p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			UserID:      msg.UserID,
			RecordingID: msg.RecordingID,
			Stage:       queue.StageTranscription,
			Status:      status,
			Step:        step,
			Error:       errMsg,
		})
	}

	handleError := func(step string, err error) error {
		if failErr := p.completer.FailTranscription(msg.RecordingID, err.Error()); failErr != nil {
			log.Printf("recording %d: failed to mark transcription failed: %v", msg.RecordingID, failErr)
		}
		publishProgress(step, "failed", err.Error())
		return err
	}

	recording, err := p.recordingRepo.GetByID(msg.RecordingID)
	if err != nil {
		return handleError(pubsub.StepSubmitting, fmt.Errorf("failed to get recording: %w", err))
	}

	log.Printf("recording %d: submitting transcription (attempt %d)", msg.RecordingID, msg.Attempt)
	publishProgress(pubsub.StepSubmitting, "processing", "")

	audioURL, err := p.urls.GetSignedURL(recording.StorageKey)
	if err != nil {
		return handleError(pubsub.StepSubmitting, fmt.Errorf("failed to sign audio url: %w", err))
	}

	jobID, err := p.transcriber.Submit(ctx, audioURL, p.cfg.STT.Diarization)
	if err != nil {
		return handleError(pubsub.StepSubmitting, err)
	}

	log.Printf("recording %d: transcription job %s submitted", msg.RecordingID, jobID)
	publishProgress(pubsub.StepTranscribing, "processing", "")

	maxWait := time.Duration(p.cfg.STT.MaxWaitSeconds) * time.Second
	if maxWait <= 0 {
		maxWait = 10 * time.Minute
	}

	result, err := p.transcriber.WaitForResult(ctx, jobID, maxWait)
	if err != nil {
		return handleError(pubsub.StepTranscribing, err)
	}
	if result.Status == stt.StatusFailed {
		return handleError(pubsub.StepTranscribing, fmt.Errorf("transcription failed upstream: %s", result.Detail))
	}

	if err := p.completer.CompleteTranscription(msg.RecordingID, jobID, result.Text); err != nil {
		// 回写降级为失败（如空转写文本）：阶段已落 failed，
		// 进度也要如实上报，不能宣告完成
		if errors.Is(err, service.ErrResultRejected) {
			log.Printf("recording %d: transcription result rejected: %v", msg.RecordingID, err)
			publishProgress(pubsub.StepTranscribing, "failed", err.Error())
			return err
		}
		return handleError(pubsub.StepTranscribing, fmt.Errorf("failed to complete transcription: %w", err))
	}

	log.Printf("recording %d: transcription completed, %d chars", msg.RecordingID, len(result.Text))
	publishProgress(pubsub.StepDone, "completed", "")
	return nil
}

func (p *Processor) processAnalysis(ctx context.Context, msg *queue.StageMessage) error {
	publishProgress := func(step, status, errMsg string) {
		if p.publisher == nil {
			return
		}
		p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			UserID:      msg.UserID,
			RecordingID: msg.RecordingID,
			Stage:       queue.StageAnalysis,
			Status:      status,
			Step:        step,
			Error:       errMsg,
		})
	}

	handleError := func(step string, err error) error {
		if failErr := p.completer.FailAnalysis(msg.RecordingID, err.Error()); failErr != nil {
			log.Printf("recording %d: failed to mark analysis failed: %v", msg.RecordingID, failErr)
		}
		publishProgress(step, "failed", err.Error())
		return err
	}

	// 转写文本从持久化状态取，发起时的前置校验在这里再兜一次底
	transcription, err := p.transcriptionRepo.GetByRecordingID(msg.RecordingID)
	if err != nil {
		return handleError(pubsub.StepAnalyzing, fmt.Errorf("failed to get transcription: %w", err))
	}
	if transcription.Status != model.StageCompleted || transcription.Text == "" {
		return handleError(pubsub.StepAnalyzing, fmt.Errorf("transcription not completed for recording %d", msg.RecordingID))
	}

	weights := llm.Weights{CustomerService: 25, ProductKnowledge: 25, CommunicationSkills: 25, ComplianceAdherence: 25}
	var criteria *model.Criteria
	if msg.CriteriaID != nil {
		criteria, err = p.criteriaRepo.GetByID(*msg.CriteriaID)
		if err != nil {
			return handleError(pubsub.StepAnalyzing, fmt.Errorf("failed to get criteria %d: %w", *msg.CriteriaID, err))
		}
		weights.CustomerService, weights.ProductKnowledge, weights.CommunicationSkills, weights.ComplianceAdherence = criteria.Weights()
	}

	log.Printf("recording %d: analyzing transcript (attempt %d)", msg.RecordingID, msg.Attempt)
	publishProgress(pubsub.StepAnalyzing, "processing", "")

	result, err := p.analyzer.Analyze(ctx, transcription.Text, weights)
	if err != nil {
		// UpstreamError 和 MalformedAnalysisError 都落 failed，
		// 详情保留在 error_message 里供重试决策
		return handleError(pubsub.StepAnalyzing, err)
	}

	publishProgress(pubsub.StepScoring, "processing", "")

	if err := p.completer.CompleteAnalysis(msg.RecordingID, result, criteria, transcription.Text); err != nil {
		// 评分卡构建被拒：阶段已落 failed，进度如实上报
		if errors.Is(err, service.ErrResultRejected) {
			log.Printf("recording %d: analysis result rejected: %v", msg.RecordingID, err)
			publishProgress(pubsub.StepScoring, "failed", err.Error())
			return err
		}
		return handleError(pubsub.StepScoring, fmt.Errorf("failed to complete analysis: %w", err))
	}

	log.Printf("recording %d: analysis completed, overall=%.2f", msg.RecordingID, result.OverallScore)
	publishProgress(pubsub.StepDone, "completed", "")
	return nil
}
