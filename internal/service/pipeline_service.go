package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/model/dto"
	"github.com/callsight/callqa_go_server/internal/pkg/email"
	"github.com/callsight/callqa_go_server/internal/pkg/llm"
	"github.com/callsight/callqa_go_server/internal/pkg/queue"
	"github.com/callsight/callqa_go_server/internal/repository"
)

var (
	ErrRecordingNotFound     = errors.New("录音不存在")
	ErrRecordingPermission   = errors.New("无权操作此录音")
	ErrStageInFlight         = errors.New("该阶段正在处理中")
	ErrTranscriptionNotReady = errors.New("转写尚未完成，无法发起分析")
	ErrAnalysisNotReady      = errors.New("分析尚未完成，无法分享报告")
	ErrCriteriaNotFound      = errors.New("评分标准不存在")
	ErrEnqueueFailed         = errors.New("任务入队失败")

	// ErrResultRejected 上游给出的"成功"结果未通过校验，
	// 阶段已按失败落库，调用方不应再宣告成功
	ErrResultRejected = errors.New("结果校验未通过，已标记为失败")
)

// StagePublisher 阶段任务入队
type StagePublisher interface {
	Push(ctx context.Context, msg *queue.StageMessage) error
}

// ReportSender 质检报告投递
type ReportSender interface {
	SendScoreReport(to string, data *email.ReportData) error
}

// PipelineService 录音处理流水线的编排者：持有两个阶段的状态机，
// 所有状态字段的写入都经由这里的条件转移完成。
type PipelineService struct {
	recordingRepo     *repository.RecordingRepository
	transcriptionRepo *repository.TranscriptionRepository
	analysisRepo      *repository.AnalysisRepository
	criteriaRepo      *repository.CriteriaRepository
	guard             *AccessGuard
	quotaService      *QuotaService
	builder           *ScoreCardBuilder
	publisher         StagePublisher
	reporter          ReportSender
}

func NewPipelineService(
	recordingRepo *repository.RecordingRepository,
	transcriptionRepo *repository.TranscriptionRepository,
	analysisRepo *repository.AnalysisRepository,
	criteriaRepo *repository.CriteriaRepository,
	guard *AccessGuard,
	quotaService *QuotaService,
	publisher StagePublisher,
	reporter ReportSender,
) *PipelineService {
	return &PipelineService{
		recordingRepo:     recordingRepo,
		transcriptionRepo: transcriptionRepo,
		analysisRepo:      analysisRepo,
		criteriaRepo:      criteriaRepo,
		guard:             guard,
		quotaService:      quotaService,
		builder:           NewScoreCardBuilder(),
		publisher:         publisher,
		reporter:          reporter,
	}
}

// RequestTranscription 发起（或重试）录音转写。
// completed 直接返回既有结果，不再触发上游调用；
// processing 返回冲突；pending/failed 经 CAS 进入 processing 后入队。
func (s *PipelineService) RequestTranscription(ctx context.Context, principal *model.Principal, recordingID int64) (*dto.TranscriptionDetail, error) {
	recording, err := s.authorizeRecording(principal, recordingID)
	if err != nil {
		return nil, err
	}

	t, err := s.transcriptionRepo.GetOrCreate(recordingID)
	if err != nil {
		return nil, err
	}

	switch t.Status {
	case model.StageCompleted:
		// 幂等：重复请求返回已存的文本，不二次调用上游
		return buildTranscriptionDetail(t), nil
	case model.StageProcessing:
		return nil, ErrStageInFlight
	}

	// pending/failed → processing。条件转移在存储层原子完成，
	// 并发请求只有一个会赢，输家拿到冲突。
	now := time.Now()
	ok, err := s.transcriptionRepo.TransitionStatus(recordingID,
		[]string{model.StagePending, model.StageFailed},
		model.StageProcessing,
		map[string]interface{}{
			"started_at":    now,
			"error_message": "",
			"attempts":      gorm.Expr("attempts + 1"),
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStageInFlight
	}

	msg := &queue.StageMessage{
		Stage:       queue.StageTranscription,
		RecordingID: recordingID,
		UserID:      recording.UserID,
		Attempt:     t.Attempts + 1,
	}
	if err := s.publisher.Push(ctx, msg); err != nil {
		// 入队失败不能把阶段卡在 processing
		s.transcriptionRepo.TransitionStatus(recordingID,
			[]string{model.StageProcessing}, model.StageFailed,
			map[string]interface{}{"error_message": ErrEnqueueFailed.Error()})
		return nil, ErrEnqueueFailed
	}

	t, err = s.transcriptionRepo.GetByRecordingID(recordingID)
	if err != nil {
		return nil, err
	}
	return buildTranscriptionDetail(t), nil
}

// RequestAnalysis 发起（或重试）AI 质检分析。
// 前置条件：转写已 completed 且文本非空，从持久化状态校验。
func (s *PipelineService) RequestAnalysis(ctx context.Context, principal *model.Principal, recordingID int64, criteriaID *int64) (*dto.AnalysisDetail, error) {
	recording, err := s.authorizeRecording(principal, recordingID)
	if err != nil {
		return nil, err
	}

	t, err := s.transcriptionRepo.GetByRecordingID(recordingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTranscriptionNotReady
		}
		return nil, err
	}
	if t.Status != model.StageCompleted || strings.TrimSpace(t.Text) == "" {
		return nil, ErrTranscriptionNotReady
	}

	if criteriaID != nil {
		criteria, err := s.criteriaRepo.GetByID(*criteriaID)
		if err != nil {
			return nil, ErrCriteriaNotFound
		}
		if criteria.CompanyID != principal.CompanyID {
			return nil, ErrCriteriaNotFound
		}
	}

	a, err := s.analysisRepo.GetOrCreate(recordingID)
	if err != nil {
		return nil, err
	}

	switch a.Status {
	case model.StageCompleted:
		return buildAnalysisDetail(a), nil
	case model.StageProcessing:
		return nil, ErrStageInFlight
	}

	hasQuota, err := s.quotaService.CheckQuota(principal.UserID)
	if err != nil {
		return nil, err
	}
	if !hasQuota {
		return nil, ErrQuotaExceeded
	}

	now := time.Now()
	ok, err := s.analysisRepo.TransitionStatus(recordingID,
		[]string{model.StagePending, model.StageFailed},
		model.StageProcessing,
		map[string]interface{}{
			"started_at":    now,
			"error_message": "",
			"criteria_id":   criteriaID,
			"attempts":      gorm.Expr("attempts + 1"),
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStageInFlight
	}

	// 每次新的分析尝试扣一次配额
	if err := s.quotaService.UseQuota(principal.UserID); err != nil {
		s.analysisRepo.TransitionStatus(recordingID,
			[]string{model.StageProcessing}, model.StageFailed,
			map[string]interface{}{"error_message": "配额扣减失败"})
		return nil, err
	}

	msg := &queue.StageMessage{
		Stage:       queue.StageAnalysis,
		RecordingID: recordingID,
		UserID:      recording.UserID,
		CriteriaID:  criteriaID,
		Attempt:     a.Attempts + 1,
	}
	if err := s.publisher.Push(ctx, msg); err != nil {
		s.quotaService.RefundQuota(principal.UserID)
		s.analysisRepo.TransitionStatus(recordingID,
			[]string{model.StageProcessing}, model.StageFailed,
			map[string]interface{}{"error_message": ErrEnqueueFailed.Error()})
		return nil, ErrEnqueueFailed
	}

	a, err = s.analysisRepo.GetByRecordingID(recordingID)
	if err != nil {
		return nil, err
	}
	return buildAnalysisDetail(a), nil
}

// ShareReport 把已完成的质检报告投递到指定邮箱。
// 分享时重新做访问判定（团队成员关系可能已变化）；
// 对外部系统有副作用，但绝不改动流水线状态。
func (s *PipelineService) ShareReport(ctx context.Context, principal *model.Principal, recordingID int64, destination string) error {
	recording, err := s.authorizeRecording(principal, recordingID)
	if err != nil {
		return err
	}

	a, err := s.analysisRepo.GetByRecordingID(recordingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnalysisNotReady
		}
		return err
	}
	if a.Status != model.StageCompleted {
		return ErrAnalysisNotReady
	}

	card, err := s.analysisRepo.GetScoreCard(recordingID)
	if err != nil {
		return err
	}

	data := &email.ReportData{
		RecordingTitle:      recording.Title,
		Overall:             card.Overall,
		CustomerService:     a.CustomerService,
		ProductKnowledge:    a.ProductKnowledge,
		CommunicationSkills: a.CommunicationSkills,
		ComplianceAdherence: a.ComplianceAdherence,
		Summary:             a.Summary,
		Strengths:           a.Strengths,
		Improvements:        a.Improvements,
	}
	for _, check := range card.RequiredPhrases {
		if !check.Found {
			data.RequiredMisses = append(data.RequiredMisses, check.Phrase)
		}
	}
	for _, check := range card.ProhibitedPhrases {
		if check.Found {
			data.ProhibitedHits = append(data.ProhibitedHits, check.Phrase)
		}
	}

	return s.reporter.SendScoreReport(destination, data)
}

// GetTranscription 查询转写详情
func (s *PipelineService) GetTranscription(principal *model.Principal, recordingID int64) (*dto.TranscriptionDetail, error) {
	if _, err := s.authorizeRecording(principal, recordingID); err != nil {
		return nil, err
	}

	t, err := s.transcriptionRepo.GetByRecordingID(recordingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordingNotFound
		}
		return nil, err
	}
	return buildTranscriptionDetail(t), nil
}

// GetAnalysis 查询分析详情
func (s *PipelineService) GetAnalysis(principal *model.Principal, recordingID int64) (*dto.AnalysisDetail, error) {
	if _, err := s.authorizeRecording(principal, recordingID); err != nil {
		return nil, err
	}

	a, err := s.analysisRepo.GetByRecordingID(recordingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordingNotFound
		}
		return nil, err
	}
	return buildAnalysisDetail(a), nil
}

// GetScoreCard 查询评分卡
func (s *PipelineService) GetScoreCard(principal *model.Principal, recordingID int64) (*dto.ScoreCardDetail, error) {
	if _, err := s.authorizeRecording(principal, recordingID); err != nil {
		return nil, err
	}

	card, err := s.analysisRepo.GetScoreCard(recordingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordingNotFound
		}
		return nil, err
	}

	return &dto.ScoreCardDetail{
		RecordingID:         card.RecordingID,
		CriteriaID:          card.CriteriaID,
		Overall:             card.Overall,
		CustomerService:     card.CustomerService,
		ProductKnowledge:    card.ProductKnowledge,
		CommunicationSkills: card.CommunicationSkills,
		ComplianceAdherence: card.ComplianceAdherence,
		RequiredPhrases:     card.RequiredPhrases,
		ProhibitedPhrases:   card.ProhibitedPhrases,
	}, nil
}

// CompleteTranscription worker 回写转写成功。条件于 processing，
// 文本为空时按失败落库并返回 ErrResultRejected。
func (s *PipelineService) CompleteTranscription(recordingID int64, jobID, text string) error {
	if strings.TrimSpace(text) == "" {
		if err := s.FailTranscription(recordingID, "上游返回了空转写文本"); err != nil {
			return err
		}
		return fmt.Errorf("%w: 上游返回了空转写文本", ErrResultRejected)
	}

	now := time.Now()
	ok, err := s.transcriptionRepo.TransitionStatus(recordingID,
		[]string{model.StageProcessing}, model.StageCompleted,
		map[string]interface{}{
			"text":          text,
			"job_id":        jobID,
			"error_message": "",
			"completed_at":  now,
		})
	if err != nil {
		return err
	}
	if !ok {
		return ErrStageInFlight
	}
	return nil
}

// FailTranscription worker 回写转写失败，保留可供重试决策的详情
func (s *PipelineService) FailTranscription(recordingID int64, detail string) error {
	now := time.Now()
	_, err := s.transcriptionRepo.TransitionStatus(recordingID,
		[]string{model.StageProcessing}, model.StageFailed,
		map[string]interface{}{
			"error_message": detail,
			"completed_at":  now,
		})
	return err
}

// CompleteAnalysis worker 回写分析成功：计算评分卡并与 completed
// 的分析在同一事务中落库。评分卡构建被拒时按失败落库并返回
// ErrResultRejected。
func (s *PipelineService) CompleteAnalysis(recordingID int64, result *llm.AnalysisResult, criteria *model.Criteria, transcript string) error {
	analysis := &model.Analysis{
		RecordingID:         recordingID,
		OverallScore:        result.OverallScore,
		CustomerService:     result.CustomerService,
		ProductKnowledge:    result.ProductKnowledge,
		CommunicationSkills: result.CommunicationSkills,
		ComplianceAdherence: result.ComplianceAdherence,
		Strengths:           result.Strengths,
		Improvements:        result.Improvements,
		Recommendations:     result.Recommendations,
		Summary:             result.Summary,
	}
	if criteria != nil {
		analysis.CriteriaID = &criteria.ID
	}
	for _, m := range result.KeyMoments {
		analysis.KeyMoments = append(analysis.KeyMoments, model.KeyMoment{
			Timestamp:   m.Timestamp,
			Description: m.Description,
		})
	}

	card, err := s.builder.Build(analysis, criteria, transcript)
	if err != nil {
		if failErr := s.FailAnalysis(recordingID, err.Error()); failErr != nil {
			return failErr
		}
		return fmt.Errorf("%w: %v", ErrResultRejected, err)
	}

	return s.analysisRepo.CompleteWithScoreCard(analysis, card)
}

// FailAnalysis worker 回写分析失败；不写评分卡
func (s *PipelineService) FailAnalysis(recordingID int64, detail string) error {
	now := time.Now()
	_, err := s.analysisRepo.TransitionStatus(recordingID,
		[]string{model.StageProcessing}, model.StageFailed,
		map[string]interface{}{
			"error_message": detail,
			"completed_at":  now,
		})
	return err
}

// authorizeRecording 加载录音并做访问判定
func (s *PipelineService) authorizeRecording(principal *model.Principal, recordingID int64) (*model.Recording, error) {
	recording, err := s.recordingRepo.GetByID(recordingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordingNotFound
		}
		return nil, err
	}

	if !s.guard.CanAccessRecording(principal, recording) {
		return nil, ErrRecordingPermission
	}
	return recording, nil
}

func buildTranscriptionDetail(t *model.Transcription) *dto.TranscriptionDetail {
	detail := &dto.TranscriptionDetail{
		RecordingID:  t.RecordingID,
		Status:       t.Status,
		Text:         t.Text,
		ErrorMessage: t.ErrorMessage,
		Attempts:     t.Attempts,
	}
	if t.StartedAt != nil {
		detail.StartedAt = t.StartedAt.Format(time.RFC3339)
	}
	if t.CompletedAt != nil {
		detail.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}
	return detail
}

func buildAnalysisDetail(a *model.Analysis) *dto.AnalysisDetail {
	detail := &dto.AnalysisDetail{
		RecordingID:         a.RecordingID,
		CriteriaID:          a.CriteriaID,
		Status:              a.Status,
		OverallScore:        a.OverallScore,
		CustomerService:     a.CustomerService,
		ProductKnowledge:    a.ProductKnowledge,
		CommunicationSkills: a.CommunicationSkills,
		ComplianceAdherence: a.ComplianceAdherence,
		Strengths:           a.Strengths,
		Improvements:        a.Improvements,
		Recommendations:     a.Recommendations,
		KeyMoments:          a.KeyMoments,
		Summary:             a.Summary,
		ErrorMessage:        a.ErrorMessage,
		Attempts:            a.Attempts,
	}
	if a.StartedAt != nil {
		detail.StartedAt = a.StartedAt.Format(time.RFC3339)
	}
	if a.CompletedAt != nil {
		detail.CompletedAt = a.CompletedAt.Format(time.RFC3339)
	}
	return detail
}
