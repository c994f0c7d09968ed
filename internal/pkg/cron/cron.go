package cron

import (
	"log"
	"time"

	"github.com/callsight/callqa_go_server/internal/repository"
	"github.com/callsight/callqa_go_server/internal/service"
)

const staleDetail = "处理超时，已被系统标记为失败"

type Service struct {
	quotaService      *service.QuotaService
	transcriptionRepo *repository.TranscriptionRepository
	analysisRepo      *repository.AnalysisRepository
	staleAfter        time.Duration
	stopChan          chan struct{}
}

func NewService(
	quotaService *service.QuotaService,
	transcriptionRepo *repository.TranscriptionRepository,
	analysisRepo *repository.AnalysisRepository,
	staleAfter time.Duration,
) *Service {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &Service{
		quotaService:      quotaService,
		transcriptionRepo: transcriptionRepo,
		analysisRepo:      analysisRepo,
		staleAfter:        staleAfter,
		stopChan:          make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runDailyQuotaReset()
	go s.runStaleReaper()
	log.Println("Cron service started (quota reset + stale stage reaper)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runDailyQuotaReset 每日配额重置任务
func (s *Service) runDailyQuotaReset() {
	now := time.Now().UTC()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	timer := time.NewTimer(nextMidnight.Sub(now))

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.resetDailyQuotas()
			timer.Reset(24 * time.Hour)
		}
	}
}

func (s *Service) resetDailyQuotas() {
	log.Println("Starting daily quota reset...")
	if err := s.quotaService.ResetAllQuotas(); err != nil {
		log.Printf("Failed to reset daily quotas: %v", err)
		return
	}
	log.Println("Daily quota reset completed")
}

// runStaleReaper worker 崩溃兜底：每 5 分钟把卡在 processing
// 超过期限的阶段标成 failed，用户可以重新发起。
func (s *Service) runStaleReaper() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.reapStale()
		}
	}
}

func (s *Service) reapStale() {
	before := time.Now().Add(-s.staleAfter)

	t, err := s.transcriptionRepo.FailStale(before, staleDetail)
	if err != nil {
		log.Printf("Stale reaper: transcriptions failed: %v", err)
	}
	a, err := s.analysisRepo.FailStale(before, staleDetail)
	if err != nil {
		log.Printf("Stale reaper: analyses failed: %v", err)
	}

	if t > 0 || a > 0 {
		log.Printf("Stale reaper: marked %d transcriptions, %d analyses as failed", t, a)
	}
}
