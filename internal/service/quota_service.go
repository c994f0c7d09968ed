package service

import (
	"errors"
	"time"

	"github.com/callsight/callqa_go_server/config"
	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/model/dto"
	"github.com/callsight/callqa_go_server/internal/repository"
)

var (
	ErrQuotaExceeded = errors.New("今日分析配额已用完")
)

type QuotaService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
}

func NewQuotaService(userRepo *repository.UserRepository, cfg *config.Config) *QuotaService {
	return &QuotaService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// CheckQuota 检查配额
func (s *QuotaService) CheckQuota(userID int64) (bool, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return false, err
	}

	// 检查是否需要重置
	if user.QuotaResetAt != nil && time.Now().After(*user.QuotaResetAt) {
		if err := s.resetUserQuota(userID); err != nil {
			return false, err
		}
		user, _ = s.userRepo.GetByID(userID)
	}

	return user.QuotaUsedToday < s.effectiveDailyQuota(user), nil
}

// effectiveDailyQuota 订阅档位在配置里的额度优先生效，
// 调价后无需回填用户行；未配置的档位用用户行里的值。
func (s *QuotaService) effectiveDailyQuota(user *model.User) int {
	if s.cfg != nil {
		if level, ok := s.cfg.Subscription.Levels[user.SubscriptionLevel]; ok && level.DailyQuota > 0 {
			return level.DailyQuota
		}
	}
	return user.DailyQuota
}

// UseQuota 使用配额
func (s *QuotaService) UseQuota(userID int64) error {
	return s.userRepo.IncrementQuotaUsed(userID)
}

// RefundQuota 退还配额
func (s *QuotaService) RefundQuota(userID int64) error {
	return s.userRepo.DecrementQuotaUsed(userID)
}

func (s *QuotaService) resetUserQuota(userID int64) error {
	nextReset := time.Now().Add(24 * time.Hour).Truncate(24 * time.Hour)
	return s.userRepo.ResetQuota(userID, nextReset)
}

// ResetAllQuotas 重置所有用户配额
func (s *QuotaService) ResetAllQuotas() error {
	nextReset := time.Now().Add(24 * time.Hour).Truncate(24 * time.Hour)
	return s.userRepo.ResetAllQuotas(nextReset)
}

// GetQuotaInfo 获取用户配额信息
func (s *QuotaService) GetQuotaInfo(userID int64) (*dto.QuotaInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if user.QuotaResetAt != nil && time.Now().After(*user.QuotaResetAt) {
		if err := s.resetUserQuota(userID); err != nil {
			return nil, err
		}
		user, _ = s.userRepo.GetByID(userID)
	}

	dailyLimit := s.effectiveDailyQuota(user)
	dailyRemain := dailyLimit - user.QuotaUsedToday
	if dailyRemain < 0 {
		dailyRemain = 0
	}

	info := &dto.QuotaInfo{
		Tier:        user.SubscriptionLevel,
		DailyLimit:  dailyLimit,
		DailyUsed:   user.QuotaUsedToday,
		DailyRemain: dailyRemain,
	}

	if user.QuotaResetAt != nil {
		info.ResetAt = user.QuotaResetAt.Format(time.RFC3339)
	}

	return info, nil
}
