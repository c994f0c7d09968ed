package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callsight/callqa_go_server/config"
	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/repository"
	"github.com/callsight/callqa_go_server/internal/testutil"
)

func TestQuotaService_CheckQuota(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	quotaService := NewQuotaService(userRepo, &config.Config{})

	t.Run("quota available", func(t *testing.T) {
		user := testutil.TestUser(t, db, testutil.WithQuota(5, 2))

		ok, err := quotaService.CheckQuota(user.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("quota exhausted", func(t *testing.T) {
		user := testutil.TestUser(t, db, testutil.WithQuota(5, 5))

		ok, err := quotaService.CheckQuota(user.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("lazy reset when window passed", func(t *testing.T) {
		user := testutil.TestUser(t, db, testutil.WithQuota(5, 5))

		// 重置时间已过，检查时应先归零再判定
		past := time.Now().Add(-time.Hour)
		require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).
			Update("quota_reset_at", past).Error)

		ok, err := quotaService.CheckQuota(user.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		fresh, err := userRepo.GetByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, fresh.QuotaUsedToday)
		assert.True(t, fresh.QuotaResetAt.After(time.Now()))
	})
}

func TestQuotaService_ConfiguredLevelOverridesUserRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	cfg := &config.Config{
		Subscription: config.SubscriptionConfig{
			Levels: map[string]config.SubscriptionLevel{
				"free": {DailyQuota: 2},
			},
		},
	}
	quotaService := NewQuotaService(userRepo, cfg)

	// 用户行里还是注册时的 10，配置里的档位额度 2 优先生效
	user := testutil.TestUser(t, db, testutil.WithQuota(10, 2))

	ok, err := quotaService.CheckQuota(user.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := quotaService.GetQuotaInfo(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, info.DailyLimit)
	assert.Equal(t, 0, info.DailyRemain)
}

func TestQuotaService_UseAndRefund(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	quotaService := NewQuotaService(userRepo, &config.Config{})

	user := testutil.TestUser(t, db, testutil.WithQuota(5, 0))

	require.NoError(t, quotaService.UseQuota(user.ID))
	require.NoError(t, quotaService.UseQuota(user.ID))

	fresh, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.QuotaUsedToday)

	require.NoError(t, quotaService.RefundQuota(user.ID))

	fresh, err = userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.QuotaUsedToday)

	// 退还不会把用量减到负数
	require.NoError(t, quotaService.RefundQuota(user.ID))
	require.NoError(t, quotaService.RefundQuota(user.ID))

	fresh, err = userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.QuotaUsedToday)
}

func TestQuotaService_GetQuotaInfo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	quotaService := NewQuotaService(userRepo, &config.Config{})

	user := testutil.TestUser(t, db, testutil.WithQuota(10, 3))
	resetAt := time.Now().Add(6 * time.Hour).Truncate(time.Second)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).
		Update("quota_reset_at", resetAt).Error)

	info, err := quotaService.GetQuotaInfo(user.ID)
	require.NoError(t, err)

	assert.Equal(t, "free", info.Tier)
	assert.Equal(t, 10, info.DailyLimit)
	assert.Equal(t, 3, info.DailyUsed)
	assert.Equal(t, 7, info.DailyRemain)
	assert.NotEmpty(t, info.ResetAt)
}
