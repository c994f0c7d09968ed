package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/config"
	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/repository"
	"github.com/callsight/callqa_go_server/internal/service"
	"github.com/callsight/callqa_go_server/internal/testutil"
)

func setupCronService(t *testing.T) (*Service, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	userRepo := repository.NewUserRepository(db)
	quotaService := service.NewQuotaService(userRepo, &config.Config{})
	cronService := NewService(quotaService,
		repository.NewTranscriptionRepository(db),
		repository.NewAnalysisRepository(db),
		30*time.Minute)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return cronService, db, cleanup
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(nil, nil, nil, 0)
	assert.NotNil(t, svc)
	assert.Equal(t, 30*time.Minute, svc.staleAfter)
	assert.NotNil(t, svc.stopChan)
}

func TestService_StartAndStop(t *testing.T) {
	svc, _, cleanup := setupCronService(t)
	defer cleanup()

	svc.Start()
	time.Sleep(10 * time.Millisecond)
	svc.Stop()
	time.Sleep(10 * time.Millisecond)
}

func TestService_ResetDailyQuotas(t *testing.T) {
	svc, db, cleanup := setupCronService(t)
	defer cleanup()

	u1 := testutil.TestUser(t, db, testutil.WithQuota(5, 5))
	u2 := testutil.TestUser(t, db, testutil.WithQuota(5, 3))

	svc.resetDailyQuotas()

	var users []model.User
	require.NoError(t, db.Where("id IN ?", []int64{u1.ID, u2.ID}).Find(&users).Error)
	for _, u := range users {
		assert.Equal(t, 0, u.QuotaUsedToday, "User %s should have quota reset", u.Username)
		require.NotNil(t, u.QuotaResetAt)
		assert.True(t, u.QuotaResetAt.After(time.Now()))
	}
}

func TestService_ReapStale(t *testing.T) {
	svc, db, cleanup := setupCronService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	stuck := testutil.TestRecording(t, db, user.ID)
	recent := testutil.TestRecording(t, db, user.ID)

	old := time.Now().Add(-time.Hour)
	stuckTr := testutil.TestTranscription(t, db, stuck.ID, model.StageProcessing, "")
	require.NoError(t, db.Model(stuckTr).Update("started_at", old).Error)
	stuckA := testutil.TestAnalysis(t, db, stuck.ID, model.StageProcessing)
	require.NoError(t, db.Model(stuckA).Update("started_at", old).Error)

	recentTr := testutil.TestTranscription(t, db, recent.ID, model.StageProcessing, "")
	require.NoError(t, db.Model(recentTr).Update("started_at", time.Now()).Error)

	svc.reapStale()

	var tr model.Transcription
	require.NoError(t, db.Where("recording_id = ?", stuck.ID).First(&tr).Error)
	assert.Equal(t, model.StageFailed, tr.Status)
	assert.Equal(t, staleDetail, tr.ErrorMessage)

	var a model.Analysis
	require.NoError(t, db.Where("recording_id = ?", stuck.ID).First(&a).Error)
	assert.Equal(t, model.StageFailed, a.Status)

	var recentCheck model.Transcription
	require.NoError(t, db.Where("recording_id = ?", recent.ID).First(&recentCheck).Error)
	assert.Equal(t, model.StageProcessing, recentCheck.Status)
}
