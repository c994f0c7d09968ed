package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/internal/model"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) GetByRecordingID(recordingID int64) (*model.Analysis, error) {
	var a model.Analysis
	err := r.db.Where("recording_id = ?", recordingID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetOrCreate 懒创建 pending 分析记录，并发撞唯一索引后重新读取
func (r *AnalysisRepository) GetOrCreate(recordingID int64) (*model.Analysis, error) {
	a, err := r.GetByRecordingID(recordingID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	a = &model.Analysis{
		RecordingID: recordingID,
		Status:      model.StagePending,
	}
	if err := r.db.Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.GetByRecordingID(recordingID)
		}
		return nil, err
	}
	return a, nil
}

// TransitionStatus 原子条件状态更新（compare-and-set），同转写仓库
func (r *AnalysisRepository) TransitionStatus(recordingID int64, from []string, to string, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}

	result := r.db.Model(&model.Analysis{}).
		Where("recording_id = ? AND status IN ?", recordingID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CompleteWithScoreCard 在同一事务里把分析落 completed 并写入评分卡。
// 条件更新保证只有 processing 的记录会被完成；评分卡绝不先于
// completed 的分析出现。
func (r *AnalysisRepository) CompleteWithScoreCard(analysis *model.Analysis, card *model.ScoreCard) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		result := tx.Model(&model.Analysis{}).
			Where("recording_id = ? AND status = ?", analysis.RecordingID, model.StageProcessing).
			Updates(map[string]interface{}{
				"status":               model.StageCompleted,
				"criteria_id":          analysis.CriteriaID,
				"overall_score":        analysis.OverallScore,
				"customer_service":     analysis.CustomerService,
				"product_knowledge":    analysis.ProductKnowledge,
				"communication_skills": analysis.CommunicationSkills,
				"compliance_adherence": analysis.ComplianceAdherence,
				"strengths":            analysis.Strengths,
				"improvements":         analysis.Improvements,
				"recommendations":      analysis.Recommendations,
				"key_moments":          analysis.KeyMoments,
				"summary":              analysis.Summary,
				"error_message":        "",
				"completed_at":         now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return gorm.ErrRecordNotFound
		}

		// 评分卡随 completed 的分析重算，replace 旧记录
		if err := tx.Where("recording_id = ?", card.RecordingID).
			Delete(&model.ScoreCard{}).Error; err != nil {
			return err
		}
		return tx.Create(card).Error
	})
}

// GetScoreCard 获取评分卡
func (r *AnalysisRepository) GetScoreCard(recordingID int64) (*model.ScoreCard, error) {
	var card model.ScoreCard
	err := r.db.Where("recording_id = ?", recordingID).First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// StatusByRecordingIDs 批量查询录音对应的分析状态（列表页用）
func (r *AnalysisRepository) StatusByRecordingIDs(recordingIDs []int64) (map[int64]string, error) {
	if len(recordingIDs) == 0 {
		return map[int64]string{}, nil
	}

	var rows []model.Analysis
	err := r.db.Select("recording_id", "status").
		Where("recording_id IN ?", recordingIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	statuses := make(map[int64]string, len(rows))
	for _, row := range rows {
		statuses[row.RecordingID] = row.Status
	}
	return statuses, nil
}

// FailStale 把卡在 processing 超过期限的分析标记为 failed
func (r *AnalysisRepository) FailStale(before time.Time, detail string) (int64, error) {
	result := r.db.Model(&model.Analysis{}).
		Where("status = ? AND started_at < ?", model.StageProcessing, before).
		Updates(map[string]interface{}{
			"status":        model.StageFailed,
			"error_message": detail,
		})
	return result.RowsAffected, result.Error
}
