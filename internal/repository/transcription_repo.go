package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/internal/model"
)

type TranscriptionRepository struct {
	db *gorm.DB
}

func NewTranscriptionRepository(db *gorm.DB) *TranscriptionRepository {
	return &TranscriptionRepository{db: db}
}

func (r *TranscriptionRepository) GetByRecordingID(recordingID int64) (*model.Transcription, error) {
	var t model.Transcription
	err := r.db.Where("recording_id = ?", recordingID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetOrCreate 懒创建：首次调用流水线时才建 pending 记录。
// recording_id 上的唯一索引兜底并发创建，撞索引后重新读取。
func (r *TranscriptionRepository) GetOrCreate(recordingID int64) (*model.Transcription, error) {
	t, err := r.GetByRecordingID(recordingID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	t = &model.Transcription{
		RecordingID: recordingID,
		Status:      model.StagePending,
	}
	if err := r.db.Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.GetByRecordingID(recordingID)
		}
		return nil, err
	}
	return t, nil
}

// TransitionStatus 原子条件状态更新：只有当前持久化状态在 from 集合内
// 时才更新为 to（单飞保证依赖这里的 compare-and-set，不是应用层锁）。
// 返回是否真正发生了转移。
func (r *TranscriptionRepository) TransitionStatus(recordingID int64, from []string, to string, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}

	result := r.db.Model(&model.Transcription{}).
		Where("recording_id = ? AND status IN ?", recordingID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// StatusByRecordingIDs 批量查询录音对应的转写状态（列表页用）
func (r *TranscriptionRepository) StatusByRecordingIDs(recordingIDs []int64) (map[int64]string, error) {
	if len(recordingIDs) == 0 {
		return map[int64]string{}, nil
	}

	var rows []model.Transcription
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

// FailStale 把卡在 processing 超过期限的转写标记为 failed（worker 崩溃兜底）
func (r *TranscriptionRepository) FailStale(before time.Time, detail string) (int64, error) {
	result := r.db.Model(&model.Transcription{}).
		Where("status = ? AND started_at < ?", model.StageProcessing, before).
		Updates(map[string]interface{}{
			"status":        model.StageFailed,
			"error_message": detail,
		})
	return result.RowsAffected, result.Error
}
