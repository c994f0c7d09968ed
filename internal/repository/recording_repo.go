package repository

import (
	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/internal/model"
)

type RecordingRepository struct {
	db *gorm.DB
}

func NewRecordingRepository(db *gorm.DB) *RecordingRepository {
	return &RecordingRepository{db: db}
}

func (r *RecordingRepository) Create(recording *model.Recording) error {
	return r.db.Create(recording).Error
}

func (r *RecordingRepository) GetByID(id int64) (*model.Recording, error) {
	var recording model.Recording
	err := r.db.Where("id = ?", id).First(&recording).Error
	if err != nil {
		return nil, err
	}
	return &recording, nil
}

func (r *RecordingRepository) Update(recording *model.Recording) error {
	return r.db.Save(recording).Error
}

func (r *RecordingRepository) Delete(id int64) error {
	return r.db.Delete(&model.Recording{}, id).Error
}

// ListVisible 获取主体可见的录音列表：自己上传的，或所属团队的。
// 管理员传 admin=true 看到公司全部。
func (r *RecordingRepository) ListVisible(userID, companyID int64, teamIDs []int64, admin bool, page, pageSize int, search string) ([]*model.Recording, int64, error) {
	var recordings []*model.Recording
	var total int64

	query := r.db.Model(&model.Recording{})
	if admin {
		query = query.Joins("JOIN users ON users.id = recordings.user_id").
			Where("users.company_id = ?", companyID)
	} else if len(teamIDs) > 0 {
		query = query.Where("recordings.user_id = ? OR recordings.team_id IN ?", userID, teamIDs)
	} else {
		query = query.Where("recordings.user_id = ?", userID)
	}

	if search != "" {
		query = query.Where("recordings.title LIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("recordings.created_at DESC").Offset(offset).Limit(pageSize).Find(&recordings).Error; err != nil {
		return nil, 0, err
	}

	return recordings, total, nil
}
