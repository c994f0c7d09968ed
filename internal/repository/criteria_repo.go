package repository

import (
	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/internal/model"
)

type CriteriaRepository struct {
	db *gorm.DB
}

func NewCriteriaRepository(db *gorm.DB) *CriteriaRepository {
	return &CriteriaRepository{db: db}
}

func (r *CriteriaRepository) Create(criteria *model.Criteria) error {
	return r.db.Create(criteria).Error
}

func (r *CriteriaRepository) GetByID(id int64) (*model.Criteria, error) {
	var criteria model.Criteria
	err := r.db.Where("id = ?", id).First(&criteria).Error
	if err != nil {
		return nil, err
	}
	return &criteria, nil
}

func (r *CriteriaRepository) Update(criteria *model.Criteria) error {
	return r.db.Save(criteria).Error
}

func (r *CriteriaRepository) Delete(id int64) error {
	return r.db.Delete(&model.Criteria{}, id).Error
}

// ListByCompanyID 获取公司的评分标准列表
func (r *CriteriaRepository) ListByCompanyID(companyID int64, page, pageSize int) ([]*model.Criteria, int64, error) {
	var items []*model.Criteria
	var total int64

	query := r.db.Model(&model.Criteria{}).Where("company_id = ?", companyID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}
