package service

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/model/dto"
	"github.com/callsight/callqa_go_server/internal/repository"
)

var (
	ErrCriteriaPermission = errors.New("无权操作此评分标准")
)

type CriteriaService struct {
	criteriaRepo *repository.CriteriaRepository
}

func NewCriteriaService(criteriaRepo *repository.CriteriaRepository) *CriteriaService {
	return &CriteriaService{criteriaRepo: criteriaRepo}
}

// Create 创建评分标准。权重在保存时校验，流水线读到的标准永远合法。
func (s *CriteriaService) Create(principal *model.Principal, req *dto.SaveCriteriaRequest) (*dto.CriteriaDetail, error) {
	if err := ValidateWeights(req.CustomerService, req.ProductKnowledge, req.CommunicationSkills, req.ComplianceAdherence); err != nil {
		return nil, err
	}

	criteria := &model.Criteria{
		CompanyID:           principal.CompanyID,
		Name:                req.Name,
		CustomerService:     req.CustomerService,
		ProductKnowledge:    req.ProductKnowledge,
		CommunicationSkills: req.CommunicationSkills,
		ComplianceAdherence: req.ComplianceAdherence,
		RequiredPhrases:     req.RequiredPhrases,
		ProhibitedPhrases:   req.ProhibitedPhrases,
	}
	if err := s.criteriaRepo.Create(criteria); err != nil {
		return nil, err
	}
	return buildCriteriaDetail(criteria), nil
}

// Update 更新评分标准
func (s *CriteriaService) Update(principal *model.Principal, id int64, req *dto.SaveCriteriaRequest) (*dto.CriteriaDetail, error) {
	criteria, err := s.getOwned(principal, id)
	if err != nil {
		return nil, err
	}

	if err := ValidateWeights(req.CustomerService, req.ProductKnowledge, req.CommunicationSkills, req.ComplianceAdherence); err != nil {
		return nil, err
	}

	criteria.Name = req.Name
	criteria.CustomerService = req.CustomerService
	criteria.ProductKnowledge = req.ProductKnowledge
	criteria.CommunicationSkills = req.CommunicationSkills
	criteria.ComplianceAdherence = req.ComplianceAdherence
	criteria.RequiredPhrases = req.RequiredPhrases
	criteria.ProhibitedPhrases = req.ProhibitedPhrases

	if err := s.criteriaRepo.Update(criteria); err != nil {
		return nil, err
	}
	return buildCriteriaDetail(criteria), nil
}

// Get 获取评分标准详情
func (s *CriteriaService) Get(principal *model.Principal, id int64) (*dto.CriteriaDetail, error) {
	criteria, err := s.getOwned(principal, id)
	if err != nil {
		return nil, err
	}
	return buildCriteriaDetail(criteria), nil
}

// List 分页列出公司的评分标准
func (s *CriteriaService) List(principal *model.Principal, page, pageSize int) ([]*dto.CriteriaDetail, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := s.criteriaRepo.ListByCompanyID(principal.CompanyID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	details := make([]*dto.CriteriaDetail, 0, len(items))
	for _, c := range items {
		details = append(details, buildCriteriaDetail(c))
	}
	return details, total, nil
}

// Delete 删除评分标准。已有分析上的 criteria_id 保留不动。
func (s *CriteriaService) Delete(principal *model.Principal, id int64) error {
	if _, err := s.getOwned(principal, id); err != nil {
		return err
	}
	return s.criteriaRepo.Delete(id)
}

// getOwned 加载标准并校验归属公司
func (s *CriteriaService) getOwned(principal *model.Principal, id int64) (*model.Criteria, error) {
	criteria, err := s.criteriaRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCriteriaNotFound
		}
		return nil, err
	}
	if criteria.CompanyID != principal.CompanyID {
		return nil, ErrCriteriaNotFound
	}
	return criteria, nil
}

func buildCriteriaDetail(c *model.Criteria) *dto.CriteriaDetail {
	return &dto.CriteriaDetail{
		ID:                  c.ID,
		Name:                c.Name,
		CustomerService:     c.CustomerService,
		ProductKnowledge:    c.ProductKnowledge,
		CommunicationSkills: c.CommunicationSkills,
		ComplianceAdherence: c.ComplianceAdherence,
		RequiredPhrases:     c.RequiredPhrases,
		ProhibitedPhrases:   c.ProhibitedPhrases,
		CreatedAt:           c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           c.UpdatedAt.Format(time.RFC3339),
	}
}
