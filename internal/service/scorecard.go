package service

import (
	"errors"
	"math"
	"strings"

	"github.com/callsight/callqa_go_server/internal/model"
)

// 权重之和允许的浮点误差
const weightEpsilon = 0.01

var (
	ErrInvalidWeights = errors.New("评分权重之和必须为 100")
)

// ScoreCardBuilder 由已完成的分析、评分标准和转写文本派生评分卡。
// 纯函数：相同输入必然产出相同评分卡，除最终写库外无副作用。
type ScoreCardBuilder struct{}

func NewScoreCardBuilder() *ScoreCardBuilder {
	return &ScoreCardBuilder{}
}

// Build 计算加权评分卡。criteria 为 nil 时四项均分 25。
// 权重之和不为 100±0.01 时直接返回错误，不做归一化。
func (b *ScoreCardBuilder) Build(analysis *model.Analysis, criteria *model.Criteria, transcript string) (*model.ScoreCard, error) {
	wCS, wPK, wCO, wCA := 25.0, 25.0, 25.0, 25.0
	var criteriaID *int64
	var required, prohibited []string

	if criteria != nil {
		wCS, wPK, wCO, wCA = criteria.Weights()
		criteriaID = &criteria.ID
		required = criteria.RequiredPhrases
		prohibited = criteria.ProhibitedPhrases
	}

	if math.Abs(wCS+wPK+wCO+wCA-100) > weightEpsilon {
		return nil, ErrInvalidWeights
	}

	contribCS := analysis.CustomerService * wCS / 100
	contribPK := analysis.ProductKnowledge * wPK / 100
	contribCO := analysis.CommunicationSkills * wCO / 100
	contribCA := analysis.ComplianceAdherence * wCA / 100

	lowerTranscript := strings.ToLower(transcript)

	checkPhrases := func(phrases []string) model.PhraseCheckList {
		if len(phrases) == 0 {
			return nil
		}
		checks := make(model.PhraseCheckList, 0, len(phrases))
		for _, phrase := range phrases {
			checks = append(checks, model.PhraseCheck{
				Phrase: phrase,
				Found:  strings.Contains(lowerTranscript, strings.ToLower(phrase)),
			})
		}
		return checks
	}

	return &model.ScoreCard{
		RecordingID:         analysis.RecordingID,
		CriteriaID:          criteriaID,
		Overall:             contribCS + contribPK + contribCO + contribCA,
		CustomerService:     contribCS,
		ProductKnowledge:    contribPK,
		CommunicationSkills: contribCO,
		ComplianceAdherence: contribCA,
		RequiredPhrases:     checkPhrases(required),
		ProhibitedPhrases:   checkPhrases(prohibited),
	}, nil
}

// ValidateWeights 评分标准保存时的权重校验
func ValidateWeights(customerService, productKnowledge, communicationSkills, complianceAdherence float64) error {
	if math.Abs(customerService+productKnowledge+communicationSkills+complianceAdherence-100) > weightEpsilon {
		return ErrInvalidWeights
	}
	return nil
}
