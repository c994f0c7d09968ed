package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/callsight/callqa_go_server/internal/model"
)

var fixtureSeq int64

func nextSeq() int64 {
	return atomic.AddInt64(&fixtureSeq, 1)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	seq := nextSeq()
	email := fmt.Sprintf("test_%d@example.com", seq)
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Username:          fmt.Sprintf("testuser_%d", seq),
		Email:             &email,
		PasswordHash:      &passwordHash,
		Role:              model.RoleUser,
		CompanyID:         1,
		SubscriptionLevel: "free",
		DailyQuota:        5,
		QuotaUsedToday:    0,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithRole 设置角色
func WithRole(role string) func(*model.User) {
	return func(u *model.User) {
		u.Role = role
	}
}

// WithCompany 设置公司
func WithCompany(companyID int64) func(*model.User) {
	return func(u *model.User) {
		u.CompanyID = companyID
	}
}

// WithQuota 设置每日配额
func WithQuota(daily, used int) func(*model.User) {
	return func(u *model.User) {
		u.DailyQuota = daily
		u.QuotaUsedToday = used
	}
}

// TestTeam 创建测试团队并加入成员
func TestTeam(t *testing.T, db *gorm.DB, companyID int64, memberIDs ...int64) *model.Team {
	t.Helper()

	team := &model.Team{
		CompanyID: companyID,
		Name:      fmt.Sprintf("team_%d", nextSeq()),
	}
	if err := db.Create(team).Error; err != nil {
		t.Fatalf("Failed to create test team: %v", err)
	}

	for _, userID := range memberIDs {
		member := &model.TeamMember{TeamID: team.ID, UserID: userID}
		if err := db.Create(member).Error; err != nil {
			t.Fatalf("Failed to add team member: %v", err)
		}
	}

	return team
}

// TestRecording 创建测试录音
func TestRecording(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Recording)) *model.Recording {
	t.Helper()

	seq := nextSeq()
	recording := &model.Recording{
		UserID:     userID,
		Title:      fmt.Sprintf("客服通话_%d", seq),
		StorageKey: fmt.Sprintf("recordings/1/%d.mp3", seq),
		FileSize:   1024,
	}

	for _, opt := range opts {
		opt(recording)
	}

	if err := db.Create(recording).Error; err != nil {
		t.Fatalf("Failed to create test recording: %v", err)
	}

	return recording
}

// WithTeam 把录音挂到团队下
func WithTeam(teamID int64) func(*model.Recording) {
	return func(r *model.Recording) {
		r.TeamID = &teamID
	}
}

// TestTranscription 创建指定状态的转写记录
func TestTranscription(t *testing.T, db *gorm.DB, recordingID int64, status, text string) *model.Transcription {
	t.Helper()

	transcription := &model.Transcription{
		RecordingID: recordingID,
		Status:      status,
		Text:        text,
	}
	if err := db.Create(transcription).Error; err != nil {
		t.Fatalf("Failed to create test transcription: %v", err)
	}

	return transcription
}

// TestAnalysis 创建指定状态的分析记录
func TestAnalysis(t *testing.T, db *gorm.DB, recordingID int64, status string, opts ...func(*model.Analysis)) *model.Analysis {
	t.Helper()

	analysis := &model.Analysis{
		RecordingID: recordingID,
		Status:      status,
	}

	for _, opt := range opts {
		opt(analysis)
	}

	if err := db.Create(analysis).Error; err != nil {
		t.Fatalf("Failed to create test analysis: %v", err)
	}

	return analysis
}

// WithScores 设置分析的各维度得分
func WithScores(overall, cs, pk, co, ca float64) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.OverallScore = overall
		a.CustomerService = cs
		a.ProductKnowledge = pk
		a.CommunicationSkills = co
		a.ComplianceAdherence = ca
	}
}

// TestCriteria 创建测试评分标准
func TestCriteria(t *testing.T, db *gorm.DB, companyID int64, opts ...func(*model.Criteria)) *model.Criteria {
	t.Helper()

	criteria := &model.Criteria{
		CompanyID:           companyID,
		Name:                fmt.Sprintf("标准_%d", nextSeq()),
		CustomerService:     25,
		ProductKnowledge:    25,
		CommunicationSkills: 25,
		ComplianceAdherence: 25,
	}

	for _, opt := range opts {
		opt(criteria)
	}

	if err := db.Create(criteria).Error; err != nil {
		t.Fatalf("Failed to create test criteria: %v", err)
	}

	return criteria
}

// WithWeights 设置标准的四项权重
func WithWeights(cs, pk, co, ca float64) func(*model.Criteria) {
	return func(c *model.Criteria) {
		c.CustomerService = cs
		c.ProductKnowledge = pk
		c.CommunicationSkills = co
		c.ComplianceAdherence = ca
	}
}

// WithPhrases 设置必说/违禁话术
func WithPhrases(required, prohibited []string) func(*model.Criteria) {
	return func(c *model.Criteria) {
		c.RequiredPhrases = required
		c.ProhibitedPhrases = prohibited
	}
}

// Principal 从用户构造操作主体
func Principal(u *model.User, teamIDs ...int64) *model.Principal {
	return &model.Principal{
		UserID:    u.ID,
		Role:      u.Role,
		CompanyID: u.CompanyID,
		TeamIDs:   teamIDs,
	}
}
