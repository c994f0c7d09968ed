package service

import (
	"errors"

	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/repository"
)

var (
	ErrUserNotFound = errors.New("用户不存在")
)

// AccessGuard 判定主体能否操作指定录音/团队。
// 每次调用都按当前持久化的团队成员关系判定，不做缓存。
type AccessGuard struct {
	userRepo *repository.UserRepository
}

func NewAccessGuard(userRepo *repository.UserRepository) *AccessGuard {
	return &AccessGuard{userRepo: userRepo}
}

// ResolvePrincipal 根据用户 ID 构造操作主体（角色 + 公司 + 团队成员关系）
func (g *AccessGuard) ResolvePrincipal(userID int64) (*model.Principal, error) {
	user, err := g.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	teamIDs, err := g.userRepo.ListTeamIDs(userID)
	if err != nil {
		return nil, err
	}

	return &model.Principal{
		UserID:    user.ID,
		Role:      user.Role,
		CompanyID: user.CompanyID,
		TeamIDs:   teamIDs,
	}, nil
}

// CanAccessRecording 管理员可访问任何录音；其他角色需要是上传者，
// 或录音关联了团队且主体是该团队成员。
func (g *AccessGuard) CanAccessRecording(p *model.Principal, recording *model.Recording) bool {
	if p == nil || recording == nil {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	if recording.UserID == p.UserID {
		return true
	}
	if recording.TeamID != nil && p.InTeam(*recording.TeamID) {
		return true
	}
	return false
}

// CanManageTeam 管理员可管理任何团队；主管需要是该团队成员
func (g *AccessGuard) CanManageTeam(p *model.Principal, teamID int64) bool {
	if p == nil {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	return p.Role == model.RoleManager && p.InTeam(teamID)
}
