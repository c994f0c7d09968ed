package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callsight/callqa_go_server/internal/model"
	"github.com/callsight/callqa_go_server/internal/repository"
	"github.com/callsight/callqa_go_server/internal/testutil"
)

func TestAccessGuard_ResolvePrincipal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	guard := NewAccessGuard(userRepo)

	user := testutil.TestUser(t, db, testutil.WithRole(model.RoleManager), testutil.WithCompany(3))
	team := testutil.TestTeam(t, db, 3, user.ID)

	principal, err := guard.ResolvePrincipal(user.ID)
	require.NoError(t, err)

	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, model.RoleManager, principal.Role)
	assert.Equal(t, int64(3), principal.CompanyID)
	assert.Equal(t, []int64{team.ID}, principal.TeamIDs)

	_, err = guard.ResolvePrincipal(99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAccessGuard_CanAccessRecording(t *testing.T) {
	guard := NewAccessGuard(nil)

	teamID := int64(5)
	recording := &model.Recording{ID: 1, UserID: 10, TeamID: &teamID}

	t.Run("uploader can access", func(t *testing.T) {
		p := &model.Principal{UserID: 10, Role: model.RoleUser}
		assert.True(t, guard.CanAccessRecording(p, recording))
	})

	t.Run("team member can access", func(t *testing.T) {
		p := &model.Principal{UserID: 20, Role: model.RoleUser, TeamIDs: []int64{5}}
		assert.True(t, guard.CanAccessRecording(p, recording))
	})

	t.Run("admin can access anything", func(t *testing.T) {
		p := &model.Principal{UserID: 99, Role: model.RoleAdmin}
		assert.True(t, guard.CanAccessRecording(p, recording))
	})

	t.Run("outsider cannot access", func(t *testing.T) {
		p := &model.Principal{UserID: 20, Role: model.RoleUser, TeamIDs: []int64{6}}
		assert.False(t, guard.CanAccessRecording(p, recording))
	})

	t.Run("recording without team only visible to uploader", func(t *testing.T) {
		private := &model.Recording{ID: 2, UserID: 10}
		p := &model.Principal{UserID: 20, Role: model.RoleUser, TeamIDs: []int64{5}}
		assert.False(t, guard.CanAccessRecording(p, private))
	})

	t.Run("nil principal denied", func(t *testing.T) {
		assert.False(t, guard.CanAccessRecording(nil, recording))
	})
}

func TestAccessGuard_MembershipNotCached(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	guard := NewAccessGuard(userRepo)

	owner := testutil.TestUser(t, db)
	viewer := testutil.TestUser(t, db)
	team := testutil.TestTeam(t, db, 1, viewer.ID)
	recording := testutil.TestRecording(t, db, owner.ID, testutil.WithTeam(team.ID))

	principal, err := guard.ResolvePrincipal(viewer.ID)
	require.NoError(t, err)
	assert.True(t, guard.CanAccessRecording(principal, recording))

	// 成员被移出团队后，重新解析的主体不再有访问权
	require.NoError(t, userRepo.RemoveTeamMember(team.ID, viewer.ID))

	principal, err = guard.ResolvePrincipal(viewer.ID)
	require.NoError(t, err)
	assert.False(t, guard.CanAccessRecording(principal, recording))
}

func TestAccessGuard_CanManageTeam(t *testing.T) {
	guard := NewAccessGuard(nil)

	t.Run("admin manages any team", func(t *testing.T) {
		p := &model.Principal{Role: model.RoleAdmin}
		assert.True(t, guard.CanManageTeam(p, 1))
	})

	t.Run("manager manages own team only", func(t *testing.T) {
		p := &model.Principal{Role: model.RoleManager, TeamIDs: []int64{1}}
		assert.True(t, guard.CanManageTeam(p, 1))
		assert.False(t, guard.CanManageTeam(p, 2))
	})

	t.Run("regular user manages nothing", func(t *testing.T) {
		p := &model.Principal{Role: model.RoleUser, TeamIDs: []int64{1}}
		assert.False(t, guard.CanManageTeam(p, 1))
	})
}
