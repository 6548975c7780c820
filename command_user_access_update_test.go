package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/placesapp/go-auth"
)

func rolePtr(r auth.Role) *auth.Role { return &r }
func rankPtr(r auth.Rank) *auth.Rank { return &r }

func TestUserAccessUpdateAdminPromotesUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.seedUser(t, "target@places.app", testPassword, auth.RoleUser, auth.RankGuest)
	admin := &auth.AuthContext{UserID: "admin-1", Role: auth.RoleAdmin, Rank: auth.RankMember}

	updated, err := f.access.Execute(ctx, admin, auth.UpdateUserAccessMessage{
		UserID: target.ID,
		Role:   rolePtr(auth.RoleAdmin),
		Rank:   rankPtr(auth.RankMember),
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, updated.Role)
	assert.Equal(t, auth.RankMember, updated.Rank)

	stored := f.store.user(t, target.ID)
	assert.Equal(t, auth.RoleAdmin, stored.Role)
	assert.Equal(t, auth.RankMember, stored.Rank)
	assert.Contains(t, f.sink.Types(), auth.ActivityEventUserAccessChanged)
}

func TestUserAccessUpdateRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		actor    func(target *auth.User) *auth.AuthContext
		msg      func(target *auth.User) auth.UpdateUserAccessMessage
		textCode string
		status   int
	}{
		{
			name: "user promoting another user",
			actor: func(*auth.User) *auth.AuthContext {
				return &auth.AuthContext{UserID: "someone-else", Role: auth.RoleUser, Rank: auth.RankGuest}
			},
			msg: func(target *auth.User) auth.UpdateUserAccessMessage {
				return auth.UpdateUserAccessMessage{UserID: target.ID, Role: rolePtr(auth.RoleAdmin)}
			},
			textCode: auth.TextCodeForbidden,
			status:   403,
		},
		{
			name: "user promoting itself",
			actor: func(target *auth.User) *auth.AuthContext {
				return &auth.AuthContext{UserID: target.ID, Role: auth.RoleUser, Rank: auth.RankGuest}
			},
			msg: func(target *auth.User) auth.UpdateUserAccessMessage {
				return auth.UpdateUserAccessMessage{UserID: target.ID, Role: rolePtr(auth.RoleAdmin)}
			},
			textCode: auth.TextCodeRoleEscalation,
			status:   403,
		},
		{
			name: "guest granting itself member rank",
			actor: func(target *auth.User) *auth.AuthContext {
				return &auth.AuthContext{UserID: target.ID, Role: auth.RoleUser, Rank: auth.RankGuest}
			},
			msg: func(target *auth.User) auth.UpdateUserAccessMessage {
				return auth.UpdateUserAccessMessage{UserID: target.ID, Rank: rankPtr(auth.RankMember)}
			},
			textCode: auth.TextCodeRoleEscalation,
			status:   403,
		},
		{
			name:  "anonymous actor",
			actor: func(*auth.User) *auth.AuthContext { return nil },
			msg: func(target *auth.User) auth.UpdateUserAccessMessage {
				return auth.UpdateUserAccessMessage{UserID: target.ID, Role: rolePtr(auth.RoleUser)}
			},
			textCode: auth.TextCodeUnauthenticated,
			status:   401,
		},
		{
			name: "unknown role",
			actor: func(*auth.User) *auth.AuthContext {
				return &auth.AuthContext{UserID: "admin-1", Role: auth.RoleAdmin, Rank: auth.RankMember}
			},
			msg: func(target *auth.User) auth.UpdateUserAccessMessage {
				return auth.UpdateUserAccessMessage{UserID: target.ID, Role: rolePtr("superuser")}
			},
			status: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			target := f.seedUser(t, "target@places.app", testPassword, auth.RoleUser, auth.RankGuest)

			_, err := f.access.Execute(ctx, tt.actor(target), tt.msg(target))
			require.Error(t, err)
			if tt.textCode != "" {
				assert.Equal(t, tt.textCode, auth.TextCode(err))
			}
			assert.Equal(t, tt.status, auth.StatusCode(err))

			stored := f.store.user(t, target.ID)
			assert.Equal(t, auth.RoleUser, stored.Role)
			assert.Equal(t, auth.RankGuest, stored.Rank)
			assert.Zero(t, f.store.updates())
		})
	}
}

func TestUserAccessUpdateMemberMayKeepOwnRank(t *testing.T) {
	f := newFixture(t)
	target := f.seedUser(t, "member@places.app", testPassword, auth.RoleUser, auth.RankMember)
	self := &auth.AuthContext{UserID: target.ID, Role: auth.RoleUser, Rank: auth.RankMember}

	updated, err := f.access.Execute(context.Background(), self, auth.UpdateUserAccessMessage{
		UserID: target.ID,
		Rank:   rankPtr(auth.RankGuest),
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RankGuest, updated.Rank)
}

func TestUserAccessUpdateUnknownTarget(t *testing.T) {
	f := newFixture(t)
	admin := &auth.AuthContext{UserID: "admin-1", Role: auth.RoleAdmin, Rank: auth.RankMember}

	_, err := f.access.Execute(context.Background(), admin, auth.UpdateUserAccessMessage{
		UserID: "ghost",
		Role:   rolePtr(auth.RoleUser),
	})
	assert.Equal(t, auth.TextCodeUserNotFound, auth.TextCode(err))
}

func TestCheckEscalation(t *testing.T) {
	user := &auth.AuthContext{UserID: "u", Role: auth.RoleUser, Rank: auth.RankGuest}
	admin := &auth.AuthContext{UserID: "a", Role: auth.RoleAdmin, Rank: auth.RankGuest}

	tests := []struct {
		name    string
		actor   *auth.AuthContext
		role    *auth.Role
		rank    *auth.Rank
		wantErr bool
	}{
		{"nothing requested", user, nil, nil, false},
		{"user keeps user role", user, rolePtr(auth.RoleUser), nil, false},
		{"user asks for admin", user, rolePtr(auth.RoleAdmin), nil, true},
		{"guest asks for member", user, nil, rankPtr(auth.RankMember), true},
		{"admin grants admin", admin, rolePtr(auth.RoleAdmin), nil, false},
		{"guest admin cannot grant member", admin, nil, rankPtr(auth.RankMember), true},
		{"invalid role", admin, rolePtr("root"), nil, true},
		{"nil actor", nil, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.CheckEscalation(tt.actor, tt.role, tt.rank)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
