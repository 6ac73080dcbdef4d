package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
)

type userRepoFake struct {
	users      map[string]*models.User
	lastFilter models.UserFilter
}

func (f *userRepoFake) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	f.lastFilter = filter
	var out []models.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *userRepoFake) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func TestUserServiceListScopesByHierarchy(t *testing.T) {
	repo := &userRepoFake{users: map[string]*models.User{}}
	svc := NewUserService(repo, nil)

	_, pagination, err := svc.List(context.Background(), actorAs("mgr-1", models.RoleManager), models.UserFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, []models.UserRole{models.RoleLead, models.RoleEmployee}, repo.lastFilter.Roles)
	assert.Equal(t, "mgr-1", repo.lastFilter.IncludeID)
	assert.Equal(t, 20, pagination.PageSize)

	_, _, err = svc.List(context.Background(), actorAs("emp-1", models.RoleEmployee), models.UserFilter{})
	require.NoError(t, err)
	assert.Empty(t, repo.lastFilter.Roles)
}

func TestUserServiceGetHidesOutsideHierarchy(t *testing.T) {
	repo := &userRepoFake{users: map[string]*models.User{
		"mgmt-1": {ID: "mgmt-1", Role: models.RoleManagement},
		"emp-1":  {ID: "emp-1", Role: models.RoleEmployee},
	}}
	svc := NewUserService(repo, nil)

	_, err := svc.Get(context.Background(), actorAs("mgr-1", models.RoleManager), "mgmt-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	user, err := svc.Get(context.Background(), actorAs("mgr-1", models.RoleManager), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "emp-1", user.ID)

	self, err := svc.Get(context.Background(), actorAs("mgmt-1", models.RoleManagement), "mgmt-1")
	require.NoError(t, err)
	assert.Equal(t, "mgmt-1", self.ID)
}
