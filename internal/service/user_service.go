package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/Siva2k2k/ES-TM-sub003/internal/authz"
	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/response"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// UserService exposes the user directory scoped by the role hierarchy.
type UserService struct {
	repo   userRepository
	logger *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// List returns the actor plus every user whose role the actor manages.
func (s *UserService) List(ctx context.Context, actor *authz.Actor, filter models.UserFilter) ([]models.User, *response.Pagination, error) {
	if actor == nil {
		return nil, nil, authz.Denied(authz.ReasonAuthenticationNeeded)
	}
	filter.Roles = authz.ManagedRoles(actor.Role)
	filter.IncludeID = actor.ID

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &response.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user the actor is allowed to see.
func (s *UserService) Get(ctx context.Context, actor *authz.Actor, id string) (*models.User, error) {
	if actor == nil {
		return nil, authz.Denied(authz.ReasonAuthenticationNeeded)
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.ID != actor.ID && !authz.CanManage(actor.Role, user.Role) {
		// hide existence from actors outside the hierarchy
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return user, nil
}
