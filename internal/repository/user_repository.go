package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
)

const (
	userColumns         = `id, email, password_hash, full_name, role, active, last_login, created_at, updated_at`
	refreshTokenColumns = `id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent`
)

// UserRepository reads the user directory and owns refresh sessions and the
// audit trail.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail expects an already-normalised address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := getOne(ctx, r.db, &u, "find user by email", `SELECT `+userColumns+` FROM users WHERE email = $1 LIMIT 1`, email); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := getOne(ctx, r.db, &u, "find user by id", `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns one page of the users visible under filter together with the
// unpaged total. Roles is always applied; IncludeID widens it to one extra row.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var where whereClause
	roles := pq.Array(toStrings(filter.Roles))
	if filter.IncludeID != "" {
		where.add("(role = ANY(?) OR id = ?)", roles, filter.IncludeID)
	} else {
		where.add("role = ANY(?)", roles)
	}
	if filter.Active != nil {
		where.add("active = ?", *filter.Active)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		where.add("(LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?)", pattern, pattern)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize, 20, 100)
	from := "FROM users WHERE " + where.String()

	var users []models.User
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY full_name ASC, id ASC LIMIT %d OFFSET %d", userColumns, from, limit, offset)
	if err := r.db.SelectContext(ctx, &users, listQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := getOne(ctx, r.db, &total, "count users", "SELECT COUNT(*) "+from, where.args...); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := execCount(ctx, r.db, "update last login", `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, at)
	return err
}

// CreateRefreshToken stores a new session row, assigning an id if missing.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	query := `INSERT INTO refresh_tokens (` + refreshTokenColumns + `) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := getOne(ctx, r.db, &rt, "find refresh token", `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token = $1 LIMIT 1`, token); err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, at time.Time) error {
	_, err := execCount(ctx, r.db, "revoke refresh token", `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`, id, at)
	return err
}

// RevokeUserRefreshTokens ends every live session of a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string, at time.Time) error {
	_, err := execCount(ctx, r.db, "revoke user refresh tokens", `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`, userID, at)
	return err
}

func (r *UserRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
