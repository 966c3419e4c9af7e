package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/database"
)

const userColumns = "id, email, full_name, role, is_active, created_at, updated_at"

// UserRepository provides database access for user management.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByEmail returns a user by case-insensitive email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) LIMIT 1`
	var user models.User
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	listBuilder := applyUserFilter(psql.Select(userColumns).From("users"), filter)
	countBuilder := applyUserFilter(psql.Select("COUNT(*)").From("users"), filter)

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":      true,
		"created_at": true,
		"updated_at": true,
		"full_name":  true,
		"role":       true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)

	listQuery, args, err := listBuilder.
		OrderBy(sortBy + " " + sortOrder).
		Limit(uint64(pageSize)).Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list users: %w", err)
	}

	q := database.QuerierFromCtx(ctx, r.db)
	var users []models.User
	if err := q.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count users: %w", err)
	}
	var total int
	if err := q.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

func applyUserFilter(b sq.SelectBuilder, filter models.UserFilter) sq.SelectBuilder {
	if filter.Role != nil {
		b = b.Where(sq.Eq{"role": *filter.Role})
	}
	if filter.Active != nil {
		b = b.Where(sq.Eq{"is_active": *filter.Active})
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		b = b.Where(sq.Or{sq.Like{"lower(email)": pattern}, sq.Like{"lower(full_name)": pattern}})
	}
	return b
}

// Create inserts a new user. It returns sql.ErrNoRows when a row with the same id already exists.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, full_name, role, is_active, created_at, updated_at)
	VALUES (:id, :email, :full_name, :role, :is_active, :created_at, :updated_at)
	ON CONFLICT (id) DO NOTHING`
	res, err := database.QuerierFromCtx(ctx, r.db).NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("create user: %w", MapPQError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check user insert rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateRole changes the role of a non-DEAN user and returns the updated row.
// sql.ErrNoRows means the user is missing or is the DEAN.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole) (*models.User, error) {
	query := `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1 AND role <> 'DEAN' RETURNING ` + userColumns
	var user models.User
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &user, query, id, role, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update user role: %w", err)
	}
	return &user, nil
}

// SetActive updates the activation flag of a non-DEAN user.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	query := `UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1 AND role <> 'DEAN' RETURNING ` + userColumns
	var user models.User
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &user, query, id, active, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update user active: %w", err)
	}
	return &user, nil
}

// CountByRole returns how many users hold role.
func (r *UserRepository) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE role = $1`
	var total int
	if err := database.QuerierFromCtx(ctx, r.db).GetContext(ctx, &total, query, role); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return total, nil
}
