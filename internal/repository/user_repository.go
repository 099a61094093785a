package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyhub/pkg/models"
)

// UserRepository handles user account persistence
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	// GetByLogin matches loginID against email first, then name
	GetByLogin(ctx context.Context, loginID string) (*models.User, error)
	ExistsByEmailOrName(ctx context.Context, email, name string) (bool, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	// List returns every user, newest first
	List(ctx context.Context) ([]*models.User, error)
}

const userColumns = `id, name, email, password_hash, role, avatar, cover, description, is_verified, joined_at`

type pgxUserRepository struct {
	pool *pgxpool.Pool
}

// NewPGXUserRepository creates a PostgreSQL user repository on a pgx pool
func NewPGXUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgxUserRepository{pool: pool}
}

func (r *pgxUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Avatar,
		user.Cover,
		user.Description,
		user.IsVerified,
		user.JoinedAt,
	)
	if err != nil {
		return r.mapDBError(err, "create_user")
	}
	return nil
}

func (r *pgxUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *pgxUserRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE name = $1`, name)
}

func (r *pgxUserRepository) GetByLogin(ctx context.Context, loginID string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE email = $1 OR name = $1
		ORDER BY CASE WHEN email = $1 THEN 0 ELSE 1 END
		LIMIT 1
	`
	return r.getOne(ctx, query, loginID)
}

func (r *pgxUserRepository) ExistsByEmailOrName(ctx context.Context, email, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR name = $2)`, email, name).Scan(&exists)
	if err != nil {
		return false, r.mapDBError(err, "check_user_exists")
	}
	return exists, nil
}

func (r *pgxUserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, role = $5, avatar = $6,
		    cover = $7, description = $8, is_verified = $9
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Avatar,
		user.Cover,
		user.Description,
		user.IsVerified,
	)
	if err != nil {
		return r.mapDBError(err, "update_user")
	}
	if tag.RowsAffected() == 0 {
		return userNotFound()
	}
	return nil
}

func (r *pgxUserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return r.mapDBError(err, "delete_user")
	}
	if tag.RowsAffected() == 0 {
		return userNotFound()
	}
	return nil
}

func (r *pgxUserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY joined_at DESC, id DESC`)
	if err != nil {
		return nil, r.mapDBError(err, "list_users")
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanPGXUser(rows)
		if err != nil {
			return nil, r.mapDBError(err, "scan_user")
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapDBError(err, "list_users")
	}
	return users, nil
}

func (r *pgxUserRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	u, err := scanPGXUser(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, userNotFound()
	}
	if err != nil {
		return nil, r.mapDBError(err, "get_user")
	}
	return u, nil
}

func scanPGXUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	var role string
	var joined time.Time
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.Avatar,
		&u.Cover,
		&u.Description,
		&u.IsVerified,
		&joined,
	)
	if err != nil {
		return nil, err
	}
	u.Role = models.UserRole(role)
	u.JoinedAt = joined.UTC()
	return u, nil
}

// mapDBError maps postgres errors to application errors
func (r *pgxUserRepository) mapDBError(err error, operation string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.NewHTTPError(models.ErrCodeConflict, "email or name already in use", 409, models.ErrIdentityTaken)
		case "22P02": // invalid_text_representation
			return models.NewHTTPError(models.ErrCodeBadRequest, "invalid input format", 400, models.ErrInvalidInput)
		}
	}
	return models.NewHTTPError(models.ErrCodeInternal, "database error during "+operation, 500, err)
}

func userNotFound() error {
	return models.NewHTTPError(models.ErrCodeNotFound, "user not found", 404, models.ErrUserNotFound)
}
