package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"storyhub/pkg/database"
	"storyhub/pkg/models"
)

type sqlUserRepository struct {
	db *database.DB
}

// NewSQLUserRepository works on both sqlite and postgres (lib/pq) connections
func NewSQLUserRepository(db *database.DB) UserRepository {
	return &sqlUserRepository{db: db}
}

func (r *sqlUserRepository) Create(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Avatar,
		user.Cover,
		user.Description,
		user.IsVerified,
		user.JoinedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return r.mapDBError(err, "create_user")
	}
	return nil
}

func (r *sqlUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *sqlUserRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE name = ?`, name)
}

func (r *sqlUserRepository) GetByLogin(ctx context.Context, loginID string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE email = ? OR name = ?
		ORDER BY CASE WHEN email = ? THEN 0 ELSE 1 END
		LIMIT 1
	`
	return r.getOne(ctx, query, loginID, loginID, loginID)
}

func (r *sqlUserRepository) ExistsByEmailOrName(ctx context.Context, email, name string) (bool, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(1) FROM users WHERE email = ? OR name = ?`)
	if err := r.db.QueryRowContext(ctx, query, email, name).Scan(&n); err != nil {
		return false, r.mapDBError(err, "check_user_exists")
	}
	return n > 0, nil
}

func (r *sqlUserRepository) Update(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`
		UPDATE users
		SET name = ?, email = ?, password_hash = ?, role = ?, avatar = ?,
		    cover = ?, description = ?, is_verified = ?
		WHERE id = ?
	`)
	res, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Avatar,
		user.Cover,
		user.Description,
		user.IsVerified,
		user.ID,
	)
	if err != nil {
		return r.mapDBError(err, "update_user")
	}
	return requireRow(res)
}

func (r *sqlUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return r.mapDBError(err, "delete_user")
	}
	return requireRow(res)
}

func (r *sqlUserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY joined_at DESC, id DESC`)
	if err != nil {
		return nil, r.mapDBError(err, "list_users")
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanSQLUser(rows)
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

func (r *sqlUserRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	u, err := scanSQLUser(r.db.QueryRowContext(ctx, r.db.Rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, userNotFound()
	}
	if err != nil {
		return nil, r.mapDBError(err, "get_user")
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var role, joined string
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
	u.JoinedAt = parseJoinedAt(joined)
	return u, nil
}

func parseJoinedAt(v string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return models.NewHTTPError(models.ErrCodeInternal, "database error", 500, err)
	}
	if n == 0 {
		return userNotFound()
	}
	return nil
}

func (r *sqlUserRepository) mapDBError(err error, operation string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return models.NewHTTPError(models.ErrCodeConflict, "email or name already in use", 409, models.ErrIdentityTaken)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return models.NewHTTPError(models.ErrCodeConflict, "email or name already in use", 409, models.ErrIdentityTaken)
	}
	return models.NewHTTPError(models.ErrCodeInternal, "database error during "+operation, 500, err)
}
