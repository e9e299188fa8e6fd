package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/common"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/dbx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
)

const userColumns = `id, username, password_hash, display_name, role, email, status, last_login, created_at, updated_at`

// SQLRepository stores users in the users table of either dialect.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Create inserts the user and fills in its generated ID. A duplicate
// username yields common.ErrorAlreadyExists.
func (r *SQLRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := r.dialect.Rebind(
		`INSERT INTO users (username, password_hash, display_name, role, email, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`)

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.PasswordHash, user.DisplayName, user.Role, user.Email, user.Status,
		user.CreatedAt, user.UpdatedAt).Scan(&user.ID)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// GetByUsername returns common.ErrorNotFound for an unknown username.
func (r *SQLRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := r.dialect.Rebind(`SELECT ` + userColumns + ` FROM users WHERE username = ?`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := r.dialect.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	query := r.dialect.Rebind(`UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?`)
	return r.execOne(ctx, query, at, at, id)
}

func (r *SQLRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string, at time.Time) error {
	query := r.dialect.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`)
	return r.execOne(ctx, query, hash, at, id)
}

func (r *SQLRepository) SetStatus(ctx context.Context, username, status string, at time.Time) error {
	query := r.dialect.Rebind(`UPDATE users SET status = ?, updated_at = ? WHERE username = ?`)
	return r.execOne(ctx, query, status, at, username)
}

func (r *SQLRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var lastLogin sql.NullTime

	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.DisplayName, &user.Role,
		&user.Email, &user.Status, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}
