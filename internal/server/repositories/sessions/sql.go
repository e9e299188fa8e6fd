package sessions

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

const sessionColumns = `id, token_hash, user_id, username, display_name, role, email, login_time,
	intended_url, csrf_token, csrf_issued_at, remember, ip_address, user_agent, created_at, expires_at`

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Create(ctx context.Context, s *models.Session) error {
	query := r.dialect.Rebind(
		`INSERT INTO sessions (` + sessionColumns + `)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.TokenHash, nullInt64(s.UserID), s.Username, s.DisplayName, s.Role, s.Email,
		nullTime(s.LoginTime), s.IntendedURL, s.CSRFToken, nullTime(s.CSRFIssuedAt), s.Remember,
		s.IPAddress, s.UserAgent, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields. The token hash is immutable; a new
// identity goes through Delete and Create.
func (r *SQLRepository) Update(ctx context.Context, s *models.Session) error {
	query := r.dialect.Rebind(
		`UPDATE sessions SET user_id = ?, username = ?, display_name = ?, role = ?, email = ?,
		 login_time = ?, intended_url = ?, csrf_token = ?, csrf_issued_at = ?, remember = ?,
		 ip_address = ?, user_agent = ?, expires_at = ?
		 WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query,
		nullInt64(s.UserID), s.Username, s.DisplayName, s.Role, s.Email,
		nullTime(s.LoginTime), s.IntendedURL, s.CSRFToken, nullTime(s.CSRFIssuedAt), s.Remember,
		s.IPAddress, s.UserAgent, s.ExpiresAt, s.ID)
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

func (r *SQLRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := r.dialect.Rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = ?`)

	s := &models.Session{}
	var (
		userID       sql.NullInt64
		loginTime    sql.NullTime
		csrfIssuedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&s.ID, &s.TokenHash, &userID, &s.Username, &s.DisplayName, &s.Role, &s.Email, &loginTime,
		&s.IntendedURL, &s.CSRFToken, &csrfIssuedAt, &s.Remember, &s.IPAddress, &s.UserAgent,
		&s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if userID.Valid {
		id := userID.Int64
		s.UserID = &id
	}
	if loginTime.Valid {
		t := loginTime.Time
		s.LoginTime = &t
	}
	if csrfIssuedAt.Valid {
		t := csrfIssuedAt.Time
		s.CSRFIssuedAt = &t
	}
	return s, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	query := r.dialect.Rebind(`DELETE FROM sessions WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	query := r.dialect.Rebind(`DELETE FROM sessions WHERE user_id = ?`)
	return r.deleteCount(ctx, query, userID)
}

func (r *SQLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := r.dialect.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`)
	return r.deleteCount(ctx, query, now)
}

func (r *SQLRepository) deleteCount(ctx context.Context, query string, arg any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
