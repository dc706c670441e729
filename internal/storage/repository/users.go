package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

const userColumns = `id, email, first_name, last_name, username, password_hash, provider,
	profile_picture, role_id, subscription_plan_id, is_active, is_superuser, is_email_verified,
	reset_token_hash, reset_token_expires_at, last_login, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                                  models.User
		passwordHash, resetTokenHash       sql.NullString
		resetTokenExpiresAt, lastLoginTime sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Username, &passwordHash,
		&u.Provider, &u.ProfilePicture, &u.RoleID, &u.SubscriptionPlanID, &u.IsActive,
		&u.IsSuperuser, &u.IsEmailVerified, &resetTokenHash, &resetTokenExpiresAt,
		&lastLoginTime, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.PasswordHash = stringPtr(passwordHash)
	u.ResetTokenHash = stringPtr(resetTokenHash)
	u.ResetTokenExpiresAt = timePtr(resetTokenExpiresAt)
	u.LastLogin = timePtr(lastLoginTime)
	return &u, nil
}

// UserExists проверяет, зарегистрирован ли email.
func (s *Storage) UserExists(ctx context.Context, email string) (bool, error) {
	const op = "storage.UserExists"
	if err := ctxErr(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	if err := s.q.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// UsernameTaken проверяет, занято ли имя пользователя.
func (s *Storage) UsernameTaken(ctx context.Context, username string) (bool, error) {
	const op = "storage.UsernameTaken"
	if err := ctxErr(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	if err := s.q.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.q.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, mapError(op, err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUserByID"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя и заполняет id и временные метки.
// Дубликат email возвращает ErrEmailTaken, дубликат username ErrUsernameTaken.
func (s *Storage) CreateUser(ctx context.Context, u *models.User) error {
	const op = "storage.CreateUser"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO users (email, first_name, last_name, username, password_hash, provider,
			      profile_picture, role_id, subscription_plan_id, is_active, is_superuser, is_email_verified)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  RETURNING id, created_at, updated_at`
	err := s.q.QueryRowContext(ctx, query,
		u.Email, u.FirstName, u.LastName, u.Username, nullString(u.PasswordHash), u.Provider,
		u.ProfilePicture, u.RoleID, u.SubscriptionPlanID, u.IsActive, u.IsSuperuser, u.IsEmailVerified,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return mapError(op, err)
	}
	return nil
}

// UpdateUserProfile меняет имя, фамилию и аватар. nil-поля остаются прежними.
func (s *Storage) UpdateUserProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	const op = "storage.UpdateUserProfile"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE users
			  SET first_name = COALESCE($2, first_name),
			      last_name = COALESCE($3, last_name),
			      profile_picture = COALESCE($4, profile_picture),
			      updated_at = NOW()
			  WHERE id = $1
			  RETURNING ` + userColumns
	u, err := scanUser(s.q.QueryRowContext(ctx, query, id,
		nullString(upd.FirstName), nullString(upd.LastName), nullString(upd.ProfilePicture)))
	if err != nil {
		return nil, mapError(op, err)
	}
	return u, nil
}

// UpdateLastLogin фиксирует время входа.
func (s *Storage) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	const op = "storage.UpdateLastLogin"
	return s.execOne(ctx, op, `UPDATE users SET last_login = $2, updated_at = NOW() WHERE id = $1`, id, at)
}

// MarkEmailVerified отмечает почту подтверждённой. Повторный вызов ничего не меняет.
func (s *Storage) MarkEmailVerified(ctx context.Context, id string) error {
	const op = "storage.MarkEmailVerified"
	return s.execOne(ctx, op,
		`UPDATE users SET is_email_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

// SetResetToken сохраняет хэш кода сброса пароля и срок его действия.
func (s *Storage) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const op = "storage.SetResetToken"
	return s.execOne(ctx, op,
		`UPDATE users SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = NOW() WHERE id = $1`,
		id, tokenHash, expiresAt)
}

// ClearResetToken удаляет код сброса пароля.
func (s *Storage) ClearResetToken(ctx context.Context, id string) error {
	const op = "storage.ClearResetToken"
	return s.execOne(ctx, op,
		`UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = NOW() WHERE id = $1`, id)
}

// ResetPassword одним запросом меняет хэш пароля и гасит код сброса.
// Условие на текущий хэш кода не даёт использовать один код дважды.
func (s *Storage) ResetPassword(ctx context.Context, id, tokenHash, newPasswordHash string) error {
	const op = "storage.ResetPassword"
	return s.execOne(ctx, op,
		`UPDATE users
		 SET password_hash = $3, reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = NOW()
		 WHERE id = $1 AND reset_token_hash = $2`,
		id, tokenHash, newPasswordHash)
}

// FindUsers возвращает пользователей по перечисленным в фильтре полям.
func (s *Storage) FindUsers(ctx context.Context, f models.UserFilter) ([]*models.User, error) {
	const op = "storage.FindUsers"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	where, args := userFilterClause(f)
	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY created_at`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// userFilterClause строит WHERE только из известных колонок.
func userFilterClause(f models.UserFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.Email != "" {
		add("email", f.Email)
	}
	if f.Username != "" {
		add("username", f.Username)
	}
	if f.Provider != "" {
		add("provider", f.Provider)
	}
	if f.Active != nil {
		add("is_active", *f.Active)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// execOne выполняет UPDATE и требует, чтобы была затронута хотя бы одна строка.
func (s *Storage) execOne(ctx context.Context, op, query string, args ...any) error {
	if err := ctxErr(ctx, op); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
