package auth

import (
	"context"
	"time"

	"github.com/magabrotheeeer/gregai-backend/internal/models"
	"github.com/magabrotheeeer/gregai-backend/internal/storage/repository"
)

// Repository операции хранилища, нужные сервису.
type Repository interface {
	UserExists(ctx context.Context, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUserProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, id, tokenHash, newPasswordHash string) error
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
	GetPlanByName(ctx context.Context, name string) (*models.Plan, error)
	CreateUserSubscription(ctx context.Context, sub *models.UserSubscription) error
}

// Transactor выполняет fn в одной транзакции хранилища.
type Transactor func(ctx context.Context, fn func(tx Repository) error) error

// StorageTx транзакции поверх PostgreSQL-хранилища.
func StorageTx(s *repository.Storage) Transactor {
	return func(ctx context.Context, fn func(tx Repository) error) error {
		return s.WithinTx(ctx, func(tx *repository.Storage) error {
			return fn(tx)
		})
	}
}
