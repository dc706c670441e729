// Package user сервис профиля и каталога пользователей.
package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/gregai-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
	"github.com/magabrotheeeer/gregai-backend/internal/storage/repository"
)

// maxPageSize ограничение выборки каталога.
const maxPageSize = 100

// Repository операции хранилища, нужные сервису.
type Repository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	FindUsers(ctx context.Context, f models.UserFilter) ([]*models.User, error)
}

// Service сервис пользователей.
type Service struct {
	repo Repository
}

// New создает новый экземпляр Service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get возвращает пользователя по id.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	const op = "user.Get"

	u, err := s.repo.GetUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return u, nil
}

// UpdateProfile меняет имя, фамилию и аватар.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	const op = "user.UpdateProfile"

	if upd == (models.ProfileUpdate{}) {
		return s.Get(ctx, id)
	}
	u, err := s.repo.UpdateUserProfile(ctx, id, upd)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Persistence("Failed to update user", fmt.Errorf("%s: %w", op, err))
	}
	return u, nil
}

// Find выборка каталога. Доступна только суперпользователю.
func (s *Service) Find(ctx context.Context, caller *models.User, f models.UserFilter) ([]*models.User, error) {
	const op = "user.Find"

	if caller == nil || !caller.IsSuperuser {
		return nil, apperr.Forbidden("Not enough permissions")
	}
	if f.Limit <= 0 || f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	users, err := s.repo.FindUsers(ctx, f)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return users, nil
}
