package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/gregai-backend/internal/models"
	"github.com/magabrotheeeer/gregai-backend/internal/storage/repository"
)

// memRepo хранилище в памяти с семантикой ограничений PostgreSQL.
type memRepo struct {
	mu     sync.Mutex
	users  map[string]*models.User
	subs   []models.UserSubscription
	nextID int

	role *models.Role
	plan *models.Plan

	failSubscription error
	// staleChecks проверки занятости всегда отвечают "свободно", как будто
	// параллельная регистрация успела вставить строку после проверки.
	staleChecks bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		users: make(map[string]*models.User),
		role:  &models.Role{ID: "role-1", Name: models.RoleStandardUser},
		plan:  &models.Plan{ID: "plan-1", Name: models.PlanFree, IsActive: true, DurationDays: 29},
	}
}

func (m *memRepo) tx(ctx context.Context, fn func(tx Repository) error) error {
	m.mu.Lock()
	users := make(map[string]*models.User, len(m.users))
	for k, v := range m.users {
		u := *v
		users[k] = &u
	}
	subs := append([]models.UserSubscription(nil), m.subs...)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.users, m.subs = users, subs
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memRepo) user(email string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[email]; ok {
		c := *u
		return &c
	}
	return nil
}

func (m *memRepo) UserExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[email]
	return ok && !m.staleChecks, nil
}

func (m *memRepo) UsernameTaken(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staleChecks {
		return false, nil
	}
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if u := m.user(email); u != nil {
		return u, nil
	}
	return nil, fmt.Errorf("storage.GetUserByEmail: %w", repository.ErrNotFound)
}

func (m *memRepo) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return fmt.Errorf("storage.CreateUser: %w", repository.ErrEmailTaken)
	}
	for _, other := range m.users {
		if other.Username == u.Username {
			return fmt.Errorf("storage.CreateUser: %w", repository.ErrUsernameTaken)
		}
	}
	m.nextID++
	u.ID = fmt.Sprintf("user-%d", m.nextID)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	c := *u
	m.users[u.Email] = &c
	return nil
}

func (m *memRepo) byID(id string) *models.User {
	for _, u := range m.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (m *memRepo) UpdateUserProfile(_ context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID(id)
	if u == nil {
		return nil, repository.ErrNotFound
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.ProfilePicture != nil {
		u.ProfilePicture = *upd.ProfilePicture
	}
	c := *u
	return &c, nil
}

func (m *memRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(u *models.User) bool { u.LastLogin = &at; return true })
}

func (m *memRepo) MarkEmailVerified(_ context.Context, id string) error {
	return m.update(id, func(u *models.User) bool { u.IsEmailVerified = true; return true })
}

func (m *memRepo) SetResetToken(_ context.Context, id, hash string, expiresAt time.Time) error {
	return m.update(id, func(u *models.User) bool {
		u.ResetTokenHash, u.ResetTokenExpiresAt = &hash, &expiresAt
		return true
	})
}

func (m *memRepo) ClearResetToken(_ context.Context, id string) error {
	return m.update(id, func(u *models.User) bool {
		u.ResetTokenHash, u.ResetTokenExpiresAt = nil, nil
		return true
	})
}

func (m *memRepo) ResetPassword(_ context.Context, id, tokenHash, newHash string) error {
	return m.update(id, func(u *models.User) bool {
		if u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash {
			return false
		}
		u.PasswordHash, u.ResetTokenHash, u.ResetTokenExpiresAt = &newHash, nil, nil
		return true
	})
}

func (m *memRepo) update(id string, fn func(u *models.User) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID(id)
	if u == nil || !fn(u) {
		return repository.ErrNotFound
	}
	return nil
}

func (m *memRepo) GetRoleByName(_ context.Context, name string) (*models.Role, error) {
	if m.role == nil || m.role.Name != name {
		return nil, repository.ErrNotFound
	}
	return m.role, nil
}

func (m *memRepo) GetPlanByName(_ context.Context, name string) (*models.Plan, error) {
	if m.plan == nil || m.plan.Name != name {
		return nil, repository.ErrNotFound
	}
	return m.plan, nil
}

func (m *memRepo) CreateUserSubscription(_ context.Context, sub *models.UserSubscription) error {
	if m.failSubscription != nil {
		return m.failSubscription
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sub.ID = fmt.Sprintf("sub-%d", len(m.subs)+1)
	m.subs = append(m.subs, *sub)
	return nil
}

func (m *memRepo) counts() (users, subs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), len(m.subs)
}

// recordingDispatcher запоминает поставленные в очередь письма.
type recordingDispatcher struct {
	mu     sync.Mutex
	emails []models.Email
}

func (d *recordingDispatcher) Enqueue(_ context.Context, e models.Email) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, e)
}

func (d *recordingDispatcher) sent() []models.Email {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Email(nil), d.emails...)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
