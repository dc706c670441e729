package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/gregai-backend/internal/migrations"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и накатывает миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err)

	path, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, path))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
	role    *models.Role
	plan    *models.Plan
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(t *testing.T, storage *Storage) *TestDataFactory {
	ctx := context.Background()
	role, err := storage.GetRoleByName(ctx, models.RoleStandardUser)
	require.NoError(t, err)
	plan, err := storage.GetPlanByName(ctx, models.PlanFree)
	require.NoError(t, err)
	return &TestDataFactory{storage: storage, role: role, plan: plan}
}

// CreateUser создает тестового пользователя
func (f *TestDataFactory) CreateUser(t *testing.T, email string) *models.User {
	hash := "hashedpassword"
	u := &models.User{
		Email:              email,
		FirstName:          "Test",
		Username:           fmt.Sprintf("user-%d", time.Now().UnixNano()),
		PasswordHash:       &hash,
		Provider:           models.ProviderDirect,
		RoleID:             f.role.ID,
		SubscriptionPlanID: f.plan.ID,
		IsActive:           true,
	}
	require.NoError(t, f.storage.CreateUser(context.Background(), u))
	return u
}
