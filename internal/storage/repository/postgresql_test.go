package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

func TestStorage_CreateUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(t, storage)

	u := factory.CreateUser(t, "a@example.com")
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	exists, err := storage.UserExists(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := storage.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.HasPassword())
	assert.Nil(t, got.ResetTokenHash)

	byID, err := storage.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", byID.Email)

	taken, err := storage.UsernameTaken(ctx, u.Username)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestStorage_CreateUser_Duplicate(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(t, storage)

	existing := factory.CreateUser(t, "dup@example.com")

	dup := &models.User{
		Email:              "dup@example.com",
		Username:           "another",
		Provider:           models.ProviderDirect,
		RoleID:             factory.role.ID,
		SubscriptionPlanID: factory.plan.ID,
		IsActive:           true,
	}
	err := storage.CreateUser(context.Background(), dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NotErrorIs(t, err, ErrUsernameTaken)

	users, err := storage.FindUsers(context.Background(), models.UserFilter{Email: "dup@example.com"})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	dup.Email = "other@example.com"
	dup.Username = existing.Username
	err = storage.CreateUser(context.Background(), dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.NotErrorIs(t, err, ErrEmailTaken)
}

func TestStorage_GetUser_NotFound(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	_, err := storage.GetUserByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := storage.UserExists(context.Background(), "missing@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStorage_WithinTx(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(t, storage)

	t.Run("commit creates user and subscription", func(t *testing.T) {
		u := &models.User{
			Email: "tx@example.com", Username: "tx", Provider: models.ProviderDirect,
			RoleID: factory.role.ID, SubscriptionPlanID: factory.plan.ID, IsActive: true,
		}
		err := storage.WithinTx(ctx, func(tx *Storage) error {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			return tx.CreateUserSubscription(ctx, &models.UserSubscription{
				UserID: u.ID, PlanID: factory.plan.ID, StartDate: time.Now(),
				EndDate: time.Now().AddDate(0, 0, factory.plan.DurationDays), IsActive: true,
			})
		})
		require.NoError(t, err)

		n, err := storage.CountUserSubscriptions(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		sub, err := storage.GetActiveSubscription(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, factory.plan.ID, sub.PlanID)
	})

	t.Run("failure of second write rolls back the first", func(t *testing.T) {
		u := &models.User{
			Email: "rollback@example.com", Username: "rollback", Provider: models.ProviderDirect,
			RoleID: factory.role.ID, SubscriptionPlanID: factory.plan.ID, IsActive: true,
		}
		err := storage.WithinTx(ctx, func(tx *Storage) error {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			return tx.CreateUserSubscription(ctx, &models.UserSubscription{
				UserID: u.ID, PlanID: "00000000-0000-0000-0000-000000000000",
				StartDate: time.Now(), EndDate: time.Now(), IsActive: true,
			})
		})
		require.Error(t, err)

		exists, err := storage.UserExists(ctx, "rollback@example.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("error returned by fn is passed through", func(t *testing.T) {
		sentinel := errors.New("stop")
		err := storage.WithinTx(ctx, func(_ *Storage) error { return sentinel })
		assert.ErrorIs(t, err, sentinel)
	})
}

func TestStorage_ProfileAndLogin(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	u := NewTestDataFactory(t, storage).CreateUser(t, "p@example.com")

	first := "Greg"
	pic := "https://cdn.example.com/p.png"
	updated, err := storage.UpdateUserProfile(ctx, u.ID, models.ProfileUpdate{FirstName: &first, ProfilePicture: &pic})
	require.NoError(t, err)
	assert.Equal(t, "Greg", updated.FirstName)
	assert.Equal(t, pic, updated.ProfilePicture)
	assert.Equal(t, u.LastName, updated.LastName)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, storage.UpdateLastLogin(ctx, u.ID, now))
	require.NoError(t, storage.MarkEmailVerified(ctx, u.ID))
	require.NoError(t, storage.MarkEmailVerified(ctx, u.ID))

	got, err := storage.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.WithinDuration(t, now, *got.LastLogin, time.Second)
	assert.True(t, got.IsEmailVerified)
}

func TestStorage_ResetPassword(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	u := NewTestDataFactory(t, storage).CreateUser(t, "r@example.com")

	expires := time.Now().Add(15 * time.Minute)
	require.NoError(t, storage.SetResetToken(ctx, u.ID, "code-hash", expires))

	got, err := storage.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResetTokenHash)
	assert.Equal(t, "code-hash", *got.ResetTokenHash)

	require.NoError(t, storage.ResetPassword(ctx, u.ID, "code-hash", "new-hash"))
	err = storage.ResetPassword(ctx, u.ID, "code-hash", "other-hash")
	assert.ErrorIs(t, err, ErrNotFound, "code must be single use")

	got, err = storage.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", *got.PasswordHash)
	assert.Nil(t, got.ResetTokenHash)
	assert.Nil(t, got.ResetTokenExpiresAt)

	require.NoError(t, storage.SetResetToken(ctx, u.ID, "h2", expires))
	require.NoError(t, storage.ClearResetToken(ctx, u.ID))
	got, err = storage.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ResetTokenHash)
}

func TestStorage_FindUsers(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(t, storage)
	factory.CreateUser(t, "f1@example.com")
	factory.CreateUser(t, "f2@example.com")

	all, err := storage.FindUsers(ctx, models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active := true
	direct, err := storage.FindUsers(ctx, models.UserFilter{Provider: models.ProviderDirect, Active: &active, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, direct, 1)

	none, err := storage.FindUsers(ctx, models.UserFilter{Provider: "google"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStorage_Turns(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	u := NewTestDataFactory(t, storage).CreateUser(t, "c@example.com")

	for i, content := range []string{"q1", "a1", "q2", "a2", "q3"} {
		role := models.TurnRoleUser
		if i%2 == 1 {
			role = models.TurnRoleAssistant
		}
		turn := &models.Turn{UserID: u.ID, SessionID: "s1", Role: role, Content: content}
		require.NoError(t, storage.CreateTurn(ctx, turn))
		assert.NotEmpty(t, turn.ID)
	}
	require.NoError(t, storage.CreateTurn(ctx, &models.Turn{UserID: u.ID, SessionID: "s2", Role: "user", Content: "other"}))

	recent, err := storage.ListRecentTurns(ctx, u.ID, "s1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"q2", "a2", "q3"}, []string{recent[0].Content, recent[1].Content, recent[2].Content})

	all, err := storage.ListSessionTurns(ctx, u.ID, "s1")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	err = storage.CreateTurn(ctx, &models.Turn{UserID: u.ID, SessionID: "s1", Role: "system", Content: "x"})
	assert.Error(t, err)
}

func TestStorage_WaitList(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	e, err := storage.CreateWaitListEntry(ctx, "w@example.com")
	require.NoError(t, err)
	assert.False(t, e.EmailSent)

	_, err = storage.CreateWaitListEntry(ctx, "w@example.com")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, storage.MarkWaitListEmailSent(ctx, "w@example.com"))
	assert.ErrorIs(t, storage.MarkWaitListEmailSent(ctx, "nobody@example.com"), ErrNotFound)
}

func TestStorage_Documents(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	u := NewTestDataFactory(t, storage).CreateUser(t, "d@example.com")

	d := &models.Document{UserID: u.ID, FileName: "report.csv", ContentType: "text/csv", ObjectKey: "k", Size: 10}
	require.NoError(t, storage.CreateDocument(ctx, d))
	assert.Equal(t, models.DocumentPending, d.Status)

	require.NoError(t, storage.MarkDocumentProcessing(ctx, d.ID))

	d.ExtractedText = "a,b"
	d.Summary = "short"
	d.KeyActions = []string{"act"}
	require.NoError(t, storage.CompleteDocument(ctx, d, time.Now()))

	got, err := storage.GetDocument(ctx, d.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentDone, got.Status)
	assert.Equal(t, []string{"act"}, got.KeyActions)
	assert.Empty(t, got.KPIs)
	assert.NotNil(t, got.ProcessedAt)

	other := NewTestDataFactory(t, storage).CreateUser(t, "d2@example.com")
	_, err = storage.GetDocument(ctx, d.ID, other.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, storage.FailDocument(ctx, d.ID, "boom", time.Now()))
	got, err = storage.GetDocument(ctx, d.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentFailed, got.Status)
	assert.Equal(t, "boom", got.ProcessingError)
}

func TestStorage_ContextCancelled(t *testing.T) {
	s := &Storage{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetUserByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, context.Canceled)
}
