// Package auth оркестрирует регистрацию, вход по паролю и через OAuth,
// подтверждение почты и сброс пароля.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/magabrotheeeer/gregai-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/password"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/metrics"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
	"github.com/magabrotheeeer/gregai-backend/internal/oauth"
	"github.com/magabrotheeeer/gregai-backend/internal/services/notification"
	"github.com/magabrotheeeer/gregai-backend/internal/storage/repository"
)

const (
	resetCodeDigits      = 6
	maxUsernameAttempts  = 50
	msgEmailRegistered   = "Email already registered"
	msgUnableToProcess   = "Unable to process request"
	msgInvalidToken      = "Invalid token"
	msgInvalidCreds      = "Invalid credentials"
	msgInactiveUser      = "Inactive user"
	msgUserNotFound      = "User not found"
	msgFailedCreateUser  = "Failed to create user"
	msgResetTokenExpired = "Reset token expired"
)

var usernameCleaner = regexp.MustCompile(`[^a-z0-9._-]+`)

// Options настройки сервиса.
type Options struct {
	FrontendURL     string
	VerificationTTL time.Duration
	ResetCodeTTL    time.Duration
}

// Service сервис аутентификации.
type Service struct {
	repo     Repository
	inTx     Transactor
	tokens   jwt.Maker
	notifier notification.Dispatcher
	log      *slog.Logger
	opts     Options
	now      func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, inTx Transactor, tokens jwt.Maker, notifier notification.Dispatcher, log *slog.Logger, opts Options) *Service {
	return &Service{
		repo:     repo,
		inTx:     inTx,
		tokens:   tokens,
		notifier: notifier,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
}

// Register создаёт пользователя вместе с подпиской на бесплатный тариф
// и возвращает его с токеном доступа. Прямой регистрации отправляется
// письмо подтверждения.
func (s *Service) Register(ctx context.Context, in models.NewUser) (*models.User, string, error) {
	const op = "auth.Register"

	in.Email = normalizeEmail(in.Email)
	if in.Provider == "" {
		in.Provider = models.ProviderDirect
	}

	exists, err := s.repo.UserExists(ctx, in.Email)
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	if exists {
		metrics.AuthEventsTotal.WithLabelValues("register", metrics.OutcomeFailure).Inc()
		return nil, "", apperr.BadRequest(msgEmailRegistered)
	}

	user, err := s.createUser(ctx, in)
	if err != nil {
		metrics.AuthEventsTotal.WithLabelValues("register", metrics.OutcomeFailure).Inc()
		return nil, "", err
	}

	token, err := s.tokens.GenerateToken(user.Email)
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}

	if in.Provider == models.ProviderDirect {
		s.enqueueVerification(ctx, user)
	}

	metrics.AuthEventsTotal.WithLabelValues("register", metrics.OutcomeSuccess).Inc()
	s.log.Info("user registered", slog.String("op", op), slog.String("user_id", user.ID),
		slog.String("provider", user.Provider))
	return user, token, nil
}

func (s *Service) createUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	const op = "auth.createUser"

	role, err := s.repo.GetRoleByName(ctx, models.RoleStandardUser)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Role not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	plan, err := s.repo.GetPlanByName(ctx, models.PlanFree)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Subscription plan not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}

	username, err := s.uniqueUsername(ctx, in.Email)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}

	user := &models.User{
		Email:              in.Email,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Username:           username,
		Provider:           in.Provider,
		ProfilePicture:     in.ProfilePicture,
		RoleID:             role.ID,
		SubscriptionPlanID: plan.ID,
		IsActive:           true,
		IsEmailVerified:    in.Provider != models.ProviderDirect,
	}
	if in.Password != "" {
		hash, err := password.GetHash(in.Password)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
		}
		user.PasswordHash = &hash
	}

	err = s.insertUser(ctx, user, plan)
	if errors.Is(err, repository.ErrUsernameTaken) {
		// Имя заняли параллельно: одна повторная попытка со случайным суффиксом.
		if user.Username, err = randomUsername(usernameBase(in.Email)); err != nil {
			return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
		}
		err = s.insertUser(ctx, user, plan)
	}
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, repository.ErrEmailTaken):
		return nil, apperr.BadRequest(msgEmailRegistered)
	case errors.Is(err, repository.ErrAlreadyExists):
		return nil, apperr.Conflict("Username already taken")
	default:
		s.log.Error("failed to persist user", slog.String("op", op), sl.Err(err))
		return nil, apperr.Persistence(msgFailedCreateUser, fmt.Errorf("%s: %w", op, err))
	}
}

// insertUser сохраняет пользователя и его подписку в одной транзакции.
func (s *Service) insertUser(ctx context.Context, user *models.User, plan *models.Plan) error {
	return s.inTx(ctx, func(tx Repository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		start := s.now().UTC()
		return tx.CreateUserSubscription(ctx, &models.UserSubscription{
			UserID:    user.ID,
			PlanID:    plan.ID,
			StartDate: start,
			EndDate:   start.AddDate(0, 0, plan.DurationDays),
			IsActive:  true,
		})
	})
}

// uniqueUsername локальная часть email, при коллизии с суффиксом -2, -3, ...
func (s *Service) uniqueUsername(ctx context.Context, email string) (string, error) {
	base := usernameBase(email)
	candidate := base
	for i := 2; i <= maxUsernameAttempts+1; i++ {
		taken, err := s.repo.UsernameTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return randomUsername(base)
}

func usernameBase(email string) string {
	local, _, _ := strings.Cut(email, "@")
	base := strings.Trim(usernameCleaner.ReplaceAllString(strings.ToLower(local), ""), ".-_")
	if base == "" {
		return "user"
	}
	return base
}

func randomUsername(base string) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base + "-" + hex.EncodeToString(b), nil
}

// Login проверяет пароль и выдаёт токен.
func (s *Service) Login(ctx context.Context, email, plain string) (*models.User, string, error) {
	const op = "auth.Login"

	user, err := s.activeUser(ctx, op, email)
	if err != nil {
		metrics.AuthEventsTotal.WithLabelValues("login", metrics.OutcomeFailure).Inc()
		return nil, "", err
	}
	if !user.HasPassword() || password.CompareHash(*user.PasswordHash, plain) != nil {
		metrics.AuthEventsTotal.WithLabelValues("login", metrics.OutcomeFailure).Inc()
		return nil, "", apperr.Unauthorized(msgInvalidCreds)
	}

	token, err := s.issue(ctx, op, user)
	if err != nil {
		return nil, "", err
	}
	metrics.AuthEventsTotal.WithLabelValues("login", metrics.OutcomeSuccess).Inc()
	return user, token, nil
}

// OAuthLogin входит по утверждению провайдера. Существующему пользователю
// обновляются имя и аватар, новый создаётся с подтверждённой почтой.
// Email, не подтверждённый провайдером, не принимается.
func (s *Service) OAuthLogin(ctx context.Context, id *oauth.Identity) (*models.User, string, error) {
	const op = "auth.OAuthLogin"

	if !id.EmailVerified {
		metrics.AuthEventsTotal.WithLabelValues("oauth_login", metrics.OutcomeFailure).Inc()
		s.log.Warn("oauth email not verified by provider", slog.String("op", op),
			slog.String("provider", id.Provider))
		return nil, "", apperr.Forbidden("Email not verified by provider")
	}

	email := normalizeEmail(id.Email)
	user, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		user, token, err := s.Register(ctx, models.NewUser{
			Email:          email,
			FirstName:      id.GivenName,
			LastName:       id.FamilyName,
			Provider:       id.Provider,
			ProfilePicture: id.Picture,
		})
		if err != nil {
			return nil, "", err
		}
		s.touchLogin(ctx, op, user)
		return user, token, nil
	case err != nil:
		return nil, "", apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}

	if !user.IsActive {
		return nil, "", apperr.Forbidden(msgInactiveUser)
	}

	upd := models.ProfileUpdate{}
	if id.GivenName != "" {
		upd.FirstName = &id.GivenName
	}
	if id.FamilyName != "" {
		upd.LastName = &id.FamilyName
	}
	if id.Picture != "" {
		upd.ProfilePicture = &id.Picture
	}
	if upd != (models.ProfileUpdate{}) {
		updated, err := s.repo.UpdateUserProfile(ctx, user.ID, upd)
		if err != nil {
			return nil, "", apperr.Persistence("Failed to update user", fmt.Errorf("%s: %w", op, err))
		}
		user = updated
	}

	token, err := s.issue(ctx, op, user)
	if err != nil {
		return nil, "", err
	}
	metrics.AuthEventsTotal.WithLabelValues("oauth_login", metrics.OutcomeSuccess).Inc()
	return user, token, nil
}

// Authenticate возвращает пользователя по токену доступа.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	const op = "auth.Authenticate"

	claims, err := s.tokens.ParseToken(token, jwt.PurposeAccess)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "Invalid or expired token", err)
	}
	return s.activeUser(ctx, op, claims.Email)
}

// RequestVerification отправляет письмо со ссылкой подтверждения почты.
func (s *Service) RequestVerification(ctx context.Context, user *models.User) error {
	if user.IsEmailVerified {
		return apperr.BadRequest("Email already verified")
	}
	s.enqueueVerification(ctx, user)
	return nil
}

// ConfirmVerification подтверждает почту по токену из письма.
// Повторное подтверждение успешно и ничего не меняет.
func (s *Service) ConfirmVerification(ctx context.Context, token string) (*models.User, error) {
	const op = "auth.ConfirmVerification"

	claims, err := s.tokens.ParseToken(token, jwt.PurposeEmailVerification)
	if errors.Is(err, jwt.ErrExpired) {
		return nil, apperr.Expired("Verification token expired")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, msgInvalidToken, err)
	}

	user, err := s.repo.GetUserByEmail(ctx, claims.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	if user.IsEmailVerified {
		return user, nil
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, apperr.Persistence("Failed to verify email", fmt.Errorf("%s: %w", op, err))
	}
	user.IsEmailVerified = true
	return user, nil
}

// ForgotPassword сохраняет хэш одноразового кода и отправляет код письмом.
// Неизвестный и неактивный адрес дают одну и ту же ошибку.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	const op = "auth.ForgotPassword"

	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !user.IsActive) {
		return apperr.BadRequest(msgUnableToProcess)
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}

	code, err := password.GenerateCode(resetCodeDigits)
	if err != nil {
		return apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	hash, err := password.GetHash(code)
	if err != nil {
		return apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	if err := s.repo.SetResetToken(ctx, user.ID, hash, s.now().Add(s.opts.ResetCodeTTL)); err != nil {
		return apperr.Persistence("Failed to store reset token", fmt.Errorf("%s: %w", op, err))
	}

	msg, err := notification.PasswordResetEmail(user.Email, code, s.opts.ResetCodeTTL.String())
	if err != nil {
		s.log.Error("failed to render reset email", slog.String("op", op), sl.Err(err))
		return nil
	}
	s.notifier.Enqueue(ctx, msg)
	return nil
}

// ResetPassword меняет пароль по коду. Код одноразовый; просроченный код
// удаляется.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	const op = "auth.ResetPassword"

	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !user.IsActive) {
		return apperr.BadRequest(msgUnableToProcess)
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	if user.ResetTokenHash == nil || user.ResetTokenExpiresAt == nil {
		return apperr.BadRequest(msgInvalidToken)
	}

	if s.now().After(*user.ResetTokenExpiresAt) {
		if err := s.repo.ClearResetToken(ctx, user.ID); err != nil {
			s.log.Error("failed to clear expired reset token", slog.String("op", op), sl.Err(err))
		}
		return apperr.Expired(msgResetTokenExpired)
	}
	if password.CompareHash(*user.ResetTokenHash, code) != nil {
		return apperr.BadRequest(msgInvalidToken)
	}

	hash, err := password.GetHash(newPassword)
	if err != nil {
		return apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	err = s.repo.ResetPassword(ctx, user.ID, *user.ResetTokenHash, hash)
	if errors.Is(err, repository.ErrNotFound) {
		// Код уже использован параллельным запросом.
		return apperr.BadRequest(msgInvalidToken)
	}
	if err != nil {
		return apperr.Persistence("Failed to reset password", fmt.Errorf("%s: %w", op, err))
	}

	s.log.Info("password reset", slog.String("op", op), slog.String("user_id", user.ID))
	return nil
}

func (s *Service) activeUser(ctx context.Context, op, email string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	if !user.IsActive {
		return nil, apperr.Forbidden(msgInactiveUser)
	}
	return user, nil
}

func (s *Service) issue(ctx context.Context, op string, user *models.User) (string, error) {
	token, err := s.tokens.GenerateToken(user.Email)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	s.touchLogin(ctx, op, user)
	return token, nil
}

func (s *Service) touchLogin(ctx context.Context, op string, user *models.User) {
	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("failed to update last login", slog.String("op", op), sl.Err(err))
		return
	}
	user.LastLogin = &now
}

func (s *Service) enqueueVerification(ctx context.Context, user *models.User) {
	const op = "auth.enqueueVerification"
	log := s.log.With(slog.String("op", op), slog.String("user_id", user.ID))

	token, err := s.tokens.GenerateTokenWithTTL(user.Email, jwt.PurposeEmailVerification, s.opts.VerificationTTL)
	if err != nil {
		log.Error("failed to issue verification token", sl.Err(err))
		return
	}
	link := strings.TrimRight(s.opts.FrontendURL, "/") + "/verify-email?token=" + url.QueryEscape(token)

	email, err := notification.VerificationEmail(user.Email, user.FirstName, link, s.opts.VerificationTTL.String())
	if err != nil {
		log.Error("failed to render verification email", sl.Err(err))
		return
	}
	s.notifier.Enqueue(ctx, email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
