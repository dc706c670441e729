// Package oauth связывает сервис с внешними провайдерами идентификации:
// перенаправление на экран согласия с одноразовым state и обработка callback.
package oauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

var (
	ErrUnknownProvider = errors.New("unknown or unconfigured provider")
	ErrStateMismatch   = errors.New("oauth state mismatch")
	ErrProviderDenied  = errors.New("provider denied authorization")
	ErrMissingCode     = errors.New("authorization code is missing")
	ErrExchange        = errors.New("code exchange failed")
	ErrUserInfo        = errors.New("failed to fetch user info")
	ErrMissingEmail    = errors.New("provider did not return an email")
	ErrUnverifiedEmail = errors.New("provider did not confirm the email")
)

// Bridge запускает и завершает OAuth-вход.
type Bridge struct {
	providers map[string]*Provider
	states    StateStore
	client    *http.Client
}

// NewBridge создаёт Bridge. client используется для обмена кода и запроса
// профиля; nil означает http.DefaultClient.
func NewBridge(providers map[string]*Provider, states StateStore, client *http.Client) *Bridge {
	if client == nil {
		client = http.DefaultClient
	}
	return &Bridge{providers: providers, states: states, client: client}
}

// Has сообщает, настроен ли провайдер.
func (b *Bridge) Has(provider string) bool {
	_, ok := b.providers[provider]
	return ok
}

// Start сохраняет новый state и возвращает адрес экрана согласия.
func (b *Bridge) Start(w http.ResponseWriter, r *http.Request, provider string) (string, error) {
	const op = "oauth.Bridge.Start"

	p, ok := b.providers[provider]
	if !ok {
		return "", fmt.Errorf("%s: %w: %s", op, ErrUnknownProvider, provider)
	}

	state, err := newState()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := b.states.Save(w, r, boundState(provider, state)); err != nil {
		return "", fmt.Errorf("%s: save state: %w", op, err)
	}

	return p.Config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

// Callback проверяет state, обменивает код на токен и возвращает профиль.
// Сохранённый state удаляется при любом исходе. State, выданный для другого
// провайдера, не принимается. Профиль без подтверждённого email отклоняется.
func (b *Bridge) Callback(w http.ResponseWriter, r *http.Request, provider string) (*Identity, error) {
	const op = "oauth.Bridge.Callback"

	p, ok := b.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownProvider, provider)
	}

	stored, err := b.states.Pop(w, r)
	if err != nil {
		return nil, fmt.Errorf("%s: load state: %w", op, err)
	}

	q := r.URL.Query()
	got := q.Get("state")
	if stored == "" || got == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(boundState(provider, got))) != 1 {
		return nil, fmt.Errorf("%s: %w", op, ErrStateMismatch)
	}
	if e := q.Get("error"); e != "" {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrProviderDenied, e)
	}
	code := q.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCode)
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, b.client)
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrExchange, err)
	}

	identity, err := p.decode(ctx, p.Config.Client(ctx, token), p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUserInfo, err)
	}
	if identity.Email == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingEmail)
	}
	if !identity.EmailVerified {
		return nil, fmt.Errorf("%s: %w", op, ErrUnverifiedEmail)
	}
	return identity, nil
}

// ErrorCode короткий код ошибки для параметра ?error= во фронтенд.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrStateMismatch):
		return "invalid_state"
	case errors.Is(err, ErrProviderDenied):
		return "access_denied"
	case errors.Is(err, ErrMissingEmail):
		return "missing_email"
	case errors.Is(err, ErrUnverifiedEmail):
		return "unverified_email"
	case errors.Is(err, ErrUnknownProvider):
		return "unsupported_provider"
	case errors.Is(err, ErrMissingCode), errors.Is(err, ErrExchange):
		return "exchange_failed"
	case errors.Is(err, ErrUserInfo):
		return "userinfo_failed"
	default:
		return "oauth_failed"
	}
}

// boundState значение в хранилище: state привязан к провайдеру, начавшему вход.
func boundState(provider, state string) string {
	return provider + ":" + state
}

func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
