package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/magabrotheeeer/gregai-backend/internal/cache"
)

// StateStore хранит state между Start и Callback. Pop возвращает пустую
// строку, если state не сохранялся или уже использован.
type StateStore interface {
	Save(w http.ResponseWriter, r *http.Request, state string) error
	Pop(w http.ResponseWriter, r *http.Request) (string, error)
}

const (
	sessionName = "oauth_session"
	stateKey    = "oauth_state"
)

// CookieStateStore хранит state в подписанной cookie.
type CookieStateStore struct {
	store *sessions.CookieStore
}

// NewCookieStateStore создаёт хранилище с ключом подписи secret.
func NewCookieStateStore(secret string, ttl time.Duration, secure bool) (*CookieStateStore, error) {
	if secret == "" {
		return nil, errors.New("oauth session secret is empty")
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieStateStore{store: store}, nil
}

func (s *CookieStateStore) Save(w http.ResponseWriter, r *http.Request, state string) error {
	// Подделанная или просроченная cookie даёт новую пустую сессию.
	session, _ := s.store.Get(r, sessionName)
	session.Values[stateKey] = state
	return session.Save(r, w)
}

func (s *CookieStateStore) Pop(w http.ResponseWriter, r *http.Request) (string, error) {
	session, err := s.store.Get(r, sessionName)
	if err != nil || session.IsNew {
		return "", nil
	}
	state, _ := session.Values[stateKey].(string)
	delete(session.Values, stateKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return "", err
	}
	return state, nil
}

// RedisStateStore хранит state в Redis под ключом oauth_state:<id>,
// клиенту выдаётся только непрозрачный id сессии.
type RedisStateStore struct {
	cache  *cache.Cache
	ttl    time.Duration
	secure bool
}

// NewRedisStateStore создаёт хранилище поверх кэша.
func NewRedisStateStore(c *cache.Cache, ttl time.Duration, secure bool) *RedisStateStore {
	return &RedisStateStore{cache: c, ttl: ttl, secure: secure}
}

func redisStateKey(id string) string {
	return stateKey + ":" + id
}

func (s *RedisStateStore) Save(w http.ResponseWriter, r *http.Request, state string) error {
	const op = "oauth.RedisStateStore.Save"

	id, err := newState()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(r.Context(), redisStateKey(id), state, s.ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *RedisStateStore) Pop(w http.ResponseWriter, r *http.Request) (string, error) {
	const op = "oauth.RedisStateStore.Pop"

	c, err := r.Cookie(sessionName)
	if err != nil || c.Value == "" {
		return "", nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	var state string
	found, err := s.cache.Take(r.Context(), redisStateKey(c.Value), &state)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return "", nil
	}
	return state, nil
}
