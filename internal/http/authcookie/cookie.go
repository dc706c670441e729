// Package authcookie выставляет и снимает cookie с токеном доступа.
package authcookie

import (
	"net/http"
	"time"

	"github.com/magabrotheeeer/gregai-backend/internal/config"
)

// Writer пишет cookie с токеном доступа по настройкам.
type Writer struct {
	name   string
	domain string
	secure bool
	maxAge time.Duration
}

// New создаёт Writer. maxAge совпадает со сроком жизни токена.
func New(cfg config.Cookie, maxAge time.Duration) *Writer {
	name := cfg.Name
	if name == "" {
		name = "access_token"
	}
	return &Writer{name: name, domain: cfg.Domain, secure: cfg.Secure, maxAge: maxAge}
}

// Name имя cookie.
func (c *Writer) Name() string { return c.name }

// Set выставляет токен с SameSite=Lax.
func (c *Writer) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(token, int(c.maxAge.Seconds()), http.SameSiteLaxMode))
}

// SetCrossSite выставляет токен при возврате с OAuth-провайдера.
// SameSite=None требует Secure.
func (c *Writer) SetCrossSite(w http.ResponseWriter, token string) {
	ck := c.cookie(token, int(c.maxAge.Seconds()), http.SameSiteNoneMode)
	ck.Secure = true
	http.SetCookie(w, ck)
}

// Clear удаляет cookie.
func (c *Writer) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1, http.SameSiteLaxMode))
}

func (c *Writer) cookie(value string, maxAge int, sameSite http.SameSite) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: sameSite,
	}
}
