package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/magabrotheeeer/gregai-backend/internal/config"
)

// Имена поддерживаемых провайдеров.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// CallbackPath путь обратного вызова относительно backend_url.
const CallbackPath = "/api/v1/auth/callback/"

// Identity утверждение провайдера о пользователе.
type Identity struct {
	Provider      string
	Email         string
	GivenName     string
	FamilyName    string
	Picture       string
	EmailVerified bool
}

// Provider настройки одного провайдера и способ получить профиль по токену.
type Provider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
	// EmailsURL дополнительный запрос адресов, если профиль не содержит email.
	EmailsURL string
	decode    func(ctx context.Context, client *http.Client, p *Provider) (*Identity, error)
}

// NewProviders собирает провайдеров, для которых заданы client id и secret.
func NewProviders(cfg config.OAuth) map[string]*Provider {
	base := strings.TrimRight(cfg.BackendURL, "/") + CallbackPath
	providers := make(map[string]*Provider)

	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		providers[ProviderGoogle] = &Provider{
			Name: ProviderGoogle,
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     google.Endpoint,
				RedirectURL:  base + ProviderGoogle,
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
			decode:      decodeGoogle,
		}
	}

	if cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "" {
		providers[ProviderGitHub] = &Provider{
			Name: ProviderGitHub,
			Config: &oauth2.Config{
				ClientID:     cfg.GitHubClientID,
				ClientSecret: cfg.GitHubClientSecret,
				Endpoint:     github.Endpoint,
				RedirectURL:  base + ProviderGitHub,
				Scopes:       []string{"read:user", "user:email"},
			},
			UserInfoURL: "https://api.github.com/user",
			EmailsURL:   "https://api.github.com/user/emails",
			decode:      decodeGitHub,
		}
	}

	return providers
}

// NewOIDCProvider провайдер с OIDC-совместимым userinfo (формат Google).
func NewOIDCProvider(name string, cfg *oauth2.Config, userInfoURL string) *Provider {
	return &Provider{Name: name, Config: cfg, UserInfoURL: userInfoURL, decode: decodeGoogle}
}

// NewGitHubProvider провайдер с API профиля в формате GitHub.
func NewGitHubProvider(name string, cfg *oauth2.Config, userInfoURL, emailsURL string) *Provider {
	return &Provider{Name: name, Config: cfg, UserInfoURL: userInfoURL, EmailsURL: emailsURL, decode: decodeGitHub}
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeGoogle(ctx context.Context, client *http.Client, p *Provider) (*Identity, error) {
	var data struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := getJSON(ctx, client, p.UserInfoURL, &data); err != nil {
		return nil, err
	}
	given := data.GivenName
	if given == "" {
		given = data.Name
	}
	return &Identity{
		Provider:      p.Name,
		Email:         data.Email,
		GivenName:     given,
		FamilyName:    data.FamilyName,
		Picture:       data.Picture,
		EmailVerified: data.EmailVerified,
	}, nil
}

func decodeGitHub(ctx context.Context, client *http.Client, p *Provider) (*Identity, error) {
	var data struct {
		Login     string `json:"login"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, p.UserInfoURL, &data); err != nil {
		return nil, err
	}

	id := &Identity{Provider: p.Name, Email: data.Email, Picture: data.AvatarURL}
	given, family, _ := strings.Cut(strings.TrimSpace(data.Name), " ")
	if given == "" {
		given = data.Login
	}
	id.GivenName, id.FamilyName = given, strings.TrimSpace(family)

	if p.EmailsURL == "" {
		return id, nil
	}
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, p.EmailsURL, &emails); err != nil {
		if id.Email != "" {
			return id, nil
		}
		return nil, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			id.Email, id.EmailVerified = e.Email, true
			return id, nil
		}
	}
	for _, e := range emails {
		if e.Verified && (id.Email == "" || e.Email == id.Email) {
			id.Email, id.EmailVerified = e.Email, true
			return id, nil
		}
	}
	return id, nil
}
