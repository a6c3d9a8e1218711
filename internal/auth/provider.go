package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evently-app/evently-backend/config"
)

// ExternalIdentity is the claim shape consumed from an identity provider.
// The OAuth dance itself is delegated entirely to the provider; only the
// resolved identity matters here.
type ExternalIdentity struct {
	Email string
	Name  string
}

// IdentityProvider is the capability interface over an external OAuth
// identity service. Concrete SDK calls never leak past it, so tests can
// substitute fakes.
type IdentityProvider interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

// =============================
// Google

type googleProvider struct {
	clientID     string
	clientSecret string
	redirectURL  string
}

func NewGoogleProvider(cfg *config.Config) IdentityProvider {
	return &googleProvider{
		clientID:     cfg.GoogleClientID,
		clientSecret: cfg.GoogleClientSecret,
		redirectURL:  cfg.OAuthRedirectURL,
	}
}

func (p *googleProvider) Name() string { return "google" }

func (p *googleProvider) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("redirect_uri", p.redirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("state", state)
	return "https://accounts.google.com/o/oauth2/v2/auth?" + q.Encode()
}

func (p *googleProvider) Exchange(ctx context.Context, code string) (*ExternalIdentity, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)
	form.Set("redirect_uri", p.redirectURL)
	form.Set("grant_type", "authorization_code")

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := postForm(ctx, "https://oauth2.googleapis.com/token", form, &tokenResp); err != nil {
		return nil, fmt.Errorf("google token exchange failed: %w", err)
	}

	var userInfo struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := getJSON(ctx, "https://www.googleapis.com/oauth2/v2/userinfo", tokenResp.AccessToken, &userInfo); err != nil {
		return nil, fmt.Errorf("google userinfo failed: %w", err)
	}

	return &ExternalIdentity{Email: userInfo.Email, Name: userInfo.Name}, nil
}

// =============================
// GitHub

type githubProvider struct {
	clientID     string
	clientSecret string
	redirectURL  string
}

func NewGithubProvider(cfg *config.Config) IdentityProvider {
	return &githubProvider{
		clientID:     cfg.GithubClientID,
		clientSecret: cfg.GithubClientSecret,
		redirectURL:  cfg.OAuthRedirectURL,
	}
}

func (p *githubProvider) Name() string { return "github" }

func (p *githubProvider) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("redirect_uri", p.redirectURL)
	q.Set("scope", "user:email")
	q.Set("state", state)
	return "https://github.com/login/oauth/authorize?" + q.Encode()
}

func (p *githubProvider) Exchange(ctx context.Context, code string) (*ExternalIdentity, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)
	form.Set("redirect_uri", p.redirectURL)

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := postForm(ctx, "https://github.com/login/oauth/access_token", form, &tokenResp); err != nil {
		return nil, fmt.Errorf("github token exchange failed: %w", err)
	}

	var userInfo struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Login string `json:"login"`
	}
	if err := getJSON(ctx, "https://api.github.com/user", tokenResp.AccessToken, &userInfo); err != nil {
		return nil, fmt.Errorf("github user fetch failed: %w", err)
	}
	if userInfo.Name == "" {
		userInfo.Name = userInfo.Login
	}

	return &ExternalIdentity{Email: userInfo.Email, Name: userInfo.Name}, nil
}

// =============================
// Shared HTTP helpers

func postForm(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getJSON(ctx context.Context, endpoint, bearer string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
