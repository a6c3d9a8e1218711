package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/evently-app/evently-backend/config"
	"github.com/evently-app/evently-backend/internal/apperr"
	"github.com/evently-app/evently-backend/internal/loginlog"
	"github.com/evently-app/evently-backend/utils"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const oauthStateTTL = 10 * time.Minute

type Service interface {
	Register(ctx context.Context, req RegisterRequest) error
	Login(ctx context.Context, req LoginRequest, userAgent, ip string) (*TokenResponse, error)
	OAuthStart(ctx context.Context, provider string) (string, error)
	OAuthCallback(ctx context.Context, provider, code, state, userAgent, ip string) (*TokenResponse, error)
	Refresh(ctx context.Context, identity Identity, userAgent, ip string) (*TokenResponse, error)
	Logout(ctx context.Context, identity Identity, token, userAgent, ip string) error
}

type service struct {
	repo         Repository
	ledger       loginlog.Service
	providers    map[string]IdentityProvider
	accessSecret string
	accessTTL    time.Duration
}

func NewService(r Repository, ledger loginlog.Service, providers []IdentityProvider, cfg *config.Config) Service {
	byName := make(map[string]IdentityProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &service{
		repo:         r,
		ledger:       ledger,
		providers:    byName,
		accessSecret: cfg.JWTAccessSecret,
		accessTTL:    time.Duration(cfg.JWTAccessTTLHours) * time.Hour,
	}
}

// =============================
// Register (local accounts)
// =============================

func (s *service) Register(ctx context.Context, req RegisterRequest) error {
	ve := apperr.NewValidation()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRe.MatchString(email) {
		ve.Add("email", "email must be a valid address")
	}
	if strings.TrimSpace(req.Name) == "" {
		ve.Add("name", "name is required")
	}
	if len(req.Password) < 8 {
		ve.Add("password", "password must be at least 8 characters")
	}
	if err := ve.OrNil(); err != nil {
		return err
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		ve.Add("email", "email already registered")
		return ve
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Provider:     loginlog.ProviderLocal,
		PasswordHash: string(hash),
	}
	return s.repo.Create(ctx, user)
}

// =============================
// Login (local accounts)
// =============================

func (s *service) Login(ctx context.Context, req LoginRequest, userAgent, ip string) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, err
	}

	if user.PasswordHash == "" {
		// OAuth account, no local password
		return nil, apperr.ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.ErrUnauthenticated
	}

	return s.mint(ctx, user, loginlog.ProviderLocal, loginlog.TypeLogin, userAgent, ip)
}

// =============================
// OAuth
// =============================

func (s *service) OAuthStart(ctx context.Context, provider string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		ve := apperr.NewValidation()
		ve.Add("provider", "unknown provider")
		return "", ve
	}

	state := generateState()
	if err := utils.SetToken(fmt.Sprintf("oauth_state:%s", state), provider, oauthStateTTL); err != nil {
		return "", fmt.Errorf("could not save oauth state: %w", err)
	}

	return p.AuthURL(state), nil
}

func (s *service) OAuthCallback(ctx context.Context, provider, code, state, userAgent, ip string) (*TokenResponse, error) {
	p, ok := s.providers[provider]
	if !ok {
		ve := apperr.NewValidation()
		ve.Add("provider", "unknown provider")
		return nil, ve
	}

	key := fmt.Sprintf("oauth_state:%s", state)
	saved, err := utils.GetToken(key)
	if err != nil || saved != provider {
		return nil, apperr.ErrUnauthenticated
	}
	_ = utils.DeleteToken(key)

	external, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}

	email := strings.ToLower(strings.TrimSpace(external.Email))
	if !emailRe.MatchString(email) {
		return nil, apperr.ErrUnauthenticated
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = &User{
			Email:    email,
			Name:     external.Name,
			Provider: provider,
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return s.mint(ctx, user, provider, loginlog.TypeLogin, userAgent, ip)
}

// =============================
// Refresh & Logout
// =============================

func (s *service) Refresh(ctx context.Context, identity Identity, userAgent, ip string) (*TokenResponse, error) {
	user, err := s.repo.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, err
	}
	return s.mint(ctx, user, identity.Provider, loginlog.TypeRefresh, userAgent, ip)
}

func (s *service) Logout(ctx context.Context, identity Identity, token, userAgent, ip string) error {
	_, err := s.ledger.Revoke(ctx, identity.Email, token, identity.Provider, userAgent, ip)
	return err
}

// =============================
// Token minting
// =============================

// mint signs a fresh access token and appends the matching ledger entry.
// One ledger row per login or refresh, always.
func (s *service) mint(ctx context.Context, user *User, provider, loginType, userAgent, ip string) (*TokenResponse, error) {
	expiresAt := time.Now().Add(s.accessTTL)
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"email":    user.Email,
		"name":     user.Name,
		"provider": provider,
		"exp":      expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.accessSecret))
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.Issue(ctx, loginlog.IssueInput{
		User:      user.Email,
		TTL:       s.accessTTL,
		Token:     signed,
		Provider:  provider,
		LoginType: loginType,
		UserAgent: userAgent,
		IPAddress: ip,
	}); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: signed,
		ExpiresAt:   expiresAt,
		User: Identity{
			UserID:   user.ID,
			Email:    user.Email,
			Name:     user.Name,
			Provider: provider,
		},
	}, nil
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
