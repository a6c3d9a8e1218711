package loginlog

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/evently-app/evently-backend/internal/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// MaxTokenTTL is the server-side clamp: no entry may outlive its
	// issuance by more than 30 days, whatever TTL the caller asked for.
	MaxTokenTTL = 30 * 24 * time.Hour

	DefaultRecentLimit  = 100
	DefaultForUserLimit = 50
	DefaultStatsDays    = 7
)

// ActivityPublisher pushes auth activity onto a stream. Publishing is
// fire-and-forget: a broker outage never fails a login.
type ActivityPublisher interface {
	Publish(ctx context.Context, key string, payload interface{}) error
}

type Service interface {
	Issue(ctx context.Context, in IssueInput) (*LoginLogEntry, error)
	IsValid(ctx context.Context, token string) (bool, error)
	HasLiveSession(ctx context.Context, email string) (bool, error)
	Revoke(ctx context.Context, user, token, provider string, userAgent, ip string) (*LoginLogEntry, error)
	Recent(ctx context.Context, limit int) ([]LoginLogResponse, error)
	ForUser(ctx context.Context, email string, limit int) ([]LoginLogResponse, error)
	PurgeExpired(ctx context.Context) (int64, error)
	Stats(ctx context.Context, days int) (*StatsResponse, error)
	Export(ctx context.Context) ([]LoginLogResponse, error)
}

type service struct {
	repo      Repository
	publisher ActivityPublisher // may be nil when no broker is configured
}

func NewService(repo Repository, publisher ActivityPublisher) Service {
	return &service{repo: repo, publisher: publisher}
}

// IssueInput describes one login/refresh event to append to the ledger.
type IssueInput struct {
	User      string
	TTL       time.Duration
	Token     string
	Provider  string
	LoginType string
	UserAgent string
	IPAddress string
	Meta      map[string]interface{}
}

// =============================
// Issue — append one entry per login or refresh. Expiry is clamped to
// timestamp+30d server-side.
func (s *service) Issue(ctx context.Context, in IssueInput) (*LoginLogEntry, error) {
	ve := apperr.NewValidation()

	user := strings.ToLower(strings.TrimSpace(in.User))
	if user == "" {
		ve.Add("user", "user is required")
	}
	if in.Token == "" {
		ve.Add("token", "token is required")
	}
	if !IsValidProvider(in.Provider) {
		ve.Add("provider", "unknown provider")
	}
	if !IsValidLoginType(in.LoginType) {
		ve.Add("login_type", "unknown login type")
	}
	if in.TTL <= 0 {
		ve.Add("ttl", "ttl must be positive")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	now := time.Now()
	ttl := in.TTL
	if ttl > MaxTokenTTL {
		ttl = MaxTokenTTL
	}

	entry := &LoginLogEntry{
		Timestamp: now,
		User:      user,
		Expiry:    now.Add(ttl),
		Token:     in.Token,
		Provider:  in.Provider,
		LoginType: in.LoginType,
		UserAgent: in.UserAgent,
		IPAddress: in.IPAddress,
		Meta:      marshalMeta(in.Meta),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, entry)
	return entry, nil
}

// =============================
// IsValid — strict check: the exact token string must match an unexpired
// entry. Note the request gate uses HasLiveSession instead; see below.
func (s *service) IsValid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	_, err := s.repo.FindLiveByToken(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// =============================
// HasLiveSession — true when ANY unexpired entry exists for the email,
// regardless of which token it carries. This is the deliberately coarse
// liveness check the auth gate runs: it rejects users whose sessions have
// all expired or been revoked, without a per-token lookup.
func (s *service) HasLiveSession(ctx context.Context, email string) (bool, error) {
	count, err := s.repo.CountLiveForUser(ctx, strings.ToLower(strings.TrimSpace(email)), time.Now())
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// =============================
// Revoke — logical revocation. The original entry is untouched; a new
// logout row with expiry == now dominates it going forward.
func (s *service) Revoke(ctx context.Context, user, token, provider string, userAgent, ip string) (*LoginLogEntry, error) {
	email := strings.ToLower(strings.TrimSpace(user))
	if email == "" {
		ve := apperr.NewValidation()
		ve.Add("user", "user is required")
		return nil, ve
	}
	if !IsValidProvider(provider) {
		provider = ProviderLocal
	}

	now := time.Now()
	entry := &LoginLogEntry{
		Timestamp: now,
		User:      email,
		Expiry:    now, // already dead on arrival
		Token:     token,
		Provider:  provider,
		LoginType: TypeLogout,
		UserAgent: userAgent,
		IPAddress: ip,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, entry)
	return entry, nil
}

// =============================
// Read paths — token always redacted.

func (s *service) Recent(ctx context.Context, limit int) ([]LoginLogResponse, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	entries, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return redactAll(entries), nil
}

func (s *service) ForUser(ctx context.Context, email string, limit int) ([]LoginLogResponse, error) {
	if limit <= 0 {
		limit = DefaultForUserLimit
	}
	entries, err := s.repo.ForUser(ctx, strings.ToLower(strings.TrimSpace(email)), limit)
	if err != nil {
		return nil, err
	}
	return redactAll(entries), nil
}

func (s *service) Export(ctx context.Context) ([]LoginLogResponse, error) {
	entries, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	return redactAll(entries), nil
}

// =============================
// PurgeExpired — idempotent batch removal of entries with expiry < now.
// Safe to run concurrently with reads.
func (s *service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, time.Now())
}

// =============================
// Stats — pure aggregation, read-only.
func (s *service) Stats(ctx context.Context, days int) (*StatsResponse, error) {
	if days <= 0 {
		days = DefaultStatsDays
	}
	since := time.Now().AddDate(0, 0, -days)

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	uniqueUsers, err := s.repo.CountUniqueUsers(ctx)
	if err != nil {
		return nil, err
	}
	lastN, err := s.repo.CountSince(ctx, since)
	if err != nil {
		return nil, err
	}
	byType, err := s.repo.CountByColumn(ctx, "login_type")
	if err != nil {
		return nil, err
	}
	byProvider, err := s.repo.CountByColumn(ctx, "provider")
	if err != nil {
		return nil, err
	}
	histogram, err := s.repo.DailyHistogram(ctx, since)
	if err != nil {
		return nil, err
	}

	return &StatsResponse{
		Total:          total,
		UniqueUsers:    uniqueUsers,
		CountLastNDays: lastN,
		Days:           days,
		ByLoginType:    byType,
		ByProvider:     byProvider,
		DailyHistogram: histogram,
	}, nil
}

// =============================
// Helpers

func (s *service) publish(ctx context.Context, entry *LoginLogEntry) {
	if s.publisher == nil {
		return
	}
	payload := map[string]interface{}{
		"user":       entry.User,
		"provider":   entry.Provider,
		"login_type": entry.LoginType,
		"timestamp":  entry.Timestamp,
		"ip_address": entry.IPAddress,
	}
	if err := s.publisher.Publish(ctx, entry.User, payload); err != nil {
		log.Printf("⚠️ Failed to publish auth activity: %v", err)
	}
}

func redactAll(entries []LoginLogEntry) []LoginLogResponse {
	out := make([]LoginLogResponse, 0, len(entries))
	for i := range entries {
		out = append(out, entries[i].Redact())
	}
	return out
}

func marshalMeta(meta map[string]interface{}) datatypes.JSON {
	if len(meta) == 0 {
		return nil
	}
	m := datatypes.JSONMap(meta)
	b, err := m.MarshalJSON()
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
