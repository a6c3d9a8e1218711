package loginlog

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/evently-app/evently-backend/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeLedgerRepo keeps entries in a slice, append-only like the real table.
type fakeLedgerRepo struct {
	entries []LoginLogEntry
	nextID  uint
}

func (r *fakeLedgerRepo) Create(_ context.Context, entry *LoginLogEntry) error {
	r.nextID++
	entry.ID = r.nextID
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeLedgerRepo) FindLiveByToken(_ context.Context, token string, now time.Time) (*LoginLogEntry, error) {
	for i := range r.entries {
		if r.entries[i].Token == token && r.entries[i].Expiry.After(now) {
			e := r.entries[i]
			return &e, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeLedgerRepo) CountLiveForUser(_ context.Context, user string, now time.Time) (int64, error) {
	var count int64
	for i := range r.entries {
		if r.entries[i].User == user && r.entries[i].Expiry.After(now) {
			count++
		}
	}
	return count, nil
}

func (r *fakeLedgerRepo) Recent(_ context.Context, limit int) ([]LoginLogEntry, error) {
	out := append([]LoginLogEntry(nil), r.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeLedgerRepo) ForUser(_ context.Context, user string, limit int) ([]LoginLogEntry, error) {
	var out []LoginLogEntry
	for i := range r.entries {
		if r.entries[i].User == user {
			out = append(out, r.entries[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeLedgerRepo) All(_ context.Context) ([]LoginLogEntry, error) {
	return append([]LoginLogEntry(nil), r.entries...), nil
}

func (r *fakeLedgerRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var kept []LoginLogEntry
	var removed int64
	for i := range r.entries {
		if r.entries[i].Expiry.Before(now) {
			removed++
		} else {
			kept = append(kept, r.entries[i])
		}
	}
	r.entries = kept
	return removed, nil
}

func (r *fakeLedgerRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.entries)), nil
}

func (r *fakeLedgerRepo) CountUniqueUsers(_ context.Context) (int64, error) {
	seen := map[string]bool{}
	for i := range r.entries {
		seen[r.entries[i].User] = true
	}
	return int64(len(seen)), nil
}

func (r *fakeLedgerRepo) CountSince(_ context.Context, since time.Time) (int64, error) {
	var count int64
	for i := range r.entries {
		if !r.entries[i].Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeLedgerRepo) CountByColumn(_ context.Context, column string) ([]TypeCount, error) {
	counts := map[string]int64{}
	for i := range r.entries {
		if column == "provider" {
			counts[r.entries[i].Provider]++
		} else {
			counts[r.entries[i].LoginType]++
		}
	}
	var out []TypeCount
	for v, c := range counts {
		out = append(out, TypeCount{Value: v, Count: c})
	}
	return out, nil
}

func (r *fakeLedgerRepo) DailyHistogram(_ context.Context, since time.Time) ([]DayCount, error) {
	counts := map[string]int64{}
	for i := range r.entries {
		if !r.entries[i].Timestamp.Before(since) {
			counts[r.entries[i].Timestamp.Format("2006-01-02")]++
		}
	}
	var out []DayCount
	for d, c := range counts {
		out = append(out, DayCount{Day: d, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func issueInput(ttl time.Duration) IssueInput {
	return IssueInput{
		User:      "a@x.com",
		TTL:       ttl,
		Token:     "tok-abcdef1234567890",
		Provider:  ProviderLocal,
		LoginType: TypeLogin,
	}
}

func TestIssueClampsTTLTo30Days(t *testing.T) {
	svc := NewService(&fakeLedgerRepo{}, nil)

	entry, err := svc.Issue(context.Background(), issueInput(90*24*time.Hour))
	require.NoError(t, err)

	assert.True(t, entry.Expiry.Equal(entry.Timestamp.Add(MaxTokenTTL)),
		"expiry should be exactly timestamp+30d, got %v", entry.Expiry.Sub(entry.Timestamp))
}

func TestIssueBelowClampIsUntouched(t *testing.T) {
	svc := NewService(&fakeLedgerRepo{}, nil)

	entry, err := svc.Issue(context.Background(), issueInput(48*time.Hour))
	require.NoError(t, err)

	assert.True(t, entry.Expiry.Equal(entry.Timestamp.Add(48*time.Hour)))
}

func TestIssueRejectsUnknownEnumValues(t *testing.T) {
	svc := NewService(&fakeLedgerRepo{}, nil)

	in := issueInput(time.Hour)
	in.Provider = "facebook"
	in.LoginType = "signin"

	_, err := svc.Issue(context.Background(), in)
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "provider")
	assert.Contains(t, ve.Fields, "login_type")
}

func TestIssueLowercasesUser(t *testing.T) {
	svc := NewService(&fakeLedgerRepo{}, nil)

	in := issueInput(time.Hour)
	in.User = "Bob@Example.COM"

	entry, err := svc.Issue(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", entry.User)
}

func TestIsValidMatchesExactTokenOnly(t *testing.T) {
	repo := &fakeLedgerRepo{}
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Issue(ctx, issueInput(time.Hour))
	require.NoError(t, err)

	ok, err := svc.IsValid(ctx, "tok-abcdef1234567890")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsValid(ctx, "tok-other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsValidFalseAfterExpiry(t *testing.T) {
	repo := &fakeLedgerRepo{}
	svc := NewService(repo, nil)

	now := time.Now()
	repo.entries = append(repo.entries, LoginLogEntry{
		Timestamp: now.Add(-2 * time.Hour),
		User:      "a@x.com",
		Expiry:    now.Add(-time.Hour),
		Token:     "stale-token",
		Provider:  ProviderLocal,
		LoginType: TypeLogin,
	})

	ok, err := svc.IsValid(context.Background(), "stale-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasLiveSessionIsPerUserNotPerToken(t *testing.T) {
	svc := NewService(&fakeLedgerRepo{}, nil)
	ctx := context.Background()

	_, err := svc.Issue(ctx, issueInput(time.Hour))
	require.NoError(t, err)

	// any live entry for the email counts, whatever token the caller holds
	live, err := svc.HasLiveSession(ctx, "A@X.com")
	require.NoError(t, err)
	assert.True(t, live)

	live, err = svc.HasLiveSession(ctx, "b@x.com")
	require.NoError(t, err)
	assert.False(t, live)
}

func TestRevokeAppendsDominantLogoutEntry(t *testing.T) {
	repo := &fakeLedgerRepo{}
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Issue(ctx, issueInput(time.Hour))
	require.NoError(t, err)

	entry, err := svc.Revoke(ctx, "a@x.com", "tok-abcdef1234567890", ProviderLocal, "", "")
	require.NoError(t, err)

	assert.Equal(t, TypeLogout, entry.LoginType)
	assert.True(t, entry.Expiry.Equal(entry.Timestamp))

	// the original entry is untouched; the ledger only grew
	require.Len(t, repo.entries, 2)
	assert.Equal(t, TypeLogin, repo.entries[0].LoginType)
	assert.True(t, repo.entries[0].Expiry.After(time.Now()))
}

func TestPurgeExpiredIsExactAndIdempotent(t *testing.T) {
	repo := &fakeLedgerRepo{}
	svc := NewService(repo, nil)
	ctx := context.Background()

	now := time.Now()
	repo.entries = append(repo.entries,
		LoginLogEntry{User: "a@x.com", Timestamp: now.Add(-3 * time.Hour), Expiry: now.Add(-time.Hour), Token: "dead-1"},
		LoginLogEntry{User: "b@x.com", Timestamp: now.Add(-2 * time.Hour), Expiry: now.Add(-time.Minute), Token: "dead-2"},
		LoginLogEntry{User: "c@x.com", Timestamp: now, Expiry: now.Add(time.Hour), Token: "live-1"},
	)

	removed, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, "live-1", repo.entries[0].Token)

	removed, err = svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestSerializedEntriesNeverLeakToken(t *testing.T) {
	svc := NewService(&fakeLedgerRepo{}, nil)
	ctx := context.Background()

	const token = "super-secret-token-value-123456"
	in := issueInput(time.Hour)
	in.Token = token

	_, err := svc.Issue(ctx, in)
	require.NoError(t, err)

	recent, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	serialized, err := json.Marshal(recent)
	require.NoError(t, err)
	assert.NotContains(t, string(serialized), token)
	assert.True(t, strings.HasSuffix(recent[0].TokenPreview, "..."))
}

func TestTokenPreviewMasksShortTokens(t *testing.T) {
	preview := TokenPreview("short")
	assert.NotContains(t, preview, "short")
	assert.Equal(t, "*****...", preview)
}

func TestForUserRedactsAndFilters(t *testing.T) {
	svc := NewService(&fakeLedgerRepo{}, nil)
	ctx := context.Background()

	_, err := svc.Issue(ctx, issueInput(time.Hour))
	require.NoError(t, err)

	other := issueInput(time.Hour)
	other.User = "b@x.com"
	other.Token = "tok-belonging-to-b"
	_, err = svc.Issue(ctx, other)
	require.NoError(t, err)

	entries, err := svc.ForUser(ctx, "A@x.com", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a@x.com", entries[0].User)
	assert.NotContains(t, entries[0].TokenPreview, "tok-abcdef1234567890")
}

func TestStatsAggregation(t *testing.T) {
	repo := &fakeLedgerRepo{}
	svc := NewService(repo, nil)
	ctx := context.Background()

	for _, in := range []IssueInput{
		{User: "a@x.com", TTL: time.Hour, Token: "t1", Provider: ProviderLocal, LoginType: TypeLogin},
		{User: "a@x.com", TTL: time.Hour, Token: "t2", Provider: ProviderGoogle, LoginType: TypeRefresh},
		{User: "b@x.com", TTL: time.Hour, Token: "t3", Provider: ProviderGoogle, LoginType: TypeLogin},
	} {
		_, err := svc.Issue(ctx, in)
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.UniqueUsers)
	assert.Equal(t, int64(3), stats.CountLastNDays)
	assert.Equal(t, 7, stats.Days)

	byType := map[string]int64{}
	for _, tc := range stats.ByLoginType {
		byType[tc.Value] = tc.Count
	}
	assert.Equal(t, int64(2), byType[TypeLogin])
	assert.Equal(t, int64(1), byType[TypeRefresh])

	byProvider := map[string]int64{}
	for _, tc := range stats.ByProvider {
		byProvider[tc.Value] = tc.Count
	}
	assert.Equal(t, int64(2), byProvider[ProviderGoogle])
	assert.Equal(t, int64(1), byProvider[ProviderLocal])

	require.NotEmpty(t, stats.DailyHistogram)
	assert.Equal(t, int64(3), stats.DailyHistogram[0].Count)
}
