package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evently-app/evently-backend/config"
	"github.com/evently-app/evently-backend/internal/auth"
	"github.com/evently-app/evently-backend/internal/loginlog"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// fakeLedger satisfies loginlog.Service; only HasLiveSession matters to the gate.
type fakeLedger struct {
	liveUsers map[string]bool
}

func (f *fakeLedger) Issue(context.Context, loginlog.IssueInput) (*loginlog.LoginLogEntry, error) {
	return nil, nil
}
func (f *fakeLedger) IsValid(context.Context, string) (bool, error) { return false, nil }
func (f *fakeLedger) HasLiveSession(_ context.Context, email string) (bool, error) {
	return f.liveUsers[email], nil
}
func (f *fakeLedger) Revoke(context.Context, string, string, string, string, string) (*loginlog.LoginLogEntry, error) {
	return nil, nil
}
func (f *fakeLedger) Recent(context.Context, int) ([]loginlog.LoginLogResponse, error) {
	return nil, nil
}
func (f *fakeLedger) ForUser(context.Context, string, int) ([]loginlog.LoginLogResponse, error) {
	return nil, nil
}
func (f *fakeLedger) PurgeExpired(context.Context) (int64, error) { return 0, nil }
func (f *fakeLedger) Stats(context.Context, int) (*loginlog.StatsResponse, error) {
	return nil, nil
}
func (f *fakeLedger) Export(context.Context) ([]loginlog.LoginLogResponse, error) {
	return nil, nil
}

func signToken(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id":  float64(7),
		"email":    "a@x.com",
		"name":     "Alice",
		"provider": "local",
		"exp":      exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func gateRouter(ledger loginlog.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWTAccessSecret: testSecret}

	r := gin.New()
	r.GET("/protected", AuthGate(cfg, ledger), func(c *gin.Context) {
		identity, _ := auth.IdentityFromContext(c)
		c.JSON(http.StatusOK, identity)
	})
	return r
}

func doRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGateRejectsMissingHeader(t *testing.T) {
	r := gateRouter(&fakeLedger{liveUsers: map[string]bool{}})
	w := doRequest(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateRejectsMalformedHeader(t *testing.T) {
	r := gateRouter(&fakeLedger{liveUsers: map[string]bool{}})
	w := doRequest(r, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateRejectsBadSignature(t *testing.T) {
	r := gateRouter(&fakeLedger{liveUsers: map[string]bool{"a@x.com": true}})
	token := signToken(t, "wrong-secret", time.Now().Add(time.Hour))
	w := doRequest(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateRejectsExpiredToken(t *testing.T) {
	r := gateRouter(&fakeLedger{liveUsers: map[string]bool{"a@x.com": true}})
	token := signToken(t, testSecret, time.Now().Add(-time.Hour))
	w := doRequest(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateRejectsUserWithoutLiveSession(t *testing.T) {
	// structurally valid credential, but every ledger entry for the user
	// has expired or been revoked
	r := gateRouter(&fakeLedger{liveUsers: map[string]bool{}})
	token := signToken(t, testSecret, time.Now().Add(time.Hour))
	w := doRequest(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateAcceptsLiveSessionAndSetsIdentity(t *testing.T) {
	r := gateRouter(&fakeLedger{liveUsers: map[string]bool{"a@x.com": true}})
	token := signToken(t, testSecret, time.Now().Add(time.Hour))
	w := doRequest(r, "Bearer "+token)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"a@x.com"`)
	assert.Contains(t, w.Body.String(), `"name":"Alice"`)
}
