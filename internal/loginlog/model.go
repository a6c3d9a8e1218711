package loginlog

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// LoginLogEntry represents the login_logs table. The ledger is append-only:
// rows are never updated after the write-time expiry clamp, revocation is a
// new dominant row, and expired rows are only ever removed by the purge.
type LoginLogEntry struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	User      string         `gorm:"type:varchar(255);not null;index" json:"user"`
	Expiry    time.Time      `gorm:"not null;index" json:"expiry"`
	Token     string         `gorm:"type:text;not null;index" json:"-"` // never serialized
	Provider  string         `gorm:"type:varchar(30);not null" json:"provider"`
	LoginType string         `gorm:"type:varchar(20);not null;index" json:"login_type"`
	UserAgent string         `gorm:"type:text" json:"user_agent,omitempty"`
	IPAddress string         `gorm:"size:45" json:"ip_address,omitempty"`
	Meta      datatypes.JSON `gorm:"type:jsonb" json:"meta,omitempty"`
}

// TableName overrides table name for LoginLogEntry
func (LoginLogEntry) TableName() string {
	return "login_logs"
}

// Closed enumerations. Unknown values are validation errors at the boundary.
const (
	ProviderGoogle = "google"
	ProviderGithub = "github"
	ProviderLocal  = "local"

	TypeLogin   = "login"
	TypeRefresh = "refresh"
	TypeLogout  = "logout"
)

var validProviders = map[string]bool{
	ProviderGoogle: true,
	ProviderGithub: true,
	ProviderLocal:  true,
}

var validLoginTypes = map[string]bool{
	TypeLogin:   true,
	TypeRefresh: true,
	TypeLogout:  true,
}

func IsValidProvider(p string) bool {
	return validProviders[p]
}

func IsValidLoginType(t string) bool {
	return validLoginTypes[t]
}

// Request/Response DTOs

// LoginLogResponse is the outward shape of a ledger row. The raw token is
// replaced by a short non-reversible preview.
type LoginLogResponse struct {
	Timestamp    time.Time `json:"timestamp"`
	User         string    `json:"user"`
	Expiry       time.Time `json:"expiry"`
	TokenPreview string    `json:"token_preview"`
	Provider     string    `json:"provider"`
	LoginType    string    `json:"login_type"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

const tokenPreviewLen = 8

// TokenPreview redacts a stored token down to its first characters plus an
// ellipsis. Short tokens are masked entirely so the full credential never
// appears in any output.
func TokenPreview(token string) string {
	if len(token) <= tokenPreviewLen {
		return strings.Repeat("*", len(token)) + "..."
	}
	return token[:tokenPreviewLen] + "..."
}

// Redact converts a ledger row to its serializable form.
func (e *LoginLogEntry) Redact() LoginLogResponse {
	return LoginLogResponse{
		Timestamp:    e.Timestamp,
		User:         e.User,
		Expiry:       e.Expiry,
		TokenPreview: TokenPreview(e.Token),
		Provider:     e.Provider,
		LoginType:    e.LoginType,
		UserAgent:    e.UserAgent,
		IPAddress:    e.IPAddress,
	}
}

// TypeCount is one row of a breakdown aggregation.
type TypeCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// DayCount is one bucket of the daily login histogram.
type DayCount struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Count int64  `json:"count"`
}

// StatsResponse is the read-only aggregation over the whole ledger.
type StatsResponse struct {
	Total          int64       `json:"total"`
	UniqueUsers    int64       `json:"unique_users"`
	CountLastNDays int64       `json:"count_last_n_days"`
	Days           int         `json:"days"`
	ByLoginType    []TypeCount `json:"by_login_type"`
	ByProvider     []TypeCount `json:"by_provider"`
	DailyHistogram []DayCount  `json:"daily_histogram"`
}
