package loginlog

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, entry *LoginLogEntry) error
	FindLiveByToken(ctx context.Context, token string, now time.Time) (*LoginLogEntry, error)
	CountLiveForUser(ctx context.Context, user string, now time.Time) (int64, error)
	Recent(ctx context.Context, limit int) ([]LoginLogEntry, error)
	ForUser(ctx context.Context, user string, limit int) ([]LoginLogEntry, error)
	All(ctx context.Context) ([]LoginLogEntry, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountUniqueUsers(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	CountByColumn(ctx context.Context, column string) ([]TypeCount, error)
	DailyHistogram(ctx context.Context, since time.Time) ([]DayCount, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create appends a new ledger entry. Rows are never updated afterwards.
func (r *repository) Create(ctx context.Context, entry *LoginLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindLiveByToken resolves the exact token string to an unexpired entry.
func (r *repository) FindLiveByToken(ctx context.Context, token string, now time.Time) (*LoginLogEntry, error) {
	var entry LoginLogEntry
	err := r.db.WithContext(ctx).
		Where("token = ? AND expiry > ?", token, now).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CountLiveForUser counts unexpired entries for an email, any token.
func (r *repository) CountLiveForUser(ctx context.Context, user string, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&LoginLogEntry{}).
		Where(`"user" = ? AND expiry > ?`, user, now).
		Count(&count).Error
	return count, err
}

// Recent returns the newest entries first.
func (r *repository) Recent(ctx context.Context, limit int) ([]LoginLogEntry, error) {
	var entries []LoginLogEntry
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// ForUser returns one user's entries, newest first.
func (r *repository) ForUser(ctx context.Context, user string, limit int) ([]LoginLogEntry, error) {
	var entries []LoginLogEntry
	err := r.db.WithContext(ctx).
		Where(`"user" = ?`, user).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// All returns the full ledger, newest first. Used by the export endpoint.
func (r *repository) All(ctx context.Context) ([]LoginLogEntry, error) {
	var entries []LoginLogEntry
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Find(&entries).Error
	return entries, err
}

// DeleteExpired removes entries whose expiry has passed and reports how many.
func (r *repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expiry < ?", now).
		Delete(&LoginLogEntry{})
	return res.RowsAffected, res.Error
}

// ===========================
// 📊 Aggregations

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&LoginLogEntry{}).Count(&count).Error
	return count, err
}

func (r *repository) CountUniqueUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&LoginLogEntry{}).
		Distinct(`"user"`).
		Count(&count).Error
	return count, err
}

func (r *repository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&LoginLogEntry{}).
		Where("timestamp >= ?", since).
		Count(&count).Error
	return count, err
}

// CountByColumn groups the ledger by login_type or provider.
func (r *repository) CountByColumn(ctx context.Context, column string) ([]TypeCount, error) {
	var rows []TypeCount
	err := r.db.WithContext(ctx).
		Model(&LoginLogEntry{}).
		Select(column + " AS value, COUNT(*) AS count").
		Group(column).
		Order("count DESC").
		Scan(&rows).Error
	return rows, err
}

// DailyHistogram buckets entries per calendar day since the given instant.
func (r *repository) DailyHistogram(ctx context.Context, since time.Time) ([]DayCount, error) {
	var rows []DayCount
	err := r.db.WithContext(ctx).
		Model(&LoginLogEntry{}).
		Select("TO_CHAR(timestamp, 'YYYY-MM-DD') AS day, COUNT(*) AS count").
		Where("timestamp >= ?", since).
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	return rows, err
}
