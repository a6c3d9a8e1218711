package event

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]Event, error)
	FindInBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64, from time.Time) ([]Event, error)
	ListByOrganizer(ctx context.Context, organizer string) ([]Event, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ===========================
// 🎯 Create Event
func (r *repository) Create(ctx context.Context, e *Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// ===========================
// 🔍 Get Event By ID
func (r *repository) GetByID(ctx context.Context, id string) (*Event, error) {
	var e Event
	if err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ===========================
// 🛠 Update Event (last write wins)
func (r *repository) Update(ctx context.Context, e *Event) error {
	return r.db.WithContext(ctx).Save(e).Error
}

// ===========================
// ❌ Delete Event
func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&Event{}, "id = ?", id).Error
}

// ===========================
// 📆 Upcoming Events, ascending by start time
func (r *repository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("timestamp >= ?", from).
		Order("timestamp ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// ===========================
// 📍 Bounding-box query. Two independent range predicates, both index-friendly.
func (r *repository) FindInBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64, from time.Time) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("lat BETWEEN ? AND ?", minLat, maxLat).
		Where("lon BETWEEN ? AND ?", minLon, maxLon).
		Where("timestamp >= ?", from).
		Order("timestamp ASC").
		Find(&events).Error
	return events, err
}

// ===========================
// 📄 Events by organizer, past included
func (r *repository) ListByOrganizer(ctx context.Context, organizer string) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("organizer = ?", organizer).
		Order("timestamp ASC").
		Find(&events).Error
	return events, err
}
