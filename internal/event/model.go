package event

import (
	"time"
)

// ============================
// 🔷 GORM Event Model
type Event struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(200);not null" json:"name"`
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
	Location    string    `gorm:"type:varchar(500);not null" json:"location"`
	Lat         float64   `gorm:"not null;index" json:"lat"`
	Lon         float64   `gorm:"not null;index" json:"lon"`
	Organizer   string    `gorm:"type:varchar(255);not null;index" json:"organizer"`
	Image       *string   `gorm:"type:text" json:"image,omitempty"`
	Description string    `gorm:"type:varchar(2000)" json:"description"`
	Category    string    `gorm:"type:varchar(30);not null;default:other" json:"category"`
	Price       float64   `gorm:"not null;default:0" json:"price"`
	Capacity    *int      `json:"capacity,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Closed category enumeration. Unknown values are rejected, never coerced.
const (
	CategoryCultural      = "cultural"
	CategorySports        = "sports"
	CategoryMusical       = "musical"
	CategoryEducational   = "educational"
	CategoryGastronomic   = "gastronomic"
	CategoryTechnological = "technological"
	CategoryOther         = "other"
)

var validCategories = map[string]bool{
	CategoryCultural:      true,
	CategorySports:        true,
	CategoryMusical:       true,
	CategoryEducational:   true,
	CategoryGastronomic:   true,
	CategoryTechnological: true,
	CategoryOther:         true,
}

// IsValidCategory reports whether c belongs to the category enumeration.
func IsValidCategory(c string) bool {
	return validCategories[c]
}

// ============================
// 🟡 Create Event Request (wire format; coordinates resolved by the handler)
type CreateEventRequest struct {
	Name        string  `json:"name" binding:"required"`
	Timestamp   string  `json:"timestamp" binding:"required"` // 🛠 RFC3339
	Location    string  `json:"location" binding:"required"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	Image       *string `json:"image,omitempty"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Capacity    *int    `json:"capacity,omitempty"`
}

// ============================
// 🟠 Update Event Request — all fields optional, absent means unchanged
type UpdateEventRequest struct {
	Name        *string  `json:"name,omitempty"`
	Timestamp   *string  `json:"timestamp,omitempty"` // 🛠 RFC3339
	Location    *string  `json:"location,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	Image       *string  `json:"image,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Capacity    *int     `json:"capacity,omitempty"`
}
