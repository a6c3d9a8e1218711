package event

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/evently-app/evently-backend/internal/apperr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxNameLen        = 200
	maxLocationLen    = 500
	maxDescriptionLen = 2000

	// DefaultNearbyRadius is the half-width, in degrees, of the bounding box
	// used by FindNearby when the caller does not pass a radius.
	DefaultNearbyRadius = 0.2

	// DefaultUpcomingLimit caps ListUpcoming result sets.
	DefaultUpcomingLimit = 100
)

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	urlRe   = regexp.MustCompile(`^https?://\S+$`)
)

// Service wraps validation, ownership and proximity logic for events.
// Coordinates are always resolved by the caller; the service never geocodes.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// CreateEventInput carries already-validated transport data plus the
// coordinates resolved by the route layer.
type CreateEventInput struct {
	Name        string
	Timestamp   time.Time
	Location    string
	Lat         float64
	Lon         float64
	Organizer   string
	Image       *string
	Description string
	Category    string
	Price       float64
	Capacity    *int
}

// UpdatePatch is a partial update. A nil field is left unchanged. Changing
// Location requires the caller to supply freshly resolved Lat/Lon.
type UpdatePatch struct {
	Name        *string
	Timestamp   *time.Time
	Location    *string
	Lat         *float64
	Lon         *float64
	Image       *string
	Description *string
	Category    *string
	Price       *float64
	Capacity    *int
}

// ===========================
// 🎯 Create Event
func (s *Service) Create(ctx context.Context, in CreateEventInput) (*Event, error) {
	now := time.Now()
	ve := apperr.NewValidation()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		ve.Add("name", "name is required")
	} else if len(name) > maxNameLen {
		ve.Add("name", "name must be at most 200 characters")
	}

	// Strictly future, checked against the creation instant only. Later
	// edits may move the event into the past without failing.
	if in.Timestamp.IsZero() {
		ve.Add("timestamp", "timestamp is required")
	} else if !in.Timestamp.After(now) {
		ve.Add("timestamp", "timestamp must be in the future")
	}

	location := strings.TrimSpace(in.Location)
	if location == "" {
		ve.Add("location", "location is required")
	} else if len(location) > maxLocationLen {
		ve.Add("location", "location must be at most 500 characters")
	}

	validateCoordinates(ve, in.Lat, in.Lon)

	organizer := strings.ToLower(strings.TrimSpace(in.Organizer))
	if organizer == "" {
		ve.Add("organizer", "organizer is required")
	} else if !emailRe.MatchString(organizer) {
		ve.Add("organizer", "organizer must be a valid email address")
	}

	if in.Image != nil && !urlRe.MatchString(*in.Image) {
		ve.Add("image", "image must be an http(s) URL")
	}

	if len(in.Description) > maxDescriptionLen {
		ve.Add("description", "description must be at most 2000 characters")
	}

	category := in.Category
	if category == "" {
		category = CategoryOther
	} else if !IsValidCategory(category) {
		ve.Add("category", "unknown category")
	}

	if in.Price < 0 {
		ve.Add("price", "price must not be negative")
	}

	if in.Capacity != nil && *in.Capacity <= 0 {
		ve.Add("capacity", "capacity must be a positive integer")
	}

	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	e := &Event{
		ID:          uuid.NewString(),
		Name:        name,
		Timestamp:   in.Timestamp,
		Location:    location,
		Lat:         in.Lat,
		Lon:         in.Lon,
		Organizer:   organizer,
		Image:       in.Image,
		Description: in.Description,
		Category:    category,
		Price:       in.Price,
		Capacity:    in.Capacity,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ===========================
// 🔍 Get Event
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// ===========================
// 🛠 Update Event — organizer only. The future-timestamp invariant is a
// creation-time rule; moving an existing event's time window is allowed.
func (s *Service) Update(ctx context.Context, id, organizer string, patch UpdatePatch) (*Event, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if e.Organizer != strings.ToLower(strings.TrimSpace(organizer)) {
		return nil, apperr.ErrForbidden
	}

	ve := apperr.NewValidation()

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			ve.Add("name", "name is required")
		} else if len(name) > maxNameLen {
			ve.Add("name", "name must be at most 200 characters")
		} else {
			e.Name = name
		}
	}

	if patch.Timestamp != nil {
		if patch.Timestamp.IsZero() {
			ve.Add("timestamp", "timestamp is required")
		} else {
			e.Timestamp = *patch.Timestamp
		}
	}

	if patch.Location != nil {
		location := strings.TrimSpace(*patch.Location)
		switch {
		case location == "":
			ve.Add("location", "location is required")
		case len(location) > maxLocationLen:
			ve.Add("location", "location must be at most 500 characters")
		case patch.Lat == nil || patch.Lon == nil:
			ve.Add("location", "a new address requires resolved coordinates")
		default:
			e.Location = location
		}
	}

	if patch.Lat != nil && patch.Lon != nil {
		validateCoordinates(ve, *patch.Lat, *patch.Lon)
		if !ve.HasErrors() {
			e.Lat = *patch.Lat
			e.Lon = *patch.Lon
		}
	} else if patch.Lat != nil || patch.Lon != nil {
		ve.Add("lat", "lat and lon must be updated together")
	}

	if patch.Image != nil {
		if !urlRe.MatchString(*patch.Image) {
			ve.Add("image", "image must be an http(s) URL")
		} else {
			e.Image = patch.Image
		}
	}

	if patch.Description != nil {
		if len(*patch.Description) > maxDescriptionLen {
			ve.Add("description", "description must be at most 2000 characters")
		} else {
			e.Description = *patch.Description
		}
	}

	if patch.Category != nil {
		if !IsValidCategory(*patch.Category) {
			ve.Add("category", "unknown category")
		} else {
			e.Category = *patch.Category
		}
	}

	if patch.Price != nil {
		if *patch.Price < 0 {
			ve.Add("price", "price must not be negative")
		} else {
			e.Price = *patch.Price
		}
	}

	if patch.Capacity != nil {
		if *patch.Capacity <= 0 {
			ve.Add("capacity", "capacity must be a positive integer")
		} else {
			e.Capacity = patch.Capacity
		}
	}

	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ===========================
// ❌ Delete Event — organizer only. Returns the stored image URL so the
// caller can discard the externally-hosted image (best effort, outside core).
func (s *Service) Delete(ctx context.Context, id, organizer string) (orphanedImage string, err error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	if e.Organizer != strings.ToLower(strings.TrimSpace(organizer)) {
		return "", apperr.ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return "", err
	}

	if e.Image != nil {
		orphanedImage = *e.Image
	}
	return orphanedImage, nil
}

// ===========================
// 📆 Upcoming Events
func (s *Service) ListUpcoming(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	return s.repo.ListUpcoming(ctx, time.Now(), limit)
}

// ===========================
// 📍 Nearby Events — axis-aligned degree bounding box, not a geodesic
// circle. Cheap and index-friendly; with small radii the difference is
// irrelevant for a UI listing.
func (s *Service) FindNearby(ctx context.Context, lat, lon, radius float64) ([]Event, error) {
	ve := apperr.NewValidation()
	validateCoordinates(ve, lat, lon)
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	if radius <= 0 {
		radius = DefaultNearbyRadius
	}

	return s.repo.FindInBox(ctx, lat-radius, lat+radius, lon-radius, lon+radius, time.Now())
}

// ===========================
// 📄 Organizer's events, past included
func (s *Service) ListByOrganizer(ctx context.Context, organizer string) ([]Event, error) {
	return s.repo.ListByOrganizer(ctx, strings.ToLower(strings.TrimSpace(organizer)))
}

// DegreeDistance is the planar Euclidean distance between two points in
// degree space. It is NOT great-circle distance; it ignores the shrinking
// of longitude degrees away from the equator. Only useful for ranking
// points that are already close together.
func DegreeDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := lat1 - lat2
	dLon := lon1 - lon2
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

func validateCoordinates(ve *apperr.ValidationError, lat, lon float64) {
	if lat < -90 || lat > 90 {
		ve.Add("lat", "lat must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		ve.Add("lon", "lon must be between -180 and 180")
	}
}
