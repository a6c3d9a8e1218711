package event

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/evently-app/evently-backend/internal/apperr"
	"github.com/evently-app/evently-backend/internal/auth"
	"github.com/evently-app/evently-backend/internal/geocoding"
	"github.com/evently-app/evently-backend/internal/imagestore"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service  *Service
	geocoder geocoding.Geocoder
	images   imagestore.ImageStore
	dev      bool
}

func NewHandler(service *Service, geocoder geocoding.Geocoder, images imagestore.ImageStore, dev bool) *Handler {
	return &Handler{service: service, geocoder: geocoder, images: images, dev: dev}
}

// ===========================
// 🎯 Create Event - POST /events
// @Summary Create an event
// @Description Creates a geotagged event owned by the authenticated user. Coordinates are resolved from the address when not supplied.
// @Tags Event
// @Accept json
// @Produce json
// @Param body body CreateEventRequest true "Event payload"
// @Success 201 {object} Event
// @Failure 400 {object} gin.H
// @Failure 401 {object} gin.H
// @Router /api/v1/events [post]
func (h *Handler) CreateEvent(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}

	timestamp, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp format. Use RFC3339"})
		return
	}

	location := req.Location
	var lat, lon float64
	if req.Lat != nil && req.Lon != nil {
		lat, lon = *req.Lat, *req.Lon
	} else {
		resolved, err := h.geocoder.Geocode(c.Request.Context(), req.Location)
		if err != nil {
			if errors.Is(err, geocoding.ErrNoResults) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "address could not be resolved"})
				return
			}
			h.fail(c, err, "failed to resolve address")
			return
		}
		lat, lon = resolved.Lat, resolved.Lon
		if resolved.FormattedAddress != "" {
			location = resolved.FormattedAddress
		}
	}

	created, err := h.service.Create(c.Request.Context(), CreateEventInput{
		Name:        req.Name,
		Timestamp:   timestamp,
		Location:    location,
		Lat:         lat,
		Lon:         lon,
		Organizer:   identity.Email,
		Image:       req.Image,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Capacity:    req.Capacity,
	})
	if err != nil {
		h.fail(c, err, "failed to create event")
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ===========================
// 🔍 Get Event - GET /events/:id
// @Summary Get an event
// @Tags Event
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} Event
// @Failure 404 {object} gin.H
// @Router /api/v1/events/{id} [get]
func (h *Handler) GetEventByID(c *gin.Context) {
	e, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to fetch event")
		return
	}

	c.JSON(http.StatusOK, e)
}

// ===========================
// 📆 Upcoming Events - GET /events/upcoming
// @Summary Upcoming events
// @Description Events starting from now, ascending by start time.
// @Tags Event
// @Produce json
// @Param limit query int false "Maximum results (default: 100)"
// @Success 200 {array} Event
// @Router /api/v1/events/upcoming [get]
func (h *Handler) GetUpcomingEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := h.service.ListUpcoming(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err, "failed to fetch events")
		return
	}

	c.JSON(http.StatusOK, events)
}

// ===========================
// 📍 Nearby Events - GET /events/nearby?lat=&lon=&radius= (or ?address=)
// @Summary Nearby upcoming events
// @Description Bounding-box proximity search. Accepts either coordinates or a free-text address to resolve.
// @Tags Event
// @Produce json
// @Param lat query number false "Latitude"
// @Param lon query number false "Longitude"
// @Param address query string false "Address to resolve instead of coordinates"
// @Param radius query number false "Box half-width in degrees (default: 0.2)"
// @Success 200 {array} Event
// @Failure 400 {object} gin.H
// @Router /api/v1/events/nearby [get]
func (h *Handler) GetNearbyEvents(c *gin.Context) {
	var lat, lon float64
	var err error

	if address := c.Query("address"); address != "" {
		resolved, err := h.geocoder.Geocode(c.Request.Context(), address)
		if err != nil {
			if errors.Is(err, geocoding.ErrNoResults) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "address could not be resolved"})
				return
			}
			h.fail(c, err, "failed to resolve address")
			return
		}
		lat, lon = resolved.Lat, resolved.Lon
	} else {
		lat, err = strconv.ParseFloat(c.Query("lat"), 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lat is required and must be a number"})
			return
		}
		lon, err = strconv.ParseFloat(c.Query("lon"), 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lon is required and must be a number"})
			return
		}
	}

	radius := 0.0
	if radiusStr := c.Query("radius"); radiusStr != "" {
		radius, err = strconv.ParseFloat(radiusStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be a number"})
			return
		}
	}

	events, err := h.service.FindNearby(c.Request.Context(), lat, lon, radius)
	if err != nil {
		h.fail(c, err, "failed to search events")
		return
	}

	c.JSON(http.StatusOK, events)
}

// ===========================
// 📄 My Events - GET /events/mine
// @Summary Events organized by the authenticated user
// @Description Ascending by start time, past events included.
// @Tags Event
// @Produce json
// @Success 200 {array} Event
// @Failure 401 {object} gin.H
// @Router /api/v1/events/mine [get]
func (h *Handler) GetMyEvents(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	events, err := h.service.ListByOrganizer(c.Request.Context(), identity.Email)
	if err != nil {
		h.fail(c, err, "failed to fetch events")
		return
	}

	c.JSON(http.StatusOK, events)
}

// ===========================
// 🛠 Update Event - PUT /events/:id
// @Summary Update an event
// @Description Organizer only. A changed address is re-resolved to fresh coordinates before the patch is applied.
// @Tags Event
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param body body UpdateEventRequest true "Partial patch"
// @Success 200 {object} Event
// @Failure 400 {object} gin.H
// @Failure 403 {object} gin.H
// @Failure 404 {object} gin.H
// @Router /api/v1/events/{id} [put]
func (h *Handler) UpdateEvent(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}

	patch := UpdatePatch{
		Name:        req.Name,
		Location:    req.Location,
		Lat:         req.Lat,
		Lon:         req.Lon,
		Image:       req.Image,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Capacity:    req.Capacity,
	}

	if req.Timestamp != nil {
		timestamp, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp format. Use RFC3339"})
			return
		}
		patch.Timestamp = &timestamp
	}

	// A new address needs fresh coordinates; the core refuses to guess.
	if req.Location != nil && (req.Lat == nil || req.Lon == nil) {
		resolved, err := h.geocoder.Geocode(c.Request.Context(), *req.Location)
		if err != nil {
			if errors.Is(err, geocoding.ErrNoResults) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "address could not be resolved"})
				return
			}
			h.fail(c, err, "failed to resolve address")
			return
		}
		patch.Lat = &resolved.Lat
		patch.Lon = &resolved.Lon
		if resolved.FormattedAddress != "" {
			patch.Location = &resolved.FormattedAddress
		}
	}

	updated, err := h.service.Update(c.Request.Context(), c.Param("id"), identity.Email, patch)
	if err != nil {
		h.fail(c, err, "failed to update event")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// ===========================
// ❌ Delete Event - DELETE /events/:id
// @Summary Delete an event
// @Description Organizer only. Discards the externally-stored image afterwards, best effort.
// @Tags Event
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} gin.H
// @Failure 403 {object} gin.H
// @Failure 404 {object} gin.H
// @Router /api/v1/events/{id} [delete]
func (h *Handler) DeleteEvent(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	orphanedImage, err := h.service.Delete(c.Request.Context(), c.Param("id"), identity.Email)
	if err != nil {
		h.fail(c, err, "failed to delete event")
		return
	}

	// Best effort: the event is already gone, a stuck CDN object is only
	// logged, never retried or rolled back.
	if orphanedImage != "" && h.images != nil {
		if err := h.images.Discard(c.Request.Context(), orphanedImage); err != nil {
			log.Printf("⚠️ Failed to discard orphaned image %s: %v", orphanedImage, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "event deleted successfully"})
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the organizer may modify this event"})
	default:
		if ve, ok := apperr.AsValidation(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
			return
		}
		if h.dev {
			c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "details": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
