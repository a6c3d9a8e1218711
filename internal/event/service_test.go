package event

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/evently-app/evently-backend/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory Repository so service logic can be exercised
// without Postgres.
type fakeRepo struct {
	events map[string]Event
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: map[string]Event{}}
}

func (r *fakeRepo) Create(_ context.Context, e *Event) error {
	r.events[e.ID] = *e
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (r *fakeRepo) Update(_ context.Context, e *Event) error {
	r.events[e.ID] = *e
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	delete(r.events, id)
	return nil
}

func (r *fakeRepo) ListUpcoming(_ context.Context, from time.Time, limit int) ([]Event, error) {
	var out []Event
	for _, e := range r.events {
		if !e.Timestamp.Before(from) {
			out = append(out, e)
		}
	}
	sortByTimestamp(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) FindInBox(_ context.Context, minLat, maxLat, minLon, maxLon float64, from time.Time) ([]Event, error) {
	var out []Event
	for _, e := range r.events {
		if e.Lat >= minLat && e.Lat <= maxLat && e.Lon >= minLon && e.Lon <= maxLon && !e.Timestamp.Before(from) {
			out = append(out, e)
		}
	}
	sortByTimestamp(out)
	return out, nil
}

func (r *fakeRepo) ListByOrganizer(_ context.Context, organizer string) ([]Event, error) {
	var out []Event
	for _, e := range r.events {
		if e.Organizer == organizer {
			out = append(out, e)
		}
	}
	sortByTimestamp(out)
	return out, nil
}

func sortByTimestamp(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

func validInput() CreateEventInput {
	return CreateEventInput{
		Name:      "Concert",
		Timestamp: time.Now().Add(24 * time.Hour),
		Location:  "Gran Via 1, Madrid",
		Lat:       40.0,
		Lon:       -3.0,
		Organizer: "a@x.com",
		Category:  CategoryMusical,
		Price:     10,
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateRejectsPastTimestamp(t *testing.T) {
	svc := NewService(newFakeRepo())

	in := validInput()
	in.Timestamp = time.Now().Add(-time.Minute)

	_, err := svc.Create(context.Background(), in)
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	assert.Contains(t, ve.Fields, "timestamp")
}

func TestCreateCollectsAllFieldErrors(t *testing.T) {
	svc := NewService(newFakeRepo())

	badImage := "ftp://not-http"
	in := CreateEventInput{
		Name:      "",
		Timestamp: time.Now().Add(-time.Hour),
		Location:  "",
		Lat:       95,
		Lon:       -200,
		Organizer: "not-an-email",
		Image:     &badImage,
		Category:  "circus",
		Price:     -5,
	}

	_, err := svc.Create(context.Background(), in)
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)

	for _, field := range []string{"name", "timestamp", "location", "lat", "lon", "organizer", "image", "category", "price"} {
		assert.Contains(t, ve.Fields, field)
	}
}

func TestCreateDefaultsCategoryAndLowercasesOrganizer(t *testing.T) {
	svc := NewService(newFakeRepo())

	in := validInput()
	in.Category = ""
	in.Organizer = "Alice@Example.COM"

	created, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, CategoryOther, created.Category)
	assert.Equal(t, "alice@example.com", created.Organizer)
}

func TestCreateRejectsNonPositiveCapacity(t *testing.T) {
	svc := NewService(newFakeRepo())

	zero := 0
	in := validInput()
	in.Capacity = &zero

	_, err := svc.Create(context.Background(), in)
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "capacity")
}

func TestUpdateByNonOrganizerIsForbidden(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	name := "Hijacked"
	_, err = svc.Update(ctx, created.ID, "b@x.com", UpdatePatch{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// the record is untouched
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Concert", got.Name)
}

func TestUpdateAllowsPastTimestamp(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	updated, err := svc.Update(ctx, created.ID, "a@x.com", UpdatePatch{Timestamp: &past})
	require.NoError(t, err)
	assert.True(t, updated.Timestamp.Equal(past))
}

func TestUpdateLocationRequiresCoordinates(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	newAddr := "Plaza Mayor, Madrid"
	_, err = svc.Update(ctx, created.ID, "a@x.com", UpdatePatch{Location: &newAddr})
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "location")
}

func TestUpdateMissingEventIsNotFound(t *testing.T) {
	svc := NewService(newFakeRepo())

	name := "whatever"
	_, err := svc.Update(context.Background(), "no-such-id", "a@x.com", UpdatePatch{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteByNonOrganizerIsForbidden(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Delete(ctx, created.ID, "b@x.com")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Get(ctx, created.ID)
	assert.NoError(t, err)
}

func TestDeleteReturnsOrphanedImage(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	img := "https://cdn.example.com/img/42.jpg"
	in := validInput()
	in.Image = &img

	created, err := svc.Create(ctx, in)
	require.NoError(t, err)

	orphaned, err := svc.Delete(ctx, created.ID, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, img, orphaned)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFindNearbyBoundingBoxAndOrdering(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	mk := func(name string, hours int, lat, lon float64) {
		in := validInput()
		in.Name = name
		in.Timestamp = time.Now().Add(time.Duration(hours) * time.Hour)
		in.Lat = lat
		in.Lon = lon
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	mk("inside-late", 72, 40.05, -3.05)
	mk("inside-soon", 24, 40.1, -2.9)
	mk("outside-lat", 24, 41.0, -3.0)
	mk("outside-lon", 24, 40.0, -4.0)

	results, err := svc.FindNearby(ctx, 40.0, -3.0, 0.2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// ascending by start time
	assert.Equal(t, "inside-soon", results[0].Name)
	assert.Equal(t, "inside-late", results[1].Name)

	for _, e := range results {
		assert.GreaterOrEqual(t, e.Lat, 39.8)
		assert.LessOrEqual(t, e.Lat, 40.2)
		assert.GreaterOrEqual(t, e.Lon, -3.2)
		assert.LessOrEqual(t, e.Lon, -2.8)
	}
}

func TestFindNearbyExcludesPastEvents(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	// inject a past event directly; Create would reject it
	repo.events["past"] = Event{
		ID:        "past",
		Name:      "Old Fair",
		Timestamp: time.Now().Add(-time.Hour),
		Lat:       40.0,
		Lon:       -3.0,
		Organizer: "a@x.com",
	}

	results, err := svc.FindNearby(ctx, 40.0, -3.0, 0.2)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindNearbyScenario(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	in := validInput() // Concert, tomorrow, 40.0/-3.0, a@x.com
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)

	near, err := svc.FindNearby(ctx, 40.01, -3.01, 0.2)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, created.ID, near[0].ID)

	far, err := svc.FindNearby(ctx, 41.0, -3.0, 0.2)
	require.NoError(t, err)
	assert.Empty(t, far)
}

func TestFindNearbyRejectsBadCoordinates(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.FindNearby(context.Background(), 91.0, 0.0, 0.2)
	_, ok := apperr.AsValidation(err)
	assert.True(t, ok)
}

func TestListUpcomingOrderAndLimit(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		in := validInput()
		in.Name = "event"
		in.Timestamp = time.Now().Add(time.Duration(6-i) * time.Hour)
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	results, err := svc.ListUpcoming(ctx, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.False(t, results[i].Timestamp.Before(results[i-1].Timestamp))
	}
}

func TestListByOrganizerIncludesPast(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	repo.events["past"] = Event{
		ID:        "past",
		Name:      "Last Year",
		Timestamp: time.Now().Add(-24 * time.Hour),
		Organizer: "a@x.com",
	}

	results, err := svc.ListByOrganizer(ctx, "A@X.com")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestDegreeDistance(t *testing.T) {
	assert.Equal(t, 0.0, DegreeDistance(40.0, -3.0, 40.0, -3.0))

	d1 := DegreeDistance(40.0, -3.0, 41.0, -4.0)
	d2 := DegreeDistance(41.0, -4.0, 40.0, -3.0)
	assert.Equal(t, d1, d2)

	assert.InDelta(t, 5.0, DegreeDistance(0, 0, 3, 4), 1e-9)
}
