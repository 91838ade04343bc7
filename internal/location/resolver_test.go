package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
	"github.com/oshokin/emergency-alert/internal/repository/store"
)

var errProviderDown = errors.New("provider down")

type fakeGeocoder struct {
	address    string
	reverseErr error

	ipLat, ipLng float64
	ipAddress    string
	ipErr        error

	services  []emergency.NearbyService
	nearbyErr error
	kinds     []string
}

func (f *fakeGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return f.address, f.reverseErr
}

func (f *fakeGeocoder) IPLocate(context.Context) (float64, float64, string, error) {
	return f.ipLat, f.ipLng, f.ipAddress, f.ipErr
}

func (f *fakeGeocoder) NearbyServices(
	_ context.Context,
	_, _ float64,
	kind string,
) ([]emergency.NearbyService, error) {
	f.kinds = append(f.kinds, kind)

	return f.services, f.nearbyErr
}

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newTestResolver(geo *fakeGeocoder, history History, zones ...emergency.Zone) *Resolver {
	return NewResolver(Options{
		Geocoder: geo,
		History:  history,
		Zones:    zones,
		Now:      func() time.Time { return fixedNow },
	})
}

func TestResolve_Explicit(t *testing.T) {
	t.Parallel()

	t.Run("with address", func(t *testing.T) {
		t.Parallel()

		repo := store.NewMemoryRepository()
		r := newTestResolver(&fakeGeocoder{address: "1 Main Street"}, repo)

		fix, err := r.Resolve(context.Background(), "+1000", &Coordinates{Latitude: 40, Longitude: -74})
		require.NoError(t, err)
		require.Equal(t, emergency.MethodExplicit, fix.Method)
		require.Equal(t, "1 Main Street", fix.Address)
		require.Equal(t, "40.0, -74.0", fix.Coordinates())
		require.NotZero(t, fix.ID)

		stored, err := repo.LatestLocationFix(context.Background(), "+1000")
		require.NoError(t, err)
		require.Equal(t, fix, stored)
	})

	t.Run("geocoder outage keeps raw coordinates", func(t *testing.T) {
		t.Parallel()

		repo := store.NewMemoryRepository()
		r := newTestResolver(&fakeGeocoder{reverseErr: errProviderDown}, repo)

		fix, err := r.Resolve(context.Background(), "+1000", &Coordinates{Latitude: 40.5, Longitude: -74.25})
		require.NoError(t, err)
		require.Equal(t, emergency.MethodExplicit, fix.Method)
		require.Empty(t, fix.Address)
		require.InDelta(t, 40.5, fix.Latitude, 1e-9)

		_, err = repo.LatestLocationFix(context.Background(), "+1000")
		require.NoError(t, err)
	})
}

func TestResolve_LastKnown(t *testing.T) {
	t.Parallel()

	repo := store.NewMemoryRepository()
	stored := &emergency.LocationFix{
		SubjectPhone: "+1000",
		Latitude:     41,
		Longitude:    -73,
		Address:      "Elm Street",
		Method:       emergency.MethodIPFallback,
		Timestamp:    fixedNow.Add(-time.Hour),
	}

	id, err := repo.AppendLocationFix(context.Background(), stored)
	require.NoError(t, err)

	geo := &fakeGeocoder{ipErr: errProviderDown}
	r := newTestResolver(geo, repo)

	fix, err := r.Resolve(context.Background(), "+1000", nil)
	require.NoError(t, err)
	require.Equal(t, emergency.MethodLastKnown, fix.Method)
	require.Equal(t, id, fix.ID)
	require.InDelta(t, 41, fix.Latitude, 1e-9)
	require.InDelta(t, -73, fix.Longitude, 1e-9)
	require.Equal(t, "Elm Street", fix.Address)
	require.True(t, stored.Timestamp.Equal(fix.Timestamp))

	// Re-reading history does not append and leaves the stored method untouched.
	latest, err := repo.LatestLocationFix(context.Background(), "+1000")
	require.NoError(t, err)
	require.Equal(t, id, latest.ID)
	require.Equal(t, emergency.MethodIPFallback, latest.Method)
}

func TestResolve_IPFallback(t *testing.T) {
	t.Parallel()

	repo := store.NewMemoryRepository()
	r := newTestResolver(&fakeGeocoder{ipLat: 51.5, ipLng: -0.12, ipAddress: "London"}, repo)

	fix, err := r.Resolve(context.Background(), "+1000", nil)
	require.NoError(t, err)
	require.Equal(t, emergency.MethodIPFallback, fix.Method)
	require.Equal(t, "London", fix.Address)
	require.Equal(t, fixedNow, fix.Timestamp)

	stored, err := repo.LatestLocationFix(context.Background(), "+1000")
	require.NoError(t, err)
	require.Equal(t, fix.ID, stored.ID)
}

func TestResolve_Unavailable(t *testing.T) {
	t.Parallel()

	repo := store.NewMemoryRepository()
	r := newTestResolver(&fakeGeocoder{ipErr: errProviderDown}, repo)

	_, err := r.Resolve(context.Background(), "+1000", nil)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = repo.LatestLocationFix(context.Background(), "+1000")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	repo := store.NewMemoryRepository()
	r := newTestResolver(&fakeGeocoder{address: "Dock 4"}, repo)

	fix := r.Update(context.Background(), "+1000", 10, 20)
	require.Equal(t, emergency.MethodExplicit, fix.Method)
	require.Equal(t, "Dock 4", fix.Address)
	require.NotZero(t, fix.ID)
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	zone := emergency.Zone{Latitude: 40, Longitude: -74, RadiusMeters: 500}

	t.Run("provider services sorted and truncated", func(t *testing.T) {
		t.Parallel()

		geo := &fakeGeocoder{services: []emergency.NearbyService{
			{Name: "far", Latitude: 40.3, Longitude: -74},
			{Name: "tie-first", Latitude: 40.1, Longitude: -74},
			{Name: "near", Latitude: 40.01, Longitude: -74},
			{Name: "tie-second", Latitude: 40.1, Longitude: -74},
		}}
		r := newTestResolver(geo, store.NewMemoryRepository(), zone)

		fix := &emergency.LocationFix{Latitude: 40.001, Longitude: -74, Method: emergency.MethodExplicit}
		summary := r.Enrich(context.Background(), fix, emergency.CategoryMedical.ServiceKind())

		require.Equal(t, []string{KindHospital}, geo.kinds)
		require.True(t, summary.HighRiskZone)
		require.Equal(t, "40.001, -74.0", summary.Coordinates)
		require.Equal(t, "https://www.google.com/maps?q=40.001,-74.0", summary.MapsLink)
		require.Equal(t, addressNotAvailable, summary.Address)
		require.Equal(t, fixedNow, summary.Timestamp)
		require.Len(t, summary.NearestServices, 3)
		require.Equal(t, "near", summary.NearestServices[0].Name)
		require.Equal(t, "tie-first", summary.NearestServices[1].Name)
		require.Equal(t, "tie-second", summary.NearestServices[2].Name)
		require.Greater(t, summary.NearestServices[1].DistanceKm, summary.NearestServices[0].DistanceKm)
	})

	t.Run("mock list on outage", func(t *testing.T) {
		t.Parallel()

		geo := &fakeGeocoder{nearbyErr: errProviderDown}
		r := newTestResolver(geo, store.NewMemoryRepository(), zone)

		fix := &emergency.LocationFix{Latitude: 10, Longitude: 10, Address: "Harbour"}
		summary := r.Enrich(context.Background(), fix, KindPolice)

		require.False(t, summary.HighRiskZone)
		require.Equal(t, "Harbour", summary.Address)
		require.Len(t, summary.NearestServices, 1)
		require.Equal(t, "City Police Station", summary.NearestServices[0].Name)
		require.Equal(t, KindPolice, summary.NearestServices[0].Kind)
		require.Positive(t, summary.NearestServices[0].DistanceKm)
	})

	t.Run("mock list when nothing found", func(t *testing.T) {
		t.Parallel()

		r := newTestResolver(new(fakeGeocoder), store.NewMemoryRepository())

		fix := &emergency.LocationFix{Latitude: 40, Longitude: -74}
		summary := r.Enrich(context.Background(), fix, KindHospital)

		require.Len(t, summary.NearestServices, 2)
		require.Equal(t, "City General Hospital", summary.NearestServices[0].Name)
		require.Equal(t, "Emergency Medical Center", summary.NearestServices[1].Name)
	})
}

func TestMockServices(t *testing.T) {
	t.Parallel()

	fire := MockServices(1, 2, KindFireStation)
	require.Len(t, fire, 1)
	require.Equal(t, "Fire Department Station 1", fire[0].Name)
	require.InDelta(t, 0.995, fire[0].Latitude, 1e-9)
	require.InDelta(t, 2.005, fire[0].Longitude, 1e-9)
	require.Equal(t, "911", fire[0].Phone)

	unknown := MockServices(1, 2, "veterinary")
	require.Len(t, unknown, 2)
	require.Equal(t, KindHospital, unknown[0].Kind)
}

func TestProbe(t *testing.T) {
	t.Parallel()

	repo := store.NewMemoryRepository()

	fix, err := newTestResolver(&fakeGeocoder{ipLat: 1, ipLng: 2}, repo).Probe(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1.0, 2.0", fix.Coordinates())

	// Probing never touches history.
	_, err = repo.LatestLocationFix(context.Background(), "")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = newTestResolver(&fakeGeocoder{ipErr: errProviderDown}, repo).Probe(context.Background())
	require.ErrorIs(t, err, errProviderDown)
}
