package location

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
	"github.com/oshokin/emergency-alert/internal/logger"
	"github.com/oshokin/emergency-alert/internal/repository/store"
)

const (
	// maxNearestServices is how many services a summary lists.
	maxNearestServices = 3
	// addressNotAvailable replaces an unknown address in summaries.
	addressNotAvailable = "Address not available"
)

// ErrUnavailable is returned when no fallback produced coordinates.
var ErrUnavailable = errors.New("location unavailable")

// Geocoder is the geocoding collaborator.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
	IPLocate(ctx context.Context) (lat, lng float64, address string, err error)
	NearbyServices(ctx context.Context, lat, lng float64, kind string) ([]emergency.NearbyService, error)
}

// History is the part of persistence that owns location fixes.
type History interface {
	AppendLocationFix(ctx context.Context, fix *emergency.LocationFix) (int64, error)
	LatestLocationFix(ctx context.Context, phone string) (*emergency.LocationFix, error)
}

// Coordinates is an explicit coordinate pair supplied by a caller.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Options configures a Resolver.
type Options struct {
	// Geocoder resolves addresses, IP positions and nearby services.
	Geocoder Geocoder
	// History stores and returns location fixes.
	History History
	// Zones are the configured high-risk zones.
	Zones []emergency.Zone
	// Now returns the current time; time.Now when nil.
	Now func() time.Time
}

// Resolver implements the location fallback chain.
type Resolver struct {
	geocoder Geocoder
	history  History
	zones    []emergency.Zone
	now      func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Resolver{
		geocoder: opts.Geocoder,
		history:  opts.History,
		zones:    append([]emergency.Zone(nil), opts.Zones...),
		now:      now,
	}
}

// Resolve returns the best known position of the subject:
// explicit coordinates, then the last stored fix, then the IP-derived position.
// Only the exhaustion of all three fails.
func (r *Resolver) Resolve(ctx context.Context, phone string, explicit *Coordinates) (*emergency.LocationFix, error) {
	ctx = logger.WithKV(ctx, "phone", phone)

	if explicit != nil {
		return r.resolveExplicit(ctx, phone, explicit.Latitude, explicit.Longitude), nil
	}

	stored, err := r.history.LatestLocationFix(ctx, phone)
	switch {
	case err == nil:
		fix := stored.Clone()
		fix.Method = emergency.MethodLastKnown

		return fix, nil
	case !errors.Is(err, store.ErrNotFound):
		logger.WarnKV(ctx, "Failed to read location history", "error", err)
	}

	lat, lng, address, err := r.geocoder.IPLocate(ctx)
	if err != nil {
		logger.WarnKV(ctx, "IP location failed", "error", err)

		return nil, fmt.Errorf("resolve location of %s: %w", phone, ErrUnavailable)
	}

	fix := &emergency.LocationFix{
		SubjectPhone: phone,
		Latitude:     lat,
		Longitude:    lng,
		Address:      address,
		Method:       emergency.MethodIPFallback,
		Timestamp:    r.now(),
	}

	r.record(ctx, fix)

	return fix, nil
}

// Probe asks the IP location service for a position without storing it.
func (r *Resolver) Probe(ctx context.Context) (*emergency.LocationFix, error) {
	lat, lng, address, err := r.geocoder.IPLocate(ctx)
	if err != nil {
		return nil, fmt.Errorf("probe ip location: %w", err)
	}

	return &emergency.LocationFix{
		Latitude:  lat,
		Longitude: lng,
		Address:   address,
		Method:    emergency.MethodIPFallback,
		Timestamp: r.now(),
	}, nil
}

// Update stores explicit coordinates as the subject's current location.
func (r *Resolver) Update(ctx context.Context, phone string, lat, lng float64) *emergency.LocationFix {
	return r.resolveExplicit(logger.WithKV(ctx, "phone", phone), phone, lat, lng)
}

func (r *Resolver) resolveExplicit(ctx context.Context, phone string, lat, lng float64) *emergency.LocationFix {
	address, err := r.geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		logger.WarnKV(ctx, "Reverse geocoding failed, keeping raw coordinates", "error", err)

		address = ""
	}

	fix := &emergency.LocationFix{
		SubjectPhone: phone,
		Latitude:     lat,
		Longitude:    lng,
		Address:      address,
		Method:       emergency.MethodExplicit,
		Timestamp:    r.now(),
	}

	r.record(ctx, fix)

	return fix
}

// record appends a new fix to history; a failure only loses the history entry.
func (r *Resolver) record(ctx context.Context, fix *emergency.LocationFix) {
	id, err := r.history.AppendLocationFix(ctx, fix)
	if err != nil {
		logger.WarnKV(ctx, "Failed to store location fix", "error", err)

		return
	}

	fix.ID = id
}

// InHighRiskZone reports whether the point lies within any configured zone.
func (r *Resolver) InHighRiskZone(lat, lng float64) bool {
	for _, z := range r.zones {
		if z.Contains(lat, lng) {
			return true
		}
	}

	return false
}

// Enrich augments a fix with a map link, the high-risk flag and the nearest services of kind.
func (r *Resolver) Enrich(ctx context.Context, fix *emergency.LocationFix, kind string) *emergency.LocationSummary {
	address := fix.Address
	if address == "" {
		address = addressNotAvailable
	}

	return &emergency.LocationSummary{
		Fix:             *fix.Clone(),
		Coordinates:     fix.Coordinates(),
		Address:         address,
		MapsLink:        emergency.MapsLink(fix.Latitude, fix.Longitude),
		HighRiskZone:    r.InHighRiskZone(fix.Latitude, fix.Longitude),
		NearestServices: r.nearest(ctx, fix.Latitude, fix.Longitude, kind),
		Timestamp:       r.now(),
	}
}

// nearest returns up to three services sorted by distance, substituting the mock list
// when the provider fails or finds nothing.
func (r *Resolver) nearest(ctx context.Context, lat, lng float64, kind string) []emergency.NearbyService {
	services, err := r.geocoder.NearbyServices(ctx, lat, lng, kind)
	if err != nil {
		logger.DebugKV(ctx, "Nearby search unavailable, using built-in list", "kind", kind, "error", err)
	}

	if len(services) == 0 {
		services = MockServices(lat, lng, kind)
	}

	result := make([]emergency.NearbyService, len(services))
	for i, s := range services {
		s.DistanceKm = emergency.Distance(lat, lng, s.Latitude, s.Longitude)
		result[i] = s
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DistanceKm < result[j].DistanceKm
	})

	if len(result) > maxNearestServices {
		result = result[:maxNearestServices]
	}

	return result
}
