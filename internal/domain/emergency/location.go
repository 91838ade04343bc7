package emergency

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Method tags how a LocationFix was obtained.
type Method string

const (
	// MethodExplicit marks coordinates supplied by the caller.
	MethodExplicit Method = "explicit"
	// MethodLastKnown marks a fix re-read from location history.
	MethodLastKnown Method = "last-known"
	// MethodIPFallback marks a position derived from the IP address.
	MethodIPFallback Method = "ip-fallback"
)

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0088

// LocationFix is a single resolved (or raw) coordinate pair with provenance.
type LocationFix struct {
	// ID is assigned by persistence when the fix is appended; zero if not stored.
	ID int64
	// SubjectPhone references the owning subject.
	SubjectPhone string
	// Latitude in decimal degrees.
	Latitude float64
	// Longitude in decimal degrees.
	Longitude float64
	// Address is the reverse-geocoded address, empty when unknown.
	Address string
	// Method is how the coordinates were obtained.
	Method Method
	// Timestamp is when the fix was resolved.
	Timestamp time.Time
}

// Clone returns a copy of the fix.
func (f *LocationFix) Clone() *LocationFix {
	if f == nil {
		return nil
	}

	cloned := *f

	return &cloned
}

// Coordinates renders the pair as "lat, lng".
func (f *LocationFix) Coordinates() string {
	return FormatCoordinate(f.Latitude) + ", " + FormatCoordinate(f.Longitude)
}

// Zone is a configured geographic circle flagged during location enrichment.
type Zone struct {
	// Latitude of the centre.
	Latitude float64 `yaml:"lat"`
	// Longitude of the centre.
	Longitude float64 `yaml:"lng"`
	// RadiusMeters is the radius of the circle.
	RadiusMeters float64 `yaml:"radius"`
}

// Contains reports whether the point lies within the zone.
func (z Zone) Contains(lat, lng float64) bool {
	return Distance(lat, lng, z.Latitude, z.Longitude)*1000 <= z.RadiusMeters
}

// Distance returns the great-circle distance between two points in kilometres.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	const toRad = math.Pi / 180

	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// FormatCoordinate renders a coordinate with the shortest exact representation,
// always keeping a fractional part ("40" becomes "40.0").
func FormatCoordinate(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s
}

// MapsLink returns a Google Maps link pointing at the coordinates.
func MapsLink(lat, lng float64) string {
	return "https://www.google.com/maps?q=" + FormatCoordinate(lat) + "," + FormatCoordinate(lng)
}

// NearbyService is an emergency-service entry near a location.
type NearbyService struct {
	// Name of the facility.
	Name string
	// Address of the facility, as reported by the provider.
	Address string
	// Latitude of the facility.
	Latitude float64
	// Longitude of the facility.
	Longitude float64
	// Kind is the service kind: hospital, police or fire_station.
	Kind string
	// Rating is the provider rating, zero when unknown.
	Rating float64
	// Phone is a contact number when known.
	Phone string
	// DistanceKm is the great-circle distance from the queried point.
	DistanceKm float64
}

// LocationSummary is a LocationFix enriched for emergency notification.
type LocationSummary struct {
	// Fix is the underlying location fix.
	Fix LocationFix
	// Coordinates is the "lat, lng" rendering of the fix.
	Coordinates string
	// Address is the best known address or a placeholder.
	Address string
	// MapsLink is a human-readable map link.
	MapsLink string
	// HighRiskZone is set when the fix lies within a configured zone.
	HighRiskZone bool
	// NearestServices holds up to three nearest services, closest first.
	NearestServices []NearbyService
	// Timestamp is when the summary was produced.
	Timestamp time.Time
}

// Clone returns a deep copy of the summary.
func (s *LocationSummary) Clone() *LocationSummary {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.NearestServices = append([]NearbyService(nil), s.NearestServices...)

	return &cloned
}
