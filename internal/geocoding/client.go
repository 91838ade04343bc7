package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
)

var (
	// ErrNoResult is returned when a provider answered but had nothing to offer.
	ErrNoResult = errors.New("provider returned no result")
	// ErrPlacesNotConfigured is returned by NearbyServices without an API key.
	ErrPlacesNotConfigured = errors.New("places provider is not configured")

	errUnexpectedStatus = errors.New("unexpected provider status")
)

// Options configures a Client.
type Options struct {
	// NominatimURL is the base URL of the reverse-geocoding service.
	NominatimURL string
	// IPLocateURL returns a JSON position for the caller's address.
	IPLocateURL string
	// PlacesURL is the nearby-search endpoint.
	PlacesURL string
	// APIKey enables the nearby search.
	APIKey string
	// UserAgent identifies the application to the providers.
	UserAgent string
	// RequestsPerSecond limits reverse-geocoding calls; zero disables the limit.
	RequestsPerSecond float64
	// CacheTTL is how long reverse-geocoding answers are reused; zero disables the cache.
	CacheTTL time.Duration
	// SearchRadiusMeters bounds the nearby search.
	SearchRadiusMeters int
	// Timeout bounds every HTTP call.
	Timeout time.Duration
}

// Client implements the geocoding collaborator over HTTP.
type Client struct {
	opts    Options
	http    *resty.Client
	limiter *rate.Limiter
	cache   *gocache.Cache
}

// New creates a Client.
func New(opts Options) *Client {
	httpClient := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	if opts.UserAgent != "" {
		httpClient.SetHeader("User-Agent", opts.UserAgent)
	}

	c := &Client{
		opts: opts,
		http: httpClient,
	}

	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	if opts.CacheTTL > 0 {
		c.cache = gocache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}

	return c
}

// nominatimAnswer is the subset of the jsonv2 reverse answer we read.
type nominatimAnswer struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// ReverseGeocode resolves coordinates into a display address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	key := emergency.FormatCoordinate(lat) + "," + emergency.FormatCoordinate(lng)

	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			if address, ok := cached.(string); ok {
				return address, nil
			}
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for reverse geocoding slot: %w", err)
		}
	}

	var answer nominatimAnswer

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format": "jsonv2",
			"lat":    strconv.FormatFloat(lat, 'f', -1, 64),
			"lon":    strconv.FormatFloat(lng, 'f', -1, 64),
		}).
		SetResult(&answer).
		Get(strings.TrimRight(c.opts.NominatimURL, "/") + "/reverse")
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("reverse geocode: %w: %s", errUnexpectedStatus, resp.Status())
	}

	if answer.Error != "" || answer.DisplayName == "" {
		return "", fmt.Errorf("reverse geocode %s: %w", key, ErrNoResult)
	}

	if c.cache != nil {
		c.cache.Set(key, answer.DisplayName, gocache.DefaultExpiration)
	}

	return answer.DisplayName, nil
}

// ipAnswer is the ip-api style answer.
type ipAnswer struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	City       string  `json:"city"`
	RegionName string  `json:"regionName"`
	Country    string  `json:"country"`
}

// IPLocate derives an approximate position from the caller's IP address.
func (c *Client) IPLocate(ctx context.Context) (lat, lng float64, address string, err error) {
	var answer ipAnswer

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&answer).
		Get(c.opts.IPLocateURL)
	if err != nil {
		return 0, 0, "", fmt.Errorf("locate by ip: %w", err)
	}

	if resp.IsError() {
		return 0, 0, "", fmt.Errorf("locate by ip: %w: %s", errUnexpectedStatus, resp.Status())
	}

	if answer.Status != "success" {
		return 0, 0, "", fmt.Errorf("locate by ip: %w: %s", ErrNoResult, answer.Message)
	}

	parts := make([]string, 0, 3)
	for _, part := range []string{answer.City, answer.RegionName, answer.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}

	return answer.Lat, answer.Lon, strings.Join(parts, ", "), nil
}

// placesAnswer is the subset of the nearby-search answer we read.
type placesAnswer struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []placeResult `json:"results"`
}

type placeResult struct {
	Name     string  `json:"name"`
	Vicinity string  `json:"vicinity"`
	Rating   float64 `json:"rating"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// NearbyServices lists emergency services of the given kind around a point, in provider order.
func (c *Client) NearbyServices(ctx context.Context, lat, lng float64, kind string) ([]emergency.NearbyService, error) {
	if c.opts.APIKey == "" {
		return nil, ErrPlacesNotConfigured
	}

	var answer placesAnswer

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"location": strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64),
			"radius":   strconv.Itoa(c.opts.SearchRadiusMeters),
			"type":     kind,
			"key":      c.opts.APIKey,
		}).
		SetResult(&answer).
		Get(c.opts.PlacesURL)
	if err != nil {
		return nil, fmt.Errorf("search nearby %s: %w", kind, err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("search nearby %s: %w: %s", kind, errUnexpectedStatus, resp.Status())
	}

	switch answer.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("search nearby %s: %w: %s %s",
			kind, errUnexpectedStatus, answer.Status, answer.ErrorMessage)
	}

	services := make([]emergency.NearbyService, 0, len(answer.Results))
	for _, r := range answer.Results {
		services = append(services, emergency.NearbyService{
			Name:      r.Name,
			Address:   r.Vicinity,
			Latitude:  r.Geometry.Location.Lat,
			Longitude: r.Geometry.Location.Lng,
			Kind:      kind,
			Rating:    r.Rating,
		})
	}

	return services, nil
}
