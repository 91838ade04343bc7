package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
)

// Config holds settings shared by the alert binaries.
type Config struct {
	// ServerAddress is the gRPC address of the alert server.
	ServerAddress string `yaml:"server_addr"`
	// MetricsAddress is the listen address of the Prometheus endpoint; empty disables it.
	MetricsAddress string `yaml:"metrics_addr"`
	// Timeout bounds every collaborator call and client RPC.
	Timeout time.Duration `yaml:"timeout"`
	// EscalationDelay is how long an alert may stay uncancelled before a follow-up notice.
	EscalationDelay time.Duration `yaml:"escalation_delay"`
	// MaxEmergencyContacts caps the contact list of a subject.
	MaxEmergencyContacts int `yaml:"max_emergency_contacts"`
	// EmergencyNumber receives the services notification when no API endpoint is configured.
	EmergencyNumber string `yaml:"emergency_number"`
	// ReconcileSchedule is a cron spec for the persistence reconciler; "off" disables it.
	ReconcileSchedule string `yaml:"reconcile_schedule"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogFile enables a rotating JSON log file when set.
	LogFile string `yaml:"log_file"`
	// Database selects the persistence backend.
	Database Database `yaml:"database"`
	// Geocoding configures the geocoding and places providers.
	Geocoding Geocoding `yaml:"geocoding"`
	// Messaging configures SMS and email transports.
	Messaging Messaging `yaml:"messaging"`
	// EmergencyAPI configures the emergency-services endpoint.
	EmergencyAPI EmergencyAPI `yaml:"emergency_api"`
	// Kafka configures the lifecycle event stream.
	Kafka Kafka `yaml:"kafka"`
	// HighRiskZones lists circles flagged during location enrichment.
	HighRiskZones []emergency.Zone `yaml:"high_risk_zones"`
}

// Database selects the persistence backend.
type Database struct {
	// Driver is one of memory, sqlite, postgres, mysql.
	Driver string `yaml:"driver"`
	// DSN is the driver-specific data source name.
	DSN string `yaml:"dsn"`
}

// Geocoding configures the geocoding collaborator.
type Geocoding struct {
	// NominatimURL is the base URL of the reverse-geocoding service.
	NominatimURL string `yaml:"nominatim_url"`
	// IPLocateURL returns the caller's position derived from its IP address.
	IPLocateURL string `yaml:"ip_locate_url"`
	// PlacesURL is the nearby-search endpoint.
	PlacesURL string `yaml:"places_url"`
	// GoogleAPIKey enables the nearby-search endpoint.
	GoogleAPIKey string `yaml:"google_api_key"`
	// UserAgent is sent to Nominatim, which requires one.
	UserAgent string `yaml:"user_agent"`
	// RequestsPerSecond limits reverse-geocoding calls.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// CacheTTL is how long reverse-geocoding answers are reused.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// SearchRadiusMeters bounds the nearby search.
	SearchRadiusMeters int `yaml:"search_radius_meters"`
}

// Messaging configures the messaging collaborator.
type Messaging struct {
	// Twilio configures SMS delivery.
	Twilio Twilio `yaml:"twilio"`
	// SMTP configures email delivery.
	SMTP SMTP `yaml:"smtp"`
}

// Twilio holds the REST credentials for SMS delivery.
type Twilio struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	BaseURL    string `yaml:"base_url"`
}

// SMTP holds the mail server settings.
type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// EmergencyAPI configures the emergency-services endpoint.
type EmergencyAPI struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// Kafka configures the lifecycle event stream; no brokers disables it.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "emergency-alert-settings.yaml"
	// DefaultServerAddress is used when no server address is configured.
	DefaultServerAddress = "127.0.0.1:50051"
	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second
	// DefaultEscalationDelay is the delay before the follow-up notice.
	DefaultEscalationDelay = 30 * time.Second
	// DefaultMaxEmergencyContacts caps the contact list.
	DefaultMaxEmergencyContacts = 5
	// DefaultEmergencyNumber is the fallback services number.
	DefaultEmergencyNumber = "911"
	// DefaultReconcileSchedule runs the reconciler every minute.
	DefaultReconcileSchedule = "@every 1m"
	// ReconcileOff disables the reconciler.
	ReconcileOff = "off"
	// DefaultDatabaseDriver is the embedded SQL backend.
	DefaultDatabaseDriver = "sqlite"
	// DefaultDatabaseDSN is the sqlite file used when no DSN is configured.
	DefaultDatabaseDSN = "emergency-alert.db"
	// DefaultKafkaTopic receives lifecycle events.
	DefaultKafkaTopic = "emergency-alerts"
	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Provider defaults.
const (
	DefaultNominatimURL       = "https://nominatim.openstreetmap.org"
	DefaultIPLocateURL        = "http://ip-api.com/json"
	DefaultPlacesURL          = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	DefaultUserAgent          = "emergency_alert_system"
	DefaultRequestsPerSecond  = 1
	DefaultGeocodeCacheTTL    = 10 * time.Minute
	DefaultSearchRadiusMeters = 10000
	DefaultTwilioBaseURL      = "https://api.twilio.com"
	DefaultSMTPHost           = "smtp.gmail.com"
	DefaultSMTPPort           = 587
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownDriver is returned for unsupported database drivers.
	errUnknownDriver = errors.New("unknown database driver")
	// errInvalidZone is returned for malformed high-risk zones.
	errInvalidZone = errors.New("invalid high-risk zone")
	// errInvalidContactLimit is returned for a negative contact limit.
	errInvalidContactLimit = errors.New("max emergency contacts must not be negative")
)

// Load reads configuration from the provided path, applies environment
// overrides and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault is Load for clients: a missing settings file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}

	cfg = new(Config)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv exports variables from a .env file; a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

// Save writes Config to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may carry credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults.
//
//nolint:cyclop,funlen // A flat list of defaults reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ServerAddress == "" {
		cfg.ServerAddress = DefaultServerAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if cfg.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics socket: %w", err)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.EscalationDelay <= 0 {
		cfg.EscalationDelay = DefaultEscalationDelay
	}

	switch {
	case cfg.MaxEmergencyContacts < 0:
		return errInvalidContactLimit
	case cfg.MaxEmergencyContacts == 0:
		cfg.MaxEmergencyContacts = DefaultMaxEmergencyContacts
	}

	if cfg.EmergencyNumber == "" {
		cfg.EmergencyNumber = DefaultEmergencyNumber
	}

	if cfg.ReconcileSchedule == "" {
		cfg.ReconcileSchedule = DefaultReconcileSchedule
	}

	switch cfg.Database.Driver {
	case "":
		cfg.Database.Driver = DefaultDatabaseDriver
	case "memory", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("%w: %q", errUnknownDriver, cfg.Database.Driver)
	}

	if cfg.Database.Driver == DefaultDatabaseDriver && cfg.Database.DSN == "" {
		cfg.Database.DSN = DefaultDatabaseDSN
	}

	geo := &cfg.Geocoding
	if geo.NominatimURL == "" {
		geo.NominatimURL = DefaultNominatimURL
	}

	if geo.IPLocateURL == "" {
		geo.IPLocateURL = DefaultIPLocateURL
	}

	if geo.PlacesURL == "" {
		geo.PlacesURL = DefaultPlacesURL
	}

	if geo.UserAgent == "" {
		geo.UserAgent = DefaultUserAgent
	}

	if geo.RequestsPerSecond <= 0 {
		geo.RequestsPerSecond = DefaultRequestsPerSecond
	}

	if geo.CacheTTL <= 0 {
		geo.CacheTTL = DefaultGeocodeCacheTTL
	}

	if geo.SearchRadiusMeters <= 0 {
		geo.SearchRadiusMeters = DefaultSearchRadiusMeters
	}

	if cfg.Messaging.Twilio.BaseURL == "" {
		cfg.Messaging.Twilio.BaseURL = DefaultTwilioBaseURL
	}

	if cfg.Messaging.SMTP.Host == "" {
		cfg.Messaging.SMTP.Host = DefaultSMTPHost
	}

	if cfg.Messaging.SMTP.Port <= 0 {
		cfg.Messaging.SMTP.Port = DefaultSMTPPort
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}

	for i, zone := range cfg.HighRiskZones {
		if zone.RadiusMeters <= 0 || zone.Latitude < -90 || zone.Latitude > 90 ||
			zone.Longitude < -180 || zone.Longitude > 180 {
			return fmt.Errorf("%w: #%d", errInvalidZone, i)
		}
	}

	return nil
}

// applyEnv overrides secrets and endpoints from environment variables.
func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString(&cfg.Messaging.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.Messaging.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.Messaging.Twilio.FromNumber, "TWILIO_PHONE_NUMBER")
	setString(&cfg.Messaging.SMTP.Host, "SMTP_HOST")
	setString(&cfg.Messaging.SMTP.Username, "EMAIL_USERNAME")
	setString(&cfg.Messaging.SMTP.Password, "EMAIL_PASSWORD")
	setString(&cfg.Geocoding.GoogleAPIKey, "GOOGLE_MAPS_API_KEY")
	setString(&cfg.EmergencyAPI.Endpoint, "EMERGENCY_API_ENDPOINT")
	setString(&cfg.EmergencyAPI.APIKey, "EMERGENCY_API_KEY")
	setString(&cfg.Database.DSN, "DATABASE_DSN")

	if v, ok := os.LookupEnv("SMTP_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Messaging.SMTP.Port = port
		}
	}
}
