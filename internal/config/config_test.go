package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
)

// TestValidate checks required fields, format validations and defaults.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty settings get defaults.
	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultServerAddress, cfg.ServerAddress)
	require.Equal(t, DefaultEscalationDelay, cfg.EscalationDelay)
	require.Equal(t, DefaultMaxEmergencyContacts, cfg.MaxEmergencyContacts)
	require.Equal(t, DefaultEmergencyNumber, cfg.EmergencyNumber)
	require.Equal(t, DefaultDatabaseDriver, cfg.Database.Driver)
	require.Equal(t, DefaultDatabaseDSN, cfg.Database.DSN)
	require.Equal(t, DefaultSMTPPort, cfg.Messaging.SMTP.Port)
	require.Equal(t, DefaultReconcileSchedule, cfg.ReconcileSchedule)

	// Bad socket.
	cfg = &Config{ServerAddress: "bad:address"}
	require.Error(t, Validate(cfg))

	// Unknown driver.
	cfg = &Config{Database: Database{Driver: "oracle"}}
	require.ErrorIs(t, Validate(cfg), errUnknownDriver)

	// Zone without radius.
	cfg = &Config{HighRiskZones: []emergency.Zone{{Latitude: 40, Longitude: -74}}}
	require.ErrorIs(t, Validate(cfg), errInvalidZone)

	// Negative contact limit.
	cfg = &Config{MaxEmergencyContacts: -1}
	require.ErrorIs(t, Validate(cfg), errInvalidContactLimit)

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := &Config{
		ServerAddress:   "127.0.0.1:50051",
		EscalationDelay: 45 * time.Second,
		Database:        Database{Driver: "memory"},
		HighRiskZones: []emergency.Zone{
			{Latitude: 40.7128, Longitude: -74.006, RadiusMeters: 1000},
		},
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ServerAddress, loaded.ServerAddress)
	require.Equal(t, 45*time.Second, loaded.EscalationDelay)
	require.Equal(t, "memory", loaded.Database.Driver)
	require.Equal(t, cfg.HighRiskZones, loaded.HighRiskZones)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoadAppliesEnvironment verifies secrets are taken from the environment.
func TestLoadAppliesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_addr: 127.0.0.1:6000\n"), DefaultFilePermissions))

	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("GOOGLE_MAPS_API_KEY", "maps-key")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "AC123", cfg.Messaging.Twilio.AccountSID)
	require.Equal(t, "maps-key", cfg.Geocoding.GoogleAPIKey)
	require.Equal(t, 2525, cfg.Messaging.SMTP.Port)
}

// TestLoadDotEnv tolerates a missing file and exports variables from an existing one.
func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("EMERGENCY_TEST_VALUE=42\n"), DefaultFilePermissions))
	t.Setenv("EMERGENCY_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("EMERGENCY_TEST_VALUE"))

	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "42", os.Getenv("EMERGENCY_TEST_VALUE"))
}

// TestLoadOrDefault falls back to defaults only when the file is missing.
func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultServerAddress, cfg.ServerAddress)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("timeout: [\n"), DefaultFilePermissions))

	_, err = LoadOrDefault(broken)
	require.Error(t, err)
}
