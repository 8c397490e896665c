package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "config-test-secret-0123")
	t.Setenv("INCIDENT_STRICT_TRANSITIONS", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 12*time.Hour, cfg.JWTTTL)
	require.Equal(t, 50.0, cfg.IncidentDefaultAmount)
	require.True(t, cfg.IncidentStrictTransitions)
	require.Empty(t, cfg.LegacyPGDSN)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}
