package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 5, cfg.StudyMinutesDefault)
	require.Equal(t, int64(500*1024), cfg.Stage1TargetBytes)
	require.Equal(t, 10, cfg.ProgressCleanupMinutes)
	require.Equal(t, 30, cfg.SessionMaxAgeDays)
	require.Equal(t, 60, cfg.RateRecoverySeconds)
}

func TestEnvOverridesAndClampsStudyMinutes(t *testing.T) {
	os.Setenv("MARKETPULSE_STUDY_MINUTES_DEFAULT", "99")
	os.Setenv("MARKETPULSE_ARTIFACT_ROOT", "/tmp/marketpulse-data")
	defer os.Unsetenv("MARKETPULSE_STUDY_MINUTES_DEFAULT")
	defer os.Unsetenv("MARKETPULSE_ARTIFACT_ROOT")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 10, cfg.StudyMinutesDefault, "clamped to [2,10]")
	require.Equal(t, "/tmp/marketpulse-data", cfg.ArtifactRoot)
}

func TestEnvProviderCredentialDiscovery(t *testing.T) {
	os.Setenv("MARKETPULSE_PROVIDER_EXA_1_KEY", "key-a")
	os.Setenv("MARKETPULSE_PROVIDER_EXA_1_NAME", "exa-primary")
	os.Setenv("MARKETPULSE_PROVIDER_EXA_2_KEY", "key-b")
	defer os.Unsetenv("MARKETPULSE_PROVIDER_EXA_1_KEY")
	defer os.Unsetenv("MARKETPULSE_PROVIDER_EXA_1_NAME")
	defer os.Unsetenv("MARKETPULSE_PROVIDER_EXA_2_KEY")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Providers["exa"], 2)
	require.Equal(t, "exa-primary", cfg.Providers["exa"][0].Name)
	require.Equal(t, "exa-2", cfg.Providers["exa"][1].Name)
}
