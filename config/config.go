// Package config loads the coordination core's runtime configuration: an
// optional YAML overlay file provides defaults for local development
// (grounded on the platform's YAML connector file loader), and environment
// variables always take precedence, matching the enumerated configuration
// surface in the specification's external-interfaces contract.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CredentialEntry is a single (name, base URL, API key) endpoint declared
// for a capability class, either via YAML overlay or an indexed env var
// group (e.g. MARKETPULSE_PROVIDER_EXA_1_KEY).
type CredentialEntry struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// FileConfig is the shape of the optional YAML overlay.
type FileConfig struct {
	Providers map[string][]CredentialEntry `yaml:"providers"`
}

// Config is the fully resolved runtime configuration.
type Config struct {
	ArtifactRoot           string
	StudyMinutesDefault    int
	Stage1TargetBytes      int64
	ProgressCleanupMinutes int
	SessionMaxAgeDays      int
	RateRecoverySeconds    int
	HealthCheckInterval    time.Duration
	SessionCleanupInterval time.Duration

	// Providers maps capability class -> declared endpoints, merged from
	// the YAML overlay (base) and environment variables (override/add).
	Providers map[string][]CredentialEntry
}

const (
	defaultStudyMinutes   = 5
	defaultTargetBytes    = 500 * 1024
	defaultCleanupMinutes = 10
	defaultMaxAgeDays     = 30
	defaultRecoverySecs   = 60
)

// Load resolves configuration from an optional YAML file at yamlPath
// (ignored if empty or unreadable) overlaid by environment variables.
func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		ArtifactRoot:           "./data",
		StudyMinutesDefault:    defaultStudyMinutes,
		Stage1TargetBytes:      defaultTargetBytes,
		ProgressCleanupMinutes: defaultCleanupMinutes,
		SessionMaxAgeDays:      defaultMaxAgeDays,
		RateRecoverySeconds:    defaultRecoverySecs,
		HealthCheckInterval:    5 * time.Minute,
		SessionCleanupInterval: time.Hour,
		Providers:              map[string][]CredentialEntry{},
	}

	if yamlPath != "" {
		if raw, err := os.ReadFile(yamlPath); err == nil {
			var fc FileConfig
			if err := yaml.Unmarshal(raw, &fc); err != nil {
				return nil, err
			}
			for class, entries := range fc.Providers {
				cfg.Providers[class] = entries
			}
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MARKETPULSE_ARTIFACT_ROOT"); v != "" {
		cfg.ArtifactRoot = v
	}
	if v, err := strconv.Atoi(os.Getenv("MARKETPULSE_STUDY_MINUTES_DEFAULT")); err == nil {
		cfg.StudyMinutesDefault = clamp(v, 2, 10)
	}
	if v, err := strconv.ParseInt(os.Getenv("MARKETPULSE_STAGE1_TARGET_BYTES"), 10, 64); err == nil && v > 0 {
		cfg.Stage1TargetBytes = v
	}
	if v, err := strconv.Atoi(os.Getenv("MARKETPULSE_PROGRESS_CLEANUP_MINUTES")); err == nil && v > 0 {
		cfg.ProgressCleanupMinutes = v
	}
	if v, err := strconv.Atoi(os.Getenv("MARKETPULSE_SESSION_MAX_AGE_DAYS")); err == nil && v > 0 {
		cfg.SessionMaxAgeDays = v
	}
	if v, err := strconv.Atoi(os.Getenv("MARKETPULSE_RATE_RECOVERY_SECONDS")); err == nil && v > 0 {
		cfg.RateRecoverySeconds = v
	}

	for _, class := range CapabilityClasses {
		envPrefix := "MARKETPULSE_PROVIDER_" + envKey(class)
		for i := 1; ; i++ {
			key := os.Getenv(envPrefix + "_" + strconv.Itoa(i) + "_KEY")
			if key == "" {
				break
			}
			name := os.Getenv(envPrefix + "_" + strconv.Itoa(i) + "_NAME")
			if name == "" {
				name = class + "-" + strconv.Itoa(i)
			}
			baseURL := os.Getenv(envPrefix + "_" + strconv.Itoa(i) + "_BASE_URL")
			cfg.Providers[class] = append(cfg.Providers[class], CredentialEntry{
				Name: name, BaseURL: baseURL, APIKey: key,
			})
		}
	}
}

func envKey(class string) string {
	out := make([]byte, 0, len(class))
	for _, r := range class {
		if r == '-' {
			out = append(out, '_')
			continue
		}
		if r >= 'a' && r <= 'z' {
			out = append(out, byte(r-'a'+'A'))
			continue
		}
		out = append(out, byte(r))
	}
	return string(out)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CapabilityClasses is the closed set of provider capability classes per
// the registry's keying scheme.
var CapabilityClasses = []string{
	"qwen-compatible", "gemini", "openai", "groq", "deepseek",
	"jina-read", "exa", "serper", "serpapi", "tavily",
	"supadata", "firecrawl", "scrapingant", "youtube", "rapidapi",
}
