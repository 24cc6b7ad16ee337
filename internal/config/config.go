// Package config provides configuration types and defaults for antrail.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/params"
	"github.com/zjrosen/antrail/internal/tracing"
)

// Config holds all configuration options for antrail.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Defaults  ParamDefaults   `mapstructure:"defaults"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	UI        UIConfig        `mapstructure:"ui"`
	Tracing   tracing.Config  `mapstructure:"tracing"`
	Debug     bool            `mapstructure:"debug"`
}

// ServerConfig locates the ACO backend.
type ServerConfig struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`  // Non-streaming requests only
	Instance string        `mapstructure:"instance"` // Loaded on startup when set
}

// ParamDefaults pre-fill the parameter form and the run command flags.
type ParamDefaults struct {
	Alpha         float64 `mapstructure:"alpha" yaml:"alpha"`
	Beta          float64 `mapstructure:"beta" yaml:"beta"`
	Evaporation   float64 `mapstructure:"evaporation" yaml:"evaporation"`
	Q             float64 `mapstructure:"q" yaml:"q"`
	NumAnts       int     `mapstructure:"num_ants" yaml:"num_ants"`
	NumIterations int     `mapstructure:"num_iterations" yaml:"num_iterations"`

	// ExpectedRuns is the batch size shown in progress; zero hides it.
	ExpectedRuns int `mapstructure:"expected_runs" yaml:"expected_runs"`

	// Seed is the last seed solution, as a JSON array.
	Seed string `mapstructure:"seed" yaml:"seed,omitempty"`
}

// Raw renders the defaults as form input. seeded selects whether the seed
// text is included.
func (d ParamDefaults) Raw(seeded bool) params.RawInput {
	raw := params.RawInput{
		Alpha:         strconv.FormatFloat(d.Alpha, 'g', -1, 64),
		Beta:          strconv.FormatFloat(d.Beta, 'g', -1, 64),
		Evaporation:   strconv.FormatFloat(d.Evaporation, 'g', -1, 64),
		Q:             strconv.FormatFloat(d.Q, 'g', -1, 64),
		NumAnts:       strconv.Itoa(d.NumAnts),
		NumIterations: strconv.Itoa(d.NumIterations),
	}
	if seeded {
		seed := d.Seed
		raw.SeedSolution = &seed
	}
	return raw
}

// FromParams captures a validated parameter set, keeping the batch hint.
func (d ParamDefaults) FromParams(ps params.ParameterSet) ParamDefaults {
	d.Alpha, d.Beta, d.Evaporation, d.Q = ps.Alpha, ps.Beta, ps.Evaporation, ps.Q
	d.NumAnts, d.NumIterations = ps.NumAnts, ps.NumIterations
	if ps.HasSeed {
		if text, err := ps.SeedSolution.MarshalText(); err == nil {
			d.Seed = string(text)
		}
	}
	return d
}

// ArtifactsConfig controls artifact caching and saving.
type ArtifactsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// SaveDir receives artifacts saved from the UI or by run --save-artifacts.
	SaveDir string `mapstructure:"save_dir"`
}

// UIConfig holds user interface configuration options.
type UIConfig struct {
	MarkdownStyle string `mapstructure:"markdown_style"` // "dark" (default) or "light"
	ShowProgress  bool   `mapstructure:"show_progress"`  // Show progress bars for active sessions
	JournalLines  int    `mapstructure:"journal_lines"`  // Journal entries kept on screen
	RememberInput bool   `mapstructure:"remember_input"` // Save parameters to the config file on run
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/antrail/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "antrail", "traces", "traces.jsonl")
}

// DefaultParams match the solver's own parameter defaults.
func DefaultParams() ParamDefaults {
	return ParamDefaults{
		Alpha:         1,
		Beta:          2,
		Evaporation:   0.5,
		Q:             10,
		NumAnts:       100,
		NumIterations: 100,
		ExpectedRuns:  5,
	}
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			URL:     "http://127.0.0.1:5000",
			Timeout: 30 * time.Second,
		},
		Defaults: DefaultParams(),
		Artifacts: ArtifactsConfig{
			CacheTTL: 10 * time.Minute,
			SaveDir:  "antrail-artifacts",
		},
		UI: UIConfig{
			MarkdownStyle: "dark",
			ShowProgress:  true,
			JournalLines:  200,
			RememberInput: true,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Load reads the config file at path over Defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks the whole configuration and reports every problem.
func Validate(cfg Config) error {
	return errors.Join(
		ValidateServer(cfg.Server),
		ValidateDefaults(cfg.Defaults),
		ValidateArtifacts(cfg.Artifacts),
		ValidateUI(cfg.UI),
		ValidateTracing(cfg.Tracing),
	)
}

// ValidateServer checks the backend address.
func ValidateServer(s ServerConfig) error {
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.url must be an http(s) URL, got %q", s.URL)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative, got %s", s.Timeout)
	}
	return nil
}

// ValidateDefaults runs the parameter defaults through the same validation
// as form input. An empty seed is allowed.
func ValidateDefaults(d ParamDefaults) error {
	seeded := d.Seed != ""
	if _, err := params.Validate(d.Raw(seeded)); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if d.ExpectedRuns < 0 {
		return fmt.Errorf("defaults.expected_runs must not be negative, got %d", d.ExpectedRuns)
	}
	return nil
}

// ValidateArtifacts checks artifact settings.
func ValidateArtifacts(a ArtifactsConfig) error {
	if a.CacheTTL < 0 {
		return fmt.Errorf("artifacts.cache_ttl must not be negative, got %s", a.CacheTTL)
	}
	return nil
}

// ValidateUI checks user interface settings.
func ValidateUI(ui UIConfig) error {
	switch ui.MarkdownStyle {
	case "", "dark", "light":
	default:
		return fmt.Errorf("ui.markdown_style must be \"dark\" or \"light\", got %q", ui.MarkdownStyle)
	}
	if ui.JournalLines < 0 {
		return fmt.Errorf("ui.journal_lines must not be negative, got %d", ui.JournalLines)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	if tc.Exporter != "" {
		switch tc.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
		}
	}

	// Path requirements only matter when tracing is on.
	if tc.Enabled {
		if tc.Exporter == "file" && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == "otlp" && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# antrail configuration

# ACO backend
server:
  url: http://127.0.0.1:5000   # Run 'antrail mock-server' for a local backend
  timeout: 30s                 # Timeout for non-streaming requests
  # instance: berlin52         # Instance loaded on startup

# Parameter defaults for the form and 'antrail run'
# Updated automatically after each run when ui.remember_input is true
defaults:
  alpha: 1
  beta: 2
  evaporation: 0.5
  q: 10
  num_ants: 100
  num_iterations: 100
  expected_runs: 5            # Batch size shown in progress (0 hides it)
  # seed: "[0, 3, 1, 2]"      # Seed solution for seeded runs

# Post-run artifacts
artifacts:
  cache_ttl: 10m              # How long fetched figures and plots are reused
  save_dir: antrail-artifacts # Where saved artifacts are written

# UI settings
ui:
  markdown_style: dark        # Help rendering style: "dark" (default) or "light"
  show_progress: true         # Show progress bars for active sessions
  journal_lines: 200          # Journal entries kept on screen
  remember_input: true        # Save parameters to this file on run

# Tracing: one span per run session
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/antrail/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# Write a debug log to debug.log
# debug: false
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
