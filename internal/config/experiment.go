// Package config loads the experiment configuration. All fields are
// optional in the JSON file; the Get* accessors fall back to the
// calibrated defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/percept-data/pursuit/internal/motion"
	"github.com/percept-data/pursuit/internal/schedule"
)

// DefaultConfigPath is the path to the canonical experiment defaults
// file, relative to the repository root.
const DefaultConfigPath = "config/experiment.defaults.json"

// ExperimentConfig is the root configuration. The schema matches the
// /api/config endpoint so the same JSON serves startup configuration
// and runtime inspection.
type ExperimentConfig struct {
	ParticipantID *string `json:"participant_id,omitempty"`

	// Stimulus params
	Speeds       []float64 `json:"speeds,omitempty"`       // px/frame
	Durations    []float64 `json:"durations,omitempty"`    // ms
	TickRate     *float64  `json:"tick_rate,omitempty"`    // Hz
	ScreenWidth  *int      `json:"screen_width,omitempty"` // px
	ScreenHeight *int      `json:"screen_height,omitempty"`

	// Timing params, duration strings like "900ms"
	InitialWait    *string  `json:"initial_wait,omitempty"`
	StartDelays    []string `json:"start_delays,omitempty"`
	CrossDuration  *string  `json:"cross_duration,omitempty"`
	SettleDelay    *string  `json:"settle_delay,omitempty"`
	OcclusionDelay *string  `json:"occlusion_delay,omitempty"`
	OcclusionMode  *string  `json:"occlusion_mode,omitempty"` // "range" or "timed"
	Debounce       *string  `json:"debounce,omitempty"`

	// Data params
	DataDir           *string `json:"data_dir,omitempty"`
	DatabasePath      *string `json:"database_path,omitempty"`
	TrajectoryLibrary *string `json:"trajectory_library,omitempty"`

	// Seed pins the random source for reproducible sessions.
	Seed *int64 `json:"seed,omitempty"`

	// Blocks configures the trial schedule. Empty means one
	// sequential block per library block.
	Blocks []schedule.BlockConfig `json:"blocks,omitempty"`

	// Monitor params
	ListenAddr *string `json:"listen_addr,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns an ExperimentConfig with all fields unset.
func Empty() *ExperimentConfig {
	return &ExperimentConfig{}
}

// Load reads an ExperimentConfig from a JSON file. The file must have
// a .json extension and stay under the max file size.
func Load(path string) (*ExperimentConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *ExperimentConfig) Validate() error {
	for _, s := range c.Speeds {
		if s <= 0 {
			return fmt.Errorf("speeds must be positive, got %f", s)
		}
	}
	for _, d := range c.Durations {
		if d <= 0 {
			return fmt.Errorf("durations must be positive, got %f", d)
		}
	}
	if c.TickRate != nil && *c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive, got %f", *c.TickRate)
	}

	for name, field := range map[string]*string{
		"initial_wait":    c.InitialWait,
		"cross_duration":  c.CrossDuration,
		"settle_delay":    c.SettleDelay,
		"occlusion_delay": c.OcclusionDelay,
		"debounce":        c.Debounce,
	} {
		if field != nil && *field != "" {
			if _, err := time.ParseDuration(*field); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *field, err)
			}
		}
	}
	for _, d := range c.StartDelays {
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid start_delays entry '%s': %w", d, err)
		}
	}

	if c.OcclusionMode != nil {
		switch motion.OcclusionMode(*c.OcclusionMode) {
		case "", motion.OcclusionRange, motion.OcclusionTimed:
		default:
			return fmt.Errorf("unknown occlusion_mode %q", *c.OcclusionMode)
		}
	}

	for _, b := range c.Blocks {
		switch b.Policy {
		case "", schedule.PolicySequential, schedule.PolicyDistribution:
		default:
			return fmt.Errorf("unknown block policy %q in block %q", b.Policy, b.Name)
		}
	}
	return nil
}

func durationOr(field *string, fallback time.Duration) time.Duration {
	if field == nil || *field == "" {
		return fallback
	}
	d, err := time.ParseDuration(*field)
	if err != nil {
		return fallback
	}
	return d
}

// GetParticipantID returns the participant_id value or the default.
func (c *ExperimentConfig) GetParticipantID() string {
	if c.ParticipantID == nil || *c.ParticipantID == "" {
		return "test_01"
	}
	return *c.ParticipantID
}

// GetSpeeds returns the speed set or the default slow/fast pair.
func (c *ExperimentConfig) GetSpeeds() []float64 {
	if len(c.Speeds) == 0 {
		return []float64{2.0, 4.0}
	}
	return c.Speeds
}

// GetDurations returns the duration set or the defaults.
func (c *ExperimentConfig) GetDurations() []float64 {
	if len(c.Durations) == 0 {
		return []float64{500, 1600, 2900}
	}
	return c.Durations
}

// GetTickRate returns the tick_rate value or the default.
func (c *ExperimentConfig) GetTickRate() float64 {
	if c.TickRate == nil {
		return 60.0
	}
	return *c.TickRate
}

// GetScreenWidth returns the screen_width value or the default.
func (c *ExperimentConfig) GetScreenWidth() int {
	if c.ScreenWidth == nil {
		return 1280
	}
	return *c.ScreenWidth
}

// GetScreenHeight returns the screen_height value or the default.
func (c *ExperimentConfig) GetScreenHeight() int {
	if c.ScreenHeight == nil {
		return 720
	}
	return *c.ScreenHeight
}

// GetInitialWait parses and returns the initial_wait duration.
func (c *ExperimentConfig) GetInitialWait() time.Duration {
	return durationOr(c.InitialWait, 900*time.Millisecond)
}

// GetStartDelays parses and returns the start_delays set.
func (c *ExperimentConfig) GetStartDelays() []time.Duration {
	if len(c.StartDelays) == 0 {
		return []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}
	}
	out := make([]time.Duration, 0, len(c.StartDelays))
	for _, s := range c.StartDelays {
		d, err := time.ParseDuration(s)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}
	}
	return out
}

// GetCrossDuration parses and returns the cross_duration value.
func (c *ExperimentConfig) GetCrossDuration() time.Duration {
	return durationOr(c.CrossDuration, 900*time.Millisecond)
}

// GetSettleDelay parses and returns the settle_delay value.
func (c *ExperimentConfig) GetSettleDelay() time.Duration {
	return durationOr(c.SettleDelay, 900*time.Millisecond)
}

// GetOcclusionDelay parses and returns the occlusion_delay value.
func (c *ExperimentConfig) GetOcclusionDelay() time.Duration {
	return durationOr(c.OcclusionDelay, 500*time.Millisecond)
}

// GetOcclusionMode returns the occlusion_mode value or range mode.
func (c *ExperimentConfig) GetOcclusionMode() motion.OcclusionMode {
	if c.OcclusionMode == nil || *c.OcclusionMode == "" {
		return motion.OcclusionRange
	}
	return motion.OcclusionMode(*c.OcclusionMode)
}

// GetDebounce parses and returns the debounce window.
func (c *ExperimentConfig) GetDebounce() time.Duration {
	return durationOr(c.Debounce, 50*time.Millisecond)
}

// GetDataDir returns the data_dir value or the default.
func (c *ExperimentConfig) GetDataDir() string {
	if c.DataDir == nil || *c.DataDir == "" {
		return "data"
	}
	return *c.DataDir
}

// GetDatabasePath returns the database_path value or the default.
func (c *ExperimentConfig) GetDatabasePath() string {
	if c.DatabasePath == nil || *c.DatabasePath == "" {
		return "data/pursuit.db"
	}
	return *c.DatabasePath
}

// GetTrajectoryLibrary returns the trajectory_library path or the
// default.
func (c *ExperimentConfig) GetTrajectoryLibrary() string {
	if c.TrajectoryLibrary == nil || *c.TrajectoryLibrary == "" {
		return "config/trajectories.json"
	}
	return *c.TrajectoryLibrary
}

// GetListenAddr returns the monitor listen address or the default.
func (c *ExperimentConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return "127.0.0.1:8099"
	}
	return *c.ListenAddr
}
