package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/percept-data/pursuit/internal/motion"
	"github.com/percept-data/pursuit/internal/schedule"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := Empty()

	if got := cfg.GetParticipantID(); got != "test_01" {
		t.Errorf("participant = %q, want test_01", got)
	}
	if got := cfg.GetSpeeds(); len(got) != 2 || got[0] != 2.0 || got[1] != 4.0 {
		t.Errorf("speeds = %v, want [2 4]", got)
	}
	if got := cfg.GetDurations(); len(got) != 3 || got[0] != 500 {
		t.Errorf("durations = %v, want [500 1600 2900]", got)
	}
	if got := cfg.GetInitialWait(); got != 900*time.Millisecond {
		t.Errorf("initial wait = %v, want 900ms", got)
	}
	if got := cfg.GetStartDelays(); len(got) != 2 || got[0] != 200*time.Millisecond {
		t.Errorf("start delays = %v, want [200ms 400ms]", got)
	}
	if got := cfg.GetDebounce(); got != 50*time.Millisecond {
		t.Errorf("debounce = %v, want 50ms", got)
	}
	if got := cfg.GetTickRate(); got != 60.0 {
		t.Errorf("tick rate = %v, want 60", got)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, "exp.json", `{
		"participant_id": "s14",
		"speeds": [3.0],
		"initial_wait": "1s"
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.GetParticipantID(); got != "s14" {
		t.Errorf("participant = %q, want s14", got)
	}
	if got := cfg.GetSpeeds(); len(got) != 1 || got[0] != 3.0 {
		t.Errorf("speeds = %v, want [3]", got)
	}
	if got := cfg.GetInitialWait(); got != time.Second {
		t.Errorf("initial wait = %v, want 1s", got)
	}
	// Unset fields keep their defaults.
	if got := cfg.GetCrossDuration(); got != 900*time.Millisecond {
		t.Errorf("cross duration = %v, want 900ms", got)
	}
}

func TestLoadBlocks(t *testing.T) {
	path := writeConfig(t, "exp.json", `{
		"blocks": [
			{"name": "b1", "policy": "sequential", "library_block": "block1"},
			{"name": "b2", "policy": "distribution", "library_block": "block1",
			 "category": "111111",
			 "distribution": {"occlusion_half": 4, "estimation": 2}}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(cfg.Blocks))
	}
	if cfg.Blocks[1].Policy != schedule.PolicyDistribution {
		t.Errorf("policy = %q, want distribution", cfg.Blocks[1].Policy)
	}
	if cfg.Blocks[1].Distribution[schedule.TaskOcclusionHalf] != 4 {
		t.Errorf("occlusion count = %d, want 4", cfg.Blocks[1].Distribution[schedule.TaskOcclusionHalf])
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := writeConfig(t, "exp.yaml", "participant_id: s14")
	if _, err := Load(path); err == nil {
		t.Fatal("Load should reject a non-json extension")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"negative speed":  `{"speeds": [-1]}`,
		"zero duration":   `{"durations": [0]}`,
		"bad duration":    `{"initial_wait": "abc"}`,
		"bad start delay": `{"start_delays": ["abc"]}`,
		"unknown policy":  `{"blocks": [{"name": "b", "policy": "random"}]}`,
		"zero tick rate":  `{"tick_rate": 0}`,
		"bad mode":        `{"occlusion_mode": "sometimes"}`,
	}
	for name, content := range cases {
		path := writeConfig(t, "exp.json", content)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: Load should fail", name)
		}
	}
}

func TestOcclusionModeSelection(t *testing.T) {
	if got := Empty().GetOcclusionMode(); got != motion.OcclusionRange {
		t.Errorf("default occlusion mode = %q, want range", got)
	}

	path := writeConfig(t, "exp.json", `{"occlusion_mode": "timed"}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.GetOcclusionMode(); got != motion.OcclusionTimed {
		t.Errorf("occlusion mode = %q, want timed", got)
	}
}

func TestValidateAcceptsFullConfig(t *testing.T) {
	cfg := &ExperimentConfig{
		ParticipantID: ptrString("p9"),
		Speeds:        []float64{2, 4},
		TickRate:      ptrFloat64(60),
		ScreenWidth:   ptrInt(1920),
		InitialWait:   ptrString("900ms"),
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := cfg.GetScreenWidth(); got != 1920 {
		t.Errorf("screen width = %d, want 1920", got)
	}
}
