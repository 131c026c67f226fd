package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Samples <= 0 {
		t.Error("samples should be positive")
	}
	if cfg.Workers <= 0 {
		t.Error("workers should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestTimepointsVector(t *testing.T) {
	tp := Timepoints{Start: 0, End: 10, Steps: 11}
	v := tp.Vector()
	if len(v) != 11 {
		t.Fatalf("expected 11 points, got %d", len(v))
	}
	if v[0] != 0 || v[10] != 10 {
		t.Errorf("endpoints wrong: %g..%g", v[0], v[10])
	}
	if v[5] != 5 {
		t.Errorf("expected even spacing, midpoint %g", v[5])
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")

	cfg := DefaultConfig()
	cfg.Samples = 32
	cfg.Ranges = map[string]Range{"k_kill": {Lo: 0, Hi: 10}}
	cfg.Pins = [][]string{{"k_kill", "k_secrete"}}
	cfg.Quash = map[string][]string{"cart": {"[tx_cell].[cart].[blood].[activated=0]"}}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if got.Samples != 32 {
		t.Errorf("samples: expected 32, got %d", got.Samples)
	}
	if r := got.Ranges["k_kill"]; r.Lo != 0 || r.Hi != 10 {
		t.Errorf("range lost in round trip: %+v", r)
	}
	if len(got.Pins) != 1 || got.Pins[0][1] != "k_secrete" {
		t.Errorf("pins lost in round trip: %v", got.Pins)
	}
	if len(got.Quash["cart"]) != 1 {
		t.Errorf("quash groups lost in round trip: %v", got.Quash)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Samples = 0 },
		func(c *Config) { c.Workers = -1 },
		func(c *Config) { c.Timepoints.Steps = 1 },
		func(c *Config) { c.Timepoints.End = c.Timepoints.Start },
		func(c *Config) { c.Ranges = map[string]Range{"k": {Lo: 5, Hi: 1}} },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
