package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultScene(t *testing.T) {
	sc := DefaultScene()

	if sc.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if sc.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if err := sc.Validate(); err != nil {
		t.Errorf("default scene should validate: %v", err)
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range ListPresets() {
		sc := GetPreset(name)
		if sc == nil {
			t.Fatalf("preset %s: got nil", name)
		}
		if err := sc.Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestGetPreset_Fresh(t *testing.T) {
	a := GetPreset("pyramid")
	a.Bodies = nil
	if len(GetPreset("pyramid").Bodies) == 0 {
		t.Error("presets should not share state")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	want := GetPreset("pendulum")
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != want.Name || len(got.Bodies) != len(want.Bodies) || len(got.Constraints) != len(want.Constraints) {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Constraints[0].AnchorA != want.Constraints[0].AnchorA {
		t.Errorf("anchor: got %v, want %v", got.Constraints[0].AnchorA, want.Constraints[0].AnchorA)
	}
}

func TestParseDefaults(t *testing.T) {
	sc, err := Parse([]byte("name: tiny\nbodies:\n  - name: ball\n    kind: dynamic\n    shapes:\n      - type: circle\n        radius: 0.5\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sc.Dt != DefaultDt || sc.Iterations != DefaultIterations {
		t.Errorf("defaults not applied: %+v", sc)
	}
	if m := sc.Bodies[0].Material(); m.Density != 1 {
		t.Errorf("expected default density, got %g", m.Density)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad dt", "dt: -1\n"},
		{"bad broadphase", "broadphase: octree\n"},
		{"bad kind", "bodies:\n  - name: a\n    kind: kinematic\n"},
		{"duplicate body", "bodies:\n  - name: a\n  - name: a\n"},
		{"bad shape", "bodies:\n  - name: a\n    shapes:\n      - type: circle\n        radius: 0\n"},
		{"no endpoints", "constraints:\n  - type: distance\n    length: 1\n"},
		{"unknown body", "constraints:\n  - type: hinge\n    a: ghost\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
