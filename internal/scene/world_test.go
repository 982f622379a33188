package scene

import (
	"testing"

	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/native/chipmunk"
	"github.com/san-kum/novabind/native/nativetest"
	"github.com/san-kum/novabind/nova"
)

func TestBuildPresets(t *testing.T) {
	for _, name := range config.ListPresets() {
		t.Run(name, func(t *testing.T) {
			e := chipmunk.New()
			sc := config.GetPreset(name)
			w, err := Build(e, sc, nil)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if got := w.Space.BodyCount(); got != len(sc.Bodies) {
				t.Errorf("expected %d bodies, got %d", len(sc.Bodies), got)
			}
			if got := w.Space.ConstraintCount(); got != len(sc.Constraints) {
				t.Errorf("expected %d constraints, got %d", len(sc.Constraints), got)
			}
			for i := 0; i < 10; i++ {
				if err := w.Space.Step(sc.Dt); err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
			}
			if err := w.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if n := e.LiveCount(); n != 0 {
				t.Errorf("expected every handle released, %d live", n)
			}
		})
	}
}

func TestBodyLookup(t *testing.T) {
	w, err := Build(nativetest.New(), config.GetPreset("pendulum"), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer w.Close()

	b, ok := w.Body("bob_1")
	if !ok {
		t.Fatal("bob_1 not found")
	}
	if b.UserData != "bob_1" {
		t.Errorf("unexpected user data %v", b.UserData)
	}
	if b.Kind() != nova.Dynamic {
		t.Error("bob should be dynamic")
	}
	if _, ok := w.Body("nobody"); ok {
		t.Error("unexpected body")
	}

	n := 0
	for range w.DynamicBodies() {
		n++
	}
	if n != 3 {
		t.Errorf("expected 3 dynamic bodies, got %d", n)
	}
}

func TestBuildFailureReleases(t *testing.T) {
	fake := nativetest.New()
	fake.FailNext("SpaceAddConstraint", "full")

	_, err := Build(fake, config.GetPreset("pendulum"), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if n := fake.LiveCount(); n != 0 {
		t.Errorf("expected partial world released, %d live", n)
	}
}

func TestBuildRejectsInvalidScene(t *testing.T) {
	sc := config.DefaultScene()
	sc.Dt = 0
	if _, err := Build(nativetest.New(), sc, nil); err == nil {
		t.Error("expected validation error")
	}
}
