package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/nova"
)

func sampleResult() *sim.Result {
	return &sim.Result{
		Names: []string{"ball"},
		Frames: []sim.Frame{
			{{Name: "ball", Position: nova.V(0, 10)}},
			{{Name: "ball", Position: nova.V(0, 9.9), Velocity: nova.V(0, -1)}},
		},
		Times:      []float64{0.0, 0.01},
		StepsTaken: 1,
		Metrics: map[string]float64{
			"kinetic_energy": 1.5,
		},
	}
}

var info = RunInfo{Scene: "test", Engine: "chipmunk", Broadphase: "bvh", Dt: 0.01, Duration: 0.01}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(info, sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Scene != "test" {
		t.Errorf("expected scene 'test', got '%s'", meta.Scene)
	}
	if meta.Metrics["kinetic_energy"] != 1.5 {
		t.Errorf("expected energy 1.5, got %f", meta.Metrics["kinetic_energy"])
	}
	if meta.Steps != 1 || len(meta.Bodies) != 1 {
		t.Errorf("unexpected metadata %+v", meta)
	}

	states, times, err := st.LoadStates(runID)
	if err != nil {
		t.Fatalf("load states failed: %v", err)
	}
	if len(states) != 2 || len(times) != 2 {
		t.Fatalf("expected 2 rows, got %d states and %d times", len(states), len(times))
	}
	ys, err := Column(states, 0, "y")
	if err != nil {
		t.Fatalf("column: %v", err)
	}
	if ys[1] != 9.9 {
		t.Errorf("expected y 9.9, got %f", ys[1])
	}
	if _, err := Column(states, 0, "z"); err == nil {
		t.Error("expected unknown field error")
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	for range 2 {
		if _, err := st.Save(info, sampleResult()); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID == runs[1].ID {
		t.Error("run ids should be unique")
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runID, err := st.Save(info, sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, name := range []string{"metadata.json", "states.csv"} {
		if _, err := os.Stat(filepath.Join(tmpDir, runID, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestListMissingDir(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "missing")).List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v, %v", runs, err)
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, info, sampleResult()); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var got ExportData
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Scene != "test" || len(got.Frames) != 2 || got.Frames[1][0].Position.Y != 9.9 {
		t.Errorf("unexpected export %+v", got)
	}

	path := filepath.Join(t.TempDir(), "run.json")
	if err := ExportJSON(path, info, sampleResult()); err != nil {
		t.Fatalf("export file failed: %v", err)
	}
}

func TestLoadResult(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	runID, err := st.Save(info, sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	meta, result, err := st.LoadResult(runID)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if meta.ID != runID {
		t.Errorf("expected id %s, got %s", runID, meta.ID)
	}
	if len(result.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(result.Frames))
	}
	got := result.Frames[1][0]
	if got.Name != "ball" || got.Position.Y != 9.9 || got.Velocity.Y != -1 {
		t.Errorf("unexpected frame %+v", got)
	}
	if result.StepsTaken != 1 {
		t.Errorf("expected 1 step, got %d", result.StepsTaken)
	}
}
