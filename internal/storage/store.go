package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/nova"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// RunInfo describes how a run was produced.
type RunInfo struct {
	Scene      string  `json:"scene"`
	Engine     string  `json:"engine"`
	Broadphase string  `json:"broadphase"`
	Dt         float64 `json:"dt"`
	Duration   float64 `json:"duration"`
}

type RunMetadata struct {
	ID        string             `json:"id"`
	RunID     uuid.UUID          `json:"run_uuid"`
	Timestamp time.Time          `json:"timestamp"`
	Steps     int                `json:"steps"`
	Bodies    []string           `json:"bodies"`
	Metrics   map[string]float64 `json:"metrics"`
	RunInfo
}

var stateFields = []string{"x", "y", "angle", "vx", "vy", "omega"}

func (s *Store) Save(info RunInfo, result *sim.Result) (string, error) {
	id := uuid.New()
	runID := fmt.Sprintf("%s_%s", info.Scene, strings.SplitN(id.String(), "-", 2)[0])
	runDir := s.Dir(runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		RunID:     id,
		Timestamp: time.Now(),
		Steps:     result.StepsTaken,
		Bodies:    result.Names,
		Metrics:   result.Metrics,
		RunInfo:   info,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := []string{"time"}
	for _, name := range result.Names {
		for _, field := range stateFields {
			header = append(header, name+"."+field)
		}
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for i, f := range result.Frames {
		row := []string{strconv.FormatFloat(result.Times[i], 'f', 6, 64)}
		for _, val := range f.Flatten() {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

// List returns every stored run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadStates reads states.csv back as flattened rows and their times.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	file, err := os.Open(filepath.Join(s.Dir(runID), "states.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)

	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		times = append(times, t)

		state := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				continue
			}
			state = append(state, val)
		}
		states = append(states, state)
	}

	return states, times, nil
}

// Column extracts one field of body i from LoadStates rows.
func Column(states [][]float64, body int, field string) ([]float64, error) {
	idx := -1
	for i, f := range stateFields {
		if f == field {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("unknown field %q, want one of %s", field, strings.Join(stateFields, ", "))
	}
	col := 6*body + idx
	out := make([]float64, 0, len(states))
	for _, row := range states {
		if col < len(row) {
			out = append(out, row[col])
		}
	}
	return out, nil
}

// LoadResult rebuilds a run's frames from states.csv. Masses are not stored
// and come back as zero.
func (s *Store) LoadResult(runID string) (*RunMetadata, *sim.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	states, times, err := s.LoadStates(runID)
	if err != nil {
		return nil, nil, err
	}

	n := len(stateFields)
	result := &sim.Result{
		Names:      meta.Bodies,
		Times:      times,
		Frames:     make([]sim.Frame, 0, len(states)),
		StepsTaken: meta.Steps,
		Metrics:    meta.Metrics,
	}
	for i, row := range states {
		if len(row) != n*len(meta.Bodies) {
			return nil, nil, fmt.Errorf("run %s: row %d has %d values, want %d", runID, i, len(row), n*len(meta.Bodies))
		}
		f := make(sim.Frame, len(meta.Bodies))
		for j, name := range meta.Bodies {
			v := row[j*n : (j+1)*n]
			f[j] = sim.BodyState{
				Name:            name,
				Position:        nova.V(v[0], v[1]),
				Angle:           v[2],
				Velocity:        nova.V(v[3], v[4]),
				AngularVelocity: v[5],
			}
		}
		result.Frames = append(result.Frames, f)
	}
	return meta, result, nil
}
