package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/nova"
)

type ExportData struct {
	RunInfo
	Steps    int                `json:"steps"`
	Bodies   []string           `json:"bodies"`
	Times    []float64          `json:"times"`
	Frames   []sim.Frame        `json:"frames"`
	Profiles []nova.Profiler    `json:"profiles,omitempty"`
	Metrics  map[string]float64 `json:"metrics"`
}

func newExport(info RunInfo, result *sim.Result) ExportData {
	return ExportData{
		RunInfo:  info,
		Steps:    result.StepsTaken,
		Bodies:   result.Names,
		Times:    result.Times,
		Frames:   result.Frames,
		Profiles: result.Profiles,
		Metrics:  result.Metrics,
	}
}

func ExportJSON(path string, info RunInfo, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, info, result)
}

func WriteJSON(w io.Writer, info RunInfo, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExport(info, result))
}
