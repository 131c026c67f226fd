// Package store persists sweep runs: one directory per run holding JSON
// metadata, the sample descriptors, and one CSV trajectory per sample.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"cytoflux/internal/sweep"
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

type RunMetadata struct {
	ID         string    `json:"id"`
	Created    time.Time `json:"created"`
	Species    []string  `json:"species"`
	Samples    int       `json:"samples"`
	Failures   int       `json:"failures"`
	Timepoints int       `json:"timepoints"`
}

// sampleRecord is one row of samples.json: the descriptor plus the error
// message for failed samples.
type sampleRecord struct {
	Index  int                `json:"index"`
	Values map[string]float64 `json:"values"`
	Error  string             `json:"error,omitempty"`
}

// SaveSweep writes a new run directory and returns its ID. Failed samples
// contribute a record but no trajectory file.
func (s *Store) SaveSweep(species []string, timepoints []float64, results []sweep.Result) (string, error) {
	runID := uuid.NewString()
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Created:    time.Now(),
		Species:    species,
		Samples:    len(results),
		Timepoints: len(timepoints),
	}

	records := make([]sampleRecord, len(results))
	for i, r := range results {
		rec := sampleRecord{Index: r.Index, Values: r.Sample}
		if r.Err != nil {
			rec.Error = r.Err.Error()
			meta.Failures++
		} else if err := s.writeTrajectory(runDir, r.Index, species, timepoints, r.Trajectory); err != nil {
			return "", err
		}
		records[i] = rec
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "samples.json"), records); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) writeTrajectory(runDir string, idx int, species []string, timepoints []float64, rows [][]float64) error {
	f, err := os.Create(filepath.Join(runDir, trajectoryName(idx)))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := append([]string{"time"}, species...)
	if err := w.Write(header); err != nil {
		return err
	}
	for i, row := range rows {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, strconv.FormatFloat(timepoints[i], 'f', 6, 64))
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}

// List returns metadata for every run under the base directory, skipping
// entries that fail to parse.
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
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

// Load reads one run's metadata.
func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrajectory reads one sample's trajectory back as times and rows.
func (s *Store) LoadTrajectory(runID string, idx int) ([]float64, [][]float64, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryName(idx)))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 1 {
		return nil, nil, fmt.Errorf("store: trajectory %d of run %s is empty", idx, runID)
	}

	times := make([]float64, 0, len(records)-1)
	rows := make([][]float64, 0, len(records)-1)
	for _, rec := range records[1:] {
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, nil, err
		}
		row := make([]float64, len(rec)-1)
		for j, field := range rec[1:] {
			if row[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, nil, err
			}
		}
		times = append(times, t)
		rows = append(rows, row)
	}
	return times, rows, nil
}

func trajectoryName(idx int) string {
	return fmt.Sprintf("sample_%04d.csv", idx)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
