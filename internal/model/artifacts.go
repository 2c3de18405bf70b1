package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	ModelFile   = "model.json"
	ColumnsFile = "feature_columns.json"
	MetricsFile = "metrics.json"
)

// Artifacts is everything a prediction needs from a training run.
type Artifacts struct {
	Model   *LinearModel
	Columns []string
	Report  Report
}

// Save writes the three artifact files into dir.
func (a Artifacts) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("Artifacts.Save: create dir: %w", err)
	}
	files := []struct {
		name string
		v    any
	}{
		{ModelFile, a.Model},
		{ColumnsFile, a.Columns},
		{MetricsFile, a.Report},
	}
	for _, f := range files {
		data, err := json.MarshalIndent(f.v, "", "  ")
		if err != nil {
			return fmt.Errorf("Artifacts.Save: encode %s: %w", f.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("Artifacts.Save: write %s: %w", f.name, err)
		}
	}
	return nil
}

// LoadArtifacts reads the artifact files from dir.
func LoadArtifacts(dir string) (Artifacts, error) {
	var a Artifacts
	targets := []struct {
		name string
		v    any
	}{
		{ModelFile, &a.Model},
		{ColumnsFile, &a.Columns},
		{MetricsFile, &a.Report},
	}
	for _, t := range targets {
		data, err := os.ReadFile(filepath.Join(dir, t.name))
		if err != nil {
			return Artifacts{}, fmt.Errorf("LoadArtifacts: %w", err)
		}
		if err := json.Unmarshal(data, t.v); err != nil {
			return Artifacts{}, fmt.Errorf("LoadArtifacts: decode %s: %w", t.name, err)
		}
	}
	if a.Model == nil || len(a.Model.Coefficients) != len(a.Columns) {
		return Artifacts{}, fmt.Errorf("LoadArtifacts: model has %d coefficients for %d columns", coefCount(a.Model), len(a.Columns))
	}
	return a, nil
}

func coefCount(m *LinearModel) int {
	if m == nil {
		return 0
	}
	return len(m.Coefficients)
}
