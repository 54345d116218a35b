package config

import (
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gorom.yaml", `
data:
  parameters: params.csv
  snapshots: snaps.csv
  parameter_scaler: minmax
reduction:
  method: pod
  rank: 3
approximation:
  method: rbf
  kernel: gaussian
cv:
  n_splits: 4
  shuffle: true
  seed: 42
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Reduction.Rank != 3 || cfg.Reduction.Method != "pod" {
		t.Errorf("unexpected reduction config: %+v", cfg.Reduction)
	}
	if cfg.Approximation.Kernel != "gaussian" {
		t.Errorf("unexpected approximation config: %+v", cfg.Approximation)
	}
	if cfg.CV.NSplits != 4 || !cfg.CV.Shuffle || cfg.CV.Seed != 42 {
		t.Errorf("unexpected cv config: %+v", cfg.CV)
	}
	// defaults
	if cfg.Store != "gorom.db" || cfg.LogLevel != "info" {
		t.Errorf("defaults not applied: store=%q level=%q", cfg.Store, cfg.LogLevel)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := mat.NewDense(3, 2, []float64{1, 2, 3.5, -4, 0, 1e-3})

	path := filepath.Join(dir, "m.csv")
	if err := SaveMatrixCSV(path, want); err != nil {
		t.Fatalf("SaveMatrixCSV failed: %v", err)
	}
	got, err := LoadMatrixCSV(path)
	if err != nil {
		t.Fatalf("LoadMatrixCSV failed: %v", err)
	}
	if !mat.Equal(got, want) {
		t.Errorf("round trip mismatch:\n%v", mat.Formatted(got))
	}
}

func TestDatabaseFromConfig(t *testing.T) {
	dir := t.TempDir()
	params := writeFile(t, dir, "params.csv", "1\n2\n3\n")
	snaps := writeFile(t, dir, "snaps.csv", "1,2\n2,4\n3,6\n")

	cfg := &Config{Data: DataConfig{
		Parameters:      params,
		Snapshots:       snaps,
		ParameterScaler: "minmax",
	}}
	db, err := cfg.Database()
	if err != nil {
		t.Fatalf("Database failed: %v", err)
	}
	if db.Len() != 3 || db.ParamDim() != 1 || db.SnapshotDim() != 2 {
		t.Errorf("unexpected dims: n=%d dp=%d ds=%d", db.Len(), db.ParamDim(), db.SnapshotDim())
	}
	if db.ScalerParameters == nil || db.ScalerSnapshots != nil {
		t.Error("scaler wiring wrong")
	}

	cfg.Data.ParameterScaler = "bogus"
	if _, err := cfg.Database(); err == nil {
		t.Error("unknown scaler should fail")
	}
}

func TestLoadMatrixCSV_RaggedRows(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.csv", "1,2\n3\n")
	if _, err := LoadMatrixCSV(path); err == nil {
		t.Error("ragged rows should fail")
	}
}
