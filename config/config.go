// Package config loads the declarative pipeline configuration: where the
// parameter and snapshot data live, which reduction and approximation
// strategies to build, and how to cross-validate.
package config

import (
	"encoding/csv"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/sciforge/gorom/approximation"
	"github.com/sciforge/gorom/database"
	"github.com/sciforge/gorom/pkg/errors"
	"github.com/sciforge/gorom/preprocessing"
	"github.com/sciforge/gorom/reduction"
)

// DataConfig locates the training data and its optional scalers.
type DataConfig struct {
	// Parameters and Snapshots are CSV files, one sample per row.
	Parameters string `yaml:"parameters"`
	Snapshots  string `yaml:"snapshots"`

	// ParameterScaler and SnapshotScaler are "none", "standard" or
	// "minmax".
	ParameterScaler string `yaml:"parameter_scaler"`
	SnapshotScaler  string `yaml:"snapshot_scaler"`
}

// CVConfig configures cross-validation runs.
type CVConfig struct {
	NSplits int    `yaml:"n_splits"`
	Shuffle bool   `yaml:"shuffle"`
	Seed    uint64 `yaml:"seed"`
}

// Config is the top-level configuration document.
type Config struct {
	Data          DataConfig           `yaml:"data"`
	Reduction     reduction.Config     `yaml:"reduction"`
	Approximation approximation.Config `yaml:"approximation"`
	CV            CVConfig             `yaml:"cv"`

	// Store is the path of the bbolt model store.
	Store string `yaml:"store"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: reading file")
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "config: parsing YAML")
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store == "" {
		c.Store = "gorom.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CV.NSplits == 0 {
		c.CV.NSplits = 5
	}
}

// scalerFor maps a scaler name to an instance; "none" and "" disable
// scaling.
func scalerFor(name string) (database.Scaler, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "standard":
		return preprocessing.NewStandardScalerDefault(), nil
	case "minmax":
		return preprocessing.NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewValidationError("scaler", "unknown scaler", name)
	}
}

// Database loads the configured CSV files into a snapshot database with the
// configured scalers attached.
func (c *Config) Database() (*database.Database, error) {
	if c.Data.Parameters == "" || c.Data.Snapshots == "" {
		return nil, errors.NewValueError("config", "data.parameters and data.snapshots are required")
	}
	params, err := LoadMatrixCSV(c.Data.Parameters)
	if err != nil {
		return nil, err
	}
	snaps, err := LoadMatrixCSV(c.Data.Snapshots)
	if err != nil {
		return nil, err
	}

	var opts []database.Option
	ps, err := scalerFor(c.Data.ParameterScaler)
	if err != nil {
		return nil, err
	}
	if ps != nil {
		opts = append(opts, database.WithParameterScaler(ps))
	}
	ss, err := scalerFor(c.Data.SnapshotScaler)
	if err != nil {
		return nil, err
	}
	if ss != nil {
		opts = append(opts, database.WithSnapshotScaler(ss))
	}
	return database.New(params, snaps, opts...)
}

// LoadMatrixCSV reads a headerless CSV file of floats into a dense matrix,
// one sample per row.
func LoadMatrixCSV(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: opening CSV")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "config: parsing %s", path)
	}
	if len(records) == 0 {
		return nil, errors.NewModelError("config.LoadMatrixCSV", path, errors.ErrEmptyData)
	}

	cols := len(records[0])
	out := mat.NewDense(len(records), cols, nil)
	for i, record := range records {
		if len(record) != cols {
			return nil, errors.NewDimensionError("config.LoadMatrixCSV", cols, len(record), 1)
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "config: %s row %d column %d", path, i, j)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// SaveMatrixCSV writes a dense matrix as headerless CSV, one sample per row.
func SaveMatrixCSV(path string, m mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "config: creating CSV")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows, cols := m.Dims()
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "config: writing CSV")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "config: flushing CSV")
}
