// Package database holds the snapshot database: an ordered collection of
// (parameter vector, snapshot vector) pairs with optional per-axis scalers.
// The pipeline treats a database as read-only once a model is bound to it;
// subsetting and appending return new instances.
package database

import (
	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/pkg/errors"
)

// Scaler is an invertible elementwise transform attachable to the parameter
// or snapshot axis. preprocessing.StandardScaler and preprocessing.MinMaxScaler
// satisfy it.
type Scaler interface {
	FitTransform(X mat.Matrix) (mat.Matrix, error)
	Transform(X mat.Matrix) (mat.Matrix, error)
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}

// Database is an ordered collection of (parameter, snapshot) pairs.
// All parameter vectors share the dimensionality ParamDim and all snapshots
// share SnapshotDim; the pair count is consistent across both collections.
type Database struct {
	parameters *mat.Dense // n × d_p
	snapshots  *mat.Dense // n × d_s

	// ScalerParameters, if non-nil, scales the parameter axis. Fit and
	// predict then operate in scaled parameter space.
	ScalerParameters Scaler

	// ScalerSnapshots, if non-nil, scales the snapshot axis. Predictions
	// are unscaled on output.
	ScalerSnapshots Scaler
}

// Option configures a Database.
type Option func(*Database)

// WithParameterScaler attaches a scaler to the parameter axis.
func WithParameterScaler(s Scaler) Option {
	return func(db *Database) {
		db.ScalerParameters = s
	}
}

// WithSnapshotScaler attaches a scaler to the snapshot axis.
func WithSnapshotScaler(s Scaler) Option {
	return func(db *Database) {
		db.ScalerSnapshots = s
	}
}

// New builds a database from an n × d_p parameter matrix and an n × d_s
// snapshot matrix. The two matrices must have the same number of rows.
func New(parameters, snapshots mat.Matrix, opts ...Option) (*Database, error) {
	if parameters == nil || snapshots == nil {
		return nil, errors.NewValueError("Database.New", "parameters and snapshots must both be provided")
	}

	pr, pc := parameters.Dims()
	sr, sc := snapshots.Dims()
	if pr == 0 || pc == 0 {
		return nil, errors.NewModelError("Database.New", "empty parameters", errors.ErrEmptyData)
	}
	if sr == 0 || sc == 0 {
		return nil, errors.NewModelError("Database.New", "empty snapshots", errors.ErrEmptyData)
	}
	if pr != sr {
		return nil, errors.NewDimensionError("Database.New", pr, sr, 0)
	}

	db := &Database{
		parameters: mat.DenseCopyOf(parameters),
		snapshots:  mat.DenseCopyOf(snapshots),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Len returns the number of (parameter, snapshot) pairs.
func (db *Database) Len() int {
	n, _ := db.parameters.Dims()
	return n
}

// ParamDim returns the dimensionality d_p of the parameter vectors.
func (db *Database) ParamDim() int {
	_, d := db.parameters.Dims()
	return d
}

// SnapshotDim returns the dimensionality d_s of the snapshot vectors.
func (db *Database) SnapshotDim() int {
	_, d := db.snapshots.Dims()
	return d
}

// Parameters returns the n × d_p parameter matrix. The returned matrix is a
// view; callers must not mutate it.
func (db *Database) Parameters() mat.Matrix {
	return db.parameters
}

// Snapshots returns the n × d_s snapshot matrix. The returned matrix is a
// view; callers must not mutate it.
func (db *Database) Snapshots() mat.Matrix {
	return db.snapshots
}

// Parameter returns a copy of the i-th parameter vector.
func (db *Database) Parameter(i int) []float64 {
	return mat.Row(nil, i, db.parameters)
}

// Snapshot returns a copy of the i-th snapshot vector.
func (db *Database) Snapshot(i int) []float64 {
	return mat.Row(nil, i, db.snapshots)
}

// Subset returns a new database containing the selected rows, in order.
// Scalers are carried over unchanged; cross-validation refits them on the
// subset through FitTransform.
func (db *Database) Subset(indices []int) (*Database, error) {
	n := db.Len()
	if len(indices) == 0 {
		return nil, errors.NewModelError("Database.Subset", "empty index set", errors.ErrEmptyData)
	}

	params := mat.NewDense(len(indices), db.ParamDim(), nil)
	snaps := mat.NewDense(len(indices), db.SnapshotDim(), nil)
	for row, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, errors.NewValueError("Database.Subset", "index out of range")
		}
		params.SetRow(row, db.Parameter(idx))
		snaps.SetRow(row, db.Snapshot(idx))
	}

	return &Database{
		parameters:       params,
		snapshots:        snaps,
		ScalerParameters: db.ScalerParameters,
		ScalerSnapshots:  db.ScalerSnapshots,
	}, nil
}

// Append returns a new database extended by one (parameter, snapshot) pair.
// The receiver is left untouched; models bound to it keep seeing the
// original data.
func (db *Database) Append(parameter, snapshot []float64) (*Database, error) {
	if len(parameter) != db.ParamDim() {
		return nil, errors.NewDimensionError("Database.Append", db.ParamDim(), len(parameter), 1)
	}
	if len(snapshot) != db.SnapshotDim() {
		return nil, errors.NewDimensionError("Database.Append", db.SnapshotDim(), len(snapshot), 1)
	}

	n := db.Len()
	params := mat.NewDense(n+1, db.ParamDim(), nil)
	snaps := mat.NewDense(n+1, db.SnapshotDim(), nil)
	params.Copy(db.parameters)
	snaps.Copy(db.snapshots)
	params.SetRow(n, parameter)
	snaps.SetRow(n, snapshot)

	return &Database{
		parameters:       params,
		snapshots:        snaps,
		ScalerParameters: db.ScalerParameters,
		ScalerSnapshots:  db.ScalerSnapshots,
	}, nil
}

// ScaledParameters fits the parameter scaler (if any) on the stored
// parameters and returns the scaled matrix. Without a scaler the raw matrix
// is returned.
func (db *Database) ScaledParameters() (mat.Matrix, error) {
	if db.ScalerParameters == nil {
		return db.parameters, nil
	}
	scaled, err := db.ScalerParameters.FitTransform(db.parameters)
	if err != nil {
		return nil, errors.Wrap(err, "Database: scaling parameters")
	}
	return scaled, nil
}

// ScaledSnapshots fits the snapshot scaler (if any) on the stored snapshots
// and returns the scaled matrix. Without a scaler the raw matrix is returned.
func (db *Database) ScaledSnapshots() (mat.Matrix, error) {
	if db.ScalerSnapshots == nil {
		return db.snapshots, nil
	}
	scaled, err := db.ScalerSnapshots.FitTransform(db.snapshots)
	if err != nil {
		return nil, errors.Wrap(err, "Database: scaling snapshots")
	}
	return scaled, nil
}
