// Package rom composes a dimensionality reduction and a parameter-to-latent
// approximation over a snapshot database into a queryable reduced order
// model, with cross-validated error estimation and adaptive parameter
// sampling on top.
package rom

import (
	"bytes"
	"encoding/gob"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/approximation"
	"github.com/sciforge/gorom/core/model"
	"github.com/sciforge/gorom/database"
	"github.com/sciforge/gorom/pkg/errors"
	"github.com/sciforge/gorom/pkg/log"
	"github.com/sciforge/gorom/reduction"
)

// ROM binds a Reduction and an Approximation to a Database. The database is
// referenced, never owned: fitting reads it, nothing mutates it. Re-fitting
// replaces all internal state.
type ROM struct {
	model.BaseEstimator

	db     *database.Database
	red    reduction.Reduction
	approx approximation.Approximation
}

// New creates an unfitted reduced order model over the given database.
func New(db *database.Database, red reduction.Reduction, approx approximation.Approximation) (*ROM, error) {
	if db == nil {
		return nil, errors.NewValueError("ROM.New", "database is required")
	}
	if red == nil {
		return nil, errors.NewValueError("ROM.New", "reduction strategy is required")
	}
	if approx == nil {
		return nil, errors.NewValueError("ROM.New", "approximation strategy is required")
	}
	return &ROM{db: db, red: red, approx: approx}, nil
}

// Database returns the bound database.
func (r *ROM) Database() *database.Database {
	return r.db
}

// Reduction returns the reduction strategy.
func (r *ROM) Reduction() reduction.Reduction {
	return r.red
}

// Approximation returns the approximation strategy.
func (r *ROM) Approximation() approximation.Approximation {
	return r.approx
}

// Rebind attaches a database to a model restored from persistence. The
// fitted strategies are kept as they are; scalers attached to the database
// are fitted on its contents so Predict scales queries and unscales outputs
// in the space the model was trained in.
func (r *ROM) Rebind(db *database.Database) error {
	if db == nil {
		return errors.NewValueError("ROM.Rebind", "database is required")
	}
	if _, err := db.ScaledParameters(); err != nil {
		return errors.Wrap(err, "ROM.Rebind")
	}
	if _, err := db.ScaledSnapshots(); err != nil {
		return errors.Wrap(err, "ROM.Rebind")
	}
	r.db = db
	return nil
}

// Fit reduces the (scaled) snapshots to latent coordinates and fits the
// approximation on (scaled parameters, latent coordinates). At least two
// samples are required to define a regression problem.
func (r *ROM) Fit() error {
	start := time.Now()
	if r.db == nil {
		return errors.NewValueError("ROM.Fit", "no database bound; call Rebind after decoding")
	}
	n := r.db.Len()
	if n < 2 {
		return errors.NewInsufficientDataError("ROM.Fit", 2, n,
			"a regression problem needs at least two samples")
	}

	snapshots, err := r.db.ScaledSnapshots()
	if err != nil {
		return errors.Wrap(err, "ROM.Fit")
	}
	parameters, err := r.db.ScaledParameters()
	if err != nil {
		return errors.Wrap(err, "ROM.Fit")
	}

	if err := r.red.Fit(snapshots); err != nil {
		return errors.Wrap(err, "ROM.Fit: reduction")
	}
	latent, err := r.red.Transform(snapshots)
	if err != nil {
		return errors.Wrap(err, "ROM.Fit: reduction")
	}
	if err := r.approx.Fit(parameters, latent); err != nil {
		return errors.Wrap(err, "ROM.Fit: approximation")
	}

	r.SetFitted()
	slog.Debug("reduced order model fitted",
		slog.String(log.ComponentKey, "rom"),
		slog.String(log.OperationKey, "fit"),
		slog.Int(log.SamplesKey, n),
		slog.Int(log.SnapshotDimKey, r.db.SnapshotDim()),
		slog.Int(log.ParamDimKey, r.db.ParamDim()),
		slog.Int(log.RankKey, r.red.Rank()),
		slog.Int64(log.DurationMsKey, time.Since(start).Milliseconds()))
	return nil
}

// Predict maps m × d_p query parameters to m × d_s snapshot estimates:
// approximation predict, latent decode, then snapshot unscaling when a
// scaler is configured.
func (r *ROM) Predict(parameters mat.Matrix) (*mat.Dense, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("ROM", "Predict")
	}
	if r.db == nil {
		return nil, errors.NewValueError("ROM.Predict", "no database bound; call Rebind after decoding")
	}
	_, dp := parameters.Dims()
	if dp != r.db.ParamDim() {
		return nil, errors.NewDimensionError("ROM.Predict", r.db.ParamDim(), dp, 1)
	}

	query := parameters
	if r.db.ScalerParameters != nil {
		scaled, err := r.db.ScalerParameters.Transform(parameters)
		if err != nil {
			return nil, errors.Wrap(err, "ROM.Predict: scaling parameters")
		}
		query = scaled
	}

	latent, err := r.approx.Predict(query)
	if err != nil {
		return nil, errors.Wrap(err, "ROM.Predict: approximation")
	}
	snapshots, err := r.red.InverseTransform(latent)
	if err != nil {
		return nil, errors.Wrap(err, "ROM.Predict: reduction")
	}
	if r.db.ScalerSnapshots != nil {
		snapshots, err = r.db.ScalerSnapshots.InverseTransform(snapshots)
		if err != nil {
			return nil, errors.Wrap(err, "ROM.Predict: unscaling snapshots")
		}
	}
	return mat.DenseCopyOf(snapshots), nil
}

// PredictOne evaluates the model at a single parameter vector.
func (r *ROM) PredictOne(parameter []float64) ([]float64, error) {
	out, err := r.Predict(mat.NewDense(1, len(parameter), parameter))
	if err != nil {
		return nil, err
	}
	return mat.Row(nil, 0, out), nil
}

// cloneFor returns an unfitted copy of the model over another database,
// with fresh strategy instances. Cross-validation fits one per fold.
func (r *ROM) cloneFor(db *database.Database) *ROM {
	return &ROM{db: db, red: r.red.Clone(), approx: r.approx.Clone()}
}

type romGobState struct {
	Reduction     reduction.Reduction
	Approximation approximation.Approximation
	Fitted        bool
}

// GobEncode implements gob.GobEncoder. The database is a reference, not
// owned state, and is not serialized; Rebind reattaches one after decoding.
func (r *ROM) GobEncode() ([]byte, error) {
	state := romGobState{
		Reduction:     r.red,
		Approximation: r.approx,
		Fitted:        r.IsFitted(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (r *ROM) GobDecode(data []byte) error {
	var state romGobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	r.red = state.Reduction
	r.approx = state.Approximation
	if state.Fitted {
		r.SetFitted()
	}
	return nil
}

func init() {
	gob.Register(&ROM{})
}
