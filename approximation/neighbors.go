package approximation

import (
	"bytes"
	"context"
	"encoding/gob"

	"github.com/hupe1980/vecgo"
	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/core/model"
	"github.com/sciforge/gorom/pkg/errors"
)

// neighborWeights selects how neighbor targets are combined.
type neighborWeights int

const (
	weightsUniform neighborWeights = iota
	weightsDistance
)

func parseWeights(name string) (neighborWeights, error) {
	switch name {
	case "uniform", "":
		return weightsUniform, nil
	case "distance":
		return weightsDistance, nil
	default:
		return 0, errors.NewValidationError("weights", "unknown neighbor weighting", name)
	}
}

// neighborBase holds the training set and the flat vector index shared by
// the k-nearest and radius regressors. The index stores float32 copies of
// the parameters keyed by training row; exact squared distances are kept in
// float64 on the stored rows for the weighting step.
type neighborBase struct {
	model.BaseEstimator

	weights neighborWeights

	parameters *mat.Dense
	targets    *mat.Dense
	index      *vecgo.Vecgo[int]
}

// buildIndex populates a flat squared-L2 index over the training
// parameters.
func (b *neighborBase) buildIndex() error {
	n, dp := b.parameters.Dims()
	idx, err := vecgo.Flat[int](dp).SquaredL2().Build()
	if err != nil {
		return errors.Wrap(err, "neighbors: index construction failed")
	}
	ctx := context.Background()
	for i := 0; i < n; i++ {
		vec := make([]float32, dp)
		for j := 0; j < dp; j++ {
			vec[j] = float32(b.parameters.At(i, j))
		}
		if _, err := idx.Insert(ctx, vecgo.VectorWithData[int]{Vector: vec, Data: i}); err != nil {
			return errors.Wrap(err, "neighbors: index insert failed")
		}
	}
	b.index = idx
	return nil
}

func (b *neighborBase) fit(op string, parameters, targets mat.Matrix) error {
	_, _, _, err := checkFitShapes(op, parameters, targets)
	if err != nil {
		return err
	}
	b.parameters = mat.DenseCopyOf(parameters)
	b.targets = mat.DenseCopyOf(targets)
	if err := b.buildIndex(); err != nil {
		return err
	}
	b.SetFitted()
	return nil
}

// search returns the candidate training rows for one query, nearest first.
func (b *neighborBase) search(op string, query []float64, k int) ([]int, error) {
	vec := make([]float32, len(query))
	for j, v := range query {
		vec[j] = float32(v)
	}
	results, err := b.index.KNNSearch(context.Background(), vec, k)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	rows := make([]int, len(results))
	for i, r := range results {
		rows[i] = r.Data
	}
	return rows, nil
}

// combine writes the weighted combination of the given training rows into
// row i of out. An exact parameter match short-circuits distance weighting.
func (b *neighborBase) combine(out *mat.Dense, i int, query []float64, rows []int) {
	_, k := b.targets.Dims()
	if b.weights == weightsUniform {
		for j := 0; j < k; j++ {
			sum := 0.0
			for _, r := range rows {
				sum += b.targets.At(r, j)
			}
			out.Set(i, j, sum/float64(len(rows)))
		}
		return
	}

	const exactTol = 1e-12
	ws := make([]float64, len(rows))
	total := 0.0
	for wi, r := range rows {
		d := euclidean(query, matrixRow(b.parameters, r))
		if d < exactTol {
			for j := 0; j < k; j++ {
				out.Set(i, j, b.targets.At(r, j))
			}
			return
		}
		ws[wi] = 1 / d
		total += ws[wi]
	}
	for j := 0; j < k; j++ {
		sum := 0.0
		for wi, r := range rows {
			sum += ws[wi] * b.targets.At(r, j)
		}
		out.Set(i, j, sum/total)
	}
}

type neighborGobState struct {
	Weights    int
	Parameters []byte
	Targets    []byte
	Fitted     bool
}

func (b *neighborBase) encode() ([]byte, error) {
	params, err := model.MarshalMatrix(b.parameters)
	if err != nil {
		return nil, err
	}
	targets, err := model.MarshalMatrix(b.targets)
	if err != nil {
		return nil, err
	}
	state := neighborGobState{
		Weights:    int(b.weights),
		Parameters: params,
		Targets:    targets,
		Fitted:     b.IsFitted(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode restores training state and rebuilds the index; the index itself
// is derived state and is not serialized.
func (b *neighborBase) decode(data []byte) error {
	var state neighborGobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	params, err := model.UnmarshalMatrix(state.Parameters)
	if err != nil {
		return err
	}
	targets, err := model.UnmarshalMatrix(state.Targets)
	if err != nil {
		return err
	}
	b.weights = neighborWeights(state.Weights)
	b.parameters = params
	b.targets = targets
	if state.Fitted {
		if err := b.buildIndex(); err != nil {
			return err
		}
		b.SetFitted()
	}
	return nil
}

// NeighborOption configures either neighbor regressor.
type NeighborOption func(*neighborBase)

// WithWeights selects "uniform" (default) or "distance" neighbor weighting.
func WithWeights(name string) NeighborOption {
	return func(b *neighborBase) {
		if w, err := parseWeights(name); err == nil {
			b.weights = w
		}
	}
}

// KNeighbors predicts the (optionally distance-weighted) mean target of the
// k nearest training parameters.
type KNeighbors struct {
	neighborBase
	k int
}

// NewKNeighbors creates a k-nearest-neighbors regressor.
func NewKNeighbors(k int, opts ...NeighborOption) *KNeighbors {
	kn := &KNeighbors{k: k}
	for _, opt := range opts {
		opt(&kn.neighborBase)
	}
	return kn
}

// Fit stores the training pairs and indexes the parameters. k is clamped to
// the sample count with a RankClampedWarning when it exceeds it.
func (kn *KNeighbors) Fit(parameters, targets mat.Matrix) error {
	if kn.k < 1 {
		return errors.NewValidationError("neighbors", "k must be positive", kn.k)
	}
	if err := kn.neighborBase.fit("KNeighbors.Fit", parameters, targets); err != nil {
		return err
	}
	if n, _ := kn.parameters.Dims(); kn.k > n {
		errors.Warn(errors.NewRankClampedWarning("KNeighbors", kn.k, n))
		kn.k = n
	}
	return nil
}

// Predict averages the k nearest targets per query row.
func (kn *KNeighbors) Predict(parameters mat.Matrix) (*mat.Dense, error) {
	if !kn.IsFitted() {
		return nil, errors.NewNotFittedError("KNeighbors", "Predict")
	}
	_, dp := kn.parameters.Dims()
	if err := checkQueryDim("KNeighbors.Predict", parameters, dp); err != nil {
		return nil, err
	}

	m, _ := parameters.Dims()
	_, k := kn.targets.Dims()
	out := mat.NewDense(m, k, nil)
	for i := 0; i < m; i++ {
		query := matrixRow(parameters, i)
		rows, err := kn.search("KNeighbors.Predict", query, kn.k)
		if err != nil {
			return nil, err
		}
		kn.combine(out, i, query, rows)
	}
	return out, nil
}

// Clone returns an unfitted KNeighbors with the same configuration.
func (kn *KNeighbors) Clone() Approximation {
	clone := &KNeighbors{k: kn.k}
	clone.weights = kn.weights
	return clone
}

type kNeighborsGobState struct {
	K    int
	Base []byte
}

// GobEncode implements gob.GobEncoder.
func (kn *KNeighbors) GobEncode() ([]byte, error) {
	base, err := kn.encode()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(kNeighborsGobState{K: kn.k, Base: base}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (kn *KNeighbors) GobDecode(data []byte) error {
	var state kNeighborsGobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	kn.k = state.K
	return kn.decode(state.Base)
}

// RadiusNeighbors predicts the (optionally distance-weighted) mean target of
// all training parameters within a fixed Euclidean radius of the query. A
// query with an empty neighborhood is out of domain.
type RadiusNeighbors struct {
	neighborBase
	radius float64
}

// NewRadiusNeighbors creates a fixed-radius neighbors regressor.
func NewRadiusNeighbors(radius float64, opts ...NeighborOption) *RadiusNeighbors {
	rn := &RadiusNeighbors{radius: radius}
	for _, opt := range opts {
		opt(&rn.neighborBase)
	}
	return rn
}

// Fit stores the training pairs and indexes the parameters.
func (rn *RadiusNeighbors) Fit(parameters, targets mat.Matrix) error {
	if rn.radius <= 0 {
		return errors.NewValidationError("radius", "radius must be positive", rn.radius)
	}
	return rn.neighborBase.fit("RadiusNeighbors.Fit", parameters, targets)
}

// Predict combines every training target within the radius of each query
// row; an empty neighborhood yields an OutOfDomainError.
func (rn *RadiusNeighbors) Predict(parameters mat.Matrix) (*mat.Dense, error) {
	if !rn.IsFitted() {
		return nil, errors.NewNotFittedError("RadiusNeighbors", "Predict")
	}
	n, dp := rn.parameters.Dims()
	if err := checkQueryDim("RadiusNeighbors.Predict", parameters, dp); err != nil {
		return nil, err
	}

	m, _ := parameters.Dims()
	_, k := rn.targets.Dims()
	out := mat.NewDense(m, k, nil)
	for i := 0; i < m; i++ {
		query := matrixRow(parameters, i)
		candidates, err := rn.search("RadiusNeighbors.Predict", query, n)
		if err != nil {
			return nil, err
		}
		// re-check candidate distances in float64; the float32 index
		// ordering alone is not precise enough at the radius boundary
		var rows []int
		for _, r := range candidates {
			if euclidean(query, matrixRow(rn.parameters, r)) <= rn.radius {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			return nil, errors.NewOutOfDomainError("RadiusNeighbors.Predict", query)
		}
		rn.combine(out, i, query, rows)
	}
	return out, nil
}

// Clone returns an unfitted RadiusNeighbors with the same configuration.
func (rn *RadiusNeighbors) Clone() Approximation {
	clone := &RadiusNeighbors{radius: rn.radius}
	clone.weights = rn.weights
	return clone
}

type radiusNeighborsGobState struct {
	Radius float64
	Base   []byte
}

// GobEncode implements gob.GobEncoder.
func (rn *RadiusNeighbors) GobEncode() ([]byte, error) {
	base, err := rn.encode()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(radiusNeighborsGobState{Radius: rn.radius, Base: base}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (rn *RadiusNeighbors) GobDecode(data []byte) error {
	var state radiusNeighborsGobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	rn.radius = state.Radius
	return rn.decode(state.Base)
}
