package reduction

import (
	"bytes"
	"encoding/gob"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/core/model"
	"github.com/sciforge/gorom/pkg/errors"
)

type rankPolicy int

const (
	// rankFull keeps every computable mode, k = min(d_s, n).
	rankFull rankPolicy = iota
	// rankFixed keeps a fixed number of modes, clamped to the feasible rank.
	rankFixed
	// rankEnergy keeps the smallest k whose cumulative normalized squared
	// singular values reach the target fraction.
	rankEnergy
	// rankOptimal applies the optimal hard threshold for singular values
	// under additive noise (Gavish & Donoho), using the polynomial
	// approximation of the aspect-ratio coefficient.
	rankOptimal
)

type svdMethod int

const (
	svdExact svdMethod = iota
	svdRandomized
)

// POD performs Proper Orthogonal Decomposition: the snapshot matrix is
// factorized by (optionally randomized) SVD and the top-k left singular
// vectors form an orthonormal modal basis ordered by decreasing singular
// value.
type POD struct {
	model.BaseEstimator

	policy    rankPolicy
	fixedRank int
	energy    float64

	method       svdMethod
	nOversamples int
	nPowerIter   int
	seed         uint64

	basis          *mat.Dense // d_s × k, orthonormal columns
	singularValues []float64  // all computed singular values, descending
	rank           int
	snapshotDim    int
}

// PODOption configures a POD instance.
type PODOption func(*POD)

// WithRank selects the fixed-rank policy. Requests above the feasible rank
// min(d_s, n) are clamped with a RankClampedWarning.
func WithRank(k int) PODOption {
	return func(p *POD) {
		p.policy = rankFixed
		p.fixedRank = k
	}
}

// WithEnergyThreshold selects the energy-fraction policy; target must lie in
// (0, 1].
func WithEnergyThreshold(target float64) PODOption {
	return func(p *POD) {
		p.policy = rankEnergy
		p.energy = target
	}
}

// WithOptimalThreshold selects the statistically optimal hard threshold
// computed from the singular-value distribution.
func WithOptimalThreshold() PODOption {
	return func(p *POD) {
		p.policy = rankOptimal
	}
}

// WithRandomizedSVD enables the randomized decomposition with the given
// oversampling and power-iteration counts. The seed makes the random test
// matrix reproducible.
func WithRandomizedSVD(nOversamples, nPowerIterations int, seed uint64) PODOption {
	return func(p *POD) {
		p.method = svdRandomized
		p.nOversamples = nOversamples
		p.nPowerIter = nPowerIterations
		p.seed = seed
	}
}

// WithExactSVD forces the exact decomposition (the default).
func WithExactSVD() PODOption {
	return func(p *POD) {
		p.method = svdExact
	}
}

// NewPOD creates a POD reduction. Without options every computable mode is
// retained.
func NewPOD(opts ...PODOption) *POD {
	p := &POD{
		policy:       rankFull,
		nOversamples: 10,
		nPowerIter:   2,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fit computes the modal basis from an n × d_s snapshot matrix.
func (p *POD) Fit(snapshots mat.Matrix) error {
	n, ds := snapshots.Dims()
	if n < 1 {
		return errors.NewDimensionError("POD.Fit", 1, n, 0)
	}
	if ds < 1 {
		return errors.NewDimensionError("POD.Fit", 1, ds, 1)
	}
	if p.policy == rankEnergy && (p.energy <= 0 || p.energy > 1) {
		return errors.NewValidationError("energy", "energy threshold must lie in (0, 1]", p.energy)
	}
	if p.policy == rankFixed && p.fixedRank < 1 {
		return errors.NewValidationError("rank", "fixed rank must be positive", p.fixedRank)
	}

	// S holds snapshots as columns, d_s × n.
	S := mat.NewDense(ds, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < ds; j++ {
			S.Set(j, i, snapshots.At(i, j))
		}
	}

	var (
		U   *mat.Dense
		sv  []float64
		err error
	)
	switch p.method {
	case svdRandomized:
		U, sv, err = randomizedSVD(S, p.sketchSize(ds, n), p.nPowerIter, p.seed)
	default:
		U, sv, err = exactSVD(S)
	}
	if err != nil {
		return errors.Wrap(err, "POD.Fit")
	}

	k := p.resolveRank(sv, ds, n)
	p.basis = mat.DenseCopyOf(U.Slice(0, ds, 0, k))
	p.singularValues = sv
	p.rank = k
	p.snapshotDim = ds
	p.SetFitted()
	return nil
}

// sketchSize returns the width of the randomized sketch. Fixed-rank fits
// sketch only rank+oversamples columns; the other policies need the full
// spectrum and sketch min(d_s, n).
func (p *POD) sketchSize(ds, n int) int {
	minDim := ds
	if n < minDim {
		minDim = n
	}
	if p.policy == rankFixed {
		size := p.fixedRank + p.nOversamples
		if size < minDim {
			return size
		}
	}
	return minDim
}

// resolveRank applies the configured rank policy to the computed spectrum.
func (p *POD) resolveRank(sv []float64, ds, n int) int {
	maxRank := len(sv)
	if ds < maxRank {
		maxRank = ds
	}
	if n < maxRank {
		maxRank = n
	}

	switch p.policy {
	case rankFixed:
		if p.fixedRank > maxRank {
			errors.Warn(errors.NewRankClampedWarning("POD", p.fixedRank, maxRank))
			return maxRank
		}
		return p.fixedRank
	case rankEnergy:
		return energyRank(sv, p.energy, maxRank)
	case rankOptimal:
		return optimalHardThreshold(sv, ds, n, maxRank)
	default:
		return maxRank
	}
}

// energyRank returns the smallest k with cumulative normalized squared
// singular values >= target.
func energyRank(sv []float64, target float64, maxRank int) int {
	total := 0.0
	for _, s := range sv {
		total += s * s
	}
	if total == 0 {
		return 1
	}
	cum := 0.0
	for i, s := range sv {
		cum += s * s
		if cum/total >= target {
			k := i + 1
			if k > maxRank {
				return maxRank
			}
			return k
		}
	}
	return maxRank
}

// optimalHardThreshold implements the Gavish-Donoho threshold for unknown
// noise level: tau = omega(beta) * median(sigma) with
// omega(beta) = 0.56 beta^3 - 0.95 beta^2 + 1.82 beta + 1.43.
// beta is the matrix aspect ratio min/max, so the square case d_s == n uses
// beta = 1 with no special handling.
func optimalHardThreshold(sv []float64, ds, n int, maxRank int) int {
	beta := float64(ds) / float64(n)
	if beta > 1 {
		beta = 1 / beta
	}
	omega := 0.56*beta*beta*beta - 0.95*beta*beta + 1.82*beta + 1.43
	tau := omega * median(sv)

	k := 0
	for _, s := range sv {
		if s > tau {
			k++
		}
	}
	if k < 1 {
		k = 1
	}
	if k > maxRank {
		k = maxRank
	}
	return k
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

// Transform projects n × d_s snapshots onto the modal basis, returning the
// n × k latent coordinates.
func (p *POD) Transform(snapshots mat.Matrix) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("POD", "Transform")
	}
	n, ds := snapshots.Dims()
	if ds != p.snapshotDim {
		return nil, errors.NewDimensionError("POD.Transform", p.snapshotDim, ds, 1)
	}

	latent := mat.NewDense(n, p.rank, nil)
	latent.Mul(snapshots, p.basis)
	return latent, nil
}

// InverseTransform reconstructs n × d_s snapshots from n × k latent
// coordinates. For a linear basis this is exact up to the truncation error.
func (p *POD) InverseTransform(latent mat.Matrix) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("POD", "InverseTransform")
	}
	n, k := latent.Dims()
	if k != p.rank {
		return nil, errors.NewDimensionError("POD.InverseTransform", p.rank, k, 1)
	}

	restored := mat.NewDense(n, p.snapshotDim, nil)
	restored.Mul(latent, p.basis.T())
	return restored, nil
}

// Rank returns the retained latent dimensionality.
func (p *POD) Rank() int {
	return p.rank
}

// Modes returns the fitted d_s × k orthonormal basis.
func (p *POD) Modes() *mat.Dense {
	return p.basis
}

// SingularValues returns all computed singular values in descending order.
func (p *POD) SingularValues() []float64 {
	return p.singularValues
}

// ExplainedEnergy returns the cumulative normalized squared singular values;
// it is non-decreasing and reaches 1 at the full rank.
func (p *POD) ExplainedEnergy() []float64 {
	total := 0.0
	for _, s := range p.singularValues {
		total += s * s
	}
	out := make([]float64, len(p.singularValues))
	cum := 0.0
	for i, s := range p.singularValues {
		cum += s * s
		if total > 0 {
			out[i] = cum / total
		}
	}
	return out
}

// Clone returns an unfitted POD with the same configuration.
func (p *POD) Clone() Reduction {
	clone := *p
	clone.Reset()
	clone.basis = nil
	clone.singularValues = nil
	clone.rank = 0
	clone.snapshotDim = 0
	return &clone
}

// podGobState mirrors the POD fields for gob serialization.
type podGobState struct {
	Policy         int
	FixedRank      int
	Energy         float64
	Method         int
	NOversamples   int
	NPowerIter     int
	Seed           uint64
	Basis          []byte
	SingularValues []float64
	Rank           int
	SnapshotDim    int
	Fitted         bool
}

// GobEncode implements gob.GobEncoder.
func (p *POD) GobEncode() ([]byte, error) {
	basis, err := model.MarshalMatrix(p.basis)
	if err != nil {
		return nil, err
	}
	state := podGobState{
		Policy:         int(p.policy),
		FixedRank:      p.fixedRank,
		Energy:         p.energy,
		Method:         int(p.method),
		NOversamples:   p.nOversamples,
		NPowerIter:     p.nPowerIter,
		Seed:           p.seed,
		Basis:          basis,
		SingularValues: p.singularValues,
		Rank:           p.rank,
		SnapshotDim:    p.snapshotDim,
		Fitted:         p.IsFitted(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (p *POD) GobDecode(data []byte) error {
	var state podGobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	basis, err := model.UnmarshalMatrix(state.Basis)
	if err != nil {
		return err
	}
	p.policy = rankPolicy(state.Policy)
	p.fixedRank = state.FixedRank
	p.energy = state.Energy
	p.method = svdMethod(state.Method)
	p.nOversamples = state.NOversamples
	p.nPowerIter = state.NPowerIter
	p.seed = state.Seed
	p.basis = basis
	p.singularValues = state.SingularValues
	p.rank = state.Rank
	p.snapshotDim = state.SnapshotDim
	if state.Fitted {
		p.SetFitted()
	}
	return nil
}

// exactSVD computes the thin SVD of S and returns the left singular vectors
// and singular values.
func exactSVD(S *mat.Dense) (*mat.Dense, []float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(S, mat.SVDThin); !ok {
		return nil, nil, errors.ErrSVDFailed
	}
	var U mat.Dense
	svd.UTo(&U)
	sv := svd.Values(nil)
	// guard negative rounding noise in the spectrum tail
	for i, s := range sv {
		if s < 0 || math.IsNaN(s) {
			sv[i] = 0
		}
	}
	return &U, sv, nil
}
