package approximation

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/core/model"
	"github.com/sciforge/gorom/core/parallel"
	"github.com/sciforge/gorom/pkg/errors"
)

// GPR performs Gaussian process regression with a squared-exponential
// kernel
//
//	k(x, x') = variance · exp(-||x - x'||² / (2·length²))
//
// plus observation noise on the diagonal. Kernel hyperparameters are chosen
// by maximizing the log marginal likelihood over a seeded set of random
// restarts followed by a bounded local search, so repeated fits with the
// same seed are identical.
type GPR struct {
	model.BaseEstimator

	restarts int
	noise    float64
	seed     uint64

	variance float64
	length   float64

	parameters *mat.Dense
	alpha      *mat.Dense // K⁻¹ targets, n × k
	chol       *mat.Cholesky
}

// GPROption configures a GPR instance.
type GPROption func(*GPR)

// WithRestarts sets the number of random hyperparameter restarts
// (default 5).
func WithRestarts(n int) GPROption {
	return func(g *GPR) { g.restarts = n }
}

// WithNoise sets the observation noise variance (default 1e-8, numerical
// jitter only).
func WithNoise(noise float64) GPROption {
	return func(g *GPR) { g.noise = noise }
}

// WithGPRSeed seeds the restart sampling.
func WithGPRSeed(seed uint64) GPROption {
	return func(g *GPR) { g.seed = seed }
}

// NewGPR creates a Gaussian process regressor.
func NewGPR(opts ...GPROption) *GPR {
	g := &GPR{restarts: 5, noise: 1e-8}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GPR) kernel(a, b []float64, variance, length float64) float64 {
	d := euclidean(a, b)
	return variance * math.Exp(-d*d/(2*length*length))
}

// kernelMatrix builds the n × n training covariance including noise.
func (g *GPR) kernelMatrix(parameters *mat.Dense, variance, length float64) *mat.SymDense {
	n, _ := parameters.Dims()
	K := mat.NewSymDense(n, nil)
	// each row chunk writes a disjoint band of the upper triangle
	parallel.ParallelizeWithThreshold(n, kernelRowThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			xi := matrixRow(parameters, i)
			for j := i; j < n; j++ {
				v := g.kernel(xi, matrixRow(parameters, j), variance, length)
				if i == j {
					v += g.noise
				}
				K.SetSym(i, j, v)
			}
		}
	})
	return K
}

// logMarginalLikelihood evaluates the objective for one hyperparameter
// candidate. It returns -Inf when the covariance is not positive definite.
func (g *GPR) logMarginalLikelihood(parameters, targets *mat.Dense, variance, length float64) float64 {
	K := g.kernelMatrix(parameters, variance, length)
	var chol mat.Cholesky
	if ok := chol.Factorize(K); !ok {
		return math.Inf(-1)
	}

	n, k := targets.Dims()
	var alpha mat.Dense
	if err := chol.SolveTo(&alpha, targets); err != nil {
		return math.Inf(-1)
	}

	fit := 0.0
	for j := 0; j < k; j++ {
		for i := 0; i < n; i++ {
			fit += targets.At(i, j) * alpha.At(i, j)
		}
	}
	return -0.5*fit - float64(k)*0.5*chol.LogDet() - float64(n*k)*0.5*math.Log(2*math.Pi)
}

// Fit selects kernel hyperparameters by restarted likelihood maximization
// and precomputes the prediction weights.
func (g *GPR) Fit(parameters, targets mat.Matrix) error {
	_, _, _, err := checkFitShapes("GPR.Fit", parameters, targets)
	if err != nil {
		return err
	}

	P := mat.DenseCopyOf(parameters)
	Y := mat.DenseCopyOf(targets)

	// data-driven starting point: unit variance, mean pairwise distance
	baseLength := 1 / defaultEpsilon(P)
	if baseLength <= 0 {
		baseLength = 1
	}

	rng := rand.New(rand.NewPCG(g.seed, 0x9e3779b97f4a7c15))
	candidates := [][2]float64{{1, baseLength}}
	for i := 0; i < g.restarts; i++ {
		// log-uniform over three decades around the base point
		v := math.Pow(10, rng.Float64()*3-1.5)
		l := baseLength * math.Pow(10, rng.Float64()*3-1.5)
		candidates = append(candidates, [2]float64{v, l})
	}

	bestLML := math.Inf(-1)
	var bestVar, bestLen float64
	for _, c := range candidates {
		if lml := g.logMarginalLikelihood(P, Y, c[0], c[1]); lml > bestLML {
			bestLML, bestVar, bestLen = lml, c[0], c[1]
		}
	}
	if math.IsInf(bestLML, -1) {
		return errors.Wrap(errors.ErrSingularMatrix, "GPR.Fit: no positive-definite covariance found")
	}

	// bounded multiplicative coordinate search around the best restart
	const maxIter = 60
	step := 1.5
	converged := false
	for iter := 0; iter < maxIter; iter++ {
		improved := false
		for _, c := range [][2]float64{
			{bestVar * step, bestLen}, {bestVar / step, bestLen},
			{bestVar, bestLen * step}, {bestVar, bestLen / step},
		} {
			if lml := g.logMarginalLikelihood(P, Y, c[0], c[1]); lml > bestLML {
				bestLML, bestVar, bestLen = lml, c[0], c[1]
				improved = true
			}
		}
		if !improved {
			if step <= 1.0001 {
				converged = true
				break
			}
			step = math.Sqrt(step)
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("GPR", maxIter,
			"likelihood search exhausted its iteration budget"))
	}

	K := g.kernelMatrix(P, bestVar, bestLen)
	chol := &mat.Cholesky{}
	if ok := chol.Factorize(K); !ok {
		return errors.Wrap(errors.ErrSingularMatrix, "GPR.Fit")
	}
	alpha := &mat.Dense{}
	if err := chol.SolveTo(alpha, Y); err != nil {
		return errors.Wrap(err, "GPR.Fit")
	}

	g.variance = bestVar
	g.length = bestLen
	g.parameters = P
	g.alpha = alpha
	g.chol = chol
	g.SetFitted()
	return nil
}

// Predict returns the posterior mean at the query parameters.
func (g *GPR) Predict(parameters mat.Matrix) (*mat.Dense, error) {
	mean, _, err := g.predict(parameters, false)
	return mean, err
}

// PredictWithVariance returns the posterior mean and the per-query
// predictive variance.
func (g *GPR) PredictWithVariance(parameters mat.Matrix) (*mat.Dense, []float64, error) {
	return g.predict(parameters, true)
}

func (g *GPR) predict(parameters mat.Matrix, withVariance bool) (*mat.Dense, []float64, error) {
	if !g.IsFitted() {
		return nil, nil, errors.NewNotFittedError("GPR", "Predict")
	}
	n, dp := g.parameters.Dims()
	if err := checkQueryDim("GPR.Predict", parameters, dp); err != nil {
		return nil, nil, err
	}

	m, _ := parameters.Dims()
	Kq := mat.NewDense(m, n, nil)
	for i := 0; i < m; i++ {
		q := matrixRow(parameters, i)
		for j := 0; j < n; j++ {
			Kq.Set(i, j, g.kernel(q, matrixRow(g.parameters, j), g.variance, g.length))
		}
	}

	_, k := g.alpha.Dims()
	mean := mat.NewDense(m, k, nil)
	mean.Mul(Kq, g.alpha)
	if !withVariance {
		return mean, nil, nil
	}

	variance := make([]float64, m)
	for i := 0; i < m; i++ {
		kq := mat.NewVecDense(n, matrixRow(Kq, i))
		var v mat.VecDense
		if err := g.chol.SolveVecTo(&v, kq); err != nil {
			return nil, nil, errors.Wrap(err, "GPR.Predict")
		}
		variance[i] = g.variance + g.noise - mat.Dot(kq, &v)
		if variance[i] < 0 {
			variance[i] = 0
		}
	}
	return mean, variance, nil
}

// Clone returns an unfitted GPR with the same configuration.
func (g *GPR) Clone() Approximation {
	return NewGPR(WithRestarts(g.restarts), WithNoise(g.noise), WithGPRSeed(g.seed))
}

type gprGobState struct {
	Restarts   int
	Noise      float64
	Seed       uint64
	Variance   float64
	Length     float64
	Parameters []byte
	Alpha      []byte
	Fitted     bool
}

// GobEncode implements gob.GobEncoder. The Cholesky factor is derived state
// and is recomputed on decode.
func (g *GPR) GobEncode() ([]byte, error) {
	params, err := model.MarshalMatrix(g.parameters)
	if err != nil {
		return nil, err
	}
	alpha, err := model.MarshalMatrix(g.alpha)
	if err != nil {
		return nil, err
	}
	state := gprGobState{
		Restarts:   g.restarts,
		Noise:      g.noise,
		Seed:       g.seed,
		Variance:   g.variance,
		Length:     g.length,
		Parameters: params,
		Alpha:      alpha,
		Fitted:     g.IsFitted(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (g *GPR) GobDecode(data []byte) error {
	var state gprGobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	params, err := model.UnmarshalMatrix(state.Parameters)
	if err != nil {
		return err
	}
	alpha, err := model.UnmarshalMatrix(state.Alpha)
	if err != nil {
		return err
	}
	g.restarts = state.Restarts
	g.noise = state.Noise
	g.seed = state.Seed
	g.variance = state.Variance
	g.length = state.Length
	g.parameters = params
	g.alpha = alpha
	if state.Fitted {
		K := g.kernelMatrix(g.parameters, g.variance, g.length)
		g.chol = &mat.Cholesky{}
		if ok := g.chol.Factorize(K); !ok {
			return errors.Wrap(errors.ErrSingularMatrix, "GPR.GobDecode")
		}
		g.SetFitted()
	}
	return nil
}
