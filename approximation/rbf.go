package approximation

import (
	"bytes"
	"encoding/gob"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/core/model"
	"github.com/sciforge/gorom/core/parallel"
	"github.com/sciforge/gorom/pkg/errors"
)

// kernelRowThreshold is the row count above which kernel matrices are built
// on multiple cores.
const kernelRowThreshold = 64

// rbfKernel evaluates a radial kernel at distance r with shape parameter
// epsilon.
type rbfKernel func(r, epsilon float64) float64

var rbfKernels = map[string]rbfKernel{
	"gaussian": func(r, eps float64) float64 {
		return math.Exp(-(eps * r) * (eps * r))
	},
	"multiquadric": func(r, eps float64) float64 {
		return math.Sqrt(1 + (eps*r)*(eps*r))
	},
	"inverse-multiquadric": func(r, eps float64) float64 {
		return 1 / math.Sqrt(1+(eps*r)*(eps*r))
	},
	"thin-plate": func(r, _ float64) float64 {
		if r == 0 {
			return 0
		}
		return r * r * math.Log(r)
	},
	"linear": func(r, _ float64) float64 {
		return r
	},
	"cubic": func(r, _ float64) float64 {
		return r * r * r
	},
}

// RBF performs radial basis function interpolation: predictions are weighted
// combinations of the training targets, with weights obtained by solving the
// kernel system on the training parameters. A positive smoothing term
// relaxes exact interpolation toward approximation.
type RBF struct {
	model.BaseEstimator

	kernelName string
	smoothing  float64
	epsilon    float64

	parameters *mat.Dense
	weights    *mat.Dense
	fitEpsilon float64
}

// RBFOption configures an RBF instance.
type RBFOption func(*RBF)

// WithKernel names the radial kernel (default "multiquadric").
func WithKernel(name string) RBFOption {
	return func(r *RBF) { r.kernelName = name }
}

// WithSmoothing adds a diagonal relaxation term to the kernel system.
func WithSmoothing(s float64) RBFOption {
	return func(r *RBF) { r.smoothing = s }
}

// WithEpsilon fixes the kernel shape parameter; without it the reciprocal of
// the mean pairwise distance is used.
func WithEpsilon(eps float64) RBFOption {
	return func(r *RBF) { r.epsilon = eps }
}

// NewRBF creates a radial basis function interpolator.
func NewRBF(opts ...RBFOption) *RBF {
	r := &RBF{kernelName: "multiquadric"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit solves (K + smoothing·I) W = targets for the interpolation weights,
// where K is the kernel matrix of pairwise parameter distances.
func (r *RBF) Fit(parameters, targets mat.Matrix) error {
	n, _, _, err := checkFitShapes("RBF.Fit", parameters, targets)
	if err != nil {
		return err
	}
	kernel, ok := rbfKernels[r.kernelName]
	if !ok {
		return errors.NewValidationError("kernel", "unknown radial kernel", r.kernelName)
	}

	eps := r.epsilon
	if eps <= 0 {
		eps = defaultEpsilon(parameters)
	}

	K := mat.NewDense(n, n, nil)
	// rows touch disjoint (i,j)/(j,i) cell pairs, so chunks are independent
	parallel.ParallelizeWithThreshold(n, kernelRowThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			xi := matrixRow(parameters, i)
			for j := i; j < n; j++ {
				v := kernel(euclidean(xi, matrixRow(parameters, j)), eps)
				if i == j {
					v += r.smoothing
				}
				K.Set(i, j, v)
				K.Set(j, i, v)
			}
		}
	})

	var weights mat.Dense
	if err := weights.Solve(K, targets); err != nil {
		return errors.Wrap(errors.ErrSingularMatrix, "RBF.Fit: kernel system is singular")
	}

	r.parameters = mat.DenseCopyOf(parameters)
	r.weights = &weights
	r.fitEpsilon = eps
	r.SetFitted()
	return nil
}

// defaultEpsilon returns the reciprocal mean pairwise distance, 1 when the
// parameters are all coincident.
func defaultEpsilon(parameters mat.Matrix) float64 {
	n, _ := parameters.Dims()
	sum, count := 0.0, 0
	for i := 0; i < n; i++ {
		xi := matrixRow(parameters, i)
		for j := i + 1; j < n; j++ {
			sum += euclidean(xi, matrixRow(parameters, j))
			count++
		}
	}
	if count == 0 || sum == 0 {
		return 1
	}
	return float64(count) / sum
}

// Predict evaluates the interpolant at the query parameters.
func (r *RBF) Predict(parameters mat.Matrix) (*mat.Dense, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("RBF", "Predict")
	}
	n, dp := r.parameters.Dims()
	if err := checkQueryDim("RBF.Predict", parameters, dp); err != nil {
		return nil, err
	}
	kernel := rbfKernels[r.kernelName]

	m, _ := parameters.Dims()
	Kq := mat.NewDense(m, n, nil)
	parallel.ParallelizeWithThreshold(m, kernelRowThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			q := matrixRow(parameters, i)
			for j := 0; j < n; j++ {
				Kq.Set(i, j, kernel(euclidean(q, matrixRow(r.parameters, j)), r.fitEpsilon))
			}
		}
	})

	_, k := r.weights.Dims()
	out := mat.NewDense(m, k, nil)
	out.Mul(Kq, r.weights)
	return out, nil
}

// Clone returns an unfitted RBF with the same configuration.
func (r *RBF) Clone() Approximation {
	return NewRBF(WithKernel(r.kernelName), WithSmoothing(r.smoothing), WithEpsilon(r.epsilon))
}

type rbfGobState struct {
	KernelName string
	Smoothing  float64
	Epsilon    float64
	FitEpsilon float64
	Parameters []byte
	Weights    []byte
	Fitted     bool
}

// GobEncode implements gob.GobEncoder.
func (r *RBF) GobEncode() ([]byte, error) {
	params, err := model.MarshalMatrix(r.parameters)
	if err != nil {
		return nil, err
	}
	weights, err := model.MarshalMatrix(r.weights)
	if err != nil {
		return nil, err
	}
	state := rbfGobState{
		KernelName: r.kernelName,
		Smoothing:  r.smoothing,
		Epsilon:    r.epsilon,
		FitEpsilon: r.fitEpsilon,
		Parameters: params,
		Weights:    weights,
		Fitted:     r.IsFitted(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (r *RBF) GobDecode(data []byte) error {
	var state rbfGobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	params, err := model.UnmarshalMatrix(state.Parameters)
	if err != nil {
		return err
	}
	weights, err := model.UnmarshalMatrix(state.Weights)
	if err != nil {
		return err
	}
	r.kernelName = state.KernelName
	r.smoothing = state.Smoothing
	r.epsilon = state.Epsilon
	r.fitEpsilon = state.FitEpsilon
	r.parameters = params
	r.weights = weights
	if state.Fitted {
		r.SetFitted()
	}
	return nil
}
