// Package approximation provides the parameter-to-latent regression
// strategies of the pipeline: radial basis function interpolation, Gaussian
// process regression, barycentric linear interpolation, neighbor-based
// regressors and a feed-forward neural network.
//
// All strategies share the row convention of the library: Fit consumes an
// n × d_p parameter matrix and an n × k target matrix, Predict maps m × d_p
// queries to m × k predictions.
package approximation

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/pkg/errors"
)

// Approximation learns a mapping from parameter vectors to latent
// coordinates. Implementations are cloneable so that cross-validation can
// refit an independent copy per fold.
type Approximation interface {
	// Fit learns the mapping from n × d_p parameters to n × k targets.
	Fit(parameters, targets mat.Matrix) error

	// Predict evaluates the fitted mapping at m × d_p query parameters and
	// returns an m × k matrix.
	Predict(parameters mat.Matrix) (*mat.Dense, error)

	// Clone returns an unfitted copy with the same configuration.
	Clone() Approximation
}

// Config selects and parameterizes an approximation strategy from
// declarative configuration (YAML in the CLI).
type Config struct {
	// Method is one of "linear", "rbf", "gpr", "kneighbors",
	// "radius-neighbors", "ann".
	Method string `yaml:"method"`

	// Kernel names the radial kernel for RBF ("gaussian", "multiquadric",
	// "inverse-multiquadric", "thin-plate", "linear", "cubic").
	Kernel string `yaml:"kernel"`

	// Smoothing relaxes RBF interpolation toward approximation.
	Smoothing float64 `yaml:"smoothing"`

	// Epsilon is the RBF kernel shape parameter; 0 selects a data-driven
	// default.
	Epsilon float64 `yaml:"epsilon"`

	// Fill is the out-of-hull policy for the linear strategy ("nan" or
	// "nearest").
	Fill string `yaml:"fill"`

	// Neighbors is k for the k-nearest-neighbors regressor.
	Neighbors int `yaml:"neighbors"`

	// Radius bounds the neighborhood of the radius regressor.
	Radius float64 `yaml:"radius"`

	// Weights selects neighbor weighting ("uniform" or "distance").
	Weights string `yaml:"weights"`

	// Restarts is the number of random restarts for GPR hyperparameter
	// optimization.
	Restarts int `yaml:"restarts"`

	// Noise is the GPR observation noise variance.
	Noise float64 `yaml:"noise"`

	// HiddenLayers configures the neural-network strategy.
	HiddenLayers []int `yaml:"hidden_layers"`

	// Epochs, Tolerance and LearningRate bound neural-network training.
	Epochs       int     `yaml:"epochs"`
	Tolerance    float64 `yaml:"tolerance"`
	LearningRate float64 `yaml:"learning_rate"`

	// Seed drives GPR restarts and neural-network initialization.
	Seed uint64 `yaml:"seed"`
}

// FromConfig builds the configured approximation strategy.
func FromConfig(cfg Config) (Approximation, error) {
	switch cfg.Method {
	case "linear", "":
		fill, err := ParseFillPolicy(cfg.Fill)
		if err != nil {
			return nil, err
		}
		return NewLinear(WithFillPolicy(fill)), nil
	case "rbf":
		var opts []RBFOption
		if cfg.Kernel != "" {
			opts = append(opts, WithKernel(cfg.Kernel))
		}
		if cfg.Smoothing > 0 {
			opts = append(opts, WithSmoothing(cfg.Smoothing))
		}
		if cfg.Epsilon > 0 {
			opts = append(opts, WithEpsilon(cfg.Epsilon))
		}
		return NewRBF(opts...), nil
	case "gpr":
		var opts []GPROption
		if cfg.Restarts > 0 {
			opts = append(opts, WithRestarts(cfg.Restarts))
		}
		if cfg.Noise > 0 {
			opts = append(opts, WithNoise(cfg.Noise))
		}
		opts = append(opts, WithGPRSeed(cfg.Seed))
		return NewGPR(opts...), nil
	case "kneighbors":
		k := cfg.Neighbors
		if k < 1 {
			k = 5
		}
		return NewKNeighbors(k, WithWeights(cfg.Weights)), nil
	case "radius-neighbors":
		if cfg.Radius <= 0 {
			return nil, errors.NewValidationError("radius", "radius must be positive", cfg.Radius)
		}
		return NewRadiusNeighbors(cfg.Radius, WithWeights(cfg.Weights)), nil
	case "ann":
		return NewANN(cfg.HiddenLayers,
			WithANNTraining(cfg.Epochs, cfg.Tolerance, cfg.LearningRate),
			WithANNSeed(cfg.Seed)), nil
	default:
		return nil, errors.NewValidationError("method", "unknown approximation strategy", cfg.Method)
	}
}

// checkFitShapes validates the shared Fit contract and returns the sample
// count and dimensionalities.
func checkFitShapes(op string, parameters, targets mat.Matrix) (n, dp, k int, err error) {
	n, dp = parameters.Dims()
	tn, k := targets.Dims()
	if n != tn {
		return 0, 0, 0, errors.NewDimensionError(op, n, tn, 0)
	}
	if n < 1 {
		return 0, 0, 0, errors.NewInsufficientDataError(op, 1, n, "no training samples")
	}
	return n, dp, k, nil
}

// checkQueryDim validates a Predict query against the fitted parameter
// dimensionality.
func checkQueryDim(op string, query mat.Matrix, dp int) error {
	_, qd := query.Dims()
	if qd != dp {
		return errors.NewDimensionError(op, dp, qd, 1)
	}
	return nil
}

// matrixRow copies row i of m into a fresh slice.
func matrixRow(m mat.Matrix, i int) []float64 {
	_, c := m.Dims()
	row := make([]float64, c)
	for j := 0; j < c; j++ {
		row[j] = m.At(i, j)
	}
	return row
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
