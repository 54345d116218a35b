// Package reduction provides the dimensionality-reduction strategies of the
// pipeline: POD (SVD-based linear reduction), a feed-forward autoencoder,
// and the hierarchical POD-then-autoencoder combination.
//
// Snapshot matrices follow the library-wide row convention: one sample per
// row, so Fit consumes an n × d_s matrix and Transform returns n × k latent
// coordinates.
package reduction

import (
	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/pkg/errors"
)

// Reduction maps a full-dimensional snapshot matrix to a low-dimensional
// latent matrix and back. Implementations are value-cloneable so that
// cross-validation can refit an independent copy per fold.
type Reduction interface {
	// Fit computes and stores the basis/encoder from an n × d_s snapshot
	// matrix.
	Fit(snapshots mat.Matrix) error

	// Transform projects n × d_s snapshots into the n × k latent space.
	// Deterministic given fitted state.
	Transform(snapshots mat.Matrix) (mat.Matrix, error)

	// InverseTransform reconstructs approximate n × d_s snapshots from
	// n × k latent coordinates.
	InverseTransform(latent mat.Matrix) (mat.Matrix, error)

	// Rank returns the latent dimensionality k after fitting.
	Rank() int

	// Clone returns an unfitted copy with the same configuration.
	Clone() Reduction
}

// Config selects and parameterizes a reduction strategy from declarative
// configuration (YAML in the CLI).
type Config struct {
	// Method is one of "pod", "autoencoder", "pod-autoencoder".
	Method string `yaml:"method"`

	// Rank is the fixed retained rank; 0 selects the optimal hard
	// threshold and a value in (0,1) is treated as an energy fraction by
	// Energy below.
	Rank int `yaml:"rank"`

	// Energy, when in (0,1], selects the energy-threshold rank policy.
	Energy float64 `yaml:"energy"`

	// Randomized enables randomized SVD for POD.
	Randomized bool `yaml:"randomized"`

	// Oversamples and PowerIterations control the randomized SVD sketch.
	Oversamples     int `yaml:"oversamples"`
	PowerIterations int `yaml:"power_iterations"`

	// Seed seeds the randomized SVD test matrix and the autoencoder
	// weight initialization.
	Seed uint64 `yaml:"seed"`

	// HiddenLayers configures the autoencoder encoder stack (the decoder
	// mirrors it).
	HiddenLayers []int `yaml:"hidden_layers"`

	// Epochs and Tolerance bound autoencoder training.
	Epochs    int     `yaml:"epochs"`
	Tolerance float64 `yaml:"tolerance"`

	// LearningRate for autoencoder training.
	LearningRate float64 `yaml:"learning_rate"`
}

// FromConfig builds the configured reduction strategy.
func FromConfig(cfg Config) (Reduction, error) {
	podOpts := func() []PODOption {
		var opts []PODOption
		switch {
		case cfg.Energy > 0 && cfg.Energy <= 1:
			opts = append(opts, WithEnergyThreshold(cfg.Energy))
		case cfg.Rank > 0:
			opts = append(opts, WithRank(cfg.Rank))
		default:
			opts = append(opts, WithOptimalThreshold())
		}
		if cfg.Randomized {
			opts = append(opts, WithRandomizedSVD(cfg.Oversamples, cfg.PowerIterations, cfg.Seed))
		}
		return opts
	}

	switch cfg.Method {
	case "pod", "":
		return NewPOD(podOpts()...), nil
	case "autoencoder":
		return NewAutoencoder(cfg.Rank, cfg.HiddenLayers,
			WithAETraining(cfg.Epochs, cfg.Tolerance, cfg.LearningRate),
			WithAESeed(cfg.Seed)), nil
	case "pod-autoencoder":
		return NewPODAutoencoder(NewPOD(podOpts()...),
			NewAutoencoder(cfg.Rank, cfg.HiddenLayers,
				WithAETraining(cfg.Epochs, cfg.Tolerance, cfg.LearningRate),
				WithAESeed(cfg.Seed))), nil
	default:
		return nil, errors.NewValidationError("method", "unknown reduction strategy", cfg.Method)
	}
}
