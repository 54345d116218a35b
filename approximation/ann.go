package approximation

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/core/model"
	"github.com/sciforge/gorom/neural"
	"github.com/sciforge/gorom/pkg/errors"
)

// ANN maps parameters to latent coordinates with a feed-forward neural
// network: tanh hidden layers, identity output, mini-batch SGD. A training
// run that exhausts its epoch budget before reaching the loss tolerance is
// flagged with a ConvergenceWarning and kept as a best-effort model.
type ANN struct {
	model.BaseEstimator

	hidden    []int
	epochs    int
	tolerance float64
	lr        float64
	batchSize int
	seed      uint64

	net   *neural.Network
	inDim int
}

// ANNOption configures an ANN instance.
type ANNOption func(*ANN)

// WithANNTraining bounds training by an epoch budget and a loss tolerance
// and sets the SGD learning rate. Zero values keep the defaults.
func WithANNTraining(epochs int, tolerance, learningRate float64) ANNOption {
	return func(a *ANN) {
		if epochs > 0 {
			a.epochs = epochs
		}
		if tolerance > 0 {
			a.tolerance = tolerance
		}
		if learningRate > 0 {
			a.lr = learningRate
		}
	}
}

// WithANNBatchSize sets the mini-batch size (default: full batch).
func WithANNBatchSize(size int) ANNOption {
	return func(a *ANN) { a.batchSize = size }
}

// WithANNSeed seeds weight initialization and batch shuffling.
func WithANNSeed(seed uint64) ANNOption {
	return func(a *ANN) { a.seed = seed }
}

// NewANN creates a neural-network regressor with the given hidden-layer
// widths.
func NewANN(hidden []int, opts ...ANNOption) *ANN {
	a := &ANN{
		hidden:    append([]int(nil), hidden...),
		epochs:    5000,
		tolerance: 1e-8,
		lr:        0.01,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fit trains the network on n × d_p parameters and n × k targets.
func (a *ANN) Fit(parameters, targets mat.Matrix) error {
	_, dp, k, err := checkFitShapes("ANN.Fit", parameters, targets)
	if err != nil {
		return err
	}
	if len(a.hidden) == 0 {
		return errors.NewValidationError("hidden_layers", "at least one hidden layer is required", a.hidden)
	}

	sizes := make([]int, 0, len(a.hidden)+2)
	sizes = append(sizes, dp)
	sizes = append(sizes, a.hidden...)
	sizes = append(sizes, k)
	activations := make([]string, len(sizes)-1)
	for i := range activations {
		activations[i] = "tanh"
	}
	activations[len(activations)-1] = "identity"

	net, err := neural.New(sizes, activations, a.seed)
	if err != nil {
		return errors.Wrap(err, "ANN.Fit")
	}
	loss, converged, err := net.Train(parameters, targets, neural.TrainConfig{
		Epochs:       a.epochs,
		BatchSize:    a.batchSize,
		LearningRate: a.lr,
		Tolerance:    a.tolerance,
		Seed:         a.seed,
	})
	if err != nil {
		return errors.Wrap(err, "ANN.Fit")
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("ANN", a.epochs,
			fmt.Sprintf("training loss %g above tolerance %g", loss, a.tolerance)))
	}

	a.net = net
	a.inDim = dp
	a.SetFitted()
	return nil
}

// Predict evaluates the network at the query parameters.
func (a *ANN) Predict(parameters mat.Matrix) (*mat.Dense, error) {
	if !a.IsFitted() {
		return nil, errors.NewNotFittedError("ANN", "Predict")
	}
	if err := checkQueryDim("ANN.Predict", parameters, a.inDim); err != nil {
		return nil, err
	}
	out, err := a.net.Predict(parameters)
	if err != nil {
		return nil, errors.Wrap(err, "ANN.Predict")
	}
	return out, nil
}

// Clone returns an unfitted ANN with the same configuration.
func (a *ANN) Clone() Approximation {
	return &ANN{
		hidden:    append([]int(nil), a.hidden...),
		epochs:    a.epochs,
		tolerance: a.tolerance,
		lr:        a.lr,
		batchSize: a.batchSize,
		seed:      a.seed,
	}
}

type annGobState struct {
	Hidden    []int
	Epochs    int
	Tolerance float64
	LR        float64
	BatchSize int
	Seed      uint64
	Net       *neural.Network
	InDim     int
	Fitted    bool
}

// GobEncode implements gob.GobEncoder.
func (a *ANN) GobEncode() ([]byte, error) {
	state := annGobState{
		Hidden:    a.hidden,
		Epochs:    a.epochs,
		Tolerance: a.tolerance,
		LR:        a.lr,
		BatchSize: a.batchSize,
		Seed:      a.seed,
		Net:       a.net,
		InDim:     a.inDim,
		Fitted:    a.IsFitted(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (a *ANN) GobDecode(data []byte) error {
	var state annGobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	a.hidden = state.Hidden
	a.epochs = state.Epochs
	a.tolerance = state.Tolerance
	a.lr = state.LR
	a.batchSize = state.BatchSize
	a.seed = state.Seed
	a.net = state.Net
	a.inDim = state.InDim
	if state.Fitted {
		a.SetFitted()
	}
	return nil
}

func init() {
	gob.Register(&Linear{})
	gob.Register(&RBF{})
	gob.Register(&GPR{})
	gob.Register(&KNeighbors{})
	gob.Register(&RadiusNeighbors{})
	gob.Register(&ANN{})
}
