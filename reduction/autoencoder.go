package reduction

import (
	"bytes"
	"encoding/gob"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/core/model"
	"github.com/sciforge/gorom/neural"
	"github.com/sciforge/gorom/pkg/errors"
)

// Autoencoder is a nonlinear reduction: a feed-forward network with a
// bottleneck of latentDim units is trained to reproduce the snapshots, the
// encoder half implements Transform and the decoder half InverseTransform.
// The round trip approximates the identity up to the training residual.
type Autoencoder struct {
	model.BaseEstimator

	latentDim int
	hidden    []int

	epochs    int
	tolerance float64
	lr        float64
	batchSize int
	seed      uint64

	net         *neural.Network
	bottleneck  int // number of encoder weight layers
	snapshotDim int
}

// AEOption configures an Autoencoder.
type AEOption func(*Autoencoder)

// WithAETraining bounds training by an epoch budget and a loss tolerance
// and sets the SGD learning rate. Zero values keep the defaults.
func WithAETraining(epochs int, tolerance, learningRate float64) AEOption {
	return func(ae *Autoencoder) {
		if epochs > 0 {
			ae.epochs = epochs
		}
		if tolerance > 0 {
			ae.tolerance = tolerance
		}
		if learningRate > 0 {
			ae.lr = learningRate
		}
	}
}

// WithAEBatchSize sets the mini-batch size (default: full batch).
func WithAEBatchSize(size int) AEOption {
	return func(ae *Autoencoder) {
		ae.batchSize = size
	}
}

// WithAESeed seeds weight initialization and batch shuffling.
func WithAESeed(seed uint64) AEOption {
	return func(ae *Autoencoder) {
		ae.seed = seed
	}
}

// NewAutoencoder creates an autoencoder reduction with the given latent
// dimensionality and encoder hidden-layer widths (the decoder mirrors them).
func NewAutoencoder(latentDim int, hidden []int, opts ...AEOption) *Autoencoder {
	ae := &Autoencoder{
		latentDim: latentDim,
		hidden:    append([]int(nil), hidden...),
		epochs:    2000,
		tolerance: 1e-8,
		lr:        0.01,
	}
	for _, opt := range opts {
		opt(ae)
	}
	return ae
}

// Fit trains the autoencoder on an n × d_s snapshot matrix. A training run
// that exhausts the epoch budget before reaching the tolerance emits a
// ConvergenceWarning and keeps the best-effort network.
func (ae *Autoencoder) Fit(snapshots mat.Matrix) error {
	n, ds := snapshots.Dims()
	if n < 1 {
		return errors.NewDimensionError("Autoencoder.Fit", 1, n, 0)
	}
	if ae.latentDim < 1 {
		return errors.NewValidationError("latent_dim", "latent dimension must be positive", ae.latentDim)
	}

	// symmetric topology: d_s -> hidden -> k -> mirrored hidden -> d_s
	sizes := []int{ds}
	sizes = append(sizes, ae.hidden...)
	sizes = append(sizes, ae.latentDim)
	for i := len(ae.hidden) - 1; i >= 0; i-- {
		sizes = append(sizes, ae.hidden[i])
	}
	sizes = append(sizes, ds)

	activations := make([]string, len(sizes)-1)
	for i := range activations {
		activations[i] = neural.ActTanh
	}
	activations[len(activations)-1] = neural.ActIdentity

	net, err := neural.New(sizes, activations, ae.seed)
	if err != nil {
		return errors.Wrap(err, "Autoencoder.Fit")
	}

	loss, converged, err := net.Train(snapshots, snapshots, neural.TrainConfig{
		Epochs:       ae.epochs,
		BatchSize:    ae.batchSize,
		LearningRate: ae.lr,
		Tolerance:    ae.tolerance,
		Seed:         ae.seed,
	})
	if err != nil {
		return errors.Wrap(err, "Autoencoder.Fit")
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("Autoencoder.Fit", ae.epochs,
			errors.Newf("training loss %g above tolerance %g", loss, ae.tolerance).Error()))
	}

	ae.net = net
	ae.bottleneck = len(ae.hidden) + 1
	ae.snapshotDim = ds
	ae.SetFitted()
	return nil
}

// Transform encodes n × d_s snapshots into n × k latent coordinates.
func (ae *Autoencoder) Transform(snapshots mat.Matrix) (mat.Matrix, error) {
	if !ae.IsFitted() {
		return nil, errors.NewNotFittedError("Autoencoder", "Transform")
	}
	n, ds := snapshots.Dims()
	if ds != ae.snapshotDim {
		return nil, errors.NewDimensionError("Autoencoder.Transform", ae.snapshotDim, ds, 1)
	}

	latent := mat.NewDense(n, ae.latentDim, nil)
	for i := 0; i < n; i++ {
		latent.SetRow(i, ae.net.ForwardRange(mat.Row(nil, i, snapshots), 0, ae.bottleneck))
	}
	return latent, nil
}

// InverseTransform decodes n × k latent coordinates back to n × d_s.
func (ae *Autoencoder) InverseTransform(latent mat.Matrix) (mat.Matrix, error) {
	if !ae.IsFitted() {
		return nil, errors.NewNotFittedError("Autoencoder", "InverseTransform")
	}
	n, k := latent.Dims()
	if k != ae.latentDim {
		return nil, errors.NewDimensionError("Autoencoder.InverseTransform", ae.latentDim, k, 1)
	}

	restored := mat.NewDense(n, ae.snapshotDim, nil)
	for i := 0; i < n; i++ {
		restored.SetRow(i, ae.net.ForwardRange(mat.Row(nil, i, latent), ae.bottleneck, ae.net.NumLayers()))
	}
	return restored, nil
}

// Rank returns the latent dimensionality.
func (ae *Autoencoder) Rank() int {
	return ae.latentDim
}

// Clone returns an unfitted copy with the same configuration.
func (ae *Autoencoder) Clone() Reduction {
	clone := *ae
	clone.Reset()
	clone.net = nil
	clone.bottleneck = 0
	clone.snapshotDim = 0
	clone.hidden = append([]int(nil), ae.hidden...)
	return &clone
}

type aeGobState struct {
	LatentDim   int
	Hidden      []int
	Epochs      int
	Tolerance   float64
	LR          float64
	BatchSize   int
	Seed        uint64
	Net         *neural.Network
	Bottleneck  int
	SnapshotDim int
	Fitted      bool
}

// GobEncode implements gob.GobEncoder.
func (ae *Autoencoder) GobEncode() ([]byte, error) {
	state := aeGobState{
		LatentDim:   ae.latentDim,
		Hidden:      ae.hidden,
		Epochs:      ae.epochs,
		Tolerance:   ae.tolerance,
		LR:          ae.lr,
		BatchSize:   ae.batchSize,
		Seed:        ae.seed,
		Net:         ae.net,
		Bottleneck:  ae.bottleneck,
		SnapshotDim: ae.snapshotDim,
		Fitted:      ae.IsFitted(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (ae *Autoencoder) GobDecode(data []byte) error {
	var state aeGobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	ae.latentDim = state.LatentDim
	ae.hidden = state.Hidden
	ae.epochs = state.Epochs
	ae.tolerance = state.Tolerance
	ae.lr = state.LR
	ae.batchSize = state.BatchSize
	ae.seed = state.Seed
	ae.net = state.Net
	ae.bottleneck = state.Bottleneck
	ae.snapshotDim = state.SnapshotDim
	if state.Fitted {
		ae.SetFitted()
	}
	return nil
}
