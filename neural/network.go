// Package neural implements the small feed-forward network shared by the
// autoencoder reduction and the ANN approximation strategy. It is a plain
// SGD/backprop implementation with seeded initialization; training is
// bounded by an epoch budget and a loss tolerance rather than wall-clock
// cancellation.
package neural

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/pkg/errors"
)

// Supported activation names.
const (
	ActTanh     = "tanh"
	ActSigmoid  = "sigmoid"
	ActReLU     = "relu"
	ActIdentity = "identity"
)

// Network is a dense feed-forward network. All fields are exported plain
// types so a fitted network serializes with encoding/gob as-is.
type Network struct {
	// Sizes lists the layer widths, input and output included.
	Sizes []int

	// Activations names the activation applied after each weight layer;
	// length len(Sizes)-1. The output layer is typically identity.
	Activations []string

	// Weights[l] is the (Sizes[l+1] × Sizes[l]) matrix stored row-major.
	Weights [][]float64

	// Biases[l] has length Sizes[l+1].
	Biases [][]float64
}

// TrainConfig bounds a training run.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Tolerance    float64
	Seed         uint64
}

// New creates a network with seeded scaled-uniform initialization.
func New(sizes []int, activations []string, seed uint64) (*Network, error) {
	if len(sizes) < 2 {
		return nil, errors.NewValueError("neural.New", "need at least input and output layers")
	}
	if len(activations) != len(sizes)-1 {
		return nil, errors.NewDimensionError("neural.New", len(sizes)-1, len(activations), 1)
	}
	for _, s := range sizes {
		if s < 1 {
			return nil, errors.NewValueError("neural.New", "layer sizes must be positive")
		}
	}
	for _, a := range activations {
		if !validActivation(a) {
			return nil, errors.NewValidationError("activation", "unknown activation", a)
		}
	}

	rng := rand.New(rand.NewPCG(seed, seed+1))
	n := &Network{
		Sizes:       append([]int(nil), sizes...),
		Activations: append([]string(nil), activations...),
	}
	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		scale := 1 / math.Sqrt(float64(in))
		w := make([]float64, out*in)
		for i := range w {
			w[i] = (2*rng.Float64() - 1) * scale
		}
		n.Weights = append(n.Weights, w)
		n.Biases = append(n.Biases, make([]float64, out))
	}
	return n, nil
}

func validActivation(name string) bool {
	switch name {
	case ActTanh, ActSigmoid, ActReLU, ActIdentity:
		return true
	}
	return false
}

func activate(name string, z float64) float64 {
	switch name {
	case ActTanh:
		return math.Tanh(z)
	case ActSigmoid:
		return 1 / (1 + math.Exp(-z))
	case ActReLU:
		if z < 0 {
			return 0
		}
		return z
	default:
		return z
	}
}

// activateDeriv returns the derivative expressed in terms of the activated
// value a (cheaper than recomputing from the pre-activation).
func activateDeriv(name string, a float64) float64 {
	switch name {
	case ActTanh:
		return 1 - a*a
	case ActSigmoid:
		return a * (1 - a)
	case ActReLU:
		if a > 0 {
			return 1
		}
		return 0
	default:
		return 1
	}
}

// NumLayers returns the number of weight layers.
func (n *Network) NumLayers() int {
	return len(n.Weights)
}

// ForwardRange propagates x through the weight layers [from, to).
// ForwardRange(x, 0, NumLayers()) is the full forward pass; an autoencoder
// encodes with [0, bottleneck) and decodes with [bottleneck, NumLayers()).
func (n *Network) ForwardRange(x []float64, from, to int) []float64 {
	a := append([]float64(nil), x...)
	for l := from; l < to; l++ {
		a = n.layerForward(l, a)
	}
	return a
}

// Forward runs the full forward pass.
func (n *Network) Forward(x []float64) []float64 {
	return n.ForwardRange(x, 0, n.NumLayers())
}

func (n *Network) layerForward(l int, in []float64) []float64 {
	rows, cols := n.Sizes[l+1], n.Sizes[l]
	out := make([]float64, rows)
	w := n.Weights[l]
	for i := 0; i < rows; i++ {
		z := n.Biases[l][i]
		row := w[i*cols : (i+1)*cols]
		for j, v := range in {
			z += row[j] * v
		}
		out[i] = activate(n.Activations[l], z)
	}
	return out
}

// Predict applies the full forward pass to every row of X.
func (n *Network) Predict(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != n.Sizes[0] {
		return nil, errors.NewDimensionError("neural.Predict", n.Sizes[0], c, 1)
	}
	out := mat.NewDense(r, n.Sizes[len(n.Sizes)-1], nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, n.Forward(mat.Row(nil, i, X)))
	}
	return out, nil
}

// Train runs mini-batch SGD minimizing mean squared error over the rows of
// X (inputs) and Y (targets). It returns the final epoch loss and whether
// the loss tolerance was reached within the epoch budget.
func (n *Network) Train(X, Y mat.Matrix, cfg TrainConfig) (float64, bool, error) {
	xr, xc := X.Dims()
	yr, yc := Y.Dims()
	if xr != yr {
		return 0, false, errors.NewDimensionError("neural.Train", xr, yr, 0)
	}
	if xc != n.Sizes[0] {
		return 0, false, errors.NewDimensionError("neural.Train", n.Sizes[0], xc, 1)
	}
	if yc != n.Sizes[len(n.Sizes)-1] {
		return 0, false, errors.NewDimensionError("neural.Train", n.Sizes[len(n.Sizes)-1], yc, 1)
	}
	if cfg.Epochs < 1 {
		return 0, false, errors.NewValidationError("epochs", "epoch budget must be positive", cfg.Epochs)
	}
	if cfg.LearningRate <= 0 {
		return 0, false, errors.NewValidationError("learning_rate", "learning rate must be positive", cfg.LearningRate)
	}
	batch := cfg.BatchSize
	if batch < 1 || batch > xr {
		batch = xr
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xda3e39cb94b95bdb))
	order := make([]int, xr)
	for i := range order {
		order[i] = i
	}

	loss := math.Inf(1)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		for start := 0; start < xr; start += batch {
			end := start + batch
			if end > xr {
				end = xr
			}
			n.updateBatch(X, Y, order[start:end], cfg.LearningRate)
		}

		loss = n.loss(X, Y)
		if loss <= cfg.Tolerance {
			return loss, true, nil
		}
	}
	return loss, false, nil
}

// loss is the mean squared error over all rows.
func (n *Network) loss(X, Y mat.Matrix) float64 {
	r, _ := X.Dims()
	_, yc := Y.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		out := n.Forward(mat.Row(nil, i, X))
		for j := 0; j < yc; j++ {
			diff := out[j] - Y.At(i, j)
			sum += diff * diff
		}
	}
	return sum / float64(r*yc)
}

// updateBatch accumulates backprop gradients over the batch rows and applies
// one SGD step.
func (n *Network) updateBatch(X, Y mat.Matrix, rows []int, lr float64) {
	L := n.NumLayers()
	gradW := make([][]float64, L)
	gradB := make([][]float64, L)
	for l := 0; l < L; l++ {
		gradW[l] = make([]float64, len(n.Weights[l]))
		gradB[l] = make([]float64, len(n.Biases[l]))
	}

	for _, idx := range rows {
		x := mat.Row(nil, idx, X)
		y := mat.Row(nil, idx, Y)

		// forward pass keeping every activation
		acts := make([][]float64, L+1)
		acts[0] = x
		for l := 0; l < L; l++ {
			acts[l+1] = n.layerForward(l, acts[l])
		}

		// output delta for MSE with the output activation folded in
		delta := make([]float64, len(acts[L]))
		for j := range delta {
			diff := acts[L][j] - y[j]
			delta[j] = diff * activateDeriv(n.Activations[L-1], acts[L][j])
		}

		for l := L - 1; l >= 0; l-- {
			rowsOut, colsIn := n.Sizes[l+1], n.Sizes[l]
			for i := 0; i < rowsOut; i++ {
				gradB[l][i] += delta[i]
				for j := 0; j < colsIn; j++ {
					gradW[l][i*colsIn+j] += delta[i] * acts[l][j]
				}
			}
			if l == 0 {
				break
			}
			prev := make([]float64, colsIn)
			w := n.Weights[l]
			for j := 0; j < colsIn; j++ {
				sum := 0.0
				for i := 0; i < rowsOut; i++ {
					sum += w[i*colsIn+j] * delta[i]
				}
				prev[j] = sum * activateDeriv(n.Activations[l-1], acts[l][j])
			}
			delta = prev
		}
	}

	scale := lr / float64(len(rows))
	for l := 0; l < L; l++ {
		for i := range n.Weights[l] {
			n.Weights[l][i] -= scale * gradW[l][i]
		}
		for i := range n.Biases[l] {
			n.Biases[l][i] -= scale * gradB[l][i]
		}
	}
}
