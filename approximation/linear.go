package approximation

import (
	"bytes"
	"encoding/gob"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/core/model"
	"github.com/sciforge/gorom/geometry"
	"github.com/sciforge/gorom/pkg/errors"
)

// FillPolicy decides the result for queries outside the convex hull of the
// training parameters.
type FillPolicy int

const (
	// FillNaN yields not-a-number for every latent component of an
	// out-of-hull query. The query is always flagged with an
	// OutOfDomainError warning.
	FillNaN FillPolicy = iota
	// FillNearest substitutes the target of the nearest training parameter.
	FillNearest
)

// ParseFillPolicy maps a configuration string to a FillPolicy. Extrapolation
// beyond the hull is not supported and is rejected here rather than
// producing unflagged fabricated values.
func ParseFillPolicy(name string) (FillPolicy, error) {
	switch name {
	case "nan", "":
		return FillNaN, nil
	case "nearest":
		return FillNearest, nil
	case "extrapolate":
		return 0, errors.NewValidationError("fill", "extrapolation outside the convex hull is not supported", name)
	default:
		return 0, errors.NewValidationError("fill", "unknown fill policy", name)
	}
}

// Linear interpolates targets barycentrically inside the simplices of a
// Delaunay triangulation of the training parameters. Inside the convex hull
// the prediction is the barycentric combination of the enclosing simplex's
// vertex targets; outside it the configured FillPolicy applies.
type Linear struct {
	model.BaseEstimator

	fill FillPolicy

	parameters *mat.Dense
	targets    *mat.Dense
	tri        *geometry.Triangulation
}

// LinearOption configures a Linear instance.
type LinearOption func(*Linear)

// WithFillPolicy sets the out-of-hull policy (default FillNaN).
func WithFillPolicy(fill FillPolicy) LinearOption {
	return func(l *Linear) { l.fill = fill }
}

// NewLinear creates a barycentric linear interpolator.
func NewLinear(opts ...LinearOption) *Linear {
	l := &Linear{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fit triangulates the parameters and stores the targets. At least
// d_p + 1 affinely independent parameter points are required.
func (l *Linear) Fit(parameters, targets mat.Matrix) error {
	_, _, _, err := checkFitShapes("Linear.Fit", parameters, targets)
	if err != nil {
		return err
	}

	tri, err := geometry.NewTriangulation(parameters)
	if err != nil {
		return errors.Wrap(err, "Linear.Fit")
	}

	l.parameters = mat.DenseCopyOf(parameters)
	l.targets = mat.DenseCopyOf(targets)
	l.tri = tri
	l.SetFitted()
	return nil
}

// Predict interpolates each query row. Out-of-hull rows are resolved by the
// fill policy and flagged through the warning handler, never silently.
func (l *Linear) Predict(parameters mat.Matrix) (*mat.Dense, error) {
	if !l.IsFitted() {
		return nil, errors.NewNotFittedError("Linear", "Predict")
	}
	_, dp := l.parameters.Dims()
	if err := checkQueryDim("Linear.Predict", parameters, dp); err != nil {
		return nil, err
	}

	m, _ := parameters.Dims()
	_, k := l.targets.Dims()
	out := mat.NewDense(m, k, nil)

	for i := 0; i < m; i++ {
		query := matrixRow(parameters, i)
		simplex, weights, err := l.tri.Find(query)
		if err != nil {
			return nil, errors.Wrap(err, "Linear.Predict")
		}
		if simplex < 0 {
			errors.Warn(errors.NewOutOfDomainError("Linear.Predict", query))
			l.fillRow(out, i, query, k)
			continue
		}
		vertices := l.tri.Simplices[simplex]
		for j := 0; j < k; j++ {
			v := 0.0
			for w, vertex := range vertices {
				v += weights[w] * l.targets.At(vertex, j)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// fillRow writes the fill value for an out-of-hull query into row i.
func (l *Linear) fillRow(out *mat.Dense, i int, query []float64, k int) {
	switch l.fill {
	case FillNearest:
		nearest, best := 0, math.Inf(1)
		n, _ := l.parameters.Dims()
		for r := 0; r < n; r++ {
			if d := euclidean(query, matrixRow(l.parameters, r)); d < best {
				best, nearest = d, r
			}
		}
		for j := 0; j < k; j++ {
			out.Set(i, j, l.targets.At(nearest, j))
		}
	default:
		for j := 0; j < k; j++ {
			out.Set(i, j, math.NaN())
		}
	}
}

// Clone returns an unfitted Linear with the same fill policy.
func (l *Linear) Clone() Approximation {
	return NewLinear(WithFillPolicy(l.fill))
}

type linearGobState struct {
	Fill       int
	Parameters []byte
	Targets    []byte
	Fitted     bool
}

// GobEncode implements gob.GobEncoder. The triangulation is derived state
// and is rebuilt on decode.
func (l *Linear) GobEncode() ([]byte, error) {
	params, err := model.MarshalMatrix(l.parameters)
	if err != nil {
		return nil, err
	}
	targets, err := model.MarshalMatrix(l.targets)
	if err != nil {
		return nil, err
	}
	state := linearGobState{
		Fill:       int(l.fill),
		Parameters: params,
		Targets:    targets,
		Fitted:     l.IsFitted(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (l *Linear) GobDecode(data []byte) error {
	var state linearGobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	l.fill = FillPolicy(state.Fill)
	params, err := model.UnmarshalMatrix(state.Parameters)
	if err != nil {
		return err
	}
	targets, err := model.UnmarshalMatrix(state.Targets)
	if err != nil {
		return err
	}
	l.parameters = params
	l.targets = targets
	if state.Fitted {
		tri, err := geometry.NewTriangulation(l.parameters)
		if err != nil {
			return err
		}
		l.tri = tri
		l.SetFitted()
	}
	return nil
}
