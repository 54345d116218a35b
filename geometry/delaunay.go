// Package geometry provides the simplex machinery behind barycentric
// interpolation and adaptive sampling: a Delaunay triangulation of the
// training parameters, simplex volumes, and barycentric coordinates.
//
// The triangulation is computed by exhaustive circumsphere testing. That is
// O(n^(d+2)) and only viable because ROM parameter sets are small (tens of
// samples, low d_p); it works uniformly in any dimension, including d = 1
// where it degenerates to consecutive intervals of the sorted points.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/pkg/errors"
)

const coplanarEps = 1e-12

// Triangulation is a Delaunay-like simplex decomposition of a point set.
type Triangulation struct {
	// Points is the n × d site matrix.
	Points *mat.Dense

	// Simplices lists the vertex indices of each simplex. Every entry has
	// length d+1 with indices sorted ascending, and entries are ordered
	// lexicographically, which makes tie-breaks deterministic.
	Simplices [][]int

	dim int
}

// NewTriangulation triangulates an n × d point matrix. It requires at least
// d+1 points and at least one non-degenerate simplex.
func NewTriangulation(points mat.Matrix) (*Triangulation, error) {
	n, d := points.Dims()
	if d < 1 {
		return nil, errors.NewValueError("Triangulation", "points must have at least one coordinate")
	}
	if n < d+1 {
		return nil, errors.NewInsufficientDataError("Triangulation", d+1, n,
			"a d-dimensional triangulation needs at least d+1 points")
	}

	t := &Triangulation{
		Points: mat.DenseCopyOf(points),
		dim:    d,
	}

	subset := make([]int, d+1)
	t.enumerate(subset, 0, 0, n)

	if len(t.Simplices) == 0 {
		return nil, errors.NewValueError("Triangulation",
			"all candidate simplices are degenerate (points may be collinear)")
	}
	return t, nil
}

// Dim returns the spatial dimension of the triangulated points.
func (t *Triangulation) Dim() int {
	return t.dim
}

// enumerate walks all (d+1)-subsets in lexicographic order and keeps those
// passing the empty-circumsphere test.
func (t *Triangulation) enumerate(subset []int, pos, start, n int) {
	if pos == len(subset) {
		if t.isDelaunay(subset) {
			s := make([]int, len(subset))
			copy(s, subset)
			t.Simplices = append(t.Simplices, s)
		}
		return
	}
	for i := start; i < n; i++ {
		subset[pos] = i
		t.enumerate(subset, pos+1, i+1, n)
	}
}

// isDelaunay reports whether the simplex has a non-degenerate circumsphere
// that contains no other site strictly inside.
func (t *Triangulation) isDelaunay(subset []int) bool {
	center, radiusSq, ok := t.circumsphere(subset)
	if !ok {
		return false
	}

	n, _ := t.Points.Dims()
	eps := 1e-9 * (radiusSq + 1)
	inSubset := make(map[int]bool, len(subset))
	for _, idx := range subset {
		inSubset[idx] = true
	}
	for i := 0; i < n; i++ {
		if inSubset[i] {
			continue
		}
		if t.distSq(i, center) < radiusSq-eps {
			return false
		}
	}
	return true
}

// circumsphere solves for the center equidistant from all vertices.
// Returns ok=false for degenerate (flat) simplices.
func (t *Triangulation) circumsphere(subset []int) (center []float64, radiusSq float64, ok bool) {
	d := t.dim
	p0 := mat.Row(nil, subset[0], t.Points)

	// 2*(p_i - p_0) · c = |p_i|^2 - |p_0|^2, i = 1..d
	A := mat.NewDense(d, d, nil)
	b := mat.NewVecDense(d, nil)
	normSq0 := dot(p0, p0)
	for i := 1; i <= d; i++ {
		pi := mat.Row(nil, subset[i], t.Points)
		for j := 0; j < d; j++ {
			A.Set(i-1, j, 2*(pi[j]-p0[j]))
		}
		b.SetVec(i-1, dot(pi, pi)-normSq0)
	}

	var c mat.VecDense
	if err := c.SolveVec(A, b); err != nil {
		return nil, 0, false
	}

	center = make([]float64, d)
	for j := 0; j < d; j++ {
		center[j] = c.AtVec(j)
		if math.IsNaN(center[j]) || math.IsInf(center[j], 0) {
			return nil, 0, false
		}
	}

	diff := make([]float64, d)
	for j := 0; j < d; j++ {
		diff[j] = p0[j] - center[j]
	}
	return center, dot(diff, diff), true
}

func (t *Triangulation) distSq(i int, point []float64) float64 {
	sum := 0.0
	for j := 0; j < t.dim; j++ {
		diff := t.Points.At(i, j) - point[j]
		sum += diff * diff
	}
	return sum
}

// Volume returns the d-volume of the simplex with the given vertex indices:
// |det [v_1-v_0, ..., v_d-v_0]| / d!
func (t *Triangulation) Volume(simplex []int) float64 {
	d := t.dim
	T := mat.NewDense(d, d, nil)
	v0 := mat.Row(nil, simplex[0], t.Points)
	for i := 1; i <= d; i++ {
		vi := mat.Row(nil, simplex[i], t.Points)
		for j := 0; j < d; j++ {
			T.Set(j, i-1, vi[j]-v0[j])
		}
	}

	det := mat.Det(T)
	vol := math.Abs(det)
	for k := 2; k <= d; k++ {
		vol /= float64(k)
	}
	return vol
}

// Barycentric computes the barycentric coordinates of point with respect to
// the simplex. The coordinates sum to one; the point lies inside the simplex
// iff all coordinates are non-negative.
func (t *Triangulation) Barycentric(simplex []int, point []float64) ([]float64, error) {
	d := t.dim
	if len(point) != d {
		return nil, errors.NewDimensionError("Triangulation.Barycentric", d, len(point), 1)
	}

	T := mat.NewDense(d, d, nil)
	v0 := mat.Row(nil, simplex[0], t.Points)
	rhs := mat.NewVecDense(d, nil)
	for i := 1; i <= d; i++ {
		vi := mat.Row(nil, simplex[i], t.Points)
		for j := 0; j < d; j++ {
			T.Set(j, i-1, vi[j]-v0[j])
		}
	}
	for j := 0; j < d; j++ {
		rhs.SetVec(j, point[j]-v0[j])
	}

	var lam mat.VecDense
	if err := lam.SolveVec(T, rhs); err != nil {
		return nil, errors.Wrap(errors.ErrSingularMatrix, "Triangulation.Barycentric: degenerate simplex")
	}

	coords := make([]float64, d+1)
	rest := 0.0
	for i := 1; i <= d; i++ {
		coords[i] = lam.AtVec(i - 1)
		rest += coords[i]
	}
	coords[0] = 1 - rest
	return coords, nil
}

// Find locates the first simplex (in lexicographic order) containing the
// point and returns its index together with the barycentric coordinates.
// It returns index -1 when the point lies outside the convex hull.
func (t *Triangulation) Find(point []float64) (int, []float64, error) {
	if len(point) != t.dim {
		return -1, nil, errors.NewDimensionError("Triangulation.Find", t.dim, len(point), 1)
	}

	const insideEps = 1e-10
	for idx, s := range t.Simplices {
		coords, err := t.Barycentric(s, point)
		if err != nil {
			continue
		}
		inside := true
		for _, c := range coords {
			if c < -insideEps {
				inside = false
				break
			}
		}
		if inside {
			return idx, coords, nil
		}
	}
	return -1, nil, nil
}

// Contains reports convex-hull membership of the point.
func (t *Triangulation) Contains(point []float64) (bool, error) {
	idx, _, err := t.Find(point)
	if err != nil {
		return false, err
	}
	return idx >= 0, nil
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
