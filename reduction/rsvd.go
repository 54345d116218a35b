package reduction

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/pkg/errors"
)

// randomizedSVD approximates the thin SVD of the m × n matrix S using a
// Gaussian sketch of sketchSize columns refined by nPower subspace power
// iterations (Halko, Martinsson & Tropp). The generator is seeded explicitly
// so that fits are reproducible; there is no hidden global randomness.
//
// Larger sketches and more power iterations tighten the approximation of the
// exact decomposition at the cost of extra passes over S.
func randomizedSVD(S *mat.Dense, sketchSize, nPower int, seed uint64) (*mat.Dense, []float64, error) {
	m, n := S.Dims()
	l := sketchSize
	if l > n {
		l = n
	}
	if l > m {
		l = m
	}
	if l < 1 {
		return nil, nil, errors.NewValueError("randomizedSVD", "sketch size must be positive")
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	// Gaussian test matrix, n × l.
	omega := mat.NewDense(n, l, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < l; j++ {
			omega.Set(i, j, rng.NormFloat64())
		}
	}

	// Range sketch Y = S·Ω, orthonormalized.
	Y := mat.NewDense(m, l, nil)
	Y.Mul(S, omega)
	Q, err := orthonormalize(Y)
	if err != nil {
		return nil, nil, err
	}

	// Power iterations refine the captured subspace; each step
	// re-orthonormalizes to keep the basis numerically orthogonal.
	for it := 0; it < nPower; it++ {
		var Z mat.Dense
		Z.Mul(S.T(), Q)
		QZ, err := orthonormalize(&Z)
		if err != nil {
			return nil, nil, err
		}
		var W mat.Dense
		W.Mul(S, QZ)
		Q, err = orthonormalize(&W)
		if err != nil {
			return nil, nil, err
		}
	}

	// Project to the small matrix B = Qᵀ·S and decompose it exactly.
	var B mat.Dense
	B.Mul(Q.T(), S)

	var svd mat.SVD
	if ok := svd.Factorize(&B, mat.SVDThin); !ok {
		return nil, nil, errors.ErrSVDFailed
	}
	var Ub mat.Dense
	svd.UTo(&Ub)
	sv := svd.Values(nil)
	// guard negative rounding noise in the spectrum tail
	for i, s := range sv {
		if s < 0 || math.IsNaN(s) {
			sv[i] = 0
		}
	}

	// Lift back: U = Q·Ub.
	var U mat.Dense
	U.Mul(Q, &Ub)
	return &U, sv, nil
}

// orthonormalize returns an orthonormal basis of the column space of Y via
// its thin SVD.
func orthonormalize(Y mat.Matrix) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(Y, mat.SVDThin); !ok {
		return nil, errors.ErrSVDFailed
	}
	var Q mat.Dense
	svd.UTo(&Q)
	return &Q, nil
}
