package rom

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/database"
	"github.com/sciforge/gorom/geometry"
	"github.com/sciforge/gorom/pkg/errors"
	"github.com/sciforge/gorom/pkg/log"
)

// OptimalMu proposes the next k parameter points to evaluate. Leave-one-out
// errors serve as the local error indicator; the parameter set is
// triangulated and each simplex is weighted by the sum of its vertex errors
// times its volume. Proposals are the error-weighted vertex averages of the
// highest-weighted simplices, so large poorly-predicted gaps in the
// parameter domain are filled first.
func (r *ROM) OptimalMu(k int) (*mat.Dense, error) {
	loo, err := r.LOOError()
	if err != nil {
		return nil, errors.Wrap(err, "ROM.OptimalMu")
	}
	// leave-one-out folds are contiguous singletons: fold i holds sample i
	return r.OptimalMuFromErrors(loo.FoldErrors, k)
}

// OptimalMuFromErrors is OptimalMu with a caller-supplied per-sample error
// indicator (one value per database sample).
func (r *ROM) OptimalMuFromErrors(sampleErrors []float64, k int) (*mat.Dense, error) {
	n := r.db.Len()
	if len(sampleErrors) != n {
		return nil, errors.NewDimensionError("ROM.OptimalMu", n, len(sampleErrors), 0)
	}
	if k < 1 {
		return nil, errors.NewValidationError("k", "at least one proposal is required", k)
	}

	tri, err := geometry.NewTriangulation(r.db.Parameters())
	if err != nil {
		return nil, errors.Wrap(err, "ROM.OptimalMu")
	}

	type weighted struct {
		index  int
		weight float64
	}
	ranked := make([]weighted, len(tri.Simplices))
	for i, simplex := range tri.Simplices {
		errSum := 0.0
		for _, v := range simplex {
			errSum += sampleErrors[v]
		}
		ranked[i] = weighted{index: i, weight: errSum * tri.Volume(simplex)}
	}
	// ties resolve to the lexicographically smallest simplex; Simplices are
	// already in lexicographic order, so a stable sort keeps that ordering
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].weight > ranked[b].weight
	})

	dp := r.db.ParamDim()
	proposals := mat.NewDense(k, dp, nil)
	for p := 0; p < k; p++ {
		simplex := tri.Simplices[ranked[p%len(ranked)].index]
		proposals.SetRow(p, weightedVertexAverage(r.db, simplex, sampleErrors))
	}

	slog.Debug("adaptive sampling proposals computed",
		slog.String(log.ComponentKey, "rom"),
		slog.String(log.OperationKey, "optimal_mu"),
		slog.Int(log.SamplesKey, n),
		slog.Int("n_proposals", k))
	return proposals, nil
}

// weightedVertexAverage blends the simplex vertices by their error
// indicator; with an all-zero indicator it degenerates to the centroid.
func weightedVertexAverage(db *database.Database, simplex []int, sampleErrors []float64) []float64 {
	dp := db.ParamDim()
	out := make([]float64, dp)
	total := 0.0
	for _, v := range simplex {
		total += sampleErrors[v]
	}
	for _, v := range simplex {
		w := 1.0 / float64(len(simplex))
		if total > 0 {
			w = sampleErrors[v] / total
		}
		p := db.Parameter(v)
		for j := 0; j < dp; j++ {
			out[j] += w * p[j]
		}
	}
	return out
}
