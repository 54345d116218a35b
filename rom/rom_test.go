package rom

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/approximation"
	"github.com/sciforge/gorom/database"
	"github.com/sciforge/gorom/metrics"
	"github.com/sciforge/gorom/pkg/errors"
	"github.com/sciforge/gorom/preprocessing"
	"github.com/sciforge/gorom/reduction"
)

// sineDatabase builds the canonical test problem: snapshots sin(mu·x) over a
// fixed grid of ds points, one per parameter mu.
func sineDatabase(t *testing.T, mus []float64, ds int, opts ...database.Option) *database.Database {
	t.Helper()
	n := len(mus)
	params := mat.NewDense(n, 1, mus)
	snaps := mat.NewDense(n, ds, nil)
	for i, mu := range mus {
		for j := 0; j < ds; j++ {
			x := float64(j) / float64(ds-1) * math.Pi
			snaps.Set(i, j, math.Sin(mu*x))
		}
	}
	db, err := database.New(params, snaps, opts...)
	if err != nil {
		t.Fatalf("database.New failed: %v", err)
	}
	return db
}

func tenMus() []float64 {
	mus := make([]float64, 10)
	for i := range mus {
		mus[i] = 1 + float64(i)*0.25
	}
	return mus
}

func sineSnapshot(mu float64, ds int) []float64 {
	out := make([]float64, ds)
	for j := 0; j < ds; j++ {
		x := float64(j) / float64(ds-1) * math.Pi
		out[j] = math.Sin(mu * x)
	}
	return out
}

func fitROM(t *testing.T, db *database.Database, red reduction.Reduction, approx approximation.Approximation) *ROM {
	t.Helper()
	model, err := New(db, red, approx)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := model.Fit(); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return model
}

func TestROM_PredictAtTrainingParameter(t *testing.T) {
	db := sineDatabase(t, tenMus(), 50)

	// full rank: training snapshots lie in the basis span, so a training
	// parameter is reproduced exactly
	full := fitROM(t, db, reduction.NewPOD(), approximation.NewLinear())
	pred, err := full.PredictOne([]float64{1.5})
	if err != nil {
		t.Fatalf("PredictOne failed: %v", err)
	}
	e, err := metrics.RelativeNormError(sineSnapshot(1.5, 50), pred)
	if err != nil {
		t.Fatalf("RelativeNormError failed: %v", err)
	}
	if e > 1e-8 {
		t.Errorf("full-rank training-point error = %g, want ~0", e)
	}

	// rank 3 keeps the dominant modes of this family
	rank3 := fitROM(t, db, reduction.NewPOD(reduction.WithRank(3)), approximation.NewLinear())
	pred, err = rank3.PredictOne([]float64{1.5})
	if err != nil {
		t.Fatalf("PredictOne failed: %v", err)
	}
	e, err = metrics.RelativeNormError(sineSnapshot(1.5, 50), pred)
	if err != nil {
		t.Fatalf("RelativeNormError failed: %v", err)
	}
	if e > 5e-2 {
		t.Errorf("rank-3 training-point error = %g, want small", e)
	}
}

func TestROM_MidpointImprovesWithRank(t *testing.T) {
	db := sineDatabase(t, tenMus(), 50)
	mid := []float64{1.625} // midpoint of the 1.5 and 1.75 training samples
	actual := sineSnapshot(1.625, 50)

	midpointError := func(rank int) float64 {
		model := fitROM(t, db, reduction.NewPOD(reduction.WithRank(rank)), approximation.NewLinear())
		pred, err := model.PredictOne(mid)
		if err != nil {
			t.Fatalf("PredictOne failed: %v", err)
		}
		e, err := metrics.RelativeNormError(actual, pred)
		if err != nil {
			t.Fatalf("RelativeNormError failed: %v", err)
		}
		return e
	}

	e1, e3 := midpointError(1), midpointError(3)
	if e3 >= e1 {
		t.Errorf("rank 3 midpoint error %g should beat rank 1 error %g", e3, e1)
	}
}

func TestROM_FitRequiresTwoSamples(t *testing.T) {
	db := sineDatabase(t, []float64{1}, 20)
	model, err := New(db, reduction.NewPOD(), approximation.NewLinear())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = model.Fit()
	var insufErr *errors.InsufficientDataError
	if !errors.As(err, &insufErr) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestROM_PredictChecks(t *testing.T) {
	db := sineDatabase(t, tenMus(), 30)
	model, err := New(db, reduction.NewPOD(reduction.WithRank(2)), approximation.NewLinear())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := model.PredictOne([]float64{1.5}); err == nil {
		t.Error("expected NotFittedError before Fit")
	}
	if err := model.Fit(); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	_, err = model.PredictOne([]float64{1.5, 2.5})
	var dimErr *errors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError on wrong parameter width, got %v", err)
	}
}

func TestROM_ScaledPipelineRoundTrip(t *testing.T) {
	db := sineDatabase(t, tenMus(), 40,
		database.WithParameterScaler(preprocessing.NewMinMaxScalerDefault()),
		database.WithSnapshotScaler(preprocessing.NewStandardScalerDefault()))

	model := fitROM(t, db, reduction.NewPOD(), approximation.NewLinear())
	pred, err := model.PredictOne([]float64{2})
	if err != nil {
		t.Fatalf("PredictOne failed: %v", err)
	}
	e, err := metrics.RelativeNormError(sineSnapshot(2, 40), pred)
	if err != nil {
		t.Fatalf("RelativeNormError failed: %v", err)
	}
	// predictions come back in the original (unscaled) snapshot space
	if e > 1e-8 {
		t.Errorf("scaled pipeline training-point error = %g, want ~0", e)
	}
}

func TestROM_KFoldValidation(t *testing.T) {
	db := sineDatabase(t, tenMus(), 30)
	model, err := New(db, reduction.NewPOD(reduction.WithRank(3)), approximation.NewRBF())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := model.KFoldCVError(1); err == nil {
		t.Error("n_splits < 2 should fail")
	}
	_, err = model.KFoldCVError(11)
	var insufErr *errors.InsufficientDataError
	if !errors.As(err, &insufErr) {
		t.Fatalf("expected InsufficientDataError for n_splits > n, got %v", err)
	}

	result, err := model.KFoldCVError(5)
	if err != nil {
		t.Fatalf("KFoldCVError failed: %v", err)
	}
	if len(result.Folds) != 5 || len(result.FoldErrors) != 5 {
		t.Fatalf("expected 5 folds, got %d/%d", len(result.Folds), len(result.FoldErrors))
	}
	total := 0
	for f, fold := range result.Folds {
		total += len(fold)
		if math.IsNaN(result.FoldErrors[f]) || result.FoldErrors[f] < 0 {
			t.Errorf("fold %d error = %g", f, result.FoldErrors[f])
		}
	}
	if total != 10 {
		t.Errorf("folds cover %d samples, want 10", total)
	}
}

func TestROM_CVDeterminism(t *testing.T) {
	db := sineDatabase(t, tenMus(), 30)

	run := func() *CVResult {
		model, err := New(db, reduction.NewPOD(reduction.WithRank(3)),
			approximation.NewLinear(approximation.WithFillPolicy(approximation.FillNearest)))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		result, err := model.KFoldCVError(3, WithShuffle(42))
		if err != nil {
			t.Fatalf("KFoldCVError failed: %v", err)
		}
		return result
	}

	a, b := run(), run()
	for f := range a.Folds {
		if len(a.Folds[f]) != len(b.Folds[f]) {
			t.Fatalf("fold %d sizes differ", f)
		}
		for i := range a.Folds[f] {
			if a.Folds[f][i] != b.Folds[f][i] {
				t.Fatalf("fold assignments differ at fold %d", f)
			}
		}
		if a.FoldErrors[f] != b.FoldErrors[f] {
			t.Errorf("fold %d errors differ: %g vs %g", f, a.FoldErrors[f], b.FoldErrors[f])
		}
	}
	if a.Mean != b.Mean {
		t.Errorf("mean errors differ: %g vs %g", a.Mean, b.Mean)
	}
}

func TestROM_LOOEqualsKFoldN(t *testing.T) {
	db := sineDatabase(t, tenMus(), 30)
	model, err := New(db, reduction.NewPOD(reduction.WithRank(3)),
		approximation.NewLinear(approximation.WithFillPolicy(approximation.FillNearest)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	loo, err := model.LOOError()
	if err != nil {
		t.Fatalf("LOOError failed: %v", err)
	}
	kfold, err := model.KFoldCVError(db.Len())
	if err != nil {
		t.Fatalf("KFoldCVError failed: %v", err)
	}

	if loo.Mean != kfold.Mean {
		t.Errorf("LOO mean %g != kfold(n) mean %g", loo.Mean, kfold.Mean)
	}
	for i := range loo.FoldErrors {
		if loo.FoldErrors[i] != kfold.FoldErrors[i] {
			t.Errorf("fold %d: LOO %g != kfold %g", i, loo.FoldErrors[i], kfold.FoldErrors[i])
		}
	}
}

func TestROM_OptimalMuTargetsLargestGap(t *testing.T) {
	// parameters {1, 2, 4}: the (2,4) interval has double the volume of
	// (1,2) and comparable vertex errors, so the proposal lands inside it
	db := sineDatabase(t, []float64{1, 2, 4}, 20)
	model, err := New(db, reduction.NewPOD(reduction.WithRank(2)),
		approximation.NewLinear(approximation.WithFillPolicy(approximation.FillNearest)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	proposals, err := model.OptimalMu(1)
	if err != nil {
		t.Fatalf("OptimalMu failed: %v", err)
	}
	mu := proposals.At(0, 0)
	if mu <= 2 || mu >= 4 {
		t.Errorf("proposal %g should lie strictly inside (2, 4)", mu)
	}
}

func TestROM_OptimalMuFromErrors(t *testing.T) {
	db := sineDatabase(t, []float64{0, 1, 3}, 20)
	model, err := New(db, reduction.NewPOD(), approximation.NewLinear())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// equal vertex errors: the (1,3) simplex wins on volume alone and the
	// proposal degenerates to its midpoint
	proposals, err := model.OptimalMuFromErrors([]float64{1, 1, 1}, 1)
	if err != nil {
		t.Fatalf("OptimalMuFromErrors failed: %v", err)
	}
	if got := proposals.At(0, 0); math.Abs(got-2) > 1e-12 {
		t.Errorf("proposal = %g, want midpoint 2", got)
	}

	// k=2 returns the two highest-weighted simplices' points
	proposals, err = model.OptimalMuFromErrors([]float64{1, 1, 1}, 2)
	if err != nil {
		t.Fatalf("OptimalMuFromErrors failed: %v", err)
	}
	if r, _ := proposals.Dims(); r != 2 {
		t.Fatalf("expected 2 proposals, got %d", r)
	}
	if got := proposals.At(1, 0); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("second proposal = %g, want midpoint 0.5", got)
	}

	if _, err := model.OptimalMuFromErrors([]float64{1, 1}, 1); err == nil {
		t.Error("indicator length mismatch should fail")
	}
}

func TestROM_GobRoundTripScaledRebind(t *testing.T) {
	// fit with scalers attached, then restore into a freshly built database
	// with fresh, unfitted scaler instances: Rebind must leave the model
	// predicting in the space it was trained in
	mus, ds := tenMus(), 40
	train := sineDatabase(t, mus, ds,
		database.WithParameterScaler(preprocessing.NewMinMaxScalerDefault()),
		database.WithSnapshotScaler(preprocessing.NewStandardScalerDefault()))
	model := fitROM(t, train, reduction.NewPOD(reduction.WithRank(3)), approximation.NewRBF())

	want, err := model.PredictOne([]float64{1.8})
	if err != nil {
		t.Fatalf("PredictOne failed: %v", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(model); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	restored := &ROM{}
	if err := gob.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(restored); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	fresh := sineDatabase(t, mus, ds,
		database.WithParameterScaler(preprocessing.NewMinMaxScalerDefault()),
		database.WithSnapshotScaler(preprocessing.NewStandardScalerDefault()))
	if err := restored.Rebind(fresh); err != nil {
		t.Fatalf("Rebind failed: %v", err)
	}

	got, err := restored.PredictOne([]float64{1.8})
	if err != nil {
		t.Fatalf("restored PredictOne failed: %v", err)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-10 {
			t.Fatalf("restored prediction differs at %d: %g vs %g", i, got[i], want[i])
		}
	}
}

func TestROM_DecodedModelRequiresRebind(t *testing.T) {
	db := sineDatabase(t, tenMus(), 30)
	model := fitROM(t, db, reduction.NewPOD(reduction.WithRank(3)), approximation.NewRBF())

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(model); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	restored := &ROM{}
	if err := gob.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(restored); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// no Rebind: both entry points must return errors, not panic
	if _, err := restored.PredictOne([]float64{1.8}); err == nil {
		t.Error("Predict without a bound database should fail")
	}
	if err := restored.Fit(); err == nil {
		t.Error("Fit without a bound database should fail")
	}
}

func TestROM_GobRoundTrip(t *testing.T) {
	db := sineDatabase(t, tenMus(), 30)
	model := fitROM(t, db, reduction.NewPOD(reduction.WithRank(3)), approximation.NewRBF())

	want, err := model.PredictOne([]float64{1.8})
	if err != nil {
		t.Fatalf("PredictOne failed: %v", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(model); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	restored := &ROM{}
	if err := gob.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(restored); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if err := restored.Rebind(db); err != nil {
		t.Fatalf("Rebind failed: %v", err)
	}

	got, err := restored.PredictOne([]float64{1.8})
	if err != nil {
		t.Fatalf("restored PredictOne failed: %v", err)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-10 {
			t.Fatalf("restored prediction differs at %d: %g vs %g", i, got[i], want[i])
		}
	}
}
