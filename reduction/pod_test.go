package reduction

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/pkg/errors"
)

// sineSnapshots builds n snapshots sin(mu_i * x) over a fixed grid of ds
// points, mirroring a 1-D parametric field problem.
func sineSnapshots(n, ds int) (*mat.Dense, []float64) {
	mus := make([]float64, n)
	snaps := mat.NewDense(n, ds, nil)
	for i := 0; i < n; i++ {
		mu := 1 + float64(i)*0.5
		mus[i] = mu
		for j := 0; j < ds; j++ {
			x := float64(j) / float64(ds-1) * math.Pi
			snaps.Set(i, j, math.Sin(mu*x))
		}
	}
	return snaps, mus
}

func relativeError(a, b mat.Matrix) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	na := mat.Norm(&diff, 2)
	nb := mat.Norm(b, 2)
	if nb == 0 {
		return na
	}
	return na / nb
}

func TestPOD_RoundTripMonotonic(t *testing.T) {
	snaps, _ := sineSnapshots(10, 50)

	prev := math.Inf(1)
	for _, k := range []int{1, 2, 3, 5, 8, 10} {
		pod := NewPOD(WithRank(k))
		if err := pod.Fit(snaps); err != nil {
			t.Fatalf("Fit rank %d failed: %v", k, err)
		}
		latent, err := pod.Transform(snaps)
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}
		restored, err := pod.InverseTransform(latent)
		if err != nil {
			t.Fatalf("InverseTransform failed: %v", err)
		}

		re := relativeError(restored, snaps)
		if re > prev+1e-12 {
			t.Errorf("round-trip error increased from %g to %g at rank %d", prev, re, k)
		}
		prev = re
	}

	// full rank reconstructs training snapshots exactly (they span the basis)
	if prev > 1e-10 {
		t.Errorf("full-rank round-trip error = %g, want ~0", prev)
	}
}

func TestPOD_Orthonormality(t *testing.T) {
	snaps, _ := sineSnapshots(10, 50)

	for _, k := range []int{1, 3, 7, 10} {
		pod := NewPOD(WithRank(k))
		if err := pod.Fit(snaps); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		basis := pod.Modes()

		var gram mat.Dense
		gram.Mul(basis.T(), basis)
		r, c := gram.Dims()
		if r != k || c != k {
			t.Fatalf("gram matrix is %dx%d, want %dx%d", r, c, k, k)
		}
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				want := 0.0
				if i == j {
					want = 1.0
				}
				if math.Abs(gram.At(i, j)-want) > 1e-10 {
					t.Errorf("basis^T basis at (%d,%d) = %g, want %g", i, j, gram.At(i, j), want)
				}
			}
		}
	}
}

func TestPOD_ExplainedEnergyMonotonic(t *testing.T) {
	snaps, _ := sineSnapshots(10, 50)
	pod := NewPOD()
	if err := pod.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	energy := pod.ExplainedEnergy()
	for i := 1; i < len(energy); i++ {
		if energy[i] < energy[i-1]-1e-14 {
			t.Errorf("explained energy decreased at %d: %g -> %g", i, energy[i-1], energy[i])
		}
	}
	if math.Abs(energy[len(energy)-1]-1) > 1e-10 {
		t.Errorf("final explained energy = %g, want 1", energy[len(energy)-1])
	}
}

func TestPOD_RankClamped(t *testing.T) {
	var captured error
	errors.SetWarningHandler(func(w error) { captured = w })
	defer errors.SetWarningHandler(nil)

	snaps, _ := sineSnapshots(5, 20)
	pod := NewPOD(WithRank(17))
	if err := pod.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if pod.Rank() != 5 {
		t.Errorf("rank = %d, want clamped 5", pod.Rank())
	}
	var warn *errors.RankClampedWarning
	if captured == nil || !errors.As(captured, &warn) {
		t.Fatalf("expected RankClampedWarning, got %v", captured)
	}
	if warn.Requested != 17 || warn.Clamped != 5 {
		t.Errorf("unexpected warning fields: %+v", warn)
	}
}

func TestPOD_EnergyThreshold(t *testing.T) {
	snaps, _ := sineSnapshots(10, 50)

	full := NewPOD()
	if err := full.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	energy := full.ExplainedEnergy()

	pod := NewPOD(WithEnergyThreshold(0.99))
	if err := pod.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	k := pod.Rank()
	if energy[k-1] < 0.99 {
		t.Errorf("rank %d captures %g < 0.99", k, energy[k-1])
	}
	if k > 1 && energy[k-2] >= 0.99 {
		t.Errorf("rank %d is not minimal, %d already captures %g", k, k-1, energy[k-2])
	}
}

func TestPOD_EnergyThresholdValidation(t *testing.T) {
	snaps, _ := sineSnapshots(5, 20)
	pod := NewPOD(WithEnergyThreshold(1.5))
	err := pod.Fit(snaps)
	var valErr *errors.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPOD_OptimalThreshold(t *testing.T) {
	// low-rank signal plus small noise: optimal threshold should recover a
	// small rank, well below full
	snaps, _ := sineSnapshots(10, 50)
	pod := NewPOD(WithOptimalThreshold())
	if err := pod.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if pod.Rank() < 1 || pod.Rank() > 10 {
		t.Errorf("optimal rank = %d out of range", pod.Rank())
	}
	// sin(mu x) snapshots are numerically low-rank
	if pod.Rank() == 10 {
		t.Errorf("optimal threshold kept all modes, expected truncation")
	}
}

func TestPOD_RandomizedSVD(t *testing.T) {
	snaps, _ := sineSnapshots(10, 80)

	exact := NewPOD(WithRank(3))
	if err := exact.Fit(snaps); err != nil {
		t.Fatalf("exact Fit failed: %v", err)
	}
	rnd := NewPOD(WithRank(3), WithRandomizedSVD(7, 3, 42))
	if err := rnd.Fit(snaps); err != nil {
		t.Fatalf("randomized Fit failed: %v", err)
	}

	// leading singular values agree to high accuracy with power iteration
	se := exact.SingularValues()
	sr := rnd.SingularValues()
	for i := 0; i < 3; i++ {
		if math.Abs(se[i]-sr[i]) > 1e-6*se[0] {
			t.Errorf("singular value %d: exact %g, randomized %g", i, se[i], sr[i])
		}
	}

	// determinism under a fixed seed
	rnd2 := NewPOD(WithRank(3), WithRandomizedSVD(7, 3, 42))
	if err := rnd2.Fit(snaps); err != nil {
		t.Fatalf("randomized Fit failed: %v", err)
	}
	for i := range sr {
		if sr[i] != rnd2.SingularValues()[i] {
			t.Fatal("same seed should reproduce the spectrum exactly")
		}
	}
}

func TestPOD_RandomizedSpectrumSanitized(t *testing.T) {
	// duplicated rows make the trailing singular values numerically zero,
	// where SVD rounding noise can surface as tiny negatives
	base, _ := sineSnapshots(4, 60)
	snaps := mat.NewDense(8, 60, nil)
	for i := 0; i < 8; i++ {
		snaps.SetRow(i, mat.Row(nil, i%4, base))
	}

	pod := NewPOD(WithRandomizedSVD(4, 2, 7))
	if err := pod.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	for i, s := range pod.SingularValues() {
		if s < 0 || math.IsNaN(s) {
			t.Errorf("singular value %d = %g, spectrum must be non-negative and finite", i, s)
		}
	}
}

func TestPOD_TransformChecks(t *testing.T) {
	snaps, _ := sineSnapshots(6, 30)
	pod := NewPOD(WithRank(2))

	if _, err := pod.Transform(snaps); err == nil {
		t.Error("expected NotFittedError before Fit")
	}
	if err := pod.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	_, err := pod.Transform(mat.NewDense(3, 31, nil))
	var dimErr *errors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}

	_, err = pod.InverseTransform(mat.NewDense(3, 5, nil))
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
}

func TestPOD_CloneIsUnfitted(t *testing.T) {
	snaps, _ := sineSnapshots(6, 30)
	pod := NewPOD(WithRank(2))
	if err := pod.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	clone := pod.Clone()
	if clone.(*POD).IsFitted() {
		t.Error("clone should be unfitted")
	}
	if err := clone.Fit(snaps); err != nil {
		t.Fatalf("clone Fit failed: %v", err)
	}
	if clone.Rank() != 2 {
		t.Errorf("clone rank = %d, want 2 (configuration preserved)", clone.Rank())
	}
}

func TestPOD_GobRoundTrip(t *testing.T) {
	snaps, _ := sineSnapshots(8, 40)
	pod := NewPOD(WithRank(3))
	if err := pod.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pod); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	restored := &POD{}
	if err := gob.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(restored); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	latent, err := pod.Transform(snaps)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	latent2, err := restored.Transform(snaps)
	if err != nil {
		t.Fatalf("restored Transform failed: %v", err)
	}
	if re := relativeError(latent2, latent); re > 1e-12 {
		t.Errorf("restored model differs: relative error %g", re)
	}
}
