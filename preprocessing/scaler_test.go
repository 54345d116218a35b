package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/pkg/errors"
)

const tol = 1e-12

func TestStandardScaler_RoundTrip(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	// column means should be ~0, stds ~1
	r, c := scaled.Dims()
	for j := 0; j < c; j++ {
		var sum, sumSq float64
		for i := 0; i < r; i++ {
			sum += scaled.At(i, j)
			sumSq += scaled.At(i, j) * scaled.At(i, j)
		}
		mean := sum / float64(r)
		std := math.Sqrt(sumSq/float64(r) - mean*mean)
		if math.Abs(mean) > 1e-10 {
			t.Errorf("column %d mean = %g, want ~0", j, mean)
		}
		if math.Abs(std-1) > 1e-10 {
			t.Errorf("column %d std = %g, want ~1", j, std)
		}
	}

	restored, err := scaler.InverseTransform(scaled)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(restored.At(i, j)-X.At(i, j)) > tol {
				t.Errorf("round trip mismatch at (%d,%d): got %g, want %g",
					i, j, restored.At(i, j), X.At(i, j))
			}
		}
	}
}

func TestStandardScaler_ConstantFeature(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{7, 7, 7})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if v := scaled.At(i, 0); math.Abs(v) > tol {
			t.Errorf("constant feature should scale to 0, got %g", v)
		}
	}
}

func TestStandardScaler_NotFitted(t *testing.T) {
	scaler := NewStandardScalerDefault()
	_, err := scaler.Transform(mat.NewDense(1, 1, []float64{1}))
	var notFitted *errors.NotFittedError
	if !errors.As(err, &notFitted) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
}

func TestStandardScaler_DimensionMismatch(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if err := scaler.Fit(mat.NewDense(3, 2, nil)); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	_, err := scaler.Transform(mat.NewDense(3, 5, nil))
	var dimErr *errors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
}

func TestMinMaxScaler_RangeAndRoundTrip(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, -1,
		5, 0,
		10, 3,
	})

	scaler := NewMinMaxScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	r, c := scaled.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := scaled.At(i, j)
			if v < -tol || v > 1+tol {
				t.Errorf("scaled value %g outside [0,1]", v)
			}
		}
	}

	restored, err := scaler.InverseTransform(scaled)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(restored.At(i, j)-X.At(i, j)) > 1e-10 {
				t.Errorf("round trip mismatch at (%d,%d): got %g, want %g",
					i, j, restored.At(i, j), X.At(i, j))
			}
		}
	}
}

func TestMinMaxScaler_CustomRange(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 4})

	scaler := NewMinMaxScaler([2]float64{-1, 1})
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if v := scaled.At(0, 0); math.Abs(v-(-1)) > tol {
		t.Errorf("min should map to -1, got %g", v)
	}
	if v := scaled.At(1, 0); math.Abs(v-1) > tol {
		t.Errorf("max should map to 1, got %g", v)
	}
}
