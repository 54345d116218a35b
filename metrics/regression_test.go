package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMSE(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 4})
	yPred := mat.NewVecDense(4, []float64{1, 2, 3, 4})

	mse, err := MSE(yTrue, yPred)
	if err != nil {
		t.Fatalf("MSE failed: %v", err)
	}
	if mse != 0 {
		t.Errorf("perfect prediction: MSE = %g, want 0", mse)
	}

	yPred = mat.NewVecDense(4, []float64{2, 3, 4, 5})
	mse, err = MSE(yTrue, yPred)
	if err != nil {
		t.Fatalf("MSE failed: %v", err)
	}
	if mse != 1 {
		t.Errorf("unit offset: MSE = %g, want 1", mse)
	}

	if _, err := MSE(yTrue, mat.NewVecDense(3, nil)); err == nil {
		t.Error("length mismatch should fail")
	}
}

func TestRMSE(t *testing.T) {
	yTrue := mat.NewVecDense(2, []float64{0, 0})
	yPred := mat.NewVecDense(2, []float64{3, 4})

	rmse, err := RMSE(yTrue, yPred)
	if err != nil {
		t.Fatalf("RMSE failed: %v", err)
	}
	want := math.Sqrt(12.5)
	if math.Abs(rmse-want) > 1e-12 {
		t.Errorf("RMSE = %g, want %g", rmse, want)
	}
}

func TestR2Score(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 4})

	r2, err := R2Score(yTrue, yTrue)
	if err != nil {
		t.Fatalf("R2Score failed: %v", err)
	}
	if r2 != 1 {
		t.Errorf("perfect prediction: R² = %g, want 1", r2)
	}

	constant := mat.NewVecDense(4, []float64{5, 5, 5, 5})
	if _, err := R2Score(constant, yTrue); err == nil {
		t.Error("zero variance in yTrue should fail")
	}
}

func TestRelativeNormError(t *testing.T) {
	got, err := RelativeNormError([]float64{3, 4}, []float64{3, 4})
	if err != nil {
		t.Fatalf("RelativeNormError failed: %v", err)
	}
	if got != 0 {
		t.Errorf("identical vectors: got %g, want 0", got)
	}

	got, err = RelativeNormError([]float64{3, 4}, []float64{6, 8})
	if err != nil {
		t.Fatalf("RelativeNormError failed: %v", err)
	}
	if math.Abs(got-1) > 1e-12 {
		t.Errorf("doubled vector: got %g, want 1", got)
	}

	// zero reference falls back to the absolute norm
	got, err = RelativeNormError([]float64{0, 0}, []float64{3, 4})
	if err != nil {
		t.Fatalf("RelativeNormError failed: %v", err)
	}
	if math.Abs(got-5) > 1e-12 {
		t.Errorf("zero reference: got %g, want 5", got)
	}

	if _, err := RelativeNormError([]float64{1}, []float64{1, 2}); err == nil {
		t.Error("length mismatch should fail")
	}
}
