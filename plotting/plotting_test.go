package plotting

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/reduction"
	"github.com/sciforge/gorom/rom"
)

func TestSingularValueDecay(t *testing.T) {
	n, ds := 8, 30
	snaps := mat.NewDense(n, ds, nil)
	for i := 0; i < n; i++ {
		mu := 1 + float64(i)*0.3
		for j := 0; j < ds; j++ {
			x := float64(j) / float64(ds-1) * math.Pi
			snaps.Set(i, j, math.Sin(mu*x))
		}
	}
	pod := reduction.NewPOD(reduction.WithRank(3))
	if err := pod.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "decay.png")
	if err := SingularValueDecay(pod, path); err != nil {
		t.Fatalf("SingularValueDecay failed: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("figure not written: %v", err)
	}

	if err := SingularValueDecay(reduction.NewPOD(), path); err == nil {
		t.Error("unfitted POD should fail")
	}
}

func TestCVErrors(t *testing.T) {
	result := &rom.CVResult{
		FoldErrors: []float64{0.01, 0.02, 0.015},
		Mean:       0.015,
	}
	path := filepath.Join(t.TempDir(), "cv.png")
	if err := CVErrors(result, path); err != nil {
		t.Fatalf("CVErrors failed: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("figure not written: %v", err)
	}

	if err := CVErrors(&rom.CVResult{}, path); err == nil {
		t.Error("empty result should fail")
	}
}
