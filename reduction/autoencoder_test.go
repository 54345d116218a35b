package reduction

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestAutoencoder_FitTransformShapes(t *testing.T) {
	snaps, _ := sineSnapshots(8, 12)
	ae := NewAutoencoder(2, []int{6}, WithAETraining(300, 1e-8, 0.05), WithAESeed(7))
	if err := ae.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if ae.Rank() != 2 {
		t.Errorf("Rank() = %d, want 2", ae.Rank())
	}

	latent, err := ae.Transform(snaps)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	n, k := latent.Dims()
	if n != 8 || k != 2 {
		t.Errorf("latent dims = %dx%d, want 8x2", n, k)
	}

	restored, err := ae.InverseTransform(latent)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	rn, rd := restored.Dims()
	if rn != 8 || rd != 12 {
		t.Errorf("restored dims = %dx%d, want 8x12", rn, rd)
	}
}

func TestAutoencoder_Deterministic(t *testing.T) {
	snaps, _ := sineSnapshots(6, 10)

	run := func() mat.Matrix {
		ae := NewAutoencoder(2, []int{5}, WithAETraining(100, 1e-10, 0.05), WithAESeed(11))
		if err := ae.Fit(snaps); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		latent, err := ae.Transform(snaps)
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}
		return latent
	}

	a, b := run(), run()
	if !mat.Equal(a, b) {
		t.Error("same seed should yield identical latent coordinates")
	}
}

func TestPODAutoencoder_RoundTrip(t *testing.T) {
	snaps, _ := sineSnapshots(10, 40)
	pa := NewPODAutoencoder(
		NewPOD(WithRank(4)),
		NewAutoencoder(2, []int{4}, WithAETraining(2000, 1e-10, 0.02), WithAESeed(3)),
	)
	if err := pa.Fit(snaps); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if pa.Rank() != 2 {
		t.Errorf("Rank() = %d, want 2", pa.Rank())
	}

	latent, err := pa.Transform(snaps)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	restored, err := pa.InverseTransform(latent)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}

	// the nonlinear stage is approximate; demand a loose reconstruction bound
	if re := relativeError(restored, snaps); math.IsNaN(re) || re > 1 {
		t.Errorf("round-trip relative error = %g", re)
	}
}

func TestFromConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"pod", Config{Method: "pod", Rank: 3}},
		{"autoencoder", Config{Method: "autoencoder", Rank: 2, HiddenLayers: []int{8}}},
		{"pod-autoencoder", Config{Method: "pod-autoencoder", Rank: 2, HiddenLayers: []int{8}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			red, err := FromConfig(tc.cfg)
			if err != nil {
				t.Fatalf("FromConfig failed: %v", err)
			}
			if red == nil {
				t.Fatal("nil reduction")
			}
		})
	}

	if _, err := FromConfig(Config{Method: "dmd"}); err == nil {
		t.Error("unknown method should fail")
	}
}
