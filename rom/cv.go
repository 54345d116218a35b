package rom

import (
	"log/slog"
	"math/rand/v2"

	"github.com/sciforge/gorom/core/parallel"
	"github.com/sciforge/gorom/metrics"
	"github.com/sciforge/gorom/pkg/errors"
	"github.com/sciforge/gorom/pkg/log"
)

// CVResult reports a k-fold cross-validation run: the fold index sets, the
// per-fold mean relative reconstruction errors in the original snapshot
// space, and their mean.
type CVResult struct {
	Folds      [][]int
	FoldErrors []float64
	Mean       float64
}

type cvConfig struct {
	shuffle bool
	seed    uint64
}

// CVOption configures a cross-validation run.
type CVOption func(*cvConfig)

// WithShuffle permutes the sample indices with the given seed before
// splitting into folds. Without it folds are contiguous index ranges.
func WithShuffle(seed uint64) CVOption {
	return func(c *cvConfig) {
		c.shuffle = true
		c.seed = seed
	}
}

// KFoldCVError estimates out-of-sample reconstruction error: the samples are
// split into nSplits folds, each fold is held out in turn, an independent
// clone of the model is fitted on the remainder and evaluated on the
// held-out samples as ||predicted - actual|| / ||actual|| in the original
// snapshot space. nSplits == n reduces to leave-one-out.
func (r *ROM) KFoldCVError(nSplits int, opts ...CVOption) (*CVResult, error) {
	cfg := cvConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	n := r.db.Len()
	if nSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "at least two folds are required", nSplits)
	}
	if nSplits > n {
		return nil, errors.NewInsufficientDataError("ROM.KFoldCVError", nSplits, n,
			"more folds than samples")
	}

	folds := makeFolds(n, nSplits, cfg)
	foldErrors := make([]float64, nSplits)

	runFold := func(f int) (err error) {
		defer errors.Recover(&err, "cross-validation fold")

		train := complement(n, folds[f])
		trainDB, err := r.db.Subset(train)
		if err != nil {
			return errors.Wrap(err, "ROM.KFoldCVError")
		}
		fold := r.cloneFor(trainDB)
		if err := fold.Fit(); err != nil {
			return errors.Wrap(err, "ROM.KFoldCVError: fold refit")
		}

		sum := 0.0
		for _, idx := range folds[f] {
			predicted, err := fold.PredictOne(r.db.Parameter(idx))
			if err != nil {
				return errors.Wrap(err, "ROM.KFoldCVError: fold predict")
			}
			e, err := metrics.RelativeNormError(r.db.Snapshot(idx), predicted)
			if err != nil {
				return errors.Wrap(err, "ROM.KFoldCVError")
			}
			sum += e
		}
		foldErrors[f] = sum / float64(len(folds[f]))
		slog.Debug("cross-validation fold evaluated",
			slog.String(log.ComponentKey, "rom"),
			slog.String(log.OperationKey, "kfold_cv"),
			slog.Int(log.FoldKey, f),
			slog.Int(log.SamplesKey, len(folds[f])),
			slog.Float64(log.ErrorNormKey, foldErrors[f]))
		return nil
	}

	// fold databases share the scaler instances; refitting them per fold is
	// only safe sequentially
	scalersAttached := r.db.ScalerParameters != nil || r.db.ScalerSnapshots != nil
	if scalersAttached {
		for f := 0; f < nSplits; f++ {
			if err := runFold(f); err != nil {
				return nil, err
			}
		}
		if err := r.restoreScalers(); err != nil {
			return nil, err
		}
	} else {
		if err := parallel.MapErr(nSplits, runFold); err != nil {
			return nil, err
		}
	}

	mean := 0.0
	for _, e := range foldErrors {
		mean += e
	}
	mean /= float64(nSplits)
	return &CVResult{Folds: folds, FoldErrors: foldErrors, Mean: mean}, nil
}

// LOOError runs leave-one-out cross-validation; fold i holds out exactly
// sample i.
func (r *ROM) LOOError() (*CVResult, error) {
	return r.KFoldCVError(r.db.Len())
}

// restoreScalers refits the shared scalers on the full database after the
// fold refits disturbed their state.
func (r *ROM) restoreScalers() error {
	if _, err := r.db.ScaledParameters(); err != nil {
		return errors.Wrap(err, "ROM.KFoldCVError: restoring parameter scaler")
	}
	if _, err := r.db.ScaledSnapshots(); err != nil {
		return errors.Wrap(err, "ROM.KFoldCVError: restoring snapshot scaler")
	}
	return nil
}

// makeFolds splits [0, n) into nSplits folds. The first n mod nSplits folds
// receive one extra sample.
func makeFolds(n, nSplits int, cfg cvConfig) [][]int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if cfg.shuffle {
		rng := rand.New(rand.NewPCG(cfg.seed, 0x6a09e667f3bcc908))
		rng.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([][]int, nSplits)
	size := n / nSplits
	extra := n % nSplits
	pos := 0
	for f := 0; f < nSplits; f++ {
		length := size
		if f < extra {
			length++
		}
		folds[f] = indices[pos : pos+length]
		pos += length
	}
	return folds
}

// complement returns [0, n) minus the held-out indices, in ascending order.
func complement(n int, holdout []int) []int {
	held := make(map[int]bool, len(holdout))
	for _, idx := range holdout {
		held[idx] = true
	}
	out := make([]int, 0, n-len(holdout))
	for i := 0; i < n; i++ {
		if !held[i] {
			out = append(out, i)
		}
	}
	return out
}
