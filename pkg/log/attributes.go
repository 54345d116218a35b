package log

// Attribute keys shared by fit/predict/cross-validation logging so that log
// aggregation can group records by pipeline stage.
const (
	// ComponentKey identifies which pipeline component emitted the record
	// ("reduction", "approximation", "database", "rom").
	ComponentKey = "component"

	// OperationKey names the operation ("fit", "predict", "transform",
	// "kfold_cv", "optimal_mu").
	OperationKey = "operation"

	// SamplesKey is the number of samples involved.
	SamplesKey = "n_samples"

	// SnapshotDimKey is the full dimensionality d_s of the snapshots.
	SnapshotDimKey = "snapshot_dim"

	// ParamDimKey is the dimensionality d_p of the parameter vectors.
	ParamDimKey = "param_dim"

	// RankKey is the retained latent rank k.
	RankKey = "rank"

	// EnergyKey is the cumulative explained energy at the retained rank.
	EnergyKey = "explained_energy"

	// FoldKey indexes the cross-validation fold.
	FoldKey = "fold"

	// ErrorNormKey carries a relative reconstruction error.
	ErrorNormKey = "relative_error"

	// DurationMsKey carries elapsed milliseconds for an operation.
	DurationMsKey = "duration_ms"

	// SeedKey is the pseudo-random seed used by randomized algorithms.
	SeedKey = "seed"
)
