package model

import "gonum.org/v1/gonum/mat"

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer は逆変換可能な変換のインターフェース。
// スケーラーや次元削減のように、変換後の空間から元の空間へ戻せる変換が
// 実装する。
type InverseTransformer interface {
	Transformer

	// InverseTransform は変換されたデータを元の空間に戻す
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}
