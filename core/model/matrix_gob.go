package model

import (
	"gonum.org/v1/gonum/mat"
)

// MarshalMatrix は行列をgobフィールドとして保持できるバイト列に変換する。
// nil行列は空のバイト列になる。
func MarshalMatrix(m *mat.Dense) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return m.MarshalBinary()
}

// UnmarshalMatrix はMarshalMatrixで変換されたバイト列を行列に戻す。
func UnmarshalMatrix(b []byte) (*mat.Dense, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m mat.Dense
	if err := m.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &m, nil
}
