package reduction

import (
	"bytes"
	"encoding/gob"

	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/core/model"
	"github.com/sciforge/gorom/pkg/errors"
)

// PODAutoencoder is the hierarchical reduction: POD first compresses the
// snapshots linearly, then an autoencoder compresses the POD coordinates
// further. The linear stage removes most of the dimensionality cheaply so
// the network trains on a small input.
type PODAutoencoder struct {
	model.BaseEstimator

	pod *POD
	ae  *Autoencoder
}

// NewPODAutoencoder composes a POD stage and an autoencoder stage. The
// autoencoder's input dimensionality is the POD rank resolved at fit time.
func NewPODAutoencoder(pod *POD, ae *Autoencoder) *PODAutoencoder {
	return &PODAutoencoder{pod: pod, ae: ae}
}

// Fit runs POD on the snapshots and trains the autoencoder on the resulting
// POD coordinates.
func (pa *PODAutoencoder) Fit(snapshots mat.Matrix) error {
	if err := pa.pod.Fit(snapshots); err != nil {
		return err
	}
	coords, err := pa.pod.Transform(snapshots)
	if err != nil {
		return err
	}
	if err := pa.ae.Fit(coords); err != nil {
		return err
	}
	pa.SetFitted()
	return nil
}

// Transform encodes snapshots through both stages.
func (pa *PODAutoencoder) Transform(snapshots mat.Matrix) (mat.Matrix, error) {
	if !pa.IsFitted() {
		return nil, errors.NewNotFittedError("PODAutoencoder", "Transform")
	}
	coords, err := pa.pod.Transform(snapshots)
	if err != nil {
		return nil, err
	}
	return pa.ae.Transform(coords)
}

// InverseTransform decodes latent coordinates through both stages in
// reverse order.
func (pa *PODAutoencoder) InverseTransform(latent mat.Matrix) (mat.Matrix, error) {
	if !pa.IsFitted() {
		return nil, errors.NewNotFittedError("PODAutoencoder", "InverseTransform")
	}
	coords, err := pa.ae.InverseTransform(latent)
	if err != nil {
		return nil, err
	}
	return pa.pod.InverseTransform(coords)
}

// Rank returns the final latent dimensionality (the autoencoder's).
func (pa *PODAutoencoder) Rank() int {
	return pa.ae.Rank()
}

// Clone returns an unfitted copy with both stages cloned.
func (pa *PODAutoencoder) Clone() Reduction {
	return NewPODAutoencoder(
		pa.pod.Clone().(*POD),
		pa.ae.Clone().(*Autoencoder),
	)
}

type podAEGobState struct {
	POD    *POD
	AE     *Autoencoder
	Fitted bool
}

// GobEncode implements gob.GobEncoder.
func (pa *PODAutoencoder) GobEncode() ([]byte, error) {
	state := podAEGobState{POD: pa.pod, AE: pa.ae, Fitted: pa.IsFitted()}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (pa *PODAutoencoder) GobDecode(data []byte) error {
	var state podAEGobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	pa.pod = state.POD
	pa.ae = state.AE
	if state.Fitted {
		pa.SetFitted()
	}
	return nil
}

func init() {
	gob.Register(&POD{})
	gob.Register(&Autoencoder{})
	gob.Register(&PODAutoencoder{})
}
