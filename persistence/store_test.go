package persistence

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/approximation"
	"github.com/sciforge/gorom/database"
	"github.com/sciforge/gorom/reduction"
	"github.com/sciforge/gorom/rom"
)

func fittedModel(t *testing.T) (*rom.ROM, *database.Database) {
	t.Helper()
	n, ds := 8, 25
	params := mat.NewDense(n, 1, nil)
	snaps := mat.NewDense(n, ds, nil)
	for i := 0; i < n; i++ {
		mu := 1 + float64(i)*0.3
		params.Set(i, 0, mu)
		for j := 0; j < ds; j++ {
			x := float64(j) / float64(ds-1) * math.Pi
			snaps.Set(i, j, math.Sin(mu*x))
		}
	}
	db, err := database.New(params, snaps)
	require.NoError(t, err)
	model, err := rom.New(db, reduction.NewPOD(reduction.WithRank(3)), approximation.NewRBF())
	require.NoError(t, err)
	require.NoError(t, model.Fit())
	return model, db
}

func TestStore_SaveLoad(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "models.db"))
	require.NoError(t, err)
	defer store.Close()

	model, db := fittedModel(t)
	want, err := model.PredictOne([]float64{1.7})
	require.NoError(t, err)

	require.NoError(t, store.Save("sine", model))
	restored, err := store.Load("sine")
	require.NoError(t, err)
	require.NoError(t, restored.Rebind(db))

	got, err := restored.PredictOne([]float64{1.7})
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-10, "restored prediction differs at %d", i)
	}
}

func TestStore_ListDelete(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "models.db"))
	require.NoError(t, err)
	defer store.Close()

	model, _ := fittedModel(t)
	require.NoError(t, store.Save("a", model))
	require.NoError(t, store.Save("b", model))

	infos, err := store.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, 3, infos[0].Rank)

	require.NoError(t, store.Delete("a"))
	_, err = store.Load("a")
	assert.Error(t, err, "loading a deleted model should fail")

	infos, err = store.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "b", infos[0].Name)
}

func TestStore_SaveRejectsUnfitted(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "models.db"))
	require.NoError(t, err)
	defer store.Close()

	_, db := fittedModel(t)
	unfitted, err := rom.New(db, reduction.NewPOD(), approximation.NewLinear())
	require.NoError(t, err)
	assert.Error(t, store.Save("x", unfitted), "saving an unfitted model should fail")
	assert.Error(t, store.Save("", nil), "empty name should fail")
}
