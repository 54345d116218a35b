// Package gorom provides reduced order modeling for parametric systems:
// from a database of precomputed high-dimensional snapshots it builds a
// cheap surrogate that predicts the solution at new parameter values.
//
// A model is a pipeline of three exchangeable parts: a snapshot database
// with optional scaling, a dimensionality reduction strategy that maps
// snapshots into a low-dimensional latent space, and an approximation
// strategy that interpolates latent coordinates over the parameter space.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "gonum.org/v1/gonum/mat"
//
//	    "github.com/sciforge/gorom/approximation"
//	    "github.com/sciforge/gorom/database"
//	    "github.com/sciforge/gorom/reduction"
//	    "github.com/sciforge/gorom/rom"
//	)
//
//	func main() {
//	    // One sample per row: parameters are n×d_p, snapshots n×d_s.
//	    params := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
//	    snaps := mat.NewDense(4, 100, snapshotData)
//
//	    db, err := database.New(params, snaps)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    model, err := rom.New(db, reduction.NewPOD(), approximation.NewRBF())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := model.Fit(); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    predicted, err := model.PredictOne([]float64{2.5})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(predicted)
//	}
//
// # Packages
//
//   - database: parameter/snapshot storage with optional scalers
//   - reduction: POD (exact and randomized SVD), autoencoder, POD-autoencoder
//   - approximation: linear simplex, RBF, GPR, nearest neighbors, ANN
//   - rom: the orchestrator, cross-validation and adaptive sampling
//   - persistence: a named model store backed by bbolt
//   - config: declarative YAML pipeline configuration and CSV data IO
//   - plotting: singular-value decay and cross-validation figures
//   - geometry: Delaunay triangulation over parameter points
//   - metrics, preprocessing, core/model, core/parallel: shared utilities
//
// Model quality is estimated without extra snapshots via k-fold or
// leave-one-out cross-validation, and OptimalMu proposes the parameter
// points whose snapshots would improve the model most.
package gorom
