package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sciforge/gorom/approximation"
	"github.com/sciforge/gorom/persistence"
	"github.com/sciforge/gorom/plotting"
	"github.com/sciforge/gorom/reduction"
	"github.com/sciforge/gorom/rom"
)

var (
	fitName string
	fitPlot string
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit a reduced order model and store it under a name",
	RunE:  runFit,
}

func init() {
	fitCmd.Flags().StringVar(&fitName, "name", "default", "name to store the fitted model under")
	fitCmd.Flags().StringVar(&fitPlot, "plot", "", "write a singular-value decay figure to this path")
	rootCmd.AddCommand(fitCmd)
}

// buildModel assembles the configured pipeline over the configured data.
func buildModel() (*rom.ROM, error) {
	db, err := cfg.Database()
	if err != nil {
		return nil, err
	}
	red, err := reduction.FromConfig(cfg.Reduction)
	if err != nil {
		return nil, err
	}
	approx, err := approximation.FromConfig(cfg.Approximation)
	if err != nil {
		return nil, err
	}
	return rom.New(db, red, approx)
}

func runFit(cmd *cobra.Command, args []string) error {
	model, err := buildModel()
	if err != nil {
		return err
	}
	if err := model.Fit(); err != nil {
		return err
	}
	fmt.Printf("fitted: %d samples, snapshot dim %d, retained rank %d\n",
		model.Database().Len(), model.Database().SnapshotDim(), model.Reduction().Rank())

	if fitPlot != "" {
		if pod, ok := model.Reduction().(*reduction.POD); ok {
			if err := plotting.SingularValueDecay(pod, fitPlot); err != nil {
				return err
			}
			fmt.Printf("singular-value decay written to %s\n", fitPlot)
		} else {
			fmt.Println("plotting skipped: spectrum only available for POD")
		}
	}

	store, err := persistence.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(fitName, model); err != nil {
		return err
	}
	fmt.Printf("model stored as %q in %s\n", fitName, cfg.Store)
	return nil
}
