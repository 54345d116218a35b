package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sciforge/gorom/plotting"
	"github.com/sciforge/gorom/rom"
)

var cvPlot string

var cvCmd = &cobra.Command{
	Use:   "cv",
	Short: "Estimate model accuracy by k-fold cross-validation",
	RunE:  runCV,
}

func init() {
	cvCmd.Flags().StringVar(&cvPlot, "plot", "", "write a per-fold error figure to this path")
	rootCmd.AddCommand(cvCmd)
}

func runCV(cmd *cobra.Command, args []string) error {
	model, err := buildModel()
	if err != nil {
		return err
	}
	var opts []rom.CVOption
	if cfg.CV.Shuffle {
		opts = append(opts, rom.WithShuffle(cfg.CV.Seed))
	}
	result, err := model.KFoldCVError(cfg.CV.NSplits, opts...)
	if err != nil {
		return err
	}
	for i, fe := range result.FoldErrors {
		fmt.Printf("fold %d: %d held out, relative error %.6e\n", i, len(result.Folds[i]), fe)
	}
	fmt.Printf("mean relative error over %d folds: %.6e\n", len(result.FoldErrors), result.Mean)

	if cvPlot != "" {
		if err := plotting.CVErrors(result, cvPlot); err != nil {
			return err
		}
		fmt.Printf("fold errors written to %s\n", cvPlot)
	}
	return nil
}
