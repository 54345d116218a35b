package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/sciforge/gorom/config"
	"github.com/sciforge/gorom/persistence"
)

var (
	predictName   string
	predictInput  string
	predictOutput string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict snapshots at new parameter points with a stored model",
	RunE:  runPredict,
}

func init() {
	predictCmd.Flags().StringVar(&predictName, "name", "default", "name of the stored model")
	predictCmd.Flags().StringVarP(&predictInput, "input", "i", "", "CSV file of query parameters, one point per row")
	predictCmd.Flags().StringVarP(&predictOutput, "output", "o", "", "CSV file to write predicted snapshots to")
	predictCmd.MarkFlagRequired("input")
	predictCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	db, err := cfg.Database()
	if err != nil {
		return err
	}
	store, err := persistence.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	model, err := store.Load(predictName)
	if err != nil {
		return err
	}
	model.Rebind(db)

	queries, err := config.LoadMatrixCSV(predictInput)
	if err != nil {
		return err
	}
	n, _ := queries.Dims()

	bar := progressbar.NewOptions(n,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription("predicting"),
		progressbar.OptionShowCount(),
	)

	var out *mat.Dense
	for i := 0; i < n; i++ {
		row, err := model.PredictOne(queries.RawRowView(i))
		if err != nil {
			return err
		}
		if out == nil {
			out = mat.NewDense(n, len(row), nil)
		}
		out.SetRow(i, row)
		bar.Add(1)
	}
	fmt.Println()

	if err := config.SaveMatrixCSV(predictOutput, out); err != nil {
		return err
	}
	fmt.Printf("wrote %d predictions to %s\n", n, predictOutput)
	return nil
}
