package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var suggestCount int

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest new parameter points where the model is least accurate",
	RunE:  runSuggest,
}

func init() {
	suggestCmd.Flags().IntVarP(&suggestCount, "count", "k", 1, "number of parameter points to propose")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	model, err := buildModel()
	if err != nil {
		return err
	}
	proposals, err := model.OptimalMu(suggestCount)
	if err != nil {
		return err
	}
	rows, cols := proposals.Dims()
	for i := 0; i < rows; i++ {
		parts := make([]string, cols)
		for j := 0; j < cols; j++ {
			parts[j] = fmt.Sprintf("%g", proposals.At(i, j))
		}
		fmt.Printf("proposal %d: [%s]\n", i+1, strings.Join(parts, ", "))
	}
	return nil
}
