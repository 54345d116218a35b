// Package cli implements the gorom command line: fitting, prediction,
// cross-validation and adaptive sampling over CSV-backed snapshot data.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sciforge/gorom/config"
	"github.com/sciforge/gorom/pkg/log"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gorom",
	Short: "Reduced order modeling over snapshot databases",
	Long: `gorom compresses high-dimensional simulation snapshots into a low-rank
latent space, learns a parameter-to-latent mapping, and reconstructs
full-dimensional predictions at unseen parameters.

Example usage:
  gorom fit --name sine            # fit and store a model
  gorom predict --name sine -i query.csv -o pred.csv
  gorom cv                         # k-fold cross-validation error
  gorom suggest -k 2               # next parameters to sample`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		log.SetupLogger(cfg.LogLevel)
		log.EnableStructuredWarnings()
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "gorom.yaml", "configuration file")
}
