package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sciforge/gorom/persistence"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models stored in the configured store",
	RunE:  runModels,
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsDelete,
}

func init() {
	modelsCmd.AddCommand(modelsDeleteCmd)
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	store, err := persistence.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	infos, err := store.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Printf("no models stored in %s\n", cfg.Store)
		return nil
	}
	fmt.Printf("%-24s %6s  %s\n", "NAME", "RANK", "SAVED")
	for _, info := range infos {
		fmt.Printf("%-24s %6d  %s\n", info.Name, info.Rank, info.SavedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runModelsDelete(cmd *cobra.Command, args []string) error {
	store, err := persistence.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %q\n", args[0])
	return nil
}
