package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/castor"
)

var (
	gcKeep       []string
	gcDropQueued bool
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove stale references from the artifact store",
	Long:  "Remove references whose baseline revision is not in the keep set. With no --keep revisions nothing is removed.",
	RunE:  runGC,
}

func init() {
	gcCmd.Flags().StringSliceVar(&gcKeep, "keep", nil, "baseline revisions to retain")
	gcCmd.Flags().BoolVar(&gcDropQueued, "drop-queued", false, "also remove queued entries with retained baselines")
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	db, err := castor.OpenRefDB(getCacheDir())
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(gcKeep))
	for _, rev := range gcKeep {
		keep[rev] = struct{}{}
	}

	removed, err := db.GC(keep, gcDropQueued)
	if err != nil {
		return fmt.Errorf("gc failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Removed %d entries.\n", removed)
	return nil
}
