package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/castor"
)

var hashCmd = &cobra.Command{
	Use:   "hash <location>",
	Short: "Compute the content hash of a file or directory",
	Long:  "Compute the content hash of a file or directory tree. Bare paths hash the local filesystem; prefixed locations (s3://..., http://...) hash remote storage.",
	Args:  cobra.ExactArgs(1),
	RunE:  runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)
}

func runHash(cmd *cobra.Command, args []string) (err error) {
	loc, err := castor.ParseLocation(args[0])
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	engine, artifacts, err := newEngine(context.Background(), loc.Scheme(), log)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	h, exists, err := engine.GetHash(context.Background(), loc)
	if err != nil {
		return fmt.Errorf("hash %s: %w", loc, err)
	}
	if !exists {
		return fmt.Errorf("%s does not exist", loc)
	}

	if h.Size == castor.SizeUnknown {
		fmt.Printf("%s:%s\n", h.Algo, h.Value)
	} else {
		fmt.Printf("%s:%s\t%d\n", h.Algo, h.Value, h.Size)
	}
	return nil
}
