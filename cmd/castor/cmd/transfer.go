package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/castor"
)

var downloadCmd = &cobra.Command{
	Use:   "download <from> <to>",
	Short: "Download an object or directory tree to the local filesystem",
	Args:  cobra.ExactArgs(2),
	RunE:  runDownload,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <from> <to>",
	Short: "Upload a local file or directory tree to a storage backend",
	Args:  cobra.ExactArgs(2),
	RunE:  runUpload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(uploadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	from, err := castor.ParseLocation(args[0])
	if err != nil {
		return err
	}
	to, err := castor.ParseLocation(args[1])
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	engine, artifacts, err := newEngine(context.Background(), from.Scheme(), log)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	fmt.Fprintf(os.Stderr, "Downloading %s...\n", from)

	opts := castor.TransferOptions{Jobs: getJobs()}
	if err := engine.Download(context.Background(), from, to, opts); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	fmt.Fprintln(os.Stderr, "Done.")
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	from, err := castor.ParseLocation(args[0])
	if err != nil {
		return err
	}
	to, err := castor.ParseLocation(args[1])
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	engine, artifacts, err := newEngine(context.Background(), to.Scheme(), log)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	fmt.Fprintf(os.Stderr, "Uploading %s...\n", from)

	opts := castor.TransferOptions{Jobs: getJobs()}
	if err := engine.Upload(context.Background(), from, to, opts); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	fmt.Fprintln(os.Stderr, "Done.")
	return nil
}
