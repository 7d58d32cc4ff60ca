package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/castor"
	"github.com/aweris/castor/internal/mirror"
	"github.com/aweris/castor/internal/remote"
)

var pushCmd = &cobra.Command{
	Use:   "push <image-ref> <path>",
	Short: "Push the artifact store to an OCI registry",
	Long:  "Hash a local path, then push the artifact store to an OCI registry advertising that hash as the image root.",
	Args:  cobra.ExactArgs(2),
	RunE:  runPush,
}

var pullCmd = &cobra.Command{
	Use:   "pull <image-ref>",
	Short: "Pull registry artifacts into the local store",
	Args:  cobra.ExactArgs(1),
	RunE:  runPull,
}

func init() {
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	imageRef := args[0]

	loc, err := castor.ParseLocation(args[1])
	if err != nil {
		return err
	}
	if loc.Scheme() != castor.SchemeLocal {
		return fmt.Errorf("push roots at local paths, got %s", loc)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	engine, artifacts, err := newEngine(context.Background(), castor.SchemeLocal, log)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	root, exists, err := engine.GetHash(context.Background(), loc)
	if err != nil {
		return fmt.Errorf("hash %s: %w", loc, err)
	}
	if !exists {
		return fmt.Errorf("%s does not exist", loc)
	}

	registry, err := remote.NewRegistry(imageRef, nil)
	if err != nil {
		return err
	}
	if jobs := getJobs(); jobs > 0 {
		registry.SetJobs(jobs)
	}

	fmt.Fprintf(os.Stderr, "Pushing %s...\n", imageRef)

	m := mirror.New(artifacts, registry, log)
	if err := m.Push(context.Background(), root); err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Done. Root: %s:%s\n", root.Algo, root.Value)
	return nil
}

func runPull(cmd *cobra.Command, args []string) error {
	imageRef := args[0]

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	artifacts, err := openStore()
	if err != nil {
		return err
	}
	defer artifacts.Close()

	registry, err := remote.NewRegistry(imageRef, nil)
	if err != nil {
		return err
	}
	if jobs := getJobs(); jobs > 0 {
		registry.SetJobs(jobs)
	}

	fmt.Fprintf(os.Stderr, "Pulling %s...\n", imageRef)

	m := mirror.New(artifacts, registry, log)
	root, err := m.Pull(context.Background(), castor.AlgoSHA256)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Done. Root: %s:%s\n", root.Algo, root.Value)
	return nil
}
