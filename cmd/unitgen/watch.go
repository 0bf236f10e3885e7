package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"unitgen/internal/pipeline"
)

// watchCmd regenerates tests on source changes
var watchCmd = &cobra.Command{
	Use:   "watch [path...]",
	Short: "Watch Python sources and regenerate tests on change",
	Long: `Watches the given files or directories and regenerates the test
file for any Python source that changes. Runs until interrupted.

Example:
  unitgen watch mylib/ -o tests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output directory for test files (default: ut_output)")
	watchCmd.Flags().BoolVar(&genAppend, "append", false, "Merge new tests into existing test files instead of overwriting")
	watchCmd.Flags().StringVar(&genModel, "model", "", "Override the configured model")
	watchCmd.Flags().StringVar(&genProvider, "provider", "", "Override the configured provider (openai, anthropic, gemini)")
	watchCmd.Flags().BoolVar(&genNoCache, "no-cache", false, "Bypass the generation cache")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	cfg := loadConfig()
	applyGenerateFlags(cfg)

	p, closeFn, err := buildPipeline(ctx, cfg, args)
	if err != nil {
		return err
	}
	defer closeFn()

	w, err := pipeline.NewWatcher(p, args)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()

	fmt.Printf("Watching %d path(s); press Ctrl-C to stop.\n", len(args))
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
