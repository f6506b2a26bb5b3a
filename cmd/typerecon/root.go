package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeusData/typerecon/internal/config"
	"github.com/DeusData/typerecon/internal/store"
)

var (
	outputFile string
	output     io.Writer
	verbose    bool
	jsonLog    bool
	cacheDir   string

	pointerSize int64
	workers     int
	noBodies    bool
)

var rootCmd = &cobra.Command{
	Use:   "typerecon",
	Short: "Reconstruct C++ type models from decompiler output",
	Long: `typerecon parses the pseudo-C++ that decompilers export (local type
dumps and function listings), links every type reference across the whole
corpus, computes member offsets and stores the model for querying.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd.ErrOrStderr())
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			output = f
		} else {
			output = cmd.OutOrStdout()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if f, ok := output.(*os.File); ok && f != os.Stdout {
			f.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write output to file instead of stdout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "log as JSON")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "directory holding project databases (default ~/.cache/typerecon)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

func setupLogging(w io.Writer) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if jsonLog {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

func openRouter() (*store.StoreRouter, error) {
	if cacheDir != "" {
		return store.NewRouterWithDir(cacheDir)
	}
	return store.NewRouter()
}

// addModelFlags registers the flags that override .typerecon.yaml.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&pointerSize, "pointer-size", 4, "pointer width in bytes of the target")
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "parser goroutines (0 = one per CPU)")
	cmd.Flags().BoolVar(&noBodies, "no-bodies", false, "do not scan function bodies for local variable types")
}

// applyModelFlags copies explicitly set flags over cfg.
func applyModelFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("pointer-size") {
		cfg.ABI.PointerSize = &pointerSize
	}
	if cmd.Flags().Changed("workers") && workers > 0 {
		cfg.Parse.Workers = &workers
	}
	if cmd.Flags().Changed("no-bodies") {
		scan := !noBodies
		cfg.Parse.ScanBodies = &scan
	}
}
