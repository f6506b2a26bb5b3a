package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DeusData/typerecon/internal/pipeline"
	"github.com/DeusData/typerecon/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Index a corpus and re-index it whenever its files change",
	Long: `Watch indexes <dir> once, then polls it and re-indexes on change. The
poll interval grows with the number of files. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addModelFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	r, err := openRouter()
	if err != nil {
		return fmt.Errorf("open cache dir: %w", err)
	}
	defer r.CloseAll()

	project := pipeline.ProjectNameFromPath(root)
	sum, err := indexProject(cmd, r, project, root)
	if err != nil {
		return err
	}
	printSummary(sum)

	w := watcher.New(r, func(_ context.Context, name, path string) error {
		sum, err := indexProject(cmd, r, name, path)
		if err != nil {
			return err
		}
		slog.Info("watch.reindexed", "project", name, "entities", sum.Entities, "noop", sum.Noop)
		return nil
	})
	w.Only(project)
	w.Run(cmd.Context())
	return nil
}
