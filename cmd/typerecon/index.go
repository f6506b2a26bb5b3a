package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/DeusData/typerecon/internal/pipeline"
	"github.com/DeusData/typerecon/internal/store"
)

var indexCmd = &cobra.Command{
	Use:   "index <dir>",
	Short: "Index a corpus directory into its project database",
	Long: `Index parses every decompiler output file under <dir>, links type
references across files, lays out every entity and replaces the stored model
of the project. A corpus whose files are all unchanged is left untouched.

Settings are read from <dir>/.typerecon.yaml; flags override them.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	addModelFlags(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	r, err := openRouter()
	if err != nil {
		return fmt.Errorf("open cache dir: %w", err)
	}
	defer r.CloseAll()

	sum, err := indexProject(cmd, r, pipeline.ProjectNameFromPath(root), root)
	if err != nil {
		return err
	}
	printSummary(sum)
	return nil
}

func indexProject(cmd *cobra.Command, r *store.StoreRouter, project, root string) (*pipeline.Summary, error) {
	st, err := r.ForProject(project)
	if err != nil {
		return nil, err
	}
	p := pipeline.New(cmd.Context(), st, root)
	p.ProjectName = project
	applyModelFlags(cmd, p.Config)
	return p.Run()
}

func printSummary(sum *pipeline.Summary) {
	fmt.Fprintf(output, "project:    %s\n", sum.Project)
	fmt.Fprintf(output, "database:   %s\n", sum.Database)
	if sum.Noop {
		fmt.Fprintf(output, "unchanged:  %s files, %s entities\n",
			humanize.Comma(int64(sum.Files)), humanize.Comma(int64(sum.Entities)))
		return
	}
	fmt.Fprintf(output, "files:      %s (%s, %d duplicates skipped)\n",
		humanize.Comma(int64(sum.Files)), humanize.Bytes(uint64(sum.Bytes)), sum.Duplicates)
	fmt.Fprintf(output, "entities:   %s\n", humanize.Comma(int64(sum.Entities)))
	fmt.Fprintf(output, "functions:  %s\n", humanize.Comma(int64(sum.Functions)))
	fmt.Fprintf(output, "conflicts:  %d\n", sum.Conflicts)
	fmt.Fprintf(output, "warnings:   %d\n", sum.Warnings)
	fmt.Fprintf(output, "unresolved: %d\n", sum.Unresolved)
	fmt.Fprintf(output, "mismatches: %d\n", sum.Mismatches)
	fmt.Fprintf(output, "elapsed:    %s\n", sum.Elapsed.Round(1e6))
}
