package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeusData/typerecon/internal/store"
)

var showProject string

var showCmd = &cobra.Command{
	Use:   "show <qualified-name>",
	Short: "Print a stored entity with its layout",
	Long: `Show prints one struct, union, enum or typedef from the store: size,
alignment, bases and every member with its computed offset and linked type.

Without --project every indexed project is searched.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showProject, "project", "p", "", "project to look in")
}

func runShow(cmd *cobra.Command, args []string) error {
	qn := args[0]
	r, err := openRouter()
	if err != nil {
		return fmt.Errorf("open cache dir: %w", err)
	}
	defer r.CloseAll()

	var names []string
	if showProject != "" {
		if !r.HasProject(showProject) {
			return fmt.Errorf("project not found: %s", showProject)
		}
		names = []string{showProject}
	} else {
		projects, err := r.ListProjects()
		if err != nil {
			return err
		}
		for _, p := range projects {
			names = append(names, p.Name)
		}
	}

	for _, name := range names {
		st, err := r.ForProject(name)
		if err != nil {
			continue
		}
		e, err := st.FindEntity(name, qn)
		if err != nil {
			return err
		}
		if e != nil {
			return printEntity(st, e)
		}
	}
	return fmt.Errorf("entity not found: %s", qn)
}

func printEntity(st *store.Store, e *store.Entity) error {
	fmt.Fprintf(output, "%s %s\n", e.Kind, e.QualifiedName)
	fmt.Fprintf(output, "  project: %s\n", e.Project)
	fmt.Fprintf(output, "  source:  %s:%d\n", e.FilePath, e.Line)
	fmt.Fprintf(output, "  group:   %s\n", e.BaseTypePath)
	switch {
	case e.IsStub:
		fmt.Fprintf(output, "  layout:  forward declaration only\n")
	case e.LaidOut:
		fmt.Fprintf(output, "  layout:  size 0x%X (%d) align %d\n", e.Size, e.Size, e.Align)
	default:
		fmt.Fprintf(output, "  layout:  unknown\n")
	}

	bases, err := st.EntityBases(e.ID)
	if err != nil {
		return err
	}
	for _, b := range bases {
		fmt.Fprintf(output, "  base:    %s [%s]\n", b.Type, b.RefClass)
	}

	members, err := st.EntityMembers(e.ID)
	if err != nil {
		return err
	}
	if len(members) > 0 {
		fmt.Fprintf(output, "\n  %-8s %-6s %-40s %-24s %s\n", "OFFSET", "BITS", "TYPE", "NAME", "LINK")
		fmt.Fprintf(output, "  %s\n", strings.Repeat("-", 96))
	}
	for _, m := range members {
		off := "?"
		if m.Offset != nil {
			off = fmt.Sprintf("0x%X", *m.Offset)
		}
		bits := ""
		if m.BitWidth != nil {
			bits = fmt.Sprintf("%d:%d", m.BitOffset, *m.BitWidth)
		}
		typ := m.Type
		if m.Signature != "" {
			typ = m.Signature
		}
		link := m.RefClass
		if m.TargetQN != "" {
			link = m.TargetQN
		}
		fmt.Fprintf(output, "  %-8s %-6s %-40s %-24s %s\n", off, bits, typ, m.Name, link)
	}

	refs, err := st.MemberReferrers(e.Project, e.QualifiedName)
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		fmt.Fprintf(output, "\n  referenced by: %s\n", strings.Join(refs, ", "))
	}
	return nil
}
