package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeusData/typerecon/internal/config"
	"github.com/DeusData/typerecon/internal/model"
	"github.com/DeusData/typerecon/internal/pipeline"
	"github.com/DeusData/typerecon/internal/typestr"
)

var dumpFormat string

var dumpCmd = &cobra.Command{
	Use:   "dump <dir>",
	Short: "Build the model of a corpus in memory and print it",
	Long: `Dump builds the linked and laid-out model of <dir> without a database.

Supported formats:
  - text: declarations annotated with computed offsets (default)
  - json: JSON format`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "text", "output format (text, json)")
	addModelFlags(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	if dumpFormat != "text" && dumpFormat != "json" {
		return fmt.Errorf("unknown format: %s", dumpFormat)
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	cfg := config.Load(root)
	applyModelFlags(cmd, cfg)

	sources, err := pipeline.LoadSources(cmd.Context(), root, cfg)
	if err != nil {
		return err
	}
	res, err := pipeline.Build(cmd.Context(), sources, cfg)
	if err != nil {
		return err
	}

	if dumpFormat == "json" {
		return dumpJSON(root, res)
	}
	dumpText(res)
	return nil
}

type CorpusDump struct {
	Root      string         `json:"root"`
	Files     int            `json:"files"`
	Entities  []EntityDump   `json:"entities"`
	Functions []FunctionDump `json:"functions"`
	Conflicts []ConflictDump `json:"conflicts,omitempty"`
	Stats     StatsDump      `json:"stats"`
}

type EntityDump struct {
	Kind          string       `json:"kind"`
	QualifiedName string       `json:"qualified_name"`
	BaseTypePath  string       `json:"base_type_path"`
	File          string       `json:"file"`
	Line          int          `json:"line"`
	Stub          bool         `json:"stub,omitempty"`
	VTable        bool         `json:"vtable,omitempty"`
	Size          *int64       `json:"size,omitempty"`
	Align         *int64       `json:"align,omitempty"`
	Bases         []string     `json:"bases,omitempty"`
	Members       []MemberDump `json:"members,omitempty"`
	Values        []ValueDump  `json:"values,omitempty"`
	Underlying    string       `json:"underlying,omitempty"`
	Aliased       string       `json:"aliased,omitempty"`
	Nested        []string     `json:"nested,omitempty"`
}

type MemberDump struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Link      string `json:"link"`
	Target    string `json:"target,omitempty"`
	Offset    *int64 `json:"offset,omitempty"`
	BitOffset int    `json:"bit_offset,omitempty"`
	BitWidth  *int   `json:"bit_width,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type ValueDump struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type FunctionDump struct {
	Address    string   `json:"address"`
	Name       string   `json:"qualified_name"`
	Signature  string   `json:"signature"`
	LocalTypes []string `json:"local_types,omitempty"`
}

type ConflictDump struct {
	Key     string `json:"key"`
	Kept    string `json:"kept"`
	Dropped string `json:"dropped"`
}

type StatsDump struct {
	Merged     int `json:"merged"`
	Conflicts  int `json:"conflicts"`
	Warnings   int `json:"warnings"`
	Unresolved int `json:"unresolved"`
	Mismatches int `json:"offset_mismatches"`
	Unsized    int `json:"unsized"`
	Cycles     int `json:"cycles"`
}

func dumpJSON(root string, res *pipeline.Result) error {
	c := res.Corpus
	d := CorpusDump{
		Root:  root,
		Files: res.Files,
		Stats: StatsDump{
			Merged:     res.Aggregate.Merged,
			Conflicts:  res.Aggregate.Conflicts,
			Warnings:   res.Warnings,
			Unresolved: res.Resolve.Unresolved,
			Mismatches: res.Layout.Mismatches,
			Unsized:    res.Layout.Unsized,
			Cycles:     res.Layout.Cycles,
		},
	}
	for _, e := range c.Entities() {
		d.Entities = append(d.Entities, entityDump(c, e))
	}
	for _, f := range c.Functions() {
		fd := FunctionDump{
			Address:   fmt.Sprintf("0x%X", f.Address),
			Name:      f.QualifiedName(),
			Signature: typestr.FormatSignature(f.Signature),
		}
		for i := range f.LocalTypes {
			fd.LocalTypes = append(fd.LocalTypes, typestr.Format(&f.LocalTypes[i]))
		}
		d.Functions = append(d.Functions, fd)
	}
	for _, cf := range res.Conflicts {
		d.Conflicts = append(d.Conflicts, ConflictDump{
			Key:     cf.Key,
			Kept:    fmt.Sprintf("%s:%d", cf.Kept.File, cf.Kept.Line),
			Dropped: fmt.Sprintf("%s:%d", cf.Dropped.File, cf.Dropped.Line),
		})
	}

	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

func entityDump(c *model.Corpus, e *model.Entity) EntityDump {
	d := EntityDump{
		Kind:          e.Kind.String(),
		QualifiedName: e.Key(),
		BaseTypePath:  e.BaseTypePath,
		File:          e.File,
		Line:          e.Line,
		Stub:          e.IsStub(),
		VTable:        e.IsVTable,
	}
	if e.LaidOut {
		d.Size, d.Align = &e.Size, &e.Align
	}
	for i := range e.BaseTypes {
		d.Bases = append(d.Bases, typestr.Format(&e.BaseTypes[i]))
	}
	for i := range e.Members {
		m := &e.Members[i]
		md := MemberDump{
			Name:      m.Name,
			Type:      typestr.Format(&m.Type),
			Link:      m.Type.Class.String(),
			Offset:    m.Offset,
			BitOffset: m.BitOffset,
			BitWidth:  m.BitFieldWidth,
			Signature: typestr.FormatSignature(m.Signature),
		}
		if m.Type.Class == model.RefEntity {
			if t := c.Entity(m.Type.Target); t != nil {
				md.Target = t.Key()
			}
		}
		d.Members = append(d.Members, md)
	}
	for _, v := range e.Values {
		d.Values = append(d.Values, ValueDump{Name: v.Name, Value: v.Value})
	}
	if e.Underlying != nil {
		d.Underlying = typestr.Format(e.Underlying)
	}
	if e.Aliased != nil {
		d.Aliased = typestr.Format(e.Aliased)
	}
	for _, n := range c.Nested(e.ID) {
		d.Nested = append(d.Nested, n.Key())
	}
	return d
}

func dumpText(res *pipeline.Result) {
	c := res.Corpus
	for _, e := range c.Entities() {
		printDecl(e)
		fmt.Fprintln(output)
	}
	for _, f := range c.Functions() {
		fmt.Fprintf(output, "// 0x%X\n%s;\n", f.Address, typestr.FormatSignature(f.Signature))
		for i := range f.LocalTypes {
			fmt.Fprintf(output, "//   local %s\n", typestr.Format(&f.LocalTypes[i]))
		}
	}
	fmt.Fprintf(output, "\n// %d files, %d entities, %d functions, %d conflicts, %d warnings, %d offset mismatches\n",
		res.Files, c.Len(), len(c.Functions()), len(res.Conflicts), res.Warnings, res.Layout.Mismatches)
}

func printDecl(e *model.Entity) {
	switch e.Kind {
	case model.KindTypedef:
		target := ""
		if e.Aliased != nil {
			target = typestr.Format(e.Aliased)
		} else if e.Signature != nil {
			target = typestr.FormatSignature(e.Signature)
		}
		fmt.Fprintf(output, "typedef %s %s;\n", target, e.Key())
		return
	case model.KindEnum:
		head := "enum " + e.Key()
		if e.Underlying != nil {
			head += " : " + typestr.Format(e.Underlying)
		}
		fmt.Fprintf(output, "%s\n{\n", head)
		for _, v := range e.Values {
			fmt.Fprintf(output, "  %s = %d,\n", v.Name, v.Value)
		}
		fmt.Fprintln(output, "};")
		return
	}

	head := e.Kind.String() + " " + e.Key()
	if len(e.BaseTypes) > 0 {
		bases := make([]string, len(e.BaseTypes))
		for i := range e.BaseTypes {
			bases[i] = typestr.Format(&e.BaseTypes[i])
		}
		head += " : " + strings.Join(bases, ", ")
	}
	if e.IsStub() {
		fmt.Fprintf(output, "%s;\n", head)
		return
	}
	if e.LaidOut {
		head += fmt.Sprintf(" /* size 0x%X align %d */", e.Size, e.Align)
	}
	fmt.Fprintf(output, "%s\n{\n", head)
	for i := range e.Members {
		m := &e.Members[i]
		off := "?"
		if m.Offset != nil {
			off = fmt.Sprintf("0x%X", *m.Offset)
		}
		decl := typestr.Declare(&m.Type, m.Name)
		if m.Signature != nil {
			decl = typestr.FormatSignature(m.Signature)
		}
		if m.BitFieldWidth != nil {
			decl += fmt.Sprintf(" : %d", *m.BitFieldWidth)
		}
		fmt.Fprintf(output, "  /* %s */ %s;\n", off, decl)
	}
	fmt.Fprintln(output, "};")
}
