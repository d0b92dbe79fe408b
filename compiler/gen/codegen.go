package gen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"
)

// GeneratedFile is the name of the file written by WriteFile.
const GeneratedFile = "tables.go"

// Generate renders a Go source file holding the table and column names of
// the graph, and the schema statements when configured.
func Generate(g *Graph, opts ...Option) ([]byte, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	f := jen.NewFile(cfg.Package)
	if cfg.Header != "" {
		f.HeaderComment(cfg.Header)
	}
	f.HeaderComment("Code generated by aggregate, DO NOT EDIT.")

	seen := make(map[string]string)
	ident := func(id, origin string) error {
		if prev, ok := seen[id]; ok {
			return &GenerationError{File: GeneratedFile, Message: fmt.Sprintf("identifier %s of %s collides with %s", id, origin, prev)}
		}
		seen[id] = origin
		return nil
	}
	for _, a := range g.Aggregates {
		for _, t := range a.Tables {
			prefix := pascal(t.Name)
			defs := []jen.Code{}
			tableID := prefix + "Table"
			if err := ident(tableID, t.Name); err != nil {
				return nil, err
			}
			defs = append(defs, jen.Id(tableID).Op("=").Lit(t.Name))
			cols := make([]jen.Code, 0, len(t.Columns))
			for _, c := range t.Columns {
				id := prefix + "Column" + pascal(c.Name)
				if err := ident(id, t.Name+"."+c.Name); err != nil {
					return nil, err
				}
				defs = append(defs, jen.Id(id).Op("=").Lit(c.Name))
				cols = append(cols, jen.Id(id))
			}
			f.Commentf("Table %s stores %s (aggregate %s).", t.Name, t.Source, a.Root.Name)
			f.Const().Defs(defs...)
			f.Commentf("%sColumns holds all columns of table %s.", prefix, t.Name)
			f.Var().Id(prefix + "Columns").Op("=").Index().String().Values(cols...)
		}
	}
	if len(cfg.DDL) > 0 {
		stmts := make([]jen.Code, len(cfg.DDL))
		for i, s := range cfg.DDL {
			stmts[i] = jen.Lit(s)
		}
		f.Comment("Schema holds the statements creating all tables, referenced tables first.")
		f.Var().Id("Schema").Op("=").Index().String().Values(stmts...)
	}
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, &GenerationError{File: GeneratedFile, Message: "render", Cause: err}
	}
	return buf.Bytes(), nil
}

// WriteFile renders the graph and writes it to the configured target
// directory.
func WriteFile(g *Graph, opts ...Option) (string, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return "", err
	}
	if cfg.Target == "" {
		return "", NewConfigError("Target", nil, "no target directory")
	}
	src, err := Generate(g, opts...)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.Target, 0o755); err != nil {
		return "", &GenerationError{File: GeneratedFile, Message: "create output directory", Cause: err}
	}
	path := filepath.Join(cfg.Target, GeneratedFile)
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return "", &GenerationError{File: GeneratedFile, Message: "write", Cause: err}
	}
	return path, nil
}
