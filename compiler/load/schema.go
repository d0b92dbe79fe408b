// Package load reads the type descriptor files written by the external
// type scanner into a schema.Registry.
package load

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syssam/aggregate/schema"
)

// File is the content of one descriptor file.
type File struct {
	Types []*Schema `json:"types" yaml:"types"`
}

// Schema represents a scanned type as written in a descriptor file.
type Schema struct {
	Name   string   `json:"name" yaml:"name"`
	Base   string   `json:"base,omitempty" yaml:"base,omitempty"`
	Table  string   `json:"table,omitempty" yaml:"table,omitempty"`
	Fields []*Field `json:"fields,omitempty" yaml:"fields,omitempty"`
	// Pos is the file the type was read from.
	Pos string `json:"-" yaml:"-"`
}

// Field represents a declared field of a scanned type. The type uses the
// reference syntax of schema.ParseTypeRef; a trailing "?" or the optional
// flag marks the field nullable.
type Field struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Format is the encoding of a descriptor file.
type Format string

// Descriptor file formats.
const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatOf returns the format of a file by its extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, true
	case ".json":
		return JSON, true
	}
	return "", false
}

// NewSchema returns the descriptor-file form of a type descriptor.
func NewSchema(t *schema.TypeDescriptor) *Schema {
	s := &Schema{Name: t.Name, Base: t.Base.String(), Table: t.Table}
	if t.Base == schema.BaseNone {
		s.Base = ""
	}
	for _, f := range t.Fields {
		s.Fields = append(s.Fields, &Field{Name: f.Name, Type: f.Ref.String(), Optional: f.Nullable})
	}
	return s
}

// Descriptor converts the scanned type into a type descriptor.
func (s *Schema) Descriptor() (*schema.TypeDescriptor, error) {
	if s.Name == "" {
		return nil, s.errorf("type without name")
	}
	base, err := schema.ParseBase(s.Base)
	if err != nil {
		return nil, s.errorf("%v", err)
	}
	t := &schema.TypeDescriptor{Name: s.Name, Base: base, Table: s.Table}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		switch {
		case f == nil || f.Name == "":
			return nil, s.errorf("field without name")
		case seen[f.Name]:
			return nil, s.errorf("duplicate field %q", f.Name)
		case strings.TrimSpace(f.Type) == "":
			return nil, s.errorf("field %q without type", f.Name)
		}
		seen[f.Name] = true
		fd := schema.Field(f.Name, f.Type)
		if fd.Err != nil {
			return nil, s.errorf("field %q: %v", f.Name, fd.Err)
		}
		if f.Optional {
			fd.Optional()
		}
		t.Fields = append(t.Fields, fd)
	}
	return t, nil
}

func (s *Schema) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if s.Name != "" {
		msg = fmt.Sprintf("type %s: %s", s.Name, msg)
	}
	if s.Pos != "" {
		msg = s.Pos + ": " + msg
	}
	return errors.New("load: " + msg)
}

// MarshalSchema encodes the type descriptors as a YAML descriptor file.
func MarshalSchema(types ...*schema.TypeDescriptor) ([]byte, error) {
	f := &File{Types: make([]*Schema, len(types))}
	for i, t := range types {
		f.Types[i] = NewSchema(t)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("load: marshal schema: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("load: marshal schema: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalSchema decodes a descriptor file. Unknown keys are rejected.
func UnmarshalSchema(buf []byte, format Format) (*File, error) {
	f := &File{}
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(buf))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("load: decode yaml: %w", err)
		}
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(buf))
		dec.DisallowUnknownFields()
		if err := dec.Decode(f); err != nil {
			return nil, fmt.Errorf("load: decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("load: unknown format %q", format)
	}
	return f, nil
}

// ReadFile reads one descriptor file.
func ReadFile(path string) (*File, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("load: %s: unknown file extension", path)
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	f, err := UnmarshalSchema(buf, format)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	for _, s := range f.Types {
		if s != nil {
			s.Pos = path
		}
	}
	return f, nil
}

// Files expands the paths into descriptor files. Directories contribute
// their YAML and JSON files, sorted by name; subdirectories are skipped.
func Files(paths ...string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		var names []string
		for _, e := range entries {
			if _, ok := FormatOf(e.Name()); ok && !e.IsDir() {
				names = append(names, filepath.Join(p, e.Name()))
			}
		}
		slices.Sort(names)
		files = append(files, names...)
	}
	return files, nil
}

// Load reads the descriptor files and directories into a registry. Type
// names must be unique across all files.
func Load(paths ...string) (*schema.Registry, error) {
	files, err := Files(paths...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("load: no descriptor files")
	}
	reg, err := schema.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		f, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := f.register(reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Registry converts the types of the file into a registry.
func (f *File) Registry() (*schema.Registry, error) {
	reg, err := schema.NewRegistry()
	if err != nil {
		return nil, err
	}
	if err := f.register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (f *File) register(reg *schema.Registry) error {
	for _, s := range f.Types {
		if s == nil {
			continue
		}
		t, err := s.Descriptor()
		if err != nil {
			return err
		}
		if err := reg.Add(t); err != nil {
			return s.errorf("%v", err)
		}
	}
	return nil
}
