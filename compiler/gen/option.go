package gen

import (
	"maps"

	sqlschema "github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/schema"
)

// Config holds the options of schema building and code generation.
type Config struct {
	// Tables maps class names to explicit table names. Overrides declared
	// on the descriptors take precedence.
	Tables map[string]string
	// SQLType resolves the dialect type of a column. Columns keep an empty
	// SQLType when unset.
	SQLType func(*sqlschema.Column) string
	// Package is the name of the generated Go package.
	Package string
	// Header is added at the top of each generated file.
	Header string
	// Target is the output directory of generated files.
	Target string
	// DDL holds rendered CREATE TABLE statements embedded in generated code.
	DDL []string
}

// Option configures schema building and code generation.
type Option func(*Config) error

// WithTableName sets the table name of a class.
func WithTableName(class, table string) Option {
	return func(c *Config) error {
		if class == "" || table == "" {
			return NewConfigError("Tables", class, "class and table name must be set")
		}
		if c.Tables == nil {
			c.Tables = make(map[string]string)
		}
		c.Tables[class] = table
		return nil
	}
}

// WithTables sets the table names of several classes.
func WithTables(tables map[string]string) Option {
	return func(c *Config) error {
		for class, table := range tables {
			if table == "" {
				return NewConfigError("Tables", class, "empty table name")
			}
		}
		if c.Tables == nil {
			c.Tables = make(map[string]string, len(tables))
		}
		maps.Copy(c.Tables, tables)
		return nil
	}
}

// WithSQLTypes sets the column type resolver, usually the SQLType method
// of a dialect adapter.
func WithSQLTypes(fn func(*sqlschema.Column) string) Option {
	return func(c *Config) error {
		if fn == nil {
			return NewConfigError("SQLType", nil, "resolver cannot be nil")
		}
		c.SQLType = fn
		return nil
	}
}

// WithPackage sets the name of the generated package.
func WithPackage(pkg string) Option {
	return func(c *Config) error {
		if pkg == "" {
			return NewConfigError("Package", nil, "package cannot be empty")
		}
		c.Package = pkg
		return nil
	}
}

// WithHeader sets the file header comment.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithTarget sets the output directory of generated files.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("Target", nil, "target cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithDDL embeds the rendered schema statements in generated code.
func WithDDL(stmts ...string) Option {
	return func(c *Config) error {
		c.DDL = append(c.DDL, stmts...)
		return nil
	}
}

// Apply applies the options on the config.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// NewConfig returns a config with the options applied.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{Package: "tables"}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// table returns the table name of a type.
func (c *Config) table(t *schema.TypeDescriptor) string {
	if t.Table != "" {
		return t.Table
	}
	if name, ok := c.Tables[t.Name]; ok {
		return name
	}
	return TableName(t.Name)
}
