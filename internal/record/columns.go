package record

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

// Kind is how a column's value is coerced.
type Kind string

const (
	KindYear   Kind = "year"
	KindNumber Kind = "number"
	KindList   Kind = "list"
)

// YearPlaceholder in a column path is replaced by the matching year key.
const YearPlaceholder = "{year}"

// Column maps one output column to its source path in a record.
type Column struct {
	Name string   `yaml:"name"`
	Kind Kind     `yaml:"kind"`
	Path []string `yaml:"path"`
}

// ColumnMap is the ordered set of output columns.
type ColumnMap struct {
	Columns []Column `yaml:"columns"`
}

//go:embed columns.yaml
var defaultColumnsYAML []byte

var (
	defaultOnce sync.Once
	defaultCols ColumnMap
	defaultErr  error
)

// DefaultColumns returns the built-in canonical column map.
func DefaultColumns() (ColumnMap, error) {
	defaultOnce.Do(func() {
		defaultCols, defaultErr = LoadColumns(bytes.NewReader(defaultColumnsYAML))
	})
	return defaultCols, defaultErr
}

// LoadColumns decodes and validates a YAML column map.
func LoadColumns(r io.Reader) (ColumnMap, error) {
	var cm ColumnMap
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cm); err != nil {
		return ColumnMap{}, fmt.Errorf("decode column map: %w", err)
	}
	if err := cm.Validate(); err != nil {
		return ColumnMap{}, err
	}
	return cm, nil
}

// Validate checks names are unique, exactly one year column exists and every
// other column has a path.
func (cm ColumnMap) Validate() error {
	if len(cm.Columns) == 0 {
		return errors.New("column map: no columns")
	}
	seen := make(map[string]bool, len(cm.Columns))
	years := 0
	for i, c := range cm.Columns {
		if c.Name == "" {
			return fmt.Errorf("column map: column %d has no name", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("column map: duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		switch c.Kind {
		case KindYear:
			years++
		case KindNumber, KindList:
			if len(c.Path) == 0 {
				return fmt.Errorf("column map: column %q has no path", c.Name)
			}
		default:
			return fmt.Errorf("column map: column %q has unknown kind %q", c.Name, c.Kind)
		}
	}
	if years != 1 {
		return fmt.Errorf("column map: expected one year column, found %d", years)
	}
	return nil
}

// Names returns the column names in order.
func (cm ColumnMap) Names() []string {
	names := make([]string, len(cm.Columns))
	for i, c := range cm.Columns {
		names[i] = c.Name
	}
	return names
}
