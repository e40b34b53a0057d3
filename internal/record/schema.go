package record

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

// Violation is a non-fatal mismatch between a payload and the expected shape.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("record.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add record schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile("record.json")
	})
	return schema, schemaErr
}

// Check validates a decoded payload against the record schema and returns
// the leaf violations sorted by path. The payload must come from
// encoding/json, with or without UseNumber.
func Check(payload any) []Violation {
	s, err := compiledSchema()
	if err != nil {
		return []Violation{{Message: err.Error()}}
	}
	err = s.Validate(payload)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []Violation{{Message: err.Error()}}
	}
	var out []Violation
	collectViolations(verr, &out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func collectViolations(e *jsonschema.ValidationError, out *[]Violation) {
	if len(e.Causes) == 0 {
		*out = append(*out, Violation{Path: e.InstanceLocation, Message: e.Message})
		return
	}
	for _, c := range e.Causes {
		collectViolations(c, out)
	}
}
