// Package records reads label, event and collector record sets and writes
// run results as JSON, TSV and SQLite.
package records

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ppiankov/labelsort/internal/model"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const (
	labelSchema     = "label.schema.json"
	eventSchema     = "event.schema.json"
	collectorSchema = "collector.schema.json"
)

var (
	compileOnce     sync.Once
	compiledSchemas map[string]*jsonschema.Schema
	compileErr      error
)

func loadSchema(name string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		names := []string{labelSchema, eventSchema, collectorSchema}
		for _, n := range names {
			raw, err := schemaFS.ReadFile("schemas/" + n)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", n, err)
				return
			}
			if err := compiler.AddResource(n, bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", n, err)
				return
			}
		}

		compiledSchemas = make(map[string]*jsonschema.Schema, len(names))
		for _, n := range names {
			s, err := compiler.Compile(n)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", n, err)
				return
			}
			compiledSchemas[n] = s
		}
	})

	if compileErr != nil {
		return nil, compileErr
	}
	s, ok := compiledSchemas[name]
	if !ok {
		return nil, fmt.Errorf("schema %s not initialized", name)
	}
	return s, nil
}

// ReadLabels decodes a JSON array of labels.
func ReadLabels(r io.Reader) ([]model.Label, []model.Skipped, error) {
	return decodeRecords(r, model.KindLabel, labelSchema, func(l model.Label) string { return l.ID })
}

// ReadEvents decodes a JSON array of collecting events.
func ReadEvents(r io.Reader) ([]model.CollectingEvent, []model.Skipped, error) {
	return decodeRecords(r, model.KindEvent, eventSchema, func(e model.CollectingEvent) string { return e.ID })
}

// ReadCollectors decodes a JSON array of collectors.
func ReadCollectors(r io.Reader) ([]model.Collector, []model.Skipped, error) {
	return decodeRecords(r, model.KindCollector, collectorSchema, func(c model.Collector) string { return c.ID })
}

// LoadLabels reads labels from a file.
func LoadLabels(path string) ([]model.Label, []model.Skipped, error) {
	return loadFile(path, ReadLabels)
}

// LoadEvents reads collecting events from a file.
func LoadEvents(path string) ([]model.CollectingEvent, []model.Skipped, error) {
	return loadFile(path, ReadEvents)
}

// LoadCollectors reads collectors from a file.
func LoadCollectors(path string) ([]model.Collector, []model.Skipped, error) {
	return loadFile(path, ReadCollectors)
}

func loadFile[T any](path string, read func(io.Reader) ([]T, []model.Skipped, error)) ([]T, []model.Skipped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	out, skipped, err := read(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, skipped, nil
}

// decodeRecords validates each array element on its own. Malformed records
// and repeated IDs are reported as skipped; only a document that is not a
// JSON array fails as a whole.
func decodeRecords[T any](r io.Reader, kind model.RecordKind, schemaName string, id func(T) string) ([]T, []model.Skipped, error) {
	schema, err := loadSchema(schemaName)
	if err != nil {
		return nil, nil, fmt.Errorf("load schema: %w", err)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read records: %w", err)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(raw), &elems); err != nil {
		return nil, nil, fmt.Errorf("top-level JSON must be an array of %s records: %w", kind, err)
	}

	var out []T
	var skipped []model.Skipped
	seen := make(map[string]bool, len(elems))

	for i, elem := range elems {
		rec, err := decodeRecord[T](elem, schema)
		if err != nil {
			skipped = append(skipped, model.Skipped{Kind: kind, ID: rawID(elem), Index: i, Reason: err.Error()})
			continue
		}
		key := id(rec)
		if seen[key] {
			skipped = append(skipped, model.Skipped{Kind: kind, ID: key, Index: i, Reason: "duplicate ID"})
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}
	return out, skipped, nil
}

func decodeRecord[T any](elem json.RawMessage, schema *jsonschema.Schema) (T, error) {
	var rec T
	value, err := decodeStrictJSON(elem)
	if err != nil {
		return rec, fmt.Errorf("decode record JSON: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return rec, fmt.Errorf("schema validation failed: %s", firstLine(err.Error()))
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return rec, fmt.Errorf("normalize record JSON: %w", err)
	}
	if err := json.Unmarshal(normalized, &rec); err != nil {
		return rec, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("record is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("record contains trailing content")
	}
	return value, nil
}

// rawID recovers the ID of a record that failed validation, if any.
func rawID(elem json.RawMessage) string {
	var peek struct {
		ID any `json:"ID"`
	}
	if json.Unmarshal(elem, &peek) != nil {
		return ""
	}
	if s, ok := peek.ID.(string); ok {
		return s
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
