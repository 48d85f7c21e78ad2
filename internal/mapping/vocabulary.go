// Package mapping provides the controlled-vocabulary codelist tables, the
// per-organization metadata override tables and the distribution format
// catalog used during normalization.
package mapping

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// MappingTableError reports a missing or malformed codelist table. A value
// missing from a well-formed table is not an error; the input value is
// returned unchanged instead.
type MappingTableError struct {
	Codelist string
	Err      error
}

func (e *MappingTableError) Error() string {
	return fmt.Sprintf("mapping table %q: %v", e.Codelist, e.Err)
}

func (e *MappingTableError) Unwrap() error {
	return e.Err
}

// Vocabulary resolves source codes against YAML codelist tables stored in a
// mappings directory, one file per codelist. Loaded tables are cached and
// safe for concurrent use.
type Vocabulary struct {
	dir string

	mu    sync.RWMutex
	cache map[string][]map[string]string
}

// NewVocabulary creates a vocabulary backed by the given mappings directory.
func NewVocabulary(dir string) *Vocabulary {
	return &Vocabulary{
		dir:   dir,
		cache: make(map[string][]map[string]string),
	}
}

// Map resolves an id through the named codelist, returning the record's
// label. Shorthand for MapField(value, codelist, "label", "id").
func (v *Vocabulary) Map(value, codelist string) (string, error) {
	return v.MapField(value, codelist, "label", "id")
}

// MapField scans the codelist for a record whose inputField equals value and
// returns its outputField. An absent value, or a record without the output
// field, yields the input value unchanged. A missing or malformed table also
// yields the input value, alongside the table error.
func (v *Vocabulary) MapField(value, codelist, outputField, inputField string) (string, error) {
	table, err := v.table(codelist)
	if err != nil {
		return value, err
	}

	for _, record := range table {
		if record[inputField] != value {
			continue
		}
		if out, ok := record[outputField]; ok {
			return out, nil
		}
		return value, nil
	}

	return value, nil
}

func (v *Vocabulary) table(codelist string) ([]map[string]string, error) {
	v.mu.RLock()
	table, ok := v.cache[codelist]
	v.mu.RUnlock()
	if ok {
		return table, nil
	}

	path := filepath.Join(v.dir, codelist+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MappingTableError{Codelist: codelist, Err: err}
	}

	var records []map[string]string
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, &MappingTableError{Codelist: codelist, Err: err}
	}

	v.mu.Lock()
	v.cache[codelist] = records
	v.mu.Unlock()

	return records, nil
}
