package mapping

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Override is one per-dataset metadata override record from an organization
// mapping table. Beyond the matching keys it carries arbitrary override
// fields (title, description, keywords, provenance, responsible parties).
type Override map[string]any

// String returns the override field as a string, or "" when absent.
func (o Override) String(key string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return ""
}

// Has reports whether the override carries the given field at all.
func (o Override) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// StringList returns the override field as a string slice, accepting both a
// YAML list and a single scalar.
func (o Override) StringList(key string) []string {
	switch v := o[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Keywords returns the override keyword entries ({name, uri} maps).
func (o Override) Keywords() []KeywordRef {
	items, ok := o["keywords"].([]any)
	if !ok {
		return nil
	}

	var out []KeywordRef
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		kw := KeywordRef{}
		if s, ok := entry["name"].(string); ok {
			kw.Name = s
		}
		if s, ok := entry["uri"].(string); ok {
			kw.URI = s
		}
		if kw.Name != "" || kw.URI != "" {
			out = append(out, kw)
		}
	}

	return out
}

// KeywordRef is a keyword name with its vocabulary URI.
type KeywordRef struct {
	Name string
	URI  string
}

// OrganizationOverrides is a per-organization table of dataset metadata
// overrides, loaded once at harvester construction. A missing or malformed
// file is a configuration error.
type OrganizationOverrides struct {
	values []Override
}

type overrideFile struct {
	MappingValues []Override `yaml:"mapping_values"`
}

// LoadOrganizationOverrides reads an organization mapping table. The .yaml
// extension is appended when the path carries none.
func LoadOrganizationOverrides(path string) (*OrganizationOverrides, error) {
	if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
		path += ".yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read organization mapping file: %w", err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse organization mapping file %q: %w", path, err)
	}

	return &OrganizationOverrides{values: file.MappingValues}, nil
}

// Find returns the first record whose property equals value, or nil.
func (m *OrganizationOverrides) Find(value, property string) Override {
	for _, o := range m.values {
		if o.String(property) == value {
			return o
		}
	}
	return nil
}

// FindSimilar returns the first record, in table order, whose property value
// is a non-empty substring of the search value. No ranking is applied.
func (m *OrganizationOverrides) FindSimilar(value, property string) Override {
	for _, o := range m.values {
		p := o.String(property)
		if p != "" && strings.Contains(value, p) {
			return o
		}
	}
	return nil
}
