package mapping

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LocalizedStrings holds per-language default strings, keyed by two-letter
// language tag and then by string key. Used for dataset title, description
// and provenance defaults and for the synthesized metadata distributions.
type LocalizedStrings map[string]map[string]string

// LoadLocalizedStrings reads a localized-strings table from a YAML file.
func LoadLocalizedStrings(path string) (LocalizedStrings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read localized strings: %w", err)
	}

	var table LocalizedStrings
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse localized strings %q: %w", path, err)
	}

	return table, nil
}

// Get returns the string for a language and key, falling back to English and
// then to the empty string. A nil table always yields the empty string.
func (s LocalizedStrings) Get(lang, key string) string {
	if s == nil {
		return ""
	}

	if table, ok := s[lang]; ok {
		if value, ok := table[key]; ok {
			return value
		}
	}
	if table, ok := s["en"]; ok {
		return table[key]
	}

	return ""
}
