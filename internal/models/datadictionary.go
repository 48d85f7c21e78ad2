package models

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// DataDictionaryField describes one column of a tabular distribution.
type DataDictionaryField struct {
	ID           string
	Type         string
	Label        string
	Notes        string
	TypeOverride string
}

// DataDictionary is the column schema of a tabular distribution, posted to
// the catalog datastore alongside the resource.
type DataDictionary struct {
	ResourceID string
	Fields     []DataDictionaryField
}

// AddField appends a field to the dictionary.
func (d *DataDictionary) AddField(f DataDictionaryField) {
	d.Fields = append(d.Fields, f)
}

// WirePayload serializes the dictionary to the URL-encoded JSON body expected
// by the datastore dictionary endpoint.
func (d *DataDictionary) WirePayload() ([]byte, error) {
	fields := make([]map[string]any, 0, len(d.Fields))
	for _, f := range d.Fields {
		typ := f.Type
		if typ == "" {
			typ = "text"
		}
		fields = append(fields, map[string]any{
			"id":   f.ID,
			"type": typ,
			"info": map[string]any{
				"label":         f.Label,
				"notes":         f.Notes,
				"type_override": f.TypeOverride,
			},
		})
	}

	body := map[string]any{
		"resource_id": d.ResourceID,
		"fields":      fields,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data dictionary: %w", err)
	}

	return []byte(url.QueryEscape(string(raw))), nil
}
