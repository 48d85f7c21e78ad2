package models

import "strings"

// Schema selects the wire payload shape the target catalog accepts. The
// GeoDCAT-AP schema carries the full INSPIRE field set; the base schema
// keeps the core catalog fields only.
type Schema string

const (
	SchemaGeoDCATAP Schema = "geodcatap"
	SchemaBase      Schema = "base"
)

// SchemaFor resolves a configured schema name, falling back to the base
// schema when the name is not recognized.
func SchemaFor(name string) Schema {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(SchemaGeoDCATAP):
		return SchemaGeoDCATAP
	default:
		return SchemaBase
	}
}
