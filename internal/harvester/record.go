package harvester

import (
	"strings"

	"github.com/mjanez/ckan-ogc/internal/models"
)

// Well-known raw record field names shared by every source reader. Readers
// populate the subset their format carries; the normalizer tolerates any
// field being absent.
const (
	FieldIdentifier         = "identifier"
	FieldTitle              = "title"
	FieldNotes              = "notes"
	FieldKeywords           = "keywords"
	FieldKeywordURIs        = "keyword_uris"
	FieldTheme              = "theme"
	FieldTopic              = "topic"
	FieldDCATType           = "dcat_type"
	FieldRepresentationType = "representation_type"
	FieldCreated            = "created"
	FieldIssued             = "issued"
	FieldModified           = "modified"
	FieldValid              = "valid"
	FieldTemporalStart      = "temporal_start"
	FieldTemporalEnd        = "temporal_end"
	FieldFrequency          = "frequency"
	FieldProvenance         = "provenance"
	FieldPurpose            = "purpose"
	FieldSource             = "source"
	FieldReference          = "reference"
	FieldKeywordThesauri    = "keyword_thesauri"
	FieldLineageSource      = "lineage_source"
	FieldConformance        = "conformance"
	FieldReferenceSystem    = "reference_system"
	FieldLanguage           = "language"
	FieldLicense            = "license"
	FieldLicenseID          = "license_id"
	FieldAccessRights       = "access_rights"
	FieldGraphicOverview    = "graphic_overview"
	FieldVersionNotes       = "version_notes"
	FieldSpatialResolution  = "spatial_resolution_in_meters"
	FieldWorkspace          = "workspace"
	FieldBBoxWest           = "bbox_west"
	FieldBBoxEast           = "bbox_east"
	FieldBBoxSouth          = "bbox_south"
	FieldBBoxNorth          = "bbox_north"

	FieldContactName  = "contact_name"
	FieldContactEmail = "contact_email"
	FieldContactURL   = "contact_url"
	FieldContactURI   = "contact_uri"

	FieldPublisherName       = "publisher_name"
	FieldPublisherEmail      = "publisher_email"
	FieldPublisherURL        = "publisher_url"
	FieldPublisherURI        = "publisher_uri"
	FieldPublisherIdentifier = "publisher_identifier"
	FieldPublisherType       = "publisher_type"

	FieldMaintainerName  = "maintainer_name"
	FieldMaintainerEmail = "maintainer_email"
	FieldMaintainerURL   = "maintainer_url"
	FieldMaintainerURI   = "maintainer_uri"

	FieldAuthorName  = "author_name"
	FieldAuthorEmail = "author_email"
	FieldAuthorURL   = "author_url"
	FieldAuthorURI   = "author_uri"
)

// RawDistribution is one unnormalized online resource of a source record.
type RawDistribution struct {
	URL         string
	Name        string
	Format      string
	Description string
	Protocol    string
	Language    string
	License     string
	LicenseID   string
	Rights      string

	// DictionaryFields carries column descriptions for tabular resources.
	DictionaryFields []models.DataDictionaryField
}

// RawRecord is the attribute bag a source reader extracts from one remote
// record before normalization. Values are either string or []string.
type RawRecord struct {
	Fields        map[string]any
	Distributions []*RawDistribution
}

// NewRawRecord creates an empty record.
func NewRawRecord() *RawRecord {
	return &RawRecord{Fields: make(map[string]any)}
}

// Set stores a field value, dropping empty strings and empty lists.
func (r *RawRecord) Set(field string, value any) {
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return
		}
		r.Fields[field] = strings.TrimSpace(v)
	case []string:
		if len(v) == 0 {
			return
		}
		r.Fields[field] = v
	default:
		r.Fields[field] = value
	}
}

// Get returns the field as a string, or def when absent or not a string.
func (r *RawRecord) Get(field, def string) string {
	v, ok := r.Fields[field]
	if !ok {
		return def
	}

	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}

	return s
}

// List returns the field as a string slice. A scalar string becomes a
// one-element slice; absent fields return nil.
func (r *RawRecord) List(field string) []string {
	v, ok := r.Fields[field]
	if !ok {
		return nil
	}

	switch s := v.(type) {
	case []string:
		return s
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	}

	return nil
}

// AddDistribution appends an online resource to the record.
func (r *RawRecord) AddDistribution(d *RawDistribution) {
	r.Distributions = append(r.Distributions, d)
}
