package models

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// nullable maps the empty string to JSON null so absent fields reach the
// catalog as null rather than "".
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// WirePayload serializes the dataset to the URL-encoded JSON body posted to
// the catalog create endpoint. The multilang flag selects the translated
// payload shape (title_translated/notes_translated) over the single-language
// one; both shapes carry the distribution sub-payloads and an extras entry
// with the issued timestamp.
func (d *Dataset) WirePayload(multilang bool) ([]byte, error) {
	body := d.wireDict(multilang)

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dataset %q: %w", d.Name, err)
	}

	return []byte(url.QueryEscape(string(raw))), nil
}

func (d *Dataset) wireDict(multilang bool) map[string]any {
	resources := make([]map[string]any, 0, len(d.Distributions))
	for _, dist := range d.Distributions {
		resources = append(resources, dist.wireDict())
	}

	groups := d.Groups
	if groups == nil {
		groups = []Group{}
	}
	keywords := d.Keywords
	if keywords == nil {
		keywords = []Tag{}
	}

	body := map[string]any{
		"id":               d.CKANID,
		"name":             d.Name,
		"owner_org":        d.OwnerOrg,
		"private":          d.Private,
		"groups":           groups,
		"license_id":       d.LicenseID,
		"tags":             keywords,
		"identifier":       d.Identifier,
		"maintainer":       nullable(d.Maintainer.Name),
		"maintainer_email": nullable(d.Maintainer.Email),
		"author":           nullable(d.Author.Name),
		"author_email":     nullable(d.Author.Email),
		"extras": []map[string]any{
			{"key": "issued", "value": nullable(d.Issued)},
		},
		"resources": resources,
	}

	if multilang {
		body["title_translated"] = d.TitleTranslated
		body["notes_translated"] = d.NotesTranslated
	} else {
		body["title"] = nullable(d.Title)
		body["notes"] = nullable(d.Notes)
	}

	if d.Schema == SchemaBase {
		return body
	}

	// GeoDCAT-AP extension fields.
	for key, value := range map[string]any{
		"graphic_overview":             nullable(d.GraphicOverview),
		"topic":                        nullable(d.Topic),
		"tag_uri":                      d.KeywordsURI,
		"keywords_thesaurus":           d.KeywordsThesaurus,
		"dcat_type":                    nullable(d.DCATType),
		"alternate_identifier":         nullable(d.AlternateIdentifier),
		"representation_type":          nullable(d.RepresentationType),
		"access_rights":                nullable(d.AccessRights),
		"inspire_id":                   nullable(d.InspireID),
		"version_notes":                nullable(d.VersionNotes),
		"spatial_resolution_in_meters": nullable(d.SpatialResolutionInMeters),
		"language":                     nullable(d.Language),
		"theme_es":                     d.ThemeES,
		"theme_eu":                     d.ThemeEU,
		"theme":                        d.Theme,
		"provenance":                   nullable(d.Provenance),
		"purpose":                      nullable(d.Purpose),
		"lineage_source":               d.LineageSource,
		"lineage_process_steps":        d.LineageProcessSteps,
		"source":                       nullable(d.Source),
		"frequency":                    nullable(d.Frequency),
		"reference":                    d.Reference,
		"conforms_to":                  d.Conformance,
		"metadata_profile":             d.MetadataProfile,
		"encoding":                     nullable(d.Encoding),
		"reference_system":             nullable(d.ReferenceSystem),
		"spatial":                      nullable(d.Spatial),
		"spatial_uri":                  nullable(d.SpatialURI),
		"publisher_uri":                nullable(d.Publisher.URI),
		"publisher_name":               nullable(d.Publisher.Name),
		"publisher_url":                nullable(d.Publisher.URL),
		"publisher_email":              nullable(d.Publisher.Email),
		"publisher_identifier":         nullable(d.Publisher.Identifier),
		"publisher_type":               nullable(d.Publisher.Type),
		"contact_uri":                  nullable(d.Contact.URI),
		"contact_url":                  nullable(d.Contact.URL),
		"contact_name":                 nullable(d.Contact.Name),
		"contact_email":                nullable(d.Contact.Email),
		"maintainer_uri":               nullable(d.Maintainer.URI),
		"maintainer_url":               nullable(d.Maintainer.URL),
		"author_uri":                   nullable(d.Author.URI),
		"author_url":                   nullable(d.Author.URL),
		"created":                      nullable(d.Created),
		"modified":                     nullable(d.Modified),
		"temporal_start":               nullable(d.TemporalStart),
		"temporal_end":                 nullable(d.TemporalEnd),
		"valid":                        nullable(d.Valid),
	} {
		body[key] = value
	}

	return body
}

func (r *Distribution) wireDict() map[string]any {
	return map[string]any{
		"url":              r.URL,
		"name":             r.Name,
		"id":               nullable(r.ID),
		"format":           nullable(r.Format),
		"mimetype":         nullable(r.MediaType),
		"license":          nullable(r.License),
		"license_id":       nullable(r.LicenseID),
		"rights":           nullable(r.Rights),
		"description":      nullable(r.Description),
		"language":         nullable(r.Language),
		"created":          nullable(r.Created),
		"issued":           nullable(r.Issued),
		"modified":         nullable(r.Modified),
		"conforms_to":      r.Conformance,
		"encoding":         nullable(r.Encoding),
		"reference_system": nullable(r.ReferenceSystem),
	}
}

// DecodeWirePayload reverses WirePayload back into the loosely-typed field
// map, used by tests and payload dumps.
func DecodeWirePayload(payload []byte) (map[string]any, error) {
	raw, err := url.QueryUnescape(string(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to unescape payload: %w", err)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	return body, nil
}
