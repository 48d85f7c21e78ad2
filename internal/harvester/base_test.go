package harvester

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mjanez/ckan-ogc/internal/config"
	"github.com/mjanez/ckan-ogc/internal/logger"
	"github.com/mjanez/ckan-ogc/internal/mapping"
	"github.com/mjanez/ckan-ogc/internal/models"
)

func testSource() *config.Source {
	return &config.Source{
		Name:         "test-source",
		URL:          "https://example.org/csw",
		Type:         config.TypeCSW,
		Organization: "test-org",
		Active:       true,
		StableNames:  true,
		Groups:       []string{"Geospatial"},
		DefaultKeywords: []config.Keyword{
			{Name: "inspire", URI: "http://inspire.ec.europa.eu/theme"},
		},
		Inspire: config.InspireInfo{NutsCode: "ES", Theme: "hb", VersionID: "01"},
		DCAT: config.DCATDefaults{
			Language: "http://publications.europa.eu/resource/authority/language/SPA",
			ThemeES:  "medio ambiente",
			Spatial:  `{"type":"Polygon","coordinates":[[[-9.5,35.9],[4.4,35.9],[4.4,43.8],[-9.5,43.8],[-9.5,35.9]]]}`,
			Publisher: config.Party{
				Name: "Default Publisher", Email: "publisher@example.org",
				Type: "http://purl.org/adms/publishertype/NationalAuthority",
			},
			Contact: config.Party{Name: "Default Contact", Email: "contact@example.org"},
		},
	}
}

func testDeps(t *testing.T) Deps {
	t.Helper()

	dir := t.TempDir()
	table := "- label: medio ambiente\n  id: http://datos.gob.es/kos/sector-publico/sector/medio-ambiente\n"
	if err := os.WriteFile(filepath.Join(dir, "theme_es.yaml"), []byte(table), 0o600); err != nil {
		t.Fatalf("failed to write codelist: %v", err)
	}

	return Deps{
		CKAN:       &config.CKANConfig{SiteURL: "http://localhost:5000", PageSize: 100, DatasetSchema: "geodcatap"},
		Log:        logger.NewNop(),
		Vocabulary: mapping.NewVocabulary(dir),
	}
}

func newTestBase(t *testing.T, src *config.Source, deps Deps) *base {
	t.Helper()

	b, err := newBase(src, deps)
	if err != nil {
		t.Fatalf("newBase() error: %v", err)
	}

	return b
}

func TestBuildDatasetIdentity(t *testing.T) {
	b := newTestBase(t, testSource(), testDeps(t))

	rec := NewRawRecord()
	rec.Set(FieldIdentifier, "abc-123")
	rec.Set(FieldTitle, "Red  de\ncarreteras")

	ds := b.buildDataset(rec)

	if ds.Title != "Red de carreteras" {
		t.Errorf("Title = %q, want whitespace normalized", ds.Title)
	}
	if ds.Name != "test-org-red-de-carreteras" {
		t.Errorf("Name = %q", ds.Name)
	}
	if ds.Identifier != "abc-123" {
		t.Errorf("Identifier = %q", ds.Identifier)
	}
	if ds.InspireID != "ES.HB.ABC-123.01" {
		t.Errorf("InspireID = %q, want composition from the record identifier", ds.InspireID)
	}
	if ds.OwnerOrg != "test-org" {
		t.Errorf("OwnerOrg = %q", ds.OwnerOrg)
	}
	if ds.Schema != models.SchemaGeoDCATAP {
		t.Errorf("Schema = %q", ds.Schema)
	}
	if len(ds.Groups) != 1 || ds.Groups[0].Name != "geospatial" {
		t.Errorf("Groups = %v, want lowercased group names", ds.Groups)
	}
}

func TestBuildDatasetInspireIDDeterministic(t *testing.T) {
	b := newTestBase(t, testSource(), testDeps(t))

	record := func() *RawRecord {
		rec := NewRawRecord()
		rec.Set(FieldIdentifier, "demo:roads v2")
		rec.Set(FieldTitle, "Red de carreteras")
		return rec
	}

	first := b.buildDataset(record())
	second := b.buildDataset(record())

	if first.InspireID != "ES.HB.DEMOROADSV2.01" {
		t.Errorf("InspireID = %q, want colons and spaces stripped", first.InspireID)
	}
	if first.InspireID != second.InspireID {
		t.Errorf("InspireID differs across runs: %q vs %q", first.InspireID, second.InspireID)
	}
}

func TestBuildDatasetKeywordsAndThemes(t *testing.T) {
	b := newTestBase(t, testSource(), testDeps(t))

	rec := NewRawRecord()
	rec.Set(FieldTitle, "dataset")
	rec.Set(FieldKeywords, []string{"Cartografía, Medio Ambiente", "inspire"})

	ds := b.buildDataset(rec)

	names := make(map[string]bool)
	for _, kw := range ds.Keywords {
		names[kw.Name] = true
	}

	for _, want := range []string{"cartografia", "medio-ambiente", "inspire", "hb"} {
		if !names[want] {
			t.Errorf("keywords missing %q: %v", want, ds.Keywords)
		}
	}
	if len(ds.Keywords) != 4 {
		t.Errorf("keywords not deduplicated: %v", ds.Keywords)
	}

	foundTheme := false
	for _, th := range ds.Theme {
		if th == "http://inspire.ec.europa.eu/theme/hb" {
			foundTheme = true
		}
	}
	if !foundTheme {
		t.Errorf("Theme = %v, want INSPIRE theme URI", ds.Theme)
	}

	if len(ds.ThemeES) != 1 || ds.ThemeES[0] != "http://datos.gob.es/kos/sector-publico/sector/medio-ambiente" {
		t.Errorf("ThemeES = %v, want mapped NTI theme", ds.ThemeES)
	}
}

func TestBuildDatasetTopicBecomesKeyword(t *testing.T) {
	b := newTestBase(t, testSource(), testDeps(t))

	rec := NewRawRecord()
	rec.Set(FieldTitle, "dataset")
	rec.Set(FieldTopic, "http://inspire.ec.europa.eu/metadata-codelist/TopicCategory/transportation")

	ds := b.buildDataset(rec)

	found := false
	for _, kw := range ds.Keywords {
		if kw.Name == "transportation" {
			found = true
		}
	}
	if !found {
		t.Errorf("Keywords = %v, want topic category code", ds.Keywords)
	}

	foundURI := false
	for _, uri := range ds.KeywordsURI {
		if uri == "http://inspire.ec.europa.eu/metadata-codelist/TopicCategory/transportation" {
			foundURI = true
		}
	}
	if !foundURI {
		t.Errorf("KeywordsURI = %v, want topic category URI", ds.KeywordsURI)
	}
}

func TestBuildDatasetPartyPrecedence(t *testing.T) {
	src := testSource()
	deps := testDeps(t)

	overridePath := filepath.Join(t.TempDir(), "orgs.yaml")
	overrideTable := `
mapping_values:
  - id: abc-123
    publisher_name: Override Publisher
    publisher_uri: http://datos.gob.es/recurso/sector-publico/org/Organismo/E00000001
`
	if err := os.WriteFile(overridePath, []byte(overrideTable), 0o600); err != nil {
		t.Fatalf("failed to write override table: %v", err)
	}
	src.CustomOrganizationActive = true
	src.CustomOrganizationMappingFile = overridePath

	b := newTestBase(t, src, deps)

	rec := NewRawRecord()
	rec.Set(FieldIdentifier, "abc-123")
	rec.Set(FieldTitle, "dataset")
	rec.Set(FieldContactEmail, "record@example.org")
	rec.Set(FieldPublisherName, "Record Publisher")

	ds := b.buildDataset(rec)

	// Override beats the record value.
	if ds.Publisher.Name != "Override Publisher" {
		t.Errorf("Publisher.Name = %q, want override value", ds.Publisher.Name)
	}
	if ds.Publisher.URI != "http://datos.gob.es/recurso/sector-publico/org/Organismo/E00000001" {
		t.Errorf("Publisher.URI = %q", ds.Publisher.URI)
	}
	// Record value beats the source default.
	if ds.Contact.Email != "record@example.org" {
		t.Errorf("Contact.Email = %q, want record value", ds.Contact.Email)
	}
	// Source default fills the rest.
	if ds.Contact.Name != "Default Contact" {
		t.Errorf("Contact.Name = %q, want source default", ds.Contact.Name)
	}
	// Empty maintainer falls back to the publisher.
	if ds.Maintainer.Name != "Override Publisher" {
		t.Errorf("Maintainer.Name = %q, want publisher fallback", ds.Maintainer.Name)
	}
}

func overrideSource(t *testing.T, table string) *config.Source {
	t.Helper()

	path := filepath.Join(t.TempDir(), "orgs.yaml")
	if err := os.WriteFile(path, []byte(table), 0o600); err != nil {
		t.Fatalf("failed to write override table: %v", err)
	}

	src := testSource()
	src.CustomOrganizationActive = true
	src.CustomOrganizationMappingFile = path
	return src
}

func TestBuildDatasetOverrideFields(t *testing.T) {
	src := overrideSource(t, `
mapping_values:
  - id: abc-123
    title: Override title
    description: Override description
    provenance: Override provenance
    source: http://example.org/source
    lineage_source:
      - http://example.org/lineage
    spatial_uri: http://datos.gob.es/recurso/sector-publico/territorio/Pais/España
    temporal_start: "2020-01-01"
    temporal_end: "2020-12-31"
`)
	b := newTestBase(t, src, testDeps(t))

	rec := NewRawRecord()
	rec.Set(FieldIdentifier, "abc-123")
	rec.Set(FieldTitle, "Record title")
	rec.Set(FieldProvenance, "Record provenance")

	ds := b.buildDataset(rec)

	if ds.Title != "Override title" {
		t.Errorf("Title = %q, want override value", ds.Title)
	}
	if ds.Notes != "Override description" {
		t.Errorf("Notes = %q, want override value", ds.Notes)
	}
	if ds.Provenance != "Override provenance" {
		t.Errorf("Provenance = %q, want override value", ds.Provenance)
	}
	if ds.Source != "http://example.org/source" {
		t.Errorf("Source = %q", ds.Source)
	}
	if len(ds.LineageSource) != 1 || ds.LineageSource[0] != "http://example.org/lineage" {
		t.Errorf("LineageSource = %v", ds.LineageSource)
	}
	if ds.SpatialURI != "http://datos.gob.es/recurso/sector-publico/territorio/Pais/España" {
		t.Errorf("SpatialURI = %q", ds.SpatialURI)
	}
	if ds.TemporalStart != "2020-01-01" || ds.TemporalEnd != "2020-12-31" {
		t.Errorf("Temporal = %q..%q", ds.TemporalStart, ds.TemporalEnd)
	}
}

func TestFindOverrideFallbackChain(t *testing.T) {
	src := overrideSource(t, `
mapping_values:
  - id: exact-match
    title: Exact
  - id: roads
    title: Fuzzy
  - group_id: hidro
    title: Group
`)
	b := newTestBase(t, src, testDeps(t))

	tests := []struct {
		name      string
		recordKey string
		want      string
	}{
		{"exact id", "exact-match", "Exact"},
		{"id substring of record key", "demo:roads-2023", "Fuzzy"},
		{"group id fallback", "hidrografia-rios", "Group"},
		{"no match", "unrelated", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ov := b.findOverride(tt.recordKey)
			if got := ov.String("title"); got != tt.want {
				t.Errorf("findOverride(%q) title = %q, want %q", tt.recordKey, got, tt.want)
			}
		})
	}
}

func TestBuildDatasetSynthesizesDates(t *testing.T) {
	b := newTestBase(t, testSource(), testDeps(t))

	rec := NewRawRecord()
	rec.Set(FieldIdentifier, "abc-123")
	rec.Set(FieldTitle, "dataset")

	ds := b.buildDataset(rec)

	today := time.Now().Format("2006-01-02")
	if ds.Created != today || ds.Issued != today || ds.Modified != today {
		t.Errorf("dates = %q/%q/%q, want %q for a record without dates",
			ds.Created, ds.Issued, ds.Modified, today)
	}
}

func TestBuildDatasetLocalizedTitleFallback(t *testing.T) {
	deps := testDeps(t)
	deps.Strings = mapping.LocalizedStrings{
		"es": {"title": "Conjunto de datos espaciales", "description": "Descripción por defecto"},
	}
	b := newTestBase(t, testSource(), deps)

	rec := NewRawRecord()
	rec.Set(FieldIdentifier, "abc-123")

	ds := b.buildDataset(rec)

	if ds.Title != "Conjunto de datos espaciales ES.HB.ABC-123.01" {
		t.Errorf("Title = %q, want localized default with the INSPIRE id", ds.Title)
	}
	if ds.Notes != "Descripción por defecto" {
		t.Errorf("Notes = %q, want localized default", ds.Notes)
	}
}

func TestBuildDatasetConformance(t *testing.T) {
	b := newTestBase(t, testSource(), testDeps(t))

	rec := NewRawRecord()
	rec.Set(FieldIdentifier, "abc-123")
	rec.Set(FieldTitle, "dataset")
	rec.Set(FieldReferenceSystem, "EPSG:4258")
	rec.Set(FieldConformance, []string{"http://example.org/regulation"})

	ds := b.buildDataset(rec)

	want := append(append([]string(nil), models.DefaultConformance...),
		"http://example.org/regulation",
		"http://www.opengis.net/def/crs/EPSG/0/4258")
	if len(ds.Conformance) != len(want) {
		t.Fatalf("Conformance = %v, want %v", ds.Conformance, want)
	}
	for i, uri := range want {
		if ds.Conformance[i] != uri {
			t.Errorf("Conformance[%d] = %q, want %q", i, ds.Conformance[i], uri)
		}
	}
}

func TestBuildDatasetSchemaFallback(t *testing.T) {
	deps := testDeps(t)
	deps.CKAN.DatasetSchema = "unknown-schema"
	b := newTestBase(t, testSource(), deps)

	rec := NewRawRecord()
	rec.Set(FieldIdentifier, "abc-123")
	rec.Set(FieldTitle, "dataset")

	if ds := b.buildDataset(rec); ds.Schema != models.SchemaBase {
		t.Errorf("Schema = %q, want base fallback for unrecognized schema name", ds.Schema)
	}
}

func TestBuildDatasetSpatial(t *testing.T) {
	b := newTestBase(t, testSource(), testDeps(t))

	rec := NewRawRecord()
	rec.Set(FieldTitle, "dataset")
	rec.Set(FieldReferenceSystem, "EPSG:4258")
	rec.Set(FieldBBoxWest, "-9.5")
	rec.Set(FieldBBoxEast, "4.4")
	rec.Set(FieldBBoxSouth, "35.9")
	rec.Set(FieldBBoxNorth, "43.8")

	ds := b.buildDataset(rec)

	if ds.ReferenceSystem != "http://www.opengis.net/def/crs/EPSG/0/4258" {
		t.Errorf("ReferenceSystem = %q", ds.ReferenceSystem)
	}
	if !strings.Contains(ds.Spatial, `"type":"Polygon"`) {
		t.Errorf("Spatial = %q, want GeoJSON polygon", ds.Spatial)
	}
	if !strings.Contains(ds.Spatial, "-9.5") {
		t.Errorf("Spatial = %q, missing west bound", ds.Spatial)
	}
}

func TestBuildDatasetSpatialFallback(t *testing.T) {
	src := testSource()
	b := newTestBase(t, src, testDeps(t))

	rec := NewRawRecord()
	rec.Set(FieldTitle, "dataset")
	rec.Set(FieldReferenceSystem, "EPSG:2154")
	rec.Set(FieldBBoxWest, "100000")
	rec.Set(FieldBBoxEast, "200000")
	rec.Set(FieldBBoxSouth, "6000000")
	rec.Set(FieldBBoxNorth, "6100000")

	ds := b.buildDataset(rec)

	if ds.Spatial != src.DCAT.Spatial {
		t.Errorf("Spatial = %q, want source default on unsupported CRS", ds.Spatial)
	}
}

func TestBuildDatasetDates(t *testing.T) {
	b := newTestBase(t, testSource(), testDeps(t))

	rec := NewRawRecord()
	rec.Set(FieldTitle, "dataset")
	rec.Set(FieldCreated, "01-05-2023")
	rec.Set(FieldIssued, "2023-06-15")
	rec.Set(FieldModified, "not a date")

	ds := b.buildDataset(rec)

	if ds.Created != "2023-05-01" {
		t.Errorf("Created = %q", ds.Created)
	}
	if ds.Issued != "2023-06-15" {
		t.Errorf("Issued = %q", ds.Issued)
	}
	if ds.Modified != "" {
		t.Errorf("Modified = %q, want empty for unparseable date", ds.Modified)
	}
}

func TestBuildDatasetMultilang(t *testing.T) {
	deps := testDeps(t)
	deps.CKAN.DatasetMultilang = true
	b := newTestBase(t, testSource(), deps)

	rec := NewRawRecord()
	rec.Set(FieldTitle, "Red de carreteras")
	rec.Set(FieldTitle+"-en", "Road network")
	rec.Set(FieldTitle+"-INVALID", "ignored")
	rec.Set(FieldNotes, "Descripción")

	ds := b.buildDataset(rec)

	if ds.TitleTranslated["en"] != "Road network" {
		t.Errorf("TitleTranslated[en] = %q", ds.TitleTranslated["en"])
	}
	if ds.TitleTranslated["es"] != "Red de carreteras" {
		t.Errorf("TitleTranslated[es] = %q, want default language injection", ds.TitleTranslated["es"])
	}
	if len(ds.TitleTranslated) != 2 {
		t.Errorf("TitleTranslated = %v, invalid tags must be dropped", ds.TitleTranslated)
	}
	if ds.NotesTranslated["es"] != "Descripción" {
		t.Errorf("NotesTranslated[es] = %q", ds.NotesTranslated["es"])
	}
}

func TestBuildDistributionSniffing(t *testing.T) {
	b := newTestBase(t, testSource(), testDeps(t))

	rec := NewRawRecord()
	rec.Set(FieldTitle, "Red de carreteras")
	rec.AddDistribution(&RawDistribution{
		URL:      "https://example.org/geoserver/wms?service=WMS",
		Protocol: "OGC:WMS",
	})
	rec.AddDistribution(&RawDistribution{
		URL: "https://example.org/unknown/endpoint",
	})

	ds := b.buildDataset(rec)

	if len(ds.Distributions) != 2 {
		t.Fatalf("Distributions = %d, want 2", len(ds.Distributions))
	}

	wms := ds.Distributions[0]
	if wms.Format != "WMS" {
		t.Errorf("Format = %q, want WMS from protocol hint", wms.Format)
	}
	if wms.Name != "Web Map Service" {
		t.Errorf("Name = %q, want format default name", wms.Name)
	}

	unknown := ds.Distributions[1]
	if unknown.Format != "Unknown" {
		t.Errorf("Format = %q, want Unknown", unknown.Format)
	}
	if unknown.Name != "Unknown distribution of Red de carreteras" {
		t.Errorf("Name = %q", unknown.Name)
	}
}

func TestMetadataDistributions(t *testing.T) {
	deps := testDeps(t)
	deps.CKAN.MetadataDistributions = true
	deps.CKAN.PycswSiteURL = "http://localhost:8000"
	b := newTestBase(t, testSource(), deps)

	rec := NewRawRecord()
	rec.Set(FieldIdentifier, "abc-123")
	rec.Set(FieldTitle, "dataset")

	ds := b.buildDataset(rec)

	if len(ds.Distributions) != 2 {
		t.Fatalf("Distributions = %d, want RDF and ISO entries", len(ds.Distributions))
	}

	rdf := ds.Distributions[0]
	if rdf.URL != "http://localhost:5000/dataset/"+ds.Name+".rdf" {
		t.Errorf("RDF url = %q", rdf.URL)
	}

	iso := ds.Distributions[1]
	if !strings.Contains(iso.URL, "GetRecordById") || !strings.Contains(iso.URL, "abc-123") {
		t.Errorf("ISO url = %q", iso.URL)
	}
}

func TestWantedConstraints(t *testing.T) {
	src := testSource()
	src.Constraints = config.Constraints{
		Keywords: []string{"carreteras"},
		Mails:    []string{"contact@example.org"},
	}
	b := newTestBase(t, src, testDeps(t))

	match := NewRawRecord()
	match.Set(FieldKeywords, []string{"Carreteras"})
	match.Set(FieldContactEmail, "CONTACT@example.org")
	if !b.wanted(match) {
		t.Error("wanted() = false for matching record")
	}

	wrongKeyword := NewRawRecord()
	wrongKeyword.Set(FieldKeywords, []string{"hidrografia"})
	wrongKeyword.Set(FieldContactEmail, "contact@example.org")
	if b.wanted(wrongKeyword) {
		t.Error("wanted() = true despite keyword constraint")
	}

	wrongMail := NewRawRecord()
	wrongMail.Set(FieldKeywords, []string{"carreteras"})
	wrongMail.Set(FieldContactEmail, "other@example.org")
	if b.wanted(wrongMail) {
		t.Error("wanted() = true despite mail constraint")
	}
}
