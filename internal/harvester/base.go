package harvester

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mjanez/ckan-ogc/internal/config"
	"github.com/mjanez/ckan-ogc/internal/logger"
	"github.com/mjanez/ckan-ogc/internal/mapping"
	"github.com/mjanez/ckan-ogc/internal/models"
	"github.com/mjanez/ckan-ogc/pkg/geo"
	"github.com/mjanez/ckan-ogc/pkg/utils"
)

// authorityLanguages maps EU publications-office language authority codes to
// the two-letter tags used in translated field keys.
var authorityLanguages = map[string]string{
	"SPA": "es", "ENG": "en", "FRA": "fr", "POR": "pt",
	"ITA": "it", "DEU": "de", "CAT": "ca", "GLG": "gl", "EUS": "eu",
}

// base carries the shared normalization machinery every source harvester
// embeds. One instance per source.
type base struct {
	src       *config.Source
	ckan      *config.CKANConfig
	log       *logger.Logger
	vocab     *mapping.Vocabulary
	overrides *mapping.OrganizationOverrides
	directory *mapping.Directory
	strings   mapping.LocalizedStrings
}

func newBase(src *config.Source, deps Deps) (*base, error) {
	b := &base{
		src:       src,
		ckan:      deps.CKAN,
		log:       deps.Log.With("source", src.Name),
		vocab:     deps.Vocabulary,
		directory: deps.Directory,
		strings:   deps.Strings,
	}

	if src.CustomOrganizationActive {
		ov, err := mapping.LoadOrganizationOverrides(src.CustomOrganizationMappingFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load organization overrides: %w", err)
		}
		b.overrides = ov
	}

	return b, nil
}

// wanted applies the source constraints to a raw record. Records failing a
// keyword or mail constraint are skipped, not errors.
func (b *base) wanted(rec *RawRecord) bool {
	if len(b.src.Constraints.Keywords) > 0 {
		match := false
		for _, raw := range b.recordKeywords(rec) {
			for _, want := range b.src.Constraints.Keywords {
				if CleanKeyword(want) == raw {
					match = true
				}
			}
		}
		if !match {
			return false
		}
	}

	if len(b.src.Constraints.Mails) > 0 {
		mail := normalizeMail(rec.Get(FieldContactEmail, ""))
		match := false
		for _, want := range b.src.Constraints.Mails {
			if normalizeMail(want) == mail {
				match = true
			}
		}
		if !match {
			return false
		}
	}

	return true
}

func normalizeMail(mail string) string {
	return strings.ReplaceAll(strings.ToLower(mail), " ", "")
}

// recordKeywords returns the record's own keywords, split and cleaned.
func (b *base) recordKeywords(rec *RawRecord) []string {
	var out []string
	for _, raw := range rec.List(FieldKeywords) {
		for _, part := range utils.SplitAndTrim(raw, ",") {
			if kw := CleanKeyword(part); kw != "" {
				out = append(out, kw)
			}
		}
	}

	return dedupeStrings(out)
}

// buildDataset normalizes one raw record into the canonical catalog record.
// Field-level failures are logged and leave the field empty; they never fail
// the record.
func (b *base) buildDataset(rec *RawRecord) *models.Dataset {
	recordKey := rec.Get(FieldIdentifier, "")
	ov := b.findOverride(recordKey)
	lang := b.defaultLanguageCode()

	// The INSPIRE identifier is composed from the record key so identical
	// inputs always yield the same identifier.
	inspireID := ""
	if recordKey != "" {
		inspireID = InspireID(b.src.Inspire.NutsCode, b.src.Inspire.Theme, recordKey, b.src.Inspire.VersionID)
	}

	title := utils.NormalizeWhitespace(ov.String("title"))
	if title == "" {
		title = utils.NormalizeWhitespace(rec.Get(FieldTitle, ""))
	}
	if title == "" {
		title = strings.TrimSpace(b.strings.Get(lang, "title") + " " + inspireID)
	}
	if title == "" {
		title = "Unnamed dataset"
	}

	ckanID := uuid.NewString()
	name := ckanID
	if b.src.StableNames {
		name = CleanName(title, b.src.Organization)
	}
	if inspireID == "" {
		inspireID = InspireID(b.src.Inspire.NutsCode, b.src.Inspire.Theme, name, b.src.Inspire.VersionID)
	}

	ds := models.NewDataset(ckanID, name, b.src.Organization, b.defaultLicenseID())
	ds.Schema = models.SchemaFor(b.ckan.DatasetSchema)
	ds.Title = title
	ds.Private = b.src.PrivateDatasets
	ds.License = utils.FirstNonEmpty(rec.Get(FieldLicense, ""), b.ckan.DefaultLicense)
	ds.LicenseID = utils.FirstNonEmpty(rec.Get(FieldLicenseID, ""), b.defaultLicenseID())

	if recordKey != "" {
		ds.Identifier = recordKey
		ds.AlternateIdentifier = recordKey
	}
	ds.InspireID = inspireID

	b.applyDescriptive(ds, rec, ov)
	b.applyClassification(ds, rec, ov)
	b.applyTemporal(ds, rec, ov)
	b.applyProvenance(ds, rec, ov)
	b.applyParties(ds, rec, ov)
	b.applySpatial(ds, rec, ov)
	b.applyGroups(ds)

	for _, rd := range rec.Distributions {
		ds.AddDistribution(b.buildDistribution(ds, rd))
	}

	if b.ckan.MetadataDistributions {
		b.addMetadataDistributions(ds)
	}

	return ds
}

func (b *base) defaultLicenseID() string {
	return utils.FirstNonEmpty(b.ckan.DefaultLicenseID, "notspecified")
}

// findOverride resolves the per-dataset override record: exact match on the
// record identifier, then the first table entry whose id is a substring of
// it, then the group id fallback. A record without an override is normal.
func (b *base) findOverride(recordKey string) mapping.Override {
	if b.overrides == nil || recordKey == "" {
		return nil
	}

	if ov := b.overrides.Find(recordKey, "id"); ov != nil {
		return ov
	}
	if ov := b.overrides.FindSimilar(recordKey, "id"); ov != nil {
		return ov
	}
	if ov := b.overrides.FindSimilar(recordKey, "group_id"); ov != nil {
		return ov
	}

	b.log.Debug("no organization override for record", "identifier", recordKey)
	return nil
}

func (b *base) applyDescriptive(ds *models.Dataset, rec *RawRecord, ov mapping.Override) {
	notes := utils.NormalizeWhitespace(ov.String("description"))
	if notes == "" {
		notes = utils.NormalizeWhitespace(rec.Get(FieldNotes, ""))
	}
	if notes == "" {
		notes = b.strings.Get(b.defaultLanguageCode(), "description")
	}
	ds.Notes = notes

	ds.GraphicOverview = rec.Get(FieldGraphicOverview, "")
	ds.VersionNotes = rec.Get(FieldVersionNotes, "")
	ds.SpatialResolutionInMeters = rec.Get(FieldSpatialResolution, "")
	ds.Purpose = utils.NormalizeWhitespace(rec.Get(FieldPurpose, ""))
	ds.Language = NormalizeCodelistURI(utils.FirstNonEmpty(rec.Get(FieldLanguage, ""), b.src.DCAT.Language))
	ds.OGCWorkspace = rec.Get(FieldWorkspace, "")

	if rights := rec.Get(FieldAccessRights, ""); rights != "" {
		ds.AccessRights = NormalizeCodelistURI(rights)
	}

	if b.ckan.DatasetMultilang {
		lang := b.defaultLanguageCode()
		ds.TitleTranslated = b.foldTranslated(rec, FieldTitle, ds.Title, lang)
		ds.NotesTranslated = b.foldTranslated(rec, FieldNotes, ds.Notes, lang)
	}
}

// foldTranslated collects field-<lang> variants into a translation map and
// guarantees the default language has an entry.
func (b *base) foldTranslated(rec *RawRecord, field, baseValue, defaultLang string) map[string]string {
	out := make(map[string]string)
	prefix := field + "-"

	for key, value := range rec.Fields {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		s, ok := value.(string)
		if !ok || s == "" {
			continue
		}
		lang := strings.TrimPrefix(key, prefix)
		if !ValidLangTag(lang) {
			b.log.Debug("skipping translated field with invalid language tag", "field", key)
			continue
		}
		out[lang] = utils.NormalizeWhitespace(s)
	}

	if baseValue != "" {
		if _, ok := out[defaultLang]; !ok {
			out[defaultLang] = baseValue
		}
	}

	return out
}

// defaultLanguageCode derives the two-letter tag from the source language,
// which may be a publications-office authority URI.
func (b *base) defaultLanguageCode() string {
	lang := b.src.DCAT.Language
	if idx := strings.LastIndex(lang, "/"); idx >= 0 {
		lang = lang[idx+1:]
	}

	if code, ok := authorityLanguages[strings.ToUpper(lang)]; ok {
		return code
	}

	lang = strings.ToLower(lang)
	if ValidLangTag(lang) {
		return lang
	}

	return "es"
}

func (b *base) applyClassification(ds *models.Dataset, rec *RawRecord, ov mapping.Override) {
	ds.DCATType = NormalizeCodelistURI(rec.Get(FieldDCATType, ""))
	ds.RepresentationType = NormalizeCodelistURI(rec.Get(FieldRepresentationType, ""))

	if topic := utils.FirstNonEmpty(rec.Get(FieldTopic, ""), b.src.DCAT.Topic); topic != "" {
		ds.Topic = NormalizeCodelistURI(topic)
	}

	// Keywords: record tags, source defaults, override additions and the
	// INSPIRE theme itself, all sanitized and deduplicated.
	keywords := b.recordKeywords(rec)
	var uris []string
	for _, uri := range rec.List(FieldKeywordURIs) {
		uris = append(uris, NormalizeKeywordURI(uri))
	}

	for _, kw := range b.src.DefaultKeywords {
		if cleaned := CleanKeyword(kw.Name); cleaned != "" {
			keywords = append(keywords, cleaned)
			if kw.URI != "" {
				uris = append(uris, NormalizeKeywordURI(kw.URI))
			}
		}
	}

	if ov != nil {
		for _, kw := range ov.Keywords() {
			if cleaned := CleanKeyword(kw.Name); cleaned != "" {
				keywords = append(keywords, cleaned)
				if kw.URI != "" {
					uris = append(uris, NormalizeKeywordURI(kw.URI))
				}
			}
		}
	}

	themeCode := strings.ToLower(b.src.Inspire.Theme)
	if cleaned := CleanKeyword(themeCode); cleaned != "" {
		keywords = append(keywords, cleaned)
		uris = append(uris, NormalizeThemeURI(themeCode))
	}

	// The topic category doubles as a keyword with its codelist URI.
	if topic := rec.Get(FieldTopic, ""); topic != "" {
		code := topic
		if idx := strings.LastIndex(code, "/"); idx >= 0 {
			code = code[idx+1:]
		}
		if cleaned := CleanKeyword(code); cleaned != "" {
			keywords = append(keywords, cleaned)
			if strings.HasPrefix(topic, "http") {
				uris = append(uris, NormalizeKeywordURI(topic))
			}
		}
	}

	for _, kw := range dedupeStrings(keywords) {
		ds.Keywords = append(ds.Keywords, models.Tag{Name: kw})
	}
	ds.KeywordsURI = dedupeStrings(uris)
	ds.KeywordsThesaurus = dedupeStrings(rec.List(FieldKeywordThesauri))

	// Themes: record values plus the source defaults, canonicalized.
	themes := []string{NormalizeThemeURI(themeCode)}
	for _, t := range rec.List(FieldTheme) {
		themes = append(themes, NormalizeThemeURI(t))
	}
	if b.src.DCAT.Theme != "" {
		themes = append(themes, NormalizeThemeURI(b.src.DCAT.Theme))
	}
	ds.Theme = dedupeStrings(themes)

	ds.ThemeES = b.mapThemes(b.src.DCAT.ThemeES, "theme_es")
	ds.ThemeEU = b.mapThemes(b.src.DCAT.ThemeEU, "theme_eu")

	if len(b.src.DCAT.MetadataProfile) > 0 {
		ds.MetadataProfile = append([]string(nil), b.src.DCAT.MetadataProfile...)
	}
}

// mapThemes resolves configured theme labels to their codelist ids. Lookup
// failures keep the raw value; a broken mapping table is only logged.
func (b *base) mapThemes(value, codelist string) []string {
	if value == "" {
		return nil
	}

	var out []string
	for _, v := range utils.SplitAndTrim(value, ",") {
		mapped, err := b.vocab.MapField(v, codelist, "id", "label")
		if err != nil {
			b.log.Warn("vocabulary mapping unavailable", "codelist", codelist, "error", err)
		}
		out = append(out, mapped)
	}

	return dedupeStrings(out)
}

func (b *base) applyTemporal(ds *models.Dataset, rec *RawRecord, ov mapping.Override) {
	ds.Created = b.normalizeDateField(rec, FieldCreated)
	ds.Issued = b.normalizeDateField(rec, FieldIssued)
	ds.Modified = b.normalizeDateField(rec, FieldModified)

	// A source without any lifecycle dates gets today for all three.
	if ds.Created == "" && ds.Issued == "" && ds.Modified == "" {
		today := time.Now().Format("2006-01-02")
		ds.Created, ds.Issued, ds.Modified = today, today, today
	}

	ds.Valid = utils.FirstNonEmpty(b.normalizeDateField(rec, FieldValid), NormalizeDate(b.src.DCAT.Valid))
	ds.TemporalStart = utils.FirstNonEmpty(b.normalizeDateField(rec, FieldTemporalStart),
		NormalizeDate(ov.String("temporal_start")), NormalizeDate(b.src.DCAT.TemporalStart))
	ds.TemporalEnd = utils.FirstNonEmpty(b.normalizeDateField(rec, FieldTemporalEnd),
		NormalizeDate(ov.String("temporal_end")), NormalizeDate(b.src.DCAT.TemporalEnd))
	ds.Frequency = NormalizeCodelistURI(utils.FirstNonEmpty(rec.Get(FieldFrequency, ""), b.src.DCAT.Frequency))
}

func (b *base) normalizeDateField(rec *RawRecord, field string) string {
	raw := rec.Get(field, "")
	if raw == "" {
		return ""
	}

	normalized := NormalizeDate(raw)
	if normalized == "" {
		b.log.Debug("dropping unparseable date", "field", field, "value", raw)
	}

	return normalized
}

func (b *base) applyProvenance(ds *models.Dataset, rec *RawRecord, ov mapping.Override) {
	ds.Provenance = utils.FirstNonEmpty(ov.String("provenance"), rec.Get(FieldProvenance, ""),
		b.src.DCAT.Provenance, b.strings.Get(b.defaultLanguageCode(), "provenance"))
	ds.Source = utils.FirstNonEmpty(ov.String("source"), rec.Get(FieldSource, ""))

	ds.Reference = rec.List(FieldReference)
	if refs := ov.StringList("reference"); len(refs) > 0 {
		ds.Reference = refs
	}
	ds.LineageSource = rec.List(FieldLineageSource)
	if lineage := ov.StringList("lineage_source"); len(lineage) > 0 {
		ds.LineageSource = lineage
	}

	if steps := ov.StringList("lineage_process_steps"); len(steps) > 0 {
		ds.LineageProcessSteps = steps
	} else if len(b.src.DCAT.LineageProcessSteps) > 0 {
		ds.LineageProcessSteps = append([]string(nil), b.src.DCAT.LineageProcessSteps...)
	}

	// Every record declares the INSPIRE regulations; the record may add more.
	ds.Conformance = dedupeStrings(append(append([]string(nil), models.DefaultConformance...),
		rec.List(FieldConformance)...))
}

// applyParties resolves the four responsible-party blocks with a uniform
// precedence: organization override, then the source record, then the source
// defaults. Party URIs missing after that are looked up in the organization
// directory. The maintainer falls back to the publisher when empty.
func (b *base) applyParties(ds *models.Dataset, rec *RawRecord, ov mapping.Override) {
	pick := func(field, def string) string {
		if ov != nil {
			if v := ov.String(field); v != "" {
				return v
			}
		}
		return utils.FirstNonEmpty(rec.Get(field, ""), def)
	}

	ds.Contact = models.Agent{
		Name:  pick(FieldContactName, b.src.DCAT.Contact.Name),
		Email: pick(FieldContactEmail, b.src.DCAT.Contact.Email),
		URL:   pick(FieldContactURL, b.src.DCAT.Contact.URL),
		URI:   pick(FieldContactURI, b.src.DCAT.Contact.URI),
	}
	ds.Contact.URI = b.lookupURI(ds.Contact.Name, ds.Contact.URI)

	ds.Publisher = models.Publisher{
		Name:       pick(FieldPublisherName, b.src.DCAT.Publisher.Name),
		Email:      pick(FieldPublisherEmail, b.src.DCAT.Publisher.Email),
		URL:        pick(FieldPublisherURL, b.src.DCAT.Publisher.URL),
		URI:        pick(FieldPublisherURI, b.src.DCAT.Publisher.URI),
		Identifier: pick(FieldPublisherIdentifier, b.src.DCAT.Publisher.Identifier),
		Type:       pick(FieldPublisherType, b.src.DCAT.Publisher.Type),
	}
	ds.Publisher.URI = b.lookupURI(ds.Publisher.Name, ds.Publisher.URI)

	ds.Maintainer = models.Agent{
		Name:  pick(FieldMaintainerName, b.src.DCAT.Maintainer.Name),
		Email: pick(FieldMaintainerEmail, b.src.DCAT.Maintainer.Email),
		URL:   pick(FieldMaintainerURL, b.src.DCAT.Maintainer.URL),
		URI:   pick(FieldMaintainerURI, b.src.DCAT.Maintainer.URI),
	}
	if ds.Maintainer == (models.Agent{}) {
		ds.Maintainer = models.Agent{
			Name:  ds.Publisher.Name,
			Email: ds.Publisher.Email,
			URL:   ds.Publisher.URL,
			URI:   ds.Publisher.URI,
		}
	}
	ds.Maintainer.URI = b.lookupURI(ds.Maintainer.Name, ds.Maintainer.URI)

	ds.Author = models.Agent{
		Name:  pick(FieldAuthorName, b.src.DCAT.Author.Name),
		Email: pick(FieldAuthorEmail, b.src.DCAT.Author.Email),
		URL:   pick(FieldAuthorURL, b.src.DCAT.Author.URL),
		URI:   pick(FieldAuthorURI, b.src.DCAT.Author.URI),
	}
	ds.Author.URI = b.lookupURI(ds.Author.Name, ds.Author.URI)
}

// lookupURI fills a missing party URI from the organization directory.
func (b *base) lookupURI(name, uri string) string {
	if uri != "" || name == "" || b.directory == nil {
		return uri
	}

	return b.directory.LookupURI(name, "")
}

func (b *base) applySpatial(ds *models.Dataset, rec *RawRecord, ov mapping.Override) {
	ds.SpatialURI = utils.FirstNonEmpty(ov.String("spatial_uri"), b.src.DCAT.SpatialURI)
	ds.Spatial = b.src.DCAT.Spatial

	refSystem := rec.Get(FieldReferenceSystem, "")
	if code := geo.ParseEPSG(refSystem); code != 0 {
		ds.ReferenceSystem = geo.ReferenceSystemURI(code)
	} else if geo.IsETRS89(refSystem) {
		ds.ReferenceSystem = geo.ReferenceSystemURI(4258)
	}
	if ds.ReferenceSystem != "" {
		ds.Conformance = dedupeStrings(append(ds.Conformance, ds.ReferenceSystem))
	}

	west := rec.Get(FieldBBoxWest, "")
	east := rec.Get(FieldBBoxEast, "")
	south := rec.Get(FieldBBoxSouth, "")
	north := rec.Get(FieldBBoxNorth, "")
	if west == "" || east == "" || south == "" || north == "" {
		return
	}

	box, err := parseBBox(west, south, east, north, geo.ParseEPSG(refSystem))
	if err != nil {
		b.log.Warn("dropping invalid bounding box", "error", err)
		return
	}

	projected, err := box.ToWGS84()
	if err != nil {
		b.log.Warn("keeping default spatial extent", "error", err)
		return
	}

	geojson, err := projected.GeoJSON()
	if err != nil {
		b.log.Warn("failed to encode spatial extent", "error", err)
		return
	}

	ds.Spatial = geojson
}

func parseBBox(west, south, east, north string, epsg int) (geo.BoundingBox, error) {
	var (
		box geo.BoundingBox
		err error
	)

	if box.MinX, err = strconv.ParseFloat(west, 64); err != nil {
		return box, fmt.Errorf("invalid west bound %q", west)
	}
	if box.MinY, err = strconv.ParseFloat(south, 64); err != nil {
		return box, fmt.Errorf("invalid south bound %q", south)
	}
	if box.MaxX, err = strconv.ParseFloat(east, 64); err != nil {
		return box, fmt.Errorf("invalid east bound %q", east)
	}
	if box.MaxY, err = strconv.ParseFloat(north, 64); err != nil {
		return box, fmt.Errorf("invalid north bound %q", north)
	}
	box.EPSG = epsg

	return box, nil
}

func (b *base) applyGroups(ds *models.Dataset) {
	for _, g := range b.src.Groups {
		ds.Groups = append(ds.Groups, models.Group{Name: strings.ToLower(g)})
	}
}

// buildDistribution normalizes one online resource, sniffing its format from
// the explicit value, the protocol and name hints, and finally the URL.
func (b *base) buildDistribution(ds *models.Dataset, rd *RawDistribution) *models.Distribution {
	format, known := mapping.SniffFormat(rd.Format, rd.URL, rd.Protocol, rd.Name)

	label := format.Label
	if label == "" {
		label = "Unknown"
	}

	name := utils.NormalizeWhitespace(rd.Name)
	if name == "" {
		name = utils.FirstNonEmpty(format.DefaultName, fmt.Sprintf("%s distribution of %s", label, ds.Title))
	}

	dist := models.NewDistribution(rd.URL, name, label)
	dist.ID = uuid.NewString()
	dist.Description = utils.NormalizeWhitespace(rd.Description)
	dist.Language = utils.FirstNonEmpty(rd.Language, ds.Language)
	dist.License = utils.FirstNonEmpty(rd.License, ds.License)
	dist.LicenseID = utils.FirstNonEmpty(rd.LicenseID, ds.LicenseID)
	dist.Rights = utils.FirstNonEmpty(rd.Rights, ds.AccessRights)
	dist.ReferenceSystem = ds.ReferenceSystem

	if known {
		dist.MediaType = format.MediaType
		dist.Conformance = append([]string(nil), format.Conformance...)
	}

	if len(rd.DictionaryFields) > 0 {
		dist.DataDictionary = &models.DataDictionary{
			ResourceID: dist.ID,
			Fields:     rd.DictionaryFields,
		}
	}

	return dist
}

// addMetadataDistributions appends the GeoDCAT-AP RDF rendering and, when a
// CSW endpoint is configured, the ISO 19139 record as extra distributions.
func (b *base) addMetadataDistributions(ds *models.Dataset) {
	lang := b.defaultLanguageCode()

	if rdf, ok := mapping.LookupFormat("geodcatap"); ok {
		dist := models.NewDistribution(
			fmt.Sprintf("%s/dataset/%s.rdf", strings.TrimRight(b.ckan.SiteURL, "/"), ds.Name),
			utils.FirstNonEmpty(b.strings.Get(lang, "geodcatap_name"), rdf.DefaultName),
			rdf.Label,
		)
		dist.ID = uuid.NewString()
		dist.Description = b.strings.Get(lang, "geodcatap_description")
		dist.MediaType = rdf.MediaType
		dist.Conformance = append([]string(nil), rdf.Conformance...)
		ds.AddDistribution(dist)
	}

	if b.ckan.PycswSiteURL == "" {
		return
	}

	if iso, ok := mapping.LookupFormat("inspire"); ok {
		dist := models.NewDistribution(
			fmt.Sprintf("%s/?service=CSW&version=2.0.2&request=GetRecordById&id=%s&elementSetName=full&outputSchema=http://www.isotc211.org/2005/gmd",
				strings.TrimRight(b.ckan.PycswSiteURL, "/"), ds.Identifier),
			utils.FirstNonEmpty(b.strings.Get(lang, "inspire_name"), iso.DefaultName),
			iso.Label,
		)
		dist.ID = uuid.NewString()
		dist.Description = b.strings.Get(lang, "inspire_description")
		dist.MediaType = iso.MediaType
		dist.Conformance = append([]string(nil), iso.Conformance...)
		ds.AddDistribution(dist)
	}
}
