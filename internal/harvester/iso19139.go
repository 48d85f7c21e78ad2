package harvester

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Slim ISO 19139 document model. Field tags carry local names only so the
// decoder accepts any of the gmd/gco namespace prefix conventions in the
// wild.
type isoMetadata struct {
	FileIdentifier string       `xml:"fileIdentifier>CharacterString"`
	Language       isoCodeValue `xml:"language>LanguageCode"`
	Hierarchy      isoCodeValue `xml:"hierarchyLevel>MD_ScopeCode"`
	DateStamp      string       `xml:"dateStamp>Date"`
	DateStampTime  string       `xml:"dateStamp>DateTime"`
	Contacts       []isoParty   `xml:"contact>CI_ResponsibleParty"`

	Identification isoIdentification   `xml:"identificationInfo>MD_DataIdentification"`
	Service        isoIdentification   `xml:"identificationInfo>SV_ServiceIdentification"`
	Distribution   isoDistributionInfo `xml:"distributionInfo>MD_Distribution"`

	ReferenceSystem       string `xml:"referenceSystemInfo>MD_ReferenceSystem>referenceSystemIdentifier>RS_Identifier>code>CharacterString"`
	ReferenceSystemAnchor string `xml:"referenceSystemInfo>MD_ReferenceSystem>referenceSystemIdentifier>RS_Identifier>code>Anchor"`
	Lineage               string `xml:"dataQualityInfo>DQ_DataQuality>lineage>LI_Lineage>statement>CharacterString"`
}

type isoCodeValue struct {
	Value         string `xml:",chardata"`
	CodeListValue string `xml:"codeListValue,attr"`
}

func (c isoCodeValue) code() string {
	if c.CodeListValue != "" {
		return c.CodeListValue
	}
	return strings.TrimSpace(c.Value)
}

type isoIdentification struct {
	Title        string `xml:"citation>CI_Citation>title>CharacterString"`
	IdentifierMD string `xml:"citation>CI_Citation>identifier>MD_Identifier>code>CharacterString"`
	IdentifierRS string `xml:"citation>CI_Citation>identifier>RS_Identifier>code>CharacterString"`

	Dates    []isoDate `xml:"citation>CI_Citation>date>CI_Date"`
	Abstract string    `xml:"abstract>CharacterString"`
	Purpose  string    `xml:"purpose>CharacterString"`

	PointsOfContact []isoParty    `xml:"pointOfContact>CI_ResponsibleParty"`
	Keywords        []isoKeywords `xml:"descriptiveKeywords>MD_Keywords"`
	TopicCategories []string      `xml:"topicCategory>MD_TopicCategoryCode"`

	GraphicOverview    string       `xml:"graphicOverview>MD_BrowseGraphic>fileName>CharacterString"`
	RepresentationType isoCodeValue `xml:"spatialRepresentationType>MD_SpatialRepresentationTypeCode"`
	Resolution         string       `xml:"spatialResolution>MD_Resolution>distance>Distance"`
	ResourceLanguage   isoCodeValue `xml:"language>LanguageCode"`

	Extents []isoBBox `xml:"extent>EX_Extent>geographicElement>EX_GeographicBoundingBox"`
}

type isoDate struct {
	Date     string       `xml:"date>Date"`
	DateTime string       `xml:"date>DateTime"`
	Type     isoCodeValue `xml:"dateType>CI_DateTypeCode"`
}

func (d isoDate) value() string {
	if d.Date != "" {
		return d.Date
	}
	return d.DateTime
}

type isoKeywords struct {
	Entries   []isoAnchorOrString `xml:"keyword"`
	Thesaurus string              `xml:"thesaurusName>CI_Citation>title>CharacterString"`
}

type isoAnchorOrString struct {
	CharacterString string    `xml:"CharacterString"`
	Anchor          isoAnchor `xml:"Anchor"`
}

func (a isoAnchorOrString) text() string {
	if a.CharacterString != "" {
		return a.CharacterString
	}
	return strings.TrimSpace(a.Anchor.Value)
}

type isoAnchor struct {
	Value string `xml:",chardata"`
	Href  string `xml:"href,attr"`
}

type isoParty struct {
	Organisation string       `xml:"organisationName>CharacterString"`
	Individual   string       `xml:"individualName>CharacterString"`
	Email        string       `xml:"contactInfo>CI_Contact>address>CI_Address>electronicMailAddress>CharacterString"`
	URL          string       `xml:"contactInfo>CI_Contact>onlineResource>CI_OnlineResource>linkage>URL"`
	Role         isoCodeValue `xml:"role>CI_RoleCode"`
}

func (p isoParty) name() string {
	if p.Organisation != "" {
		return p.Organisation
	}
	return p.Individual
}

type isoBBox struct {
	West  string `xml:"westBoundLongitude>Decimal"`
	East  string `xml:"eastBoundLongitude>Decimal"`
	South string `xml:"southBoundLatitude>Decimal"`
	North string `xml:"northBoundLatitude>Decimal"`
}

type isoDistributionInfo struct {
	Online []isoOnline `xml:"transferOptions>MD_DigitalTransferOptions>onLine>CI_OnlineResource"`
}

type isoOnline struct {
	URL         string `xml:"linkage>URL"`
	Protocol    string `xml:"protocol>CharacterString"`
	Name        string `xml:"name>CharacterString"`
	Description string `xml:"description>CharacterString"`
}

const (
	resourceTypeBase      = "http://inspire.ec.europa.eu/metadata-codelist/ResourceType/"
	topicCategoryBase     = "http://inspire.ec.europa.eu/metadata-codelist/TopicCategory/"
	representationBase    = "http://inspire.ec.europa.eu/metadata-codelist/SpatialRepresentationType/"
	inspireThemeThesaurus = "GEMET - INSPIRE themes"
)

// ParseISORecord extracts an attribute bag from one ISO 19139 metadata
// document.
func ParseISORecord(data []byte) (*RawRecord, error) {
	var md isoMetadata
	if err := xml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse ISO 19139 record: %w", err)
	}

	return rawRecordFromISO(md), nil
}

func rawRecordFromISO(md isoMetadata) *RawRecord {
	ident := md.Identification
	if ident.Title == "" && md.Service.Title != "" {
		ident = md.Service
	}

	rec := NewRawRecord()
	rec.Set(FieldIdentifier, firstOf(md.FileIdentifier, ident.IdentifierMD, ident.IdentifierRS))
	rec.Set(FieldTitle, ident.Title)
	rec.Set(FieldNotes, ident.Abstract)
	rec.Set(FieldPurpose, ident.Purpose)
	rec.Set(FieldGraphicOverview, ident.GraphicOverview)
	rec.Set(FieldProvenance, md.Lineage)
	rec.Set(FieldSpatialResolution, ident.Resolution)
	rec.Set(FieldReferenceSystem, firstOf(md.ReferenceSystem, md.ReferenceSystemAnchor))

	if lang := firstOf(ident.ResourceLanguage.code(), md.Language.code()); lang != "" {
		rec.Set(FieldLanguage, lang)
	}

	if scope := md.Hierarchy.code(); scope != "" {
		rec.Set(FieldDCATType, resourceTypeBase+scope)
	}
	if len(ident.TopicCategories) > 0 {
		rec.Set(FieldTopic, topicCategoryBase+strings.TrimSpace(ident.TopicCategories[0]))
	}
	if code := ident.RepresentationType.code(); code != "" {
		rec.Set(FieldRepresentationType, representationBase+code)
	}

	applyISOKeywords(rec, ident.Keywords)
	applyISODates(rec, md, ident.Dates)
	applyISOParties(rec, md.Contacts, ident.PointsOfContact)

	if len(ident.Extents) > 0 {
		bbox := ident.Extents[0]
		rec.Set(FieldBBoxWest, bbox.West)
		rec.Set(FieldBBoxEast, bbox.East)
		rec.Set(FieldBBoxSouth, bbox.South)
		rec.Set(FieldBBoxNorth, bbox.North)
	}

	for _, online := range md.Distribution.Online {
		if online.URL == "" {
			continue
		}
		rec.AddDistribution(&RawDistribution{
			URL:         online.URL,
			Name:        online.Name,
			Protocol:    online.Protocol,
			Description: online.Description,
		})
	}

	return rec
}

func applyISOKeywords(rec *RawRecord, groups []isoKeywords) {
	var keywords, uris, thesauri, themes []string

	for _, group := range groups {
		inspireGroup := strings.Contains(group.Thesaurus, inspireThemeThesaurus)
		if group.Thesaurus != "" {
			thesauri = append(thesauri, group.Thesaurus)
		}

		for _, entry := range group.Entries {
			text := entry.text()
			if text == "" {
				continue
			}
			keywords = append(keywords, text)
			if entry.Anchor.Href != "" {
				uris = append(uris, entry.Anchor.Href)
			}
			if inspireGroup {
				theme := entry.Anchor.Href
				if theme == "" {
					theme = text
				}
				themes = append(themes, theme)
			}
		}
	}

	rec.Set(FieldKeywords, keywords)
	rec.Set(FieldKeywordURIs, uris)
	rec.Set(FieldTheme, themes)
	rec.Set(FieldKeywordThesauri, thesauri)
}

func applyISODates(rec *RawRecord, md isoMetadata, dates []isoDate) {
	for _, d := range dates {
		value := d.value()
		if value == "" {
			continue
		}
		switch d.Type.code() {
		case "creation":
			rec.Set(FieldCreated, value)
		case "publication":
			rec.Set(FieldIssued, value)
		case "revision":
			rec.Set(FieldModified, value)
		}
	}

	if rec.Get(FieldIssued, "") == "" {
		rec.Set(FieldIssued, firstOf(md.DateStamp, md.DateStampTime))
	}
}

// applyISOParties maps responsible parties by role code. The first point of
// contact wins for the contact block.
func applyISOParties(rec *RawRecord, metadataContacts, pointsOfContact []isoParty) {
	setParty := func(nameField, emailField, urlField string, p isoParty) {
		rec.Set(nameField, p.name())
		rec.Set(emailField, p.Email)
		rec.Set(urlField, p.URL)
	}

	if len(pointsOfContact) > 0 {
		setParty(FieldContactName, FieldContactEmail, FieldContactURL, pointsOfContact[0])
	} else if len(metadataContacts) > 0 {
		setParty(FieldContactName, FieldContactEmail, FieldContactURL, metadataContacts[0])
	}

	all := append(append([]isoParty(nil), metadataContacts...), pointsOfContact...)
	for _, p := range all {
		switch p.Role.code() {
		case "publisher", "owner", "distributor":
			if rec.Get(FieldPublisherName, "") == "" {
				setParty(FieldPublisherName, FieldPublisherEmail, FieldPublisherURL, p)
			}
		case "custodian":
			if rec.Get(FieldMaintainerName, "") == "" {
				setParty(FieldMaintainerName, FieldMaintainerEmail, FieldMaintainerURL, p)
			}
		case "author", "originator":
			if rec.Get(FieldAuthorName, "") == "" {
				setParty(FieldAuthorName, FieldAuthorEmail, FieldAuthorURL, p)
			}
		}
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
