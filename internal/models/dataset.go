// Package models defines the canonical catalog record produced by the
// normalizers and its wire payload serialization.
package models

// Metadata defaults applied to every new dataset.
const (
	DefaultAccessRights = "http://inspire.ec.europa.eu/metadata-codelist/LimitationsOnPublicAccess/noLimitations"
	DefaultTopic        = "http://inspire.ec.europa.eu/metadata-codelist/TopicCategory/biota"
	DefaultEncoding     = "UTF-8"
)

// DefaultMetadataProfile lists the metadata profiles every record conforms to.
var DefaultMetadataProfile = []string{
	"http://semiceu.github.io/GeoDCAT-AP/releases/2.0.0",
	"http://inspire.ec.europa.eu/document-tags/metadata",
}

// DefaultConformance lists the INSPIRE regulations every record declares
// conformance with; normalizers extend it with the resolved reference system.
var DefaultConformance = []string{
	"http://inspire.ec.europa.eu/documents/inspire-metadata-regulation",
	"http://inspire.ec.europa.eu/documents/commission-regulation-eu-no-13122014-10-december-2014-amending-regulation-eu-no-10892010-0",
}

// Agent is one responsible-party block (point of contact, maintainer, author).
type Agent struct {
	Name  string
	Email string
	URL   string
	URI   string
}

// Publisher is the publisher party block, which additionally carries an
// identifier and a publisher type code.
type Publisher struct {
	Name       string
	Email      string
	URL        string
	URI        string
	Identifier string
	Type       string
}

// Tag is a dataset keyword.
type Tag struct {
	Name string `json:"name"`
}

// Group is a catalog group membership entry.
type Group struct {
	Name string `json:"name"`
}

// Dataset is the normalized catalog record. Fields are plain and mutable;
// normalizers populate them and hand the finished record to the sync engine,
// which treats it as immutable.
type Dataset struct {
	// Schema the wire payload is rendered for.
	Schema Schema

	// Identity.
	CKANID              string
	Name                string
	OwnerOrg            string
	Identifier          string
	AlternateIdentifier string
	InspireID           string

	// Descriptive.
	Title           string
	TitleTranslated map[string]string
	Notes           string
	NotesTranslated map[string]string

	// Classification.
	DCATType           string
	Topic              string
	Theme              []string
	ThemeES            []string
	ThemeEU            []string
	Keywords           []Tag
	KeywordsURI        []string
	KeywordsThesaurus  []string
	RepresentationType string

	// Spatial.
	Spatial         string
	SpatialURI      string
	ReferenceSystem string

	// Temporal.
	Created       string
	Issued        string
	Modified      string
	Valid         string
	TemporalStart string
	TemporalEnd   string
	Frequency     string

	// Provenance and quality.
	Provenance          string
	Purpose             string
	Source              string
	Reference           []string
	LineageSource       []string
	LineageProcessSteps []string
	Conformance         []string
	MetadataProfile     []string

	// Responsible parties.
	Contact    Agent
	Publisher  Publisher
	Maintainer Agent
	Author     Agent

	// Catalog administrivia.
	Private                   bool
	Groups                    []Group
	GraphicOverview           string
	License                   string
	LicenseID                 string
	AccessRights              string
	Language                  string
	Encoding                  string
	VersionNotes              string
	SpatialResolutionInMeters string
	OGCWorkspace              string

	Distributions []*Distribution
}

// NewDataset creates a dataset with the construction-time identity fields
// and the baseline defaults; everything else starts empty.
func NewDataset(ckanID, name, ownerOrg, licenseID string) *Dataset {
	return &Dataset{
		CKANID:          ckanID,
		Name:            name,
		OwnerOrg:        ownerOrg,
		LicenseID:       licenseID,
		Identifier:      ckanID,
		AccessRights:    DefaultAccessRights,
		Topic:           DefaultTopic,
		Encoding:        DefaultEncoding,
		MetadataProfile: append([]string(nil), DefaultMetadataProfile...),
	}
}

// AddDistribution appends a distribution to the dataset.
func (d *Dataset) AddDistribution(dist *Distribution) {
	d.Distributions = append(d.Distributions, dist)
}
