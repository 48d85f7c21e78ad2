package models

// Distribution is one downloadable or service endpoint of a dataset. A
// distribution belongs to exactly one dataset and exclusively owns its
// optional data dictionary.
type Distribution struct {
	ID              string
	URL             string
	Name            string
	Format          string
	MediaType       string
	License         string
	LicenseID       string
	Rights          string
	Description     string
	Language        string
	Created         string
	Issued          string
	Modified        string
	Conformance     []string
	Encoding        string
	ReferenceSystem string

	DataDictionary *DataDictionary
}

// NewDistribution creates a distribution with the UTF-8 default encoding.
func NewDistribution(url, name, format string) *Distribution {
	return &Distribution{
		URL:      url,
		Name:     name,
		Format:   format,
		Encoding: DefaultEncoding,
	}
}
