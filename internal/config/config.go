// Package config provides configuration management for the harvester.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoSources              = errors.New("at least one harvest source is required")
	ErrNoEnabledSources       = errors.New("at least one harvest source must be active")
	ErrSourceMissingURL       = errors.New("source url or file path is required")
	ErrSourceMissingName      = errors.New("source name is required")
	ErrSourceMissingOrg       = errors.New("source organization is required")
	ErrUnknownSourceType      = errors.New("source type must be one of: csw, ogc, table, xml")
	ErrMissingCKANURL         = errors.New("ckan.site_url is required")
	ErrInvalidPageSize        = errors.New("ckan.page_size must be at least 1")
	ErrInvalidLogLevel        = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrMissingMappingFile     = errors.New("custom_organization_mapping_file is required when custom_organization_active is set")
	ErrMissingInspireTheme    = errors.New("default_inspire_info.theme is required")
	ErrMissingInspireNutsCode = errors.New("default_inspire_info.nutscode is required")
)

// Source types understood by the harvester factory.
const (
	TypeCSW   = "csw"
	TypeOGC   = "ogc"
	TypeTable = "table"
	TypeXML   = "xml"
)

// DefaultPageSize is the catalog search page size used when unset.
const DefaultPageSize = 100

// Config represents the complete harvester configuration.
type Config struct {
	CKAN    CKANConfig    `yaml:"ckan"`
	Harvest HarvestConfig `yaml:"harvest"`
	Logging LoggingConfig `yaml:"logging"`
}

// CKANConfig contains the target catalog settings.
type CKANConfig struct {
	SiteURL               string `yaml:"site_url"`
	PycswSiteURL          string `yaml:"pycsw_site_url"`
	APIKey                string `yaml:"api_key"`
	DatasetSchema         string `yaml:"dataset_schema"`
	DefaultLicense        string `yaml:"default_license"`
	DefaultLicenseID      string `yaml:"default_license_id"`
	DatasetMultilang      bool   `yaml:"dataset_multilang"`
	MetadataDistributions bool   `yaml:"metadata_distributions"`
	SSLUnverifiedMode     bool   `yaml:"ssl_unverified_mode"`
	PageSize              int    `yaml:"page_size"`
	DirectoryURL          string `yaml:"directory_url"`
}

// HarvestConfig contains the source list and run-wide harvest settings.
type HarvestConfig struct {
	MappingsDir     string   `yaml:"mappings_dir"`
	Parallelization bool     `yaml:"parallelization"`
	Sources         []Source `yaml:"sources"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Source represents one harvest source. Immutable once loaded; passed by
// reference into every normalizer call.
type Source struct {
	Name                          string       `yaml:"name"`
	URL                           string       `yaml:"url"`
	Type                          string       `yaml:"type"`
	Organization                  string       `yaml:"organization"`
	Groups                        []string     `yaml:"groups"`
	Active                        bool         `yaml:"active"`
	PrivateDatasets               bool         `yaml:"private_datasets"`
	StableNames                   bool         `yaml:"ckan_name_not_uuid"`
	Workspaces                    []string     `yaml:"workspaces"`
	CustomOrganizationActive      bool         `yaml:"custom_organization_active"`
	CustomOrganizationMappingFile string       `yaml:"custom_organization_mapping_file"`
	DefaultKeywords               []Keyword    `yaml:"default_keywords"`
	Inspire                       InspireInfo  `yaml:"default_inspire_info"`
	DCAT                          DCATDefaults `yaml:"default_dcat_info"`
	Constraints                   Constraints  `yaml:"constraints"`
}

// Keyword is a default keyword with its vocabulary URI.
type Keyword struct {
	Name string `yaml:"name"`
	URI  string `yaml:"uri"`
}

// InspireInfo carries the components of the synthesized INSPIRE identifier.
type InspireInfo struct {
	NutsCode  string `yaml:"nutscode"`
	Theme     string `yaml:"theme"`
	VersionID string `yaml:"versionid"`
}

// Constraints restrict which source records are harvested.
type Constraints struct {
	Keywords []string `yaml:"keywords"`
	Mails    []string `yaml:"mails"`
}

// Party holds the default values for one responsible-party block.
type Party struct {
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	URL        string `yaml:"url"`
	URI        string `yaml:"uri"`
	Identifier string `yaml:"identifier"`
	Type       string `yaml:"type"`
}

// DCATDefaults is the per-source default metadata block applied when the
// source record carries no value of its own.
type DCATDefaults struct {
	Contact             Party    `yaml:"contact"`
	Publisher           Party    `yaml:"publisher"`
	Maintainer          Party    `yaml:"maintainer"`
	Author              Party    `yaml:"author"`
	Language            string   `yaml:"language"`
	Topic               string   `yaml:"topic"`
	Theme               string   `yaml:"theme"`
	ThemeES             string   `yaml:"theme_es"`
	ThemeEU             string   `yaml:"theme_eu"`
	Spatial             string   `yaml:"spatial"`
	SpatialURI          string   `yaml:"spatial_uri"`
	Provenance          string   `yaml:"provenance"`
	LineageProcessSteps []string `yaml:"lineage_process_steps"`
	Frequency           string   `yaml:"frequency"`
	Valid               string   `yaml:"valid"`
	TemporalStart       string   `yaml:"temporal_start"`
	TemporalEnd         string   `yaml:"temporal_end"`
	MetadataProfile     []string `yaml:"metadata_profile"`
}

// Load reads and validates a configuration file, applying environment
// variable overrides for the catalog connection.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv overrides catalog connection settings from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("CKAN_URL"); v != "" {
		c.CKAN.SiteURL = v
	}
	if v := os.Getenv("PYCSW_URL"); v != "" {
		c.CKAN.PycswSiteURL = v
	}
	if v := os.Getenv("CKAN_API_KEY"); v != "" {
		c.CKAN.APIKey = v
	}
	if v := os.Getenv("SSL_UNVERIFIED_MODE"); v != "" {
		c.CKAN.SSLUnverifiedMode = strings.EqualFold(v, "true")
	}
}

func (c *Config) applyDefaults() {
	if c.CKAN.PageSize == 0 {
		c.CKAN.PageSize = DefaultPageSize
	}
	if c.CKAN.DatasetSchema == "" {
		c.CKAN.DatasetSchema = "geodcatap"
	}
	if c.Harvest.MappingsDir == "" {
		c.Harvest.MappingsDir = "mappings"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.CKAN.SiteURL == "" {
		return ErrMissingCKANURL
	}

	if c.CKAN.PageSize < 1 {
		return ErrInvalidPageSize
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	if len(c.Harvest.Sources) == 0 {
		return ErrNoSources
	}

	active := 0
	for i := range c.Harvest.Sources {
		s := &c.Harvest.Sources[i]
		if err := s.validate(); err != nil {
			return fmt.Errorf("source %q: %w", s.Name, err)
		}
		if s.Active {
			active++
		}
	}

	if active == 0 {
		return ErrNoEnabledSources
	}

	return nil
}

func (s *Source) validate() error {
	if s.Name == "" {
		return ErrSourceMissingName
	}
	if s.URL == "" {
		return ErrSourceMissingURL
	}
	if s.Organization == "" {
		return ErrSourceMissingOrg
	}

	switch s.Type {
	case TypeCSW, TypeOGC, TypeTable, TypeXML, "":
		// empty type is resolved later from URL keywords
	default:
		return ErrUnknownSourceType
	}

	if s.CustomOrganizationActive && s.CustomOrganizationMappingFile == "" {
		return ErrMissingMappingFile
	}

	if s.Inspire.Theme == "" {
		return ErrMissingInspireTheme
	}
	if s.Inspire.NutsCode == "" {
		return ErrMissingInspireNutsCode
	}

	return nil
}

// ActiveSources returns the sources flagged active, in configuration order.
func (c *Config) ActiveSources() []*Source {
	var out []*Source
	for i := range c.Harvest.Sources {
		if c.Harvest.Sources[i].Active {
			out = append(out, &c.Harvest.Sources[i])
		}
	}

	return out
}
