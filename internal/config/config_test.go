package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const validConfig = `
ckan:
  site_url: http://localhost:5000
  api_key: secret
harvest:
  sources:
    - name: demo-csw
      url: https://example.org/csw
      type: csw
      organization: demo-org
      active: true
      default_inspire_info:
        nutscode: ES
        theme: hb
        versionid: "01"
logging:
  level: info
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.CKAN.SiteURL != "http://localhost:5000" {
		t.Errorf("SiteURL = %q", cfg.CKAN.SiteURL)
	}
	if cfg.CKAN.PageSize != DefaultPageSize {
		t.Errorf("PageSize default = %d, want %d", cfg.CKAN.PageSize, DefaultPageSize)
	}
	if cfg.CKAN.DatasetSchema != "geodcatap" {
		t.Errorf("DatasetSchema default = %q", cfg.CKAN.DatasetSchema)
	}
	if cfg.Harvest.MappingsDir != "mappings" {
		t.Errorf("MappingsDir default = %q", cfg.Harvest.MappingsDir)
	}

	sources := cfg.ActiveSources()
	if len(sources) != 1 || sources[0].Name != "demo-csw" {
		t.Errorf("ActiveSources() = %v", sources)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CKAN_URL", "https://catalog.example.org")
	t.Setenv("CKAN_API_KEY", "env-key")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.CKAN.SiteURL != "https://catalog.example.org" {
		t.Errorf("SiteURL = %q, want env override", cfg.CKAN.SiteURL)
	}
	if cfg.CKAN.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env override", cfg.CKAN.APIKey)
	}
}

func TestValidateErrors(t *testing.T) {
	base := func() *Config {
		return &Config{
			CKAN:    CKANConfig{SiteURL: "http://localhost:5000", PageSize: 100},
			Logging: LoggingConfig{Level: "info"},
			Harvest: HarvestConfig{Sources: []Source{{
				Name:         "s1",
				URL:          "https://example.org/csw",
				Type:         TypeCSW,
				Organization: "org",
				Active:       true,
				Inspire:      InspireInfo{NutsCode: "ES", Theme: "hb"},
			}}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"missing site url", func(c *Config) { c.CKAN.SiteURL = "" }, ErrMissingCKANURL},
		{"bad page size", func(c *Config) { c.CKAN.PageSize = -1 }, ErrInvalidPageSize},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, ErrInvalidLogLevel},
		{"no sources", func(c *Config) { c.Harvest.Sources = nil }, ErrNoSources},
		{"none active", func(c *Config) { c.Harvest.Sources[0].Active = false }, ErrNoEnabledSources},
		{"missing name", func(c *Config) { c.Harvest.Sources[0].Name = "" }, ErrSourceMissingName},
		{"missing url", func(c *Config) { c.Harvest.Sources[0].URL = "" }, ErrSourceMissingURL},
		{"missing org", func(c *Config) { c.Harvest.Sources[0].Organization = "" }, ErrSourceMissingOrg},
		{"unknown type", func(c *Config) { c.Harvest.Sources[0].Type = "ftp" }, ErrUnknownSourceType},
		{"missing theme", func(c *Config) { c.Harvest.Sources[0].Inspire.Theme = "" }, ErrMissingInspireTheme},
		{"missing nutscode", func(c *Config) { c.Harvest.Sources[0].Inspire.NutsCode = "" }, ErrMissingInspireNutsCode},
		{
			"override without mapping file",
			func(c *Config) { c.Harvest.Sources[0].CustomOrganizationActive = true },
			ErrMissingMappingFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSourceTypeMayBeEmpty(t *testing.T) {
	cfg := &Config{
		CKAN:    CKANConfig{SiteURL: "http://localhost:5000", PageSize: 100},
		Logging: LoggingConfig{Level: "info"},
		Harvest: HarvestConfig{Sources: []Source{{
			Name:         "auto",
			URL:          "https://example.org/geoserver/ows",
			Organization: "org",
			Active:       true,
			Inspire:      InspireInfo{NutsCode: "ES", Theme: "hb"},
		}}},
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil for empty type", err)
	}
}
