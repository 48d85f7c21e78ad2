// Package harvester turns remote catalog sources into normalized datasets.
// Each source type has its own reader; normalization is shared.
package harvester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mjanez/ckan-ogc/internal/config"
	"github.com/mjanez/ckan-ogc/internal/logger"
	"github.com/mjanez/ckan-ogc/internal/mapping"
	"github.com/mjanez/ckan-ogc/internal/models"
	"github.com/mjanez/ckan-ogc/pkg/utils"
)

// ErrUnresolvedSourceType is returned when neither the configured type nor
// the source URL identifies a known harvester.
var ErrUnresolvedSourceType = errors.New("cannot resolve harvester type from source url")

// Harvester reads one configured source and produces normalized datasets.
type Harvester interface {
	// SourceName identifies the source in logs and the run report.
	SourceName() string

	// Harvest retrieves and normalizes every record of the source.
	Harvest(ctx context.Context) ([]*models.Dataset, error)
}

// Deps bundles the shared collaborators injected into every harvester.
type Deps struct {
	CKAN       *config.CKANConfig
	Log        *logger.Logger
	Vocabulary *mapping.Vocabulary
	Directory  *mapping.Directory
	Strings    mapping.LocalizedStrings
	Client     *http.Client
}

// New builds the harvester for a source. An empty source type is resolved
// from keywords in the source URL.
func New(src *config.Source, deps Deps) (Harvester, error) {
	if deps.Client == nil {
		deps.Client = &http.Client{Timeout: 60 * time.Second}
	}

	kind := src.Type
	if kind == "" {
		kind = detectType(src.URL)
	}

	switch kind {
	case config.TypeCSW:
		return newCSWHarvester(src, deps)
	case config.TypeOGC:
		return newOGCHarvester(src, deps)
	case config.TypeTable:
		return newTableHarvester(src, deps)
	case config.TypeXML:
		return newXMLHarvester(src, deps)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnresolvedSourceType, src.URL)
}

// detectType guesses the harvester type from the source URL.
func detectType(url string) string {
	lowered := strings.ToLower(url)

	switch {
	case strings.Contains(lowered, "csw"), strings.Contains(lowered, "catalog"):
		return config.TypeCSW
	case strings.Contains(lowered, "ows"), strings.Contains(lowered, "ogc"),
		strings.Contains(lowered, "geoserver"), strings.Contains(lowered, "mapserver"),
		strings.Contains(lowered, "wms"), strings.Contains(lowered, "wfs"):
		return config.TypeOGC
	case strings.Contains(lowered, ".xls"), strings.Contains(lowered, ".csv"),
		strings.Contains(lowered, ".tsv"):
		return config.TypeTable
	case strings.Contains(lowered, ".xml"), strings.Contains(lowered, "iso"),
		strings.Contains(lowered, "gmd"), strings.Contains(lowered, "inspire"):
		return config.TypeXML
	}

	return ""
}

// fetch retrieves a URL with exponential backoff on transient failures.
func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header = utils.BuildHeaders(nil)

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error %d from %s", resp.StatusCode, url)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url))
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	return body, nil
}
