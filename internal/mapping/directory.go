package mapping

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Directory is the public-sector organization directory used to resolve
// responsible-party URIs from organization display names. It is scraped once
// per run from an HTML table of {organization, URI} rows and is read-only
// afterwards.
type Directory struct {
	entries []directoryEntry
}

type directoryEntry struct {
	organization string
	uri          string
}

// FetchDirectory downloads and parses the organization directory. Callers
// treat a nil directory as "no lookup available" and fall back to defaults.
func FetchDirectory(ctx context.Context, client *http.Client, url string) (*Directory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch organization directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("organization directory returned status %d", resp.StatusCode)
	}

	return ParseDirectory(resp.Body)
}

// ParseDirectory reads the directory HTML and extracts the organization
// table. Rows without both an organization name and a URI are skipped.
func ParseDirectory(r io.Reader) (*Directory, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse organization directory: %w", err)
	}

	dir := &Directory{}

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		org := strings.TrimSpace(cells.Eq(0).Text())
		uri := strings.TrimSpace(cells.Eq(1).Text())
		if uri == "" {
			if href, ok := cells.Eq(1).Find("a").Attr("href"); ok {
				uri = strings.TrimSpace(href)
			}
		}

		if org != "" && uri != "" {
			dir.entries = append(dir.entries, directoryEntry{organization: org, uri: uri})
		}
	})

	return dir, nil
}

// LookupURI resolves an organization display name to its directory URI. The
// name is reduced to its leading token (text before the first dot) and
// matched case-insensitively as a substring of the directory organization
// column; the first match wins. fallback is returned when the directory is
// nil, the name is empty or nothing matches.
func (d *Directory) LookupURI(organization, fallback string) string {
	if d == nil || organization == "" {
		return fallback
	}

	token := organization
	if i := strings.IndexByte(token, '.'); i > 0 {
		token = token[:i]
	}
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return fallback
	}

	for _, e := range d.entries {
		if strings.Contains(strings.ToLower(e.organization), token) {
			return e.uri
		}
	}

	return fallback
}
