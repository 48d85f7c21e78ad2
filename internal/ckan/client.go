// Package ckan talks to the target catalog API: existing-dataset lookup,
// dataset creation and data dictionary ingestion.
package ckan

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mjanez/ckan-ogc/internal/config"
	"github.com/mjanez/ckan-ogc/internal/logger"
	"github.com/mjanez/ckan-ogc/internal/models"
	"github.com/mjanez/ckan-ogc/pkg/utils"
)

// API routes.
const (
	routePackageCreate   = "/api/3/action/package_create"
	routePackageSearch   = "/api/3/action/package_search"
	routeDatastoreCreate = "/api/3/action/datastore_create"
)

// ErrAPIFailure is returned when the catalog answers with success=false.
var ErrAPIFailure = errors.New("catalog API reported failure")

// Client is the catalog API client. Safe for concurrent use.
type Client struct {
	siteURL    string
	apiKey     string
	pageSize   int
	relaxedTLS bool
	log        *logger.Logger
	multilang  bool

	// mu guards httpClient, which is swapped once when a server certificate
	// gets pinned under relaxed TLS.
	mu         sync.RWMutex
	httpClient *http.Client
}

// NewClient builds a catalog client from the connection settings.
func NewClient(cfg *config.CKANConfig, log *logger.Logger) *Client {
	return &Client{
		siteURL:    strings.TrimRight(cfg.SiteURL, "/"),
		apiKey:     cfg.APIKey,
		pageSize:   cfg.PageSize,
		relaxedTLS: cfg.SSLUnverifiedMode,
		multilang:  cfg.DatasetMultilang,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

type searchResult struct {
	Count   int            `json:"count"`
	Results []searchRecord `json:"results"`
}

type searchRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	InspireID  string `json:"inspire_id"`
}

// ExistingIndex indexes the datasets already present in the catalog by
// identifier and by INSPIRE identifier.
type ExistingIndex struct {
	ByIdentifier map[string]string
	ByInspireID  map[string]string
}

// Existing pages through the catalog and indexes every dataset. Only the
// identity fields are projected.
func (c *Client) Existing(ctx context.Context) (*ExistingIndex, error) {
	index := &ExistingIndex{
		ByIdentifier: make(map[string]string),
		ByInspireID:  make(map[string]string),
	}

	start := 0
	for {
		endpoint := fmt.Sprintf("%s%s?fl=id,name,identifier,inspire_id&rows=%d&start=%d",
			c.siteURL, routePackageSearch, c.pageSize, start)

		body, err := c.get(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to search catalog: %w", err)
		}

		var result searchResult
		if err := decodeEnvelope(body, &result); err != nil {
			return nil, err
		}

		for _, rec := range result.Results {
			if id := utils.FirstNonEmpty(rec.Identifier, rec.ID); id != "" {
				index.ByIdentifier[id] = rec.Name
			}
			if rec.InspireID != "" {
				index.ByInspireID[rec.InspireID] = rec.Name
			}
		}

		start += len(result.Results)
		if len(result.Results) == 0 || start >= result.Count {
			break
		}
	}

	c.log.Debug("indexed existing datasets", "count", len(index.ByIdentifier))
	return index, nil
}

// Create submits one dataset. There is no retry: a failed creation is
// reported to the caller and the run moves on.
func (c *Client) Create(ctx context.Context, ds *models.Dataset) error {
	payload, err := ds.WirePayload(c.multilang)
	if err != nil {
		return fmt.Errorf("failed to serialize dataset %q: %w", ds.Name, err)
	}

	body, err := c.post(ctx, c.siteURL+routePackageCreate, payload)
	if err != nil {
		return fmt.Errorf("failed to create dataset %q: %w", ds.Name, err)
	}

	if err := decodeEnvelope(body, nil); err != nil {
		return fmt.Errorf("dataset %q rejected: %w", ds.Name, err)
	}

	return nil
}

// CreateDataDictionary ingests the column descriptions of one distribution.
func (c *Client) CreateDataDictionary(ctx context.Context, dict *models.DataDictionary) error {
	payload, err := dict.WirePayload()
	if err != nil {
		return fmt.Errorf("failed to serialize data dictionary: %w", err)
	}

	body, err := c.post(ctx, c.siteURL+routeDatastoreCreate, payload)
	if err != nil {
		return fmt.Errorf("failed to create data dictionary for resource %q: %w", dict.ResourceID, err)
	}

	if err := decodeEnvelope(body, nil); err != nil {
		return fmt.Errorf("data dictionary for resource %q rejected: %w", dict.ResourceID, err)
	}

	return nil
}

func decodeEnvelope(body []byte, result any) error {
	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("unreadable catalog response: %w", err)
	}

	if !envelope.Success {
		return fmt.Errorf("%w: %s", ErrAPIFailure, string(envelope.Error))
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("unreadable catalog result: %w", err)
		}
	}

	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		c.applyHeaders(req)

		var opErr error
		body, opErr = c.do(req)
		return opErr
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	return body, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	return c.do(req)
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header = utils.BuildHeaders(nil)
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}
}

// do executes a request. On a certificate verification failure with relaxed
// TLS enabled, the server's own certificate is fetched out of band and the
// request retried once against a pool trusting exactly that certificate.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client().Do(req)
	if err != nil {
		if c.relaxedTLS && isCertError(err) {
			c.log.Warn("certificate verification failed, pinning server certificate",
				"host", req.URL.Host)
			if pinErr := c.pinServerCertificate(req.URL); pinErr != nil {
				return nil, fmt.Errorf("%w (pinning failed: %v)", err, pinErr)
			}
			resp, err = c.client().Do(req)
		}
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("server error %d from %s", resp.StatusCode, req.URL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("unexpected status %d from %s: %s",
			resp.StatusCode, req.URL, strings.TrimSpace(string(body))))
	}

	return body, nil
}

func isCertError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	return errors.As(err, &unknownAuthority)
}

func (c *Client) client() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpClient
}

// pinServerCertificate swaps the client transport for one trusting only the
// certificate the server presents right now.
func (c *Client) pinServerCertificate(u *url.URL) error {
	host := u.Host
	if u.Port() == "" {
		host += ":443"
	}

	conn, err := tls.Dial("tcp", host, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		return fmt.Errorf("failed to fetch server certificate: %w", err)
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return errors.New("server presented no certificate")
	}

	pool := x509.NewCertPool()
	for _, cert := range certs {
		pool.AddCert(cert)
	}

	c.mu.Lock()
	c.httpClient = &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}
	c.mu.Unlock()

	return nil
}
