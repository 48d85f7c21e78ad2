package ckan

import (
	"context"
	"fmt"
	"strings"

	"github.com/mjanez/ckan-ogc/internal/config"
	"github.com/mjanez/ckan-ogc/internal/logger"
	"github.com/mjanez/ckan-ogc/internal/models"
)

// CatalogAPI is the slice of the catalog client the sync engine needs.
type CatalogAPI interface {
	Existing(ctx context.Context) (*ExistingIndex, error)
	Create(ctx context.Context, ds *models.Dataset) error
	CreateDataDictionary(ctx context.Context, dict *models.DataDictionary) error
}

// DatasetError records one dataset that could not be created. The run is
// never aborted by individual failures.
type DatasetError struct {
	Title     string `json:"title"`
	ID        string `json:"id"`
	InspireID string `json:"inspire_id"`
	Error     string `json:"error"`
}

// Result summarizes one sync of a source into the catalog.
type Result struct {
	Source    string
	Retrieved int
	Created   int
	Skipped   int
	Conflicts int
	Errors    []DatasetError
}

// Engine pushes harvested datasets into the catalog, skipping the ones that
// already exist.
type Engine struct {
	api CatalogAPI
	log *logger.Logger
}

// NewEngine creates a sync engine on top of a catalog API.
func NewEngine(api CatalogAPI, log *logger.Logger) *Engine {
	return &Engine{api: api, log: log}
}

// CreateDatasets synchronizes one source's datasets. Existing datasets are
// detected by identifier and by INSPIRE identifier; a match is a conflict,
// counted and recorded but never fatal. Datasets outside the source's
// workspace filter are skipped.
func (e *Engine) CreateDatasets(ctx context.Context, src *config.Source, datasets []*models.Dataset) (*Result, error) {
	result := &Result{Source: src.Name, Retrieved: len(datasets)}

	existing, err := e.api.Existing(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to index existing datasets: %w", err)
	}

	for _, ds := range datasets {
		if !workspaceAllowed(src.Workspaces, ds.OGCWorkspace) {
			e.log.Debug("skipping dataset outside workspace filter",
				"dataset", ds.Name, "workspace", ds.OGCWorkspace)
			result.Skipped++
			continue
		}

		if field, value, ok := conflict(existing, ds); ok {
			result.Conflicts++
			result.Errors = append(result.Errors, DatasetError{
				Title:     ds.Title,
				ID:        ds.Identifier,
				InspireID: ds.InspireID,
				Error:     fmt.Sprintf("dataset exists with same '%s': %s", field, value),
			})
			e.log.Info("dataset already in catalog", "dataset", ds.Name, "field", field)
			continue
		}

		if err := e.api.Create(ctx, ds); err != nil {
			result.Errors = append(result.Errors, DatasetError{
				Title:     ds.Title,
				ID:        ds.Identifier,
				InspireID: ds.InspireID,
				Error:     err.Error(),
			})
			e.log.Error("failed to create dataset", "dataset", ds.Name, "error", err)
			continue
		}

		result.Created++
		existing.ByIdentifier[ds.Identifier] = ds.Name
		if ds.InspireID != "" {
			existing.ByInspireID[ds.InspireID] = ds.Name
		}
		e.log.Info("dataset created", "dataset", ds.Name)

		e.ingestDataDictionaries(ctx, ds)
	}

	return result, nil
}

// ingestDataDictionaries pushes the column descriptions of the dataset's
// distributions. Failures are logged only; the dataset itself is created.
func (e *Engine) ingestDataDictionaries(ctx context.Context, ds *models.Dataset) {
	for _, dist := range ds.Distributions {
		if dist.DataDictionary == nil {
			continue
		}
		if err := e.api.CreateDataDictionary(ctx, dist.DataDictionary); err != nil {
			e.log.Warn("failed to ingest data dictionary",
				"dataset", ds.Name, "resource", dist.Name, "error", err)
		}
	}
}

// conflict reports whether the dataset already exists in the catalog and on
// which identity field it matched.
func conflict(existing *ExistingIndex, ds *models.Dataset) (field, value string, ok bool) {
	if _, found := existing.ByIdentifier[ds.Identifier]; found {
		return "identifier", ds.Identifier, true
	}
	if ds.InspireID != "" {
		if _, found := existing.ByInspireID[ds.InspireID]; found {
			return "inspire_id", ds.InspireID, true
		}
	}

	return "", "", false
}

// workspaceAllowed applies the source workspace filter with case-insensitive
// substring matching. Datasets without a workspace always pass.
func workspaceAllowed(workspaces []string, workspace string) bool {
	if len(workspaces) == 0 || workspace == "" {
		return true
	}

	lowered := strings.ToLower(workspace)
	for _, w := range workspaces {
		if strings.Contains(lowered, strings.ToLower(w)) {
			return true
		}
	}

	return false
}
