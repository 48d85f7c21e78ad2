package harvester

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mjanez/ckan-ogc/internal/config"
	"github.com/mjanez/ckan-ogc/internal/models"
	"github.com/mjanez/ckan-ogc/pkg/utils"
)

// xmlHarvester reads ISO 19139 metadata documents from a remote URL, a
// local file or every .xml file under a directory.
type xmlHarvester struct {
	*base
	deps Deps
}

func newXMLHarvester(src *config.Source, deps Deps) (*xmlHarvester, error) {
	b, err := newBase(src, deps)
	if err != nil {
		return nil, err
	}

	return &xmlHarvester{base: b, deps: deps}, nil
}

func (h *xmlHarvester) SourceName() string {
	return h.src.Name
}

func (h *xmlHarvester) Harvest(ctx context.Context) ([]*models.Dataset, error) {
	documents, err := h.readDocuments(ctx)
	if err != nil {
		return nil, err
	}

	var datasets []*models.Dataset
	for path, data := range documents {
		rec, err := ParseISORecord(data)
		if err != nil {
			h.log.Warn("skipping unreadable metadata document", "path", path, "error", err)
			continue
		}
		if !h.wanted(rec) {
			h.log.Debug("skipping record outside source constraints", "path", path)
			continue
		}
		datasets = append(datasets, h.buildDataset(rec))
	}

	h.log.Info("source harvested", "datasets", len(datasets))
	return datasets, nil
}

// readDocuments resolves the source URL into metadata documents keyed by
// origin.
func (h *xmlHarvester) readDocuments(ctx context.Context) (map[string][]byte, error) {
	if utils.IsValidURL(h.src.URL) {
		data, err := fetch(ctx, h.deps.Client, h.src.URL)
		if err != nil {
			return nil, err
		}
		return map[string][]byte{h.src.URL: data}, nil
	}

	info, err := os.Stat(h.src.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to stat metadata source: %w", err)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(h.src.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata file: %w", err)
		}
		return map[string][]byte{h.src.URL: data}, nil
	}

	documents := make(map[string][]byte)
	err = filepath.WalkDir(h.src.URL, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".xml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		documents[path] = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return documents, nil
}
