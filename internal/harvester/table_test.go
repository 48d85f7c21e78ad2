package harvester

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mjanez/ckan-ogc/internal/config"
)

const tableCSV = `identifier,title,notes,keywords,theme,created,resource_url,resource_name,resource_format
ds-1,Red de carreteras,Red autonómica,"carreteras,transporte",tn,2023-05-01,https://example.org/wms,Servicio WMS,wms
ds-2,Hidrografía,Ríos y embalses,hidrografia,hy,2023-06-01,,,
`

func writeTable(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write table: %v", err)
	}

	return path
}

func TestTableHarvestCSV(t *testing.T) {
	src := testSource()
	src.Type = config.TypeTable
	src.URL = writeTable(t, "datasets.csv", tableCSV)

	h, err := newTableHarvester(src, testDeps(t))
	if err != nil {
		t.Fatalf("newTableHarvester() error: %v", err)
	}

	datasets, err := h.Harvest(context.Background())
	if err != nil {
		t.Fatalf("Harvest() error: %v", err)
	}

	if len(datasets) != 2 {
		t.Fatalf("Harvest() = %d datasets, want 2", len(datasets))
	}

	first := datasets[0]
	if first.Title != "Red de carreteras" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Identifier != "ds-1" {
		t.Errorf("Identifier = %q", first.Identifier)
	}
	if first.Created != "2023-05-01" {
		t.Errorf("Created = %q", first.Created)
	}

	names := make(map[string]bool)
	for _, kw := range first.Keywords {
		names[kw.Name] = true
	}
	if !names["carreteras"] || !names["transporte"] {
		t.Errorf("list field not comma split: %v", first.Keywords)
	}

	if len(first.Distributions) != 1 {
		t.Fatalf("Distributions = %d, want 1", len(first.Distributions))
	}
	if first.Distributions[0].Format != "WMS" {
		t.Errorf("distribution format = %q", first.Distributions[0].Format)
	}
	if first.Distributions[0].Name != "Servicio WMS" {
		t.Errorf("distribution name = %q", first.Distributions[0].Name)
	}

	// The second row has no resource_url; no inline distribution.
	if len(datasets[1].Distributions) != 0 {
		t.Errorf("Distributions = %d, want none", len(datasets[1].Distributions))
	}
}

func TestTableHarvestTSV(t *testing.T) {
	tsv := "identifier\ttitle\nds-1\tRed de carreteras\n"
	src := testSource()
	src.Type = config.TypeTable
	src.URL = writeTable(t, "datasets.tsv", tsv)

	h, err := newTableHarvester(src, testDeps(t))
	if err != nil {
		t.Fatalf("newTableHarvester() error: %v", err)
	}

	datasets, err := h.Harvest(context.Background())
	if err != nil {
		t.Fatalf("Harvest() error: %v", err)
	}

	if len(datasets) != 1 || datasets[0].Title != "Red de carreteras" {
		t.Errorf("Harvest() = %v", datasets)
	}
}

func TestTableHarvestEmptyRowsSkipped(t *testing.T) {
	csv := "identifier,title\nds-1,Dataset\n,\n"
	src := testSource()
	src.Type = config.TypeTable
	src.URL = writeTable(t, "datasets.csv", csv)

	h, err := newTableHarvester(src, testDeps(t))
	if err != nil {
		t.Fatalf("newTableHarvester() error: %v", err)
	}

	datasets, err := h.Harvest(context.Background())
	if err != nil {
		t.Fatalf("Harvest() error: %v", err)
	}

	if len(datasets) != 1 {
		t.Errorf("Harvest() = %d datasets, want empty row skipped", len(datasets))
	}
}
