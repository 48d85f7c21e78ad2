package harvester

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// isoBody is the metadata document without the XML declaration, embeddable
// in a GetRecords envelope.
func isoBody() string {
	return strings.SplitN(isoDocument, "\n", 2)[1]
}

func TestCSWHarvest(t *testing.T) {
	var requests []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query().Get("startPosition"))

		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<csw:GetRecordsResponse xmlns:csw="http://www.opengis.net/cat/csw/2.0.2">
  <csw:SearchResults numberOfRecordsMatched="1" numberOfRecordsReturned="1" nextRecord="0">
%s
  </csw:SearchResults>
</csw:GetRecordsResponse>`, isoBody())
	}))
	defer server.Close()

	src := testSource()
	src.URL = server.URL

	deps := testDeps(t)
	deps.Client = server.Client()

	h, err := newCSWHarvester(src, deps)
	if err != nil {
		t.Fatalf("newCSWHarvester() error: %v", err)
	}

	datasets, err := h.Harvest(context.Background())
	if err != nil {
		t.Fatalf("Harvest() error: %v", err)
	}

	if len(requests) != 1 || requests[0] != "1" {
		t.Errorf("requests = %v, want one page from position 1", requests)
	}
	if len(datasets) != 1 {
		t.Fatalf("Harvest() = %d datasets, want 1", len(datasets))
	}

	ds := datasets[0]
	if ds.Title != "Red de carreteras" {
		t.Errorf("Title = %q", ds.Title)
	}
	if ds.Identifier != "abc-123" {
		t.Errorf("Identifier = %q", ds.Identifier)
	}
	if len(ds.Distributions) != 1 || ds.Distributions[0].Format != "WMS" {
		t.Errorf("Distributions = %+v", ds.Distributions)
	}
}

func TestCSWHarvestException(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><ows:ExceptionReport xmlns:ows="http://www.opengis.net/ows"/>`)
	}))
	defer server.Close()

	src := testSource()
	src.URL = server.URL

	deps := testDeps(t)
	deps.Client = server.Client()

	h, err := newCSWHarvester(src, deps)
	if err != nil {
		t.Fatalf("newCSWHarvester() error: %v", err)
	}

	if _, err := h.Harvest(context.Background()); err == nil {
		t.Error("Harvest() expected error for exception report")
	}
}
