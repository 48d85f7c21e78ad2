package harvester

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mjanez/ckan-ogc/internal/config"
	"github.com/mjanez/ckan-ogc/internal/models"
	"github.com/mjanez/ckan-ogc/pkg/utils"
)

// ogcHarvester reads the WMS and WFS capabilities of an OGC server and
// produces one dataset per published layer. Layers present in both services
// get distributions for each.
type ogcHarvester struct {
	*base
	deps Deps
}

type wmsCapabilities struct {
	Layers []wmsLayer `xml:"Capability>Layer>Layer"`
}

type wmsLayer struct {
	Name       string         `xml:"Name"`
	Title      string         `xml:"Title"`
	Abstract   string         `xml:"Abstract"`
	Keywords   []string       `xml:"KeywordList>Keyword"`
	CRS        []string       `xml:"CRS"`
	BBox       wmsGeoBBox     `xml:"EX_GeographicBoundingBox"`
	Dimensions []wmsDimension `xml:"Dimension"`
}

type wmsDimension struct {
	Name      string `xml:"name,attr"`
	Positions string `xml:",chardata"`
}

// timePositions returns the positions of the layer's time dimension, if any.
func (l wmsLayer) timePositions() []string {
	for _, dim := range l.Dimensions {
		if strings.EqualFold(dim.Name, "time") {
			return utils.SplitAndTrim(dim.Positions, ",")
		}
	}
	return nil
}

type wmsGeoBBox struct {
	West  string `xml:"westBoundLongitude"`
	East  string `xml:"eastBoundLongitude"`
	South string `xml:"southBoundLatitude"`
	North string `xml:"northBoundLatitude"`
}

type wfsCapabilities struct {
	FeatureTypes []wfsFeatureType `xml:"FeatureTypeList>FeatureType"`
}

type wfsFeatureType struct {
	Name       string   `xml:"Name"`
	Title      string   `xml:"Title"`
	Abstract   string   `xml:"Abstract"`
	Keywords   []string `xml:"Keywords>Keyword"`
	DefaultCRS string   `xml:"DefaultCRS"`
	Lower      string   `xml:"WGS84BoundingBox>LowerCorner"`
	Upper      string   `xml:"WGS84BoundingBox>UpperCorner"`
}

const representationVector = "http://inspire.ec.europa.eu/metadata-codelist/SpatialRepresentationType/vector"

func newOGCHarvester(src *config.Source, deps Deps) (*ogcHarvester, error) {
	b, err := newBase(src, deps)
	if err != nil {
		return nil, err
	}

	return &ogcHarvester{base: b, deps: deps}, nil
}

func (h *ogcHarvester) SourceName() string {
	return h.src.Name
}

func (h *ogcHarvester) Harvest(ctx context.Context) ([]*models.Dataset, error) {
	records := make(map[string]*RawRecord)
	var order []string

	wms, wmsErr := h.wmsCapabilities(ctx)
	if wmsErr != nil {
		h.log.Warn("WMS capabilities unavailable", "error", wmsErr)
	}
	for _, layer := range wms {
		if layer.Name == "" {
			continue
		}
		rec := h.recordForLayer(records, &order, layer.Name, layer.Title, layer.Abstract, layer.Keywords)
		if layer.BBox.West != "" {
			rec.Set(FieldBBoxWest, layer.BBox.West)
			rec.Set(FieldBBoxEast, layer.BBox.East)
			rec.Set(FieldBBoxSouth, layer.BBox.South)
			rec.Set(FieldBBoxNorth, layer.BBox.North)
		}
		if len(layer.CRS) > 0 {
			rec.Set(FieldReferenceSystem, layer.CRS[0])
		}
		// A layer published with several time positions is a dataset series.
		if len(layer.timePositions()) > 1 {
			rec.Set(FieldDCATType, resourceTypeBase+"series")
		}
		rec.AddDistribution(&RawDistribution{
			URL:    h.serviceURL("WMS", "1.3.0", layer.Name),
			Name:   fmt.Sprintf("WMS service of %s", firstOf(layer.Title, layer.Name)),
			Format: "wms",
		})
	}

	wfs, wfsErr := h.wfsCapabilities(ctx)
	if wfsErr != nil {
		h.log.Warn("WFS capabilities unavailable", "error", wfsErr)
	}
	for _, ft := range wfs {
		if ft.Name == "" {
			continue
		}
		rec := h.recordForLayer(records, &order, ft.Name, ft.Title, ft.Abstract, ft.Keywords)
		rec.Set(FieldRepresentationType, representationVector)
		if ft.DefaultCRS != "" {
			rec.Set(FieldReferenceSystem, ft.DefaultCRS)
		}
		h.applyCorners(rec, ft.Lower, ft.Upper)

		rec.AddDistribution(&RawDistribution{
			URL:    h.serviceURL("WFS", "2.0.0", ft.Name),
			Name:   fmt.Sprintf("WFS service of %s", firstOf(ft.Title, ft.Name)),
			Format: "wfs",
		})
		rec.AddDistribution(&RawDistribution{
			URL:    h.geojsonURL(ft.Name),
			Name:   fmt.Sprintf("GeoJSON download of %s", firstOf(ft.Title, ft.Name)),
			Format: "geojson",
		})
	}

	if len(records) == 0 && (wmsErr != nil || wfsErr != nil) {
		return nil, fmt.Errorf("no capabilities readable from %s: %w", h.src.URL, errors.Join(wmsErr, wfsErr))
	}

	var datasets []*models.Dataset
	for _, name := range order {
		rec := records[name]
		if !h.wanted(rec) {
			h.log.Debug("skipping layer outside source constraints", "layer", name)
			continue
		}
		datasets = append(datasets, h.buildDataset(rec))
	}

	h.log.Info("source harvested", "datasets", len(datasets))
	return datasets, nil
}

// recordForLayer returns the record for a layer, creating it on first sight.
// The workspace is the prefix before the colon in qualified layer names.
func (h *ogcHarvester) recordForLayer(records map[string]*RawRecord, order *[]string, name, title, abstract string, keywords []string) *RawRecord {
	rec, ok := records[name]
	if !ok {
		rec = NewRawRecord()
		rec.Set(FieldIdentifier, name)
		if ws, _, found := strings.Cut(name, ":"); found {
			rec.Set(FieldWorkspace, ws)
		}
		records[name] = rec
		*order = append(*order, name)
	}

	rec.Set(FieldTitle, firstOf(rec.Get(FieldTitle, ""), title, name))
	rec.Set(FieldNotes, firstOf(rec.Get(FieldNotes, ""), abstract))
	if existing := rec.List(FieldKeywords); len(keywords) > 0 {
		rec.Set(FieldKeywords, append(existing, keywords...))
	}

	return rec
}

func (h *ogcHarvester) applyCorners(rec *RawRecord, lower, upper string) {
	lo := strings.Fields(lower)
	up := strings.Fields(upper)
	if len(lo) != 2 || len(up) != 2 {
		return
	}

	rec.Set(FieldBBoxWest, lo[0])
	rec.Set(FieldBBoxSouth, lo[1])
	rec.Set(FieldBBoxEast, up[0])
	rec.Set(FieldBBoxNorth, up[1])
}

func (h *ogcHarvester) wmsCapabilities(ctx context.Context) ([]wmsLayer, error) {
	body, err := fetch(ctx, h.deps.Client, h.capabilitiesURL("WMS", "1.3.0"))
	if err != nil {
		return nil, err
	}

	var caps wmsCapabilities
	if err := xml.Unmarshal(body, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse WMS capabilities: %w", err)
	}

	return caps.Layers, nil
}

func (h *ogcHarvester) wfsCapabilities(ctx context.Context) ([]wfsFeatureType, error) {
	body, err := fetch(ctx, h.deps.Client, h.capabilitiesURL("WFS", "2.0.0"))
	if err != nil {
		return nil, err
	}

	var caps wfsCapabilities
	if err := xml.Unmarshal(body, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse WFS capabilities: %w", err)
	}

	return caps.FeatureTypes, nil
}

func (h *ogcHarvester) capabilitiesURL(service, version string) string {
	return h.buildURL(url.Values{
		"service": {service},
		"version": {version},
		"request": {"GetCapabilities"},
	})
}

func (h *ogcHarvester) serviceURL(service, version, layer string) string {
	return h.buildURL(url.Values{
		"service":  {service},
		"version":  {version},
		"request":  {"GetCapabilities"},
		"layers":   {layer},
		"typeName": {layer},
	})
}

func (h *ogcHarvester) geojsonURL(layer string) string {
	return h.buildURL(url.Values{
		"service":      {"WFS"},
		"version":      {"2.0.0"},
		"request":      {"GetFeature"},
		"typeNames":    {layer},
		"outputFormat": {"application/json"},
	})
}

func (h *ogcHarvester) buildURL(params url.Values) string {
	endpoint, err := url.Parse(h.src.URL)
	if err != nil {
		return h.src.URL
	}

	q := endpoint.Query()
	for key, values := range params {
		q.Set(key, values[0])
	}
	endpoint.RawQuery = q.Encode()

	return endpoint.String()
}
