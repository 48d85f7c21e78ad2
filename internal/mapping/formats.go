package mapping

import "strings"

// Format describes how a distribution format is represented in the catalog.
type Format struct {
	Label       string
	MediaType   string
	Conformance []string
	DefaultName string
}

// formatTable maps lowercase format keys, protocol fragments and file
// extensions to their catalog representation.
var formatTable = map[string]Format{
	"api":         {"API", "http://www.iana.org/assignments/media-types/application/vnd.api+json", nil, "Application Programming Interface"},
	"api feature": {"OGCFeat", "http://www.opengis.net/def/interface/ogcapi-features", []string{"http://www.opengeospatial.org/standards/features"}, "OGC API - Features"},
	"wms":         {"WMS", "http://www.opengis.net/def/serviceType/ogc/wms", []string{"http://www.opengeospatial.org/standards/wms"}, "Web Map Service"},
	"zip":         {"ZIP", "http://www.iana.org/assignments/media-types/application/zip", []string{"http://www.iso.org/standard/60101.html"}, "ZIP File"},
	"rar":         {"RAR", "http://www.iana.org/assignments/media-types/application/vnd.rar", []string{"http://www.rarlab.com/technote.htm"}, "RAR File"},
	"wfs":         {"WFS", "http://www.opengis.net/def/serviceType/ogc/wfs", []string{"http://www.opengeospatial.org/standards/wfs"}, "Web Feature Service"},
	"wcs":         {"WCS", "http://www.opengis.net/def/serviceType/ogc/wcs", []string{"http://www.opengeospatial.org/standards/wcs"}, "Web Coverage Service"},
	"tms":         {"TMS", "http://wiki.osgeo.org/wiki/Tile_Map_Service_Specification", []string{"http://www.opengeospatial.org/standards/tms"}, "Tile Map Service"},
	"wmts":        {"WMTS", "http://www.opengis.net/def/serviceType/ogc/wmts", []string{"http://www.opengeospatial.org/standards/wmts"}, "Web Map Tile Service"},
	"kml":         {"KML", "http://www.iana.org/assignments/media-types/application/vnd.google-earth.kml+xml", []string{"http://www.opengeospatial.org/standards/kml"}, "Keyhole Markup Language"},
	"kmz":         {"KMZ", "http://www.iana.org/assignments/media-types/application/vnd.google-earth.kmz+xml", []string{"http://www.opengeospatial.org/standards/kml"}, "Compressed Keyhole Markup Language"},
	"gml":         {"GML", "http://www.iana.org/assignments/media-types/application/gml+xml", []string{"http://www.opengeospatial.org/standards/gml"}, "Geography Markup Language"},
	"geojson":     {"GeoJSON", "http://www.iana.org/assignments/media-types/application/geo+json", []string{"http://www.rfc-editor.org/rfc/rfc7946"}, "GeoJSON"},
	"json":        {"JSON", "http://www.iana.org/assignments/media-types/application/json", []string{"http://www.ecma-international.org/publications/standards/Ecma-404.htm"}, "JavaScript Object Notation"},
	"atom":        {"ATOM", "http://www.iana.org/assignments/media-types/application/atom+xml", []string{"http://validator.w3.org/feed/docs/atom.html"}, "Atom Syndication Format"},
	"xml":         {"XML", "http://www.iana.org/assignments/media-types/application/xml", []string{"http://www.w3.org/TR/REC-xml/"}, "Extensible Markup Language"},
	"arcgis_rest": {"ESRI Rest", "", nil, "ESRI Rest Service"},
	"shp":         {"SHP", "http://www.iana.org/assignments/media-types/application/vnd.shp", []string{"http://www.esri.com/library/whitepapers/pdfs/shapefile.pdf"}, "ESRI Shapefile"},
	"shapefile":   {"SHP", "http://www.iana.org/assignments/media-types/application/vnd.shp", []string{"http://www.esri.com/library/whitepapers/pdfs/shapefile.pdf"}, "ESRI Shapefile"},
	"esri":        {"SHP", "http://www.iana.org/assignments/media-types/application/vnd.shp", []string{"http://www.esri.com/library/whitepapers/pdfs/shapefile.pdf"}, "ESRI Shapefile"},
	"html":        {"HTML", "http://www.iana.org/assignments/media-types/text/html", []string{"http://www.w3.org/TR/2011/WD-html5-20110405/"}, "HyperText Markup Language"},
	"visor":       {"HTML", "http://www.iana.org/assignments/media-types/text/html", []string{"http://www.w3.org/TR/2011/WD-html5-20110405/"}, "Map Viewer"},
	"enlace":      {"HTML", "http://www.iana.org/assignments/media-types/text/html", []string{"http://www.w3.org/TR/2011/WD-html5-20110405/"}, "Map Viewer"},
	"pdf":         {"PDF", "http://www.iana.org/assignments/media-types/application/pdf", []string{"http://www.iso.org/standard/75839.html"}, "Portable Document Format"},
	"csv":         {"CSV", "http://www.iana.org/assignments/media-types/text/csv", []string{"http://www.rfc-editor.org/rfc/rfc4180"}, "Comma-Separated Values"},
	"netcdf":      {"NetCDF", "http://www.iana.org/assignments/media-types/text/csv", []string{"http://www.opengeospatial.org/standards/netcdf"}, "Network Common Data Form"},
	"csw":         {"CSW", "http://www.opengis.net/def/serviceType/ogc/csw", []string{"http://www.opengeospatial.org/standards/cat"}, "Catalog Service for the Web"},
	"geodcatap":   {"RDF", "http://www.iana.org/assignments/media-types/application/rdf+xml", []string{"http://semiceu.github.io/GeoDCAT-AP/releases/2.0.0/"}, "GeoDCAT-AP 2.0 Metadata"},
	"inspire": {"XML", "http://www.iana.org/assignments/media-types/application/xml", []string{
		"http://inspire.ec.europa.eu/documents/inspire-metadata-regulation",
		"http://inspire.ec.europa.eu/documents/commission-regulation-eu-no-13122014-10-december-2014-amending-regulation-eu-no-10892010-0",
		"http://www.isotc211.org/2005/gmd/",
	}, "INSPIRE ISO 19139 Metadata"},
}

// formatKeys fixes the sniffing scan order; first match wins.
var formatKeys = []string{
	"api feature", "api", "wms", "zip", "rar", "wfs", "wcs", "tms", "wmts",
	"kml", "kmz", "gml", "geojson", "json", "atom", "xml", "arcgis_rest",
	"shp", "shapefile", "esri", "html", "visor", "enlace", "pdf", "csv",
	"netcdf", "csw", "geodcatap", "inspire",
}

// LookupFormat returns the format entry for a lowercase key.
func LookupFormat(key string) (Format, bool) {
	f, ok := formatTable[strings.ToLower(key)]
	return f, ok
}

// SniffFormat resolves a distribution's format. An explicit format value is
// looked up directly; otherwise every known key is matched against the
// concatenated distribution attributes and finally against the URL.
func SniffFormat(explicit, url string, hints ...string) (Format, bool) {
	if explicit != "" {
		if f, ok := LookupFormat(explicit); ok {
			return f, true
		}
		return Format{Label: explicit}, false
	}

	haystack := strings.ToLower(strings.Join(hints, " "))
	for _, key := range formatKeys {
		if haystack != "" && strings.Contains(haystack, key) {
			return formatTable[key], true
		}
	}

	lowered := strings.ToLower(url)
	for _, key := range formatKeys {
		if lowered != "" && strings.Contains(lowered, key) {
			return formatTable[key], true
		}
	}

	return Format{}, false
}
