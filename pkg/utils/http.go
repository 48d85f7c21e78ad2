// Package utils provides common helper functions shared across harvesters
// and the catalog client.
package utils

import (
	"net/http"
	"net/url"
)

// UserAgent identifies outgoing requests to remote catalogs and services.
const UserAgent = "ckan-ogc/1.0"

// IsValidURL reports whether a string parses as an absolute http(s) URL.
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// BuildHeaders creates HTTP headers with defaults applied.
func BuildHeaders(customHeaders map[string]string) http.Header {
	headers := http.Header{}
	headers.Set("User-Agent", UserAgent)
	headers.Set("Accept", "application/json, application/xml, text/html")

	for key, value := range customHeaders {
		headers.Set(key, value)
	}

	return headers
}
