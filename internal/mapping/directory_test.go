package mapping

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const directoryHTML = `
<html><body>
<table>
  <tr><th>Organismo</th><th>URI</th></tr>
  <tr>
    <td>Instituto Geográfico Nacional</td>
    <td>http://datos.gob.es/recurso/sector-publico/org/Organismo/E00125901</td>
  </tr>
  <tr>
    <td>Consejería de Medio Ambiente</td>
    <td><a href="http://datos.gob.es/recurso/sector-publico/org/Organismo/A01002820"></a></td>
  </tr>
  <tr><td>Fila incompleta</td></tr>
</table>
</body></html>
`

func TestParseDirectory(t *testing.T) {
	dir, err := ParseDirectory(strings.NewReader(directoryHTML))
	if err != nil {
		t.Fatalf("ParseDirectory() error: %v", err)
	}

	if len(dir.entries) != 2 {
		t.Fatalf("parsed %d entries, want 2", len(dir.entries))
	}
}

func TestLookupURI(t *testing.T) {
	dir, err := ParseDirectory(strings.NewReader(directoryHTML))
	if err != nil {
		t.Fatalf("ParseDirectory() error: %v", err)
	}

	tests := []struct {
		name         string
		organization string
		fallback     string
		want         string
	}{
		{
			name:         "case-insensitive substring",
			organization: "instituto geográfico",
			want:         "http://datos.gob.es/recurso/sector-publico/org/Organismo/E00125901",
		},
		{
			name:         "token before first dot",
			organization: "Consejería de Medio Ambiente. Junta de Ejemplo",
			want:         "http://datos.gob.es/recurso/sector-publico/org/Organismo/A01002820",
		},
		{
			name:         "href cell",
			organization: "Medio Ambiente",
			want:         "http://datos.gob.es/recurso/sector-publico/org/Organismo/A01002820",
		},
		{
			name:         "no match falls back",
			organization: "Organismo desconocido",
			fallback:     "http://example.org/default",
			want:         "http://example.org/default",
		},
		{
			name:         "empty name falls back",
			organization: "",
			fallback:     "http://example.org/default",
			want:         "http://example.org/default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dir.LookupURI(tt.organization, tt.fallback); got != tt.want {
				t.Errorf("LookupURI(%q) = %q, want %q", tt.organization, got, tt.want)
			}
		})
	}
}

func TestLookupURINilDirectory(t *testing.T) {
	var dir *Directory
	if got := dir.LookupURI("anything", "fallback"); got != "fallback" {
		t.Errorf("LookupURI() on nil directory = %q, want fallback", got)
	}
}

func TestFetchDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(directoryHTML))
	}))
	defer server.Close()

	dir, err := FetchDirectory(context.Background(), server.Client(), server.URL)
	if err != nil {
		t.Fatalf("FetchDirectory() error: %v", err)
	}
	if len(dir.entries) != 2 {
		t.Errorf("FetchDirectory() parsed %d entries, want 2", len(dir.entries))
	}
}

func TestFetchDirectoryBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := FetchDirectory(context.Background(), server.Client(), server.URL); err == nil {
		t.Error("FetchDirectory() expected error for 404")
	}
}
