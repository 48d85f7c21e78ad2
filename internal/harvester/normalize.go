package harvester

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxNameLength    = 100
	maxKeywordLength = 40
)

var (
	nameInvalid = regexp.MustCompile(`[^a-z0-9_-]`)
	dashRuns    = regexp.MustCompile(`-{2,}`)
	langTag     = regexp.MustCompile(`^[a-z]{2,8}(-[0-9a-zA-Z]{1,8})*$`)
)

// dateLayouts are the formats accepted for incoming date fields, tried in
// order. Everything else is rejected.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"2006/01/02",
	"02/01/2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeDate parses a date in any accepted layout and renders it as
// YYYY-MM-DD. Unparseable values return the empty string so they serialize
// as null instead of poisoning the record.
func NormalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02")
		}
	}

	return ""
}

// foldDiacritics strips combining marks while preserving the letter ñ.
func foldDiacritics(s string) string {
	s = strings.ReplaceAll(s, "ñ", "\x00")
	s = strings.ReplaceAll(s, "Ñ", "\x01")

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}

	out = strings.ReplaceAll(out, "\x00", "ñ")
	return strings.ReplaceAll(out, "\x01", "Ñ")
}

// CleanName derives a stable catalog name from a record title, prefixed by
// the owning organization. The result contains only [a-z0-9_-] and is capped
// at 100 characters.
func CleanName(title, organization string) string {
	name := strings.ToLower(foldDiacritics(title))
	name = strings.ReplaceAll(name, "ñ", "n")
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
	name = nameInvalid.ReplaceAllString(name, "-")
	name = dashRuns.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")

	if organization != "" {
		name = strings.ToLower(organization) + "-" + name
	}

	if len(name) > maxNameLength {
		name = strings.Trim(name[:maxNameLength], "-")
	}

	return name
}

// CleanKeyword sanitizes one keyword for the catalog tag vocabulary: lower
// case, diacritics folded (ñ survives), anything outside [a-z0-9ñ_.-]
// replaced by a hyphen, capped at 40 characters. Applying it twice yields
// the same result.
func CleanKeyword(keyword string) string {
	kw := strings.ToLower(foldDiacritics(keyword))

	var b strings.Builder
	for _, r := range kw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == 'ñ', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	kw = dashRuns.ReplaceAllString(b.String(), "-")
	kw = strings.Trim(kw, "-")

	runeKw := []rune(kw)
	if len(runeKw) > maxKeywordLength {
		kw = strings.Trim(string(runeKw[:maxKeywordLength]), "-")
	}

	return kw
}

// InspireID composes the INSPIRE unique resource identifier from its parts.
// Parts are uppercased and stripped of colons and spaces; an empty version
// is omitted.
func InspireID(nutsCode, theme, recordKey, versionID string) string {
	parts := []string{nutsCode, theme, recordKey}
	if versionID != "" {
		parts = append(parts, versionID)
	}

	for i, p := range parts {
		p = strings.ToUpper(p)
		p = strings.ReplaceAll(p, ":", "")
		p = strings.ReplaceAll(p, " ", "")
		parts[i] = p
	}

	return strings.Join(parts, ".")
}

// ValidLangTag reports whether a string looks like a BCP 47 language tag.
func ValidLangTag(tag string) bool {
	return langTag.MatchString(tag)
}

// NormalizeThemeURI canonicalizes an INSPIRE theme reference to its http
// registry URI. Bare theme codes are expanded; https variants are rewritten.
func NormalizeThemeURI(theme string) string {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return ""
	}

	if strings.HasPrefix(theme, "https://inspire.ec.europa.eu") {
		return "http" + strings.TrimPrefix(theme, "https")
	}
	if strings.HasPrefix(theme, "http://") {
		return theme
	}

	return "http://inspire.ec.europa.eu/theme/" + strings.ToLower(theme)
}

// codelistHosts are the registries whose canonical URIs use plain http.
var codelistHosts = []string{
	"https://inspire.ec.europa.eu",
	"https://publications.europa.eu",
}

// NormalizeCodelistURI rewrites https registry URIs to their canonical http
// form. Anything else passes through unchanged.
func NormalizeCodelistURI(uri string) string {
	uri = strings.TrimSpace(uri)
	for _, host := range codelistHosts {
		if strings.HasPrefix(uri, host) {
			return "http" + strings.TrimPrefix(uri, "https")
		}
	}

	return uri
}

// NormalizeKeywordURI makes a keyword vocabulary URI safe for the
// comma-joined wire encoding.
func NormalizeKeywordURI(uri string) string {
	return strings.ReplaceAll(strings.TrimSpace(uri), ",", ";")
}

// dedupeStrings removes duplicates preserving first-seen order.
func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string

	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
