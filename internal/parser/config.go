// Package parser resolves and executes the HTTP response parsing rules of
// spec.md §4.5: content-type driven format resolution, then type-specific
// decoding (JSON/XML/HTML/text/binary), with an optional post-parse schema
// validator.
package parser

import "strings"

// Format is the resolved body encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatXML    Format = "xml"
	FormatHTML   Format = "html"
	FormatText   Format = "text"
	FormatBinary Format = "binary"
)

// Validator checks a parsed value against a schema. A non-nil error is
// surfaced as SCHEMA_VALIDATION_FAILED.
type Validator func(parsed any) error

// Config customizes parsing for one request.
type Config struct {
	// Format overrides content-type based resolution when non-empty.
	Format Format
	// Selectors, for HTML bodies, maps a result field name to a CSS
	// selector. Absent => {html, text, title} is returned instead.
	Selectors map[string]string
	// Schema, if set, runs after parsing; a non-nil error becomes
	// SCHEMA_VALIDATION_FAILED.
	Schema Validator
}

// ResolveFormat implements spec.md §4.5's content-type mapping. An explicit
// override always wins.
func ResolveFormat(contentType string, override Format) Format {
	if override != "" {
		return override
	}

	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}

	switch {
	case ct == "application/json" || ct == "text/json":
		return FormatJSON
	case ct == "application/xml" || ct == "text/xml":
		return FormatXML
	case ct == "text/html":
		return FormatHTML
	case ct == "text/plain" || strings.HasPrefix(ct, "text/"):
		return FormatText
	case ct == "application/octet-stream" ||
		strings.HasPrefix(ct, "image/") ||
		strings.HasPrefix(ct, "audio/") ||
		strings.HasPrefix(ct, "video/") ||
		ct == "application/pdf":
		return FormatBinary
	default:
		return FormatJSON
	}
}
