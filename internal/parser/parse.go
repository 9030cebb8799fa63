package parser

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrSchemaValidationFailed wraps a Validator's rejection.
type ErrSchemaValidationFailed struct {
	Cause error
}

func (e *ErrSchemaValidationFailed) Error() string {
	return fmt.Sprintf("SCHEMA_VALIDATION_FAILED: %v", e.Cause)
}

// ErrParse wraps a body that could not be decoded in its resolved format.
type ErrParse struct {
	Format Format
	Cause  error
}

func (e *ErrParse) Error() string { return fmt.Sprintf("PARSE_ERROR(%s): %v", e.Format, e.Cause) }

// Parse decodes body according to the resolved format and, if cfg.Schema is
// set, validates the result.
func Parse(body []byte, contentType string, cfg *Config) (any, Format, error) {
	var format Format
	var selectors map[string]string
	var schema Validator
	if cfg != nil {
		format = cfg.Format
		selectors = cfg.Selectors
		schema = cfg.Schema
	}
	format = ResolveFormat(contentType, format)

	value, err := decode(body, format, selectors)
	if err != nil {
		return nil, format, err
	}

	if schema != nil {
		if err := schema(value); err != nil {
			return nil, format, &ErrSchemaValidationFailed{Cause: err}
		}
	}

	return value, format, nil
}

func decode(body []byte, format Format, selectors map[string]string) (any, error) {
	switch format {
	case FormatJSON:
		return parseJSON(body)
	case FormatXML:
		return parseXML(body)
	case FormatHTML:
		return parseHTML(body, selectors)
	case FormatBinary:
		return body, nil
	default: // text
		return string(body), nil
	}
}

// ParseJSON accepts already-parsed values, strings, and byte buffers in
// addition to raw JSON bytes, per spec.md §4.5.
func ParseJSON(input any) (any, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil
	case []byte:
		return parseJSON(v)
	case string:
		return parseJSON([]byte(v))
	default:
		return v, nil
	}
}

func parseJSON(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, &ErrParse{Format: FormatJSON, Cause: err}
	}
	return v, nil
}

// xmlNode is a generic XML element: attributes merged onto the map,
// repeated children collapsed into arrays only when they repeat, text
// content trimmed of surrounding whitespace.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func parseXML(body []byte) (any, error) {
	var root xmlNode
	if err := xml.Unmarshal(body, &root); err != nil {
		return nil, &ErrParse{Format: FormatXML, Cause: err}
	}
	return xmlNodeToMap(root), nil
}

func xmlNodeToMap(n xmlNode) map[string]any {
	out := map[string]any{}
	for _, a := range n.Attrs {
		out[a.Name.Local] = a.Value
	}

	text := strings.TrimSpace(n.Content)
	if text != "" && len(n.Children) == 0 {
		out["_text"] = text
	}

	childValues := map[string][]any{}
	order := []string{}
	for _, c := range n.Children {
		name := c.XMLName.Local
		if _, seen := childValues[name]; !seen {
			order = append(order, name)
		}
		childValues[name] = append(childValues[name], xmlNodeToMap(c))
	}
	for _, name := range order {
		vals := childValues[name]
		if len(vals) == 1 {
			out[name] = vals[0]
		} else {
			out[name] = vals
		}
	}

	return out
}

func parseHTML(body []byte, selectors map[string]string) (any, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ErrParse{Format: FormatHTML, Cause: err}
	}

	if len(selectors) == 0 {
		title := strings.TrimSpace(doc.Find("title").First().Text())
		return map[string]any{
			"html":  string(body),
			"text":  strings.TrimSpace(doc.Text()),
			"title": title,
		}, nil
	}

	out := map[string]any{}
	for field, selector := range selectors {
		sel := doc.Find(selector)
		if sel.Length() <= 1 {
			out[field] = strings.TrimSpace(sel.Text())
			continue
		}
		var matches []string
		sel.Each(func(_ int, s *goquery.Selection) {
			matches = append(matches, strings.TrimSpace(s.Text()))
		})
		out[field] = matches
	}
	return out, nil
}
