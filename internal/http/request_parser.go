// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// It reduces code duplication by providing reusable functions for search,
// filter and record id extraction and for reading HTMX request bodies.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"techbiz/internal/core"
)

const maxBodyBytes = 64 << 10

// ParseSearch reads the grid quick search from query parameters: q is the
// text and field (repeatable) selects the columns. Without any valid field
// the default selection applies.
func ParseSearch(query url.Values) core.Search {
	fields := core.ParseFields(query["field"])
	if len(fields) == 0 {
		fields = core.DefaultSearchFields
	}
	return core.Search{
		Query:  core.Sanitize(query.Get("q")),
		Fields: fields,
	}
}

// ParseFilter reads the analytics filter: service (repeatable), from and to.
// Malformed dates are dropped and leave that bound open.
func ParseFilter(query url.Values) core.Filter {
	var f core.Filter
	seen := make(map[string]bool)
	for _, s := range query["service"] {
		s = core.Sanitize(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		f.ServiceTypes = append(f.ServiceTypes, s)
	}
	f.From = parseISODate(query.Get("from"))
	f.To = parseISODate(query.Get("to"))
	return f
}

func parseISODate(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return ""
	}
	return v
}

// searchQuery encodes a search back into query parameters.
func searchQuery(s core.Search) url.Values {
	q := url.Values{}
	if s.Query != "" {
		q.Set("q", s.Query)
	}
	for _, f := range s.Fields {
		q.Add("field", string(f))
	}
	return q
}

// filterQuery encodes a filter back into query parameters.
func filterQuery(f core.Filter) url.Values {
	q := url.Values{}
	for _, s := range f.ServiceTypes {
		q.Add("service", s)
	}
	if f.From != "" {
		q.Set("from", f.From)
	}
	if f.To != "" {
		q.Set("to", f.To)
	}
	return q
}

// recordID parses the {id} path segment.
func recordID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", raw)
	}
	return id, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once, up to maxBodyBytes, and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return core.Sanitize(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return core.Sanitize(p.formData.Get(key))
	}
	return ""
}

// GetAll returns every value for key. A JSON scalar counts as one value.
func (p *RequestBodyParser) GetAll(key string) []string {
	if p.jsonData != nil {
		switch val := p.jsonData[key].(type) {
		case nil:
			return nil
		case []any:
			out := make([]string, 0, len(val))
			for _, v := range val {
				out = append(out, core.Sanitize(stringValue(v)))
			}
			return out
		default:
			return []string{core.Sanitize(stringValue(val))}
		}
	}
	if p.formData == nil {
		return nil
	}
	out := make([]string, 0, len(p.formData[key]))
	for _, v := range p.formData[key] {
		out = append(out, core.Sanitize(v))
	}
	return out
}

// Has reports whether key was present in the body.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
