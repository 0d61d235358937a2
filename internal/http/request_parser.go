// This file implements utilities for parsing and validating request data:
// bodies in JSON or form encoding, path IDs, paging and date filters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hamyon/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

var errInvalidID = errors.New("must be a positive integer")

// RequestBodyParser reads a JSON object or a form-encoded body once and
// serves string values from either.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body. A leading '{' or a JSON content type selects
// JSON; anything else is parsed as a form.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = fmt.Errorf("malformed JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	if p.err != nil {
		p.err = fmt.Errorf("malformed form body: %w", p.err)
	}
	return p.err
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a trimmed string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// ID returns key as an ID; empty means zero.
func (p *RequestBodyParser) ID(key string) (int64, error) {
	v := p.Get(key)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(key, errInvalidID)
	}
	return id, nil
}

// Amount parses key as a strictly positive amount.
func (p *RequestBodyParser) Amount(key string) (core.Money, error) {
	m, err := core.ParseAmount(p.Get(key))
	if err != nil {
		return core.Money{}, core.Invalid(key, err)
	}
	return m, nil
}

// Balance parses key as a non-negative amount; nil when absent.
func (p *RequestBodyParser) Balance(key string) (*core.Money, error) {
	if !p.Has(key) {
		return nil, nil
	}
	m, err := core.ParseBalance(p.Get(key))
	if err != nil {
		return nil, core.Invalid(key, err)
	}
	return &m, nil
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
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput strips control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// pathID reads the {id} path value.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id %q: %w", r.PathValue("id"), core.ErrNotFound)
	}
	return id, nil
}

// queryID reads an optional positive ID from the query string.
func queryID(q url.Values, key string) (int64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(key, errInvalidID)
	}
	return id, nil
}

// PageParams holds normalized paging from ?page= and ?page_size=.
type PageParams struct {
	Page     int
	PageSize int
}

// ParsePageParams ignores unparsable values and clamps the rest.
func ParsePageParams(q url.Values) PageParams {
	f := core.TransactionFilter{}
	if v, err := strconv.Atoi(strings.TrimSpace(q.Get("page"))); err == nil {
		f.Page = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(q.Get("page_size"))); err == nil {
		f.Limit = v
	}
	f = f.Normalize()
	return PageParams{Page: f.Page, PageSize: f.Limit}
}

// parseDate parses a YYYY-MM-DD date in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, loc)
}

// ParseRange reads ?period= or explicit ?from= and ?to= dates. to is
// inclusive on the query string and exclusive in the result.
func ParseRange(q url.Values, now time.Time) (from, to time.Time, err error) {
	if p := strings.TrimSpace(q.Get("period")); p != "" {
		period, err := core.ParsePeriod(p)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from, to = period.Range(now)
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if from, err = parseDate(v, now.Location()); err != nil {
			return time.Time{}, time.Time{}, core.Invalid("from", errors.New("must be a YYYY-MM-DD date"))
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := parseDate(v, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, core.Invalid("to", errors.New("must be a YYYY-MM-DD date"))
		}
		to = d.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, core.Invalid("to", errors.New("must not be before from"))
	}
	return from, to, nil
}
