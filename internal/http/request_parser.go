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

	"finboard/internal/core"
)

const maxBodyBytes = 1 << 20

// ParsePeriod reads the month a request is about from "period=YYYY-MM" or
// from "year" and "month". Missing parts default to the current month;
// malformed ones are a validation error.
func ParsePeriod(query url.Values, now time.Time) (core.YearMonth, error) {
	current := core.CurrentYearMonth(now)

	if v := strings.TrimSpace(query.Get("period")); v != "" {
		p, err := core.ParseYearMonth(v)
		if err != nil {
			return core.YearMonth{}, &core.ValidationError{Field: "period", Err: err}
		}
		return p, nil
	}

	p := current
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.YearMonth{}, &core.ValidationError{Field: "year", Err: core.ErrInvalidYear}
		}
		p.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.YearMonth{}, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
		}
		p.Month = m
	}
	if err := p.Validate(); err != nil {
		return core.YearMonth{}, &core.ValidationError{Field: "period", Err: err}
	}
	return p, nil
}

// ParseYear parses a year path or query value.
func ParseYear(field, v string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || y < 1 {
		return 0, &core.ValidationError{Field: field, Err: core.ErrInvalidYear}
	}
	return y, nil
}

// ParseTransactionFilter reads the listing filters: startDate, endDate,
// expenseTypeId, page and pageSize.
func ParseTransactionFilter(query url.Values) (core.TransactionFilter, error) {
	var f core.TransactionFilter
	var err error
	if v := strings.TrimSpace(query.Get("startDate")); v != "" {
		if f.StartDate, err = core.ParseDate(v); err != nil {
			return f, &core.ValidationError{Field: "startDate", Err: err}
		}
	}
	if v := strings.TrimSpace(query.Get("endDate")); v != "" {
		if f.EndDate, err = core.ParseDate(v); err != nil {
			return f, &core.ValidationError{Field: "endDate", Err: err}
		}
	}
	f.CategoryID = strings.TrimSpace(query.Get("expenseTypeId"))
	if v := strings.TrimSpace(query.Get("page")); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil {
			return f, &core.ValidationError{Field: "page", Err: errors.New("not a number")}
		}
	}
	if v := strings.TrimSpace(query.Get("pageSize")); v != "" {
		if f.PageSize, err = strconv.Atoi(v); err != nil {
			return f, &core.ValidationError{Field: "pageSize", Err: errors.New("not a number")}
		}
	}
	return f, nil
}

// decodeJSON reads a size-limited JSON body into v. Malformed bodies are a
// validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Err: errors.New("request body is empty")}
		}
		return &core.ValidationError{Err: fmt.Errorf("malformed JSON: %v", err)}
	}
	return nil
}

// RequestBodyParser reads a JSON or form-encoded body once, for handlers
// that accept both (htmx forms and API clients).
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
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

// Get returns a trimmed, sanitized value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

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
