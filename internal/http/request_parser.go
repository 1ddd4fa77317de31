// Package http exposes the finance API over JSON.
//
// This file turns request bodies and query strings into the domain inputs
// the finance and auth services accept.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"dotproduct/internal/core"
)

const maxBodyBytes = 1 << 20

// Payload is a decoded JSON object body keyed by field name. Absent keys
// are "not supplied"; a present JSON null is kept as the literal null.
type Payload map[string]json.RawMessage

// DecodePayload reads the request body as a JSON object. An empty body
// yields an empty payload.
func DecodePayload(w http.ResponseWriter, r *http.Request) (Payload, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, err
		}
		return nil, core.NewValidationError("", "Malformed request body.")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Payload{}, nil
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, core.NewValidationError("", "JSON parse error - "+err.Error())
	}
	if p == nil {
		return nil, core.NewValidationError("", "Invalid data. Expected a dictionary, but got null.")
	}
	return p, nil
}

func (p Payload) has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p Payload) isNull(key string) bool {
	raw, ok := p[key]
	return ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// RejectReadOnly fails when any server-assigned field is present.
func (p Payload) RejectReadOnly(fields ...string) error {
	for _, f := range fields {
		if p.has(f) {
			return core.NewValidationError(f, "This field is read-only and cannot be set.")
		}
	}
	return nil
}

// String returns the string value of key, nil when absent.
func (p Payload) String(key string) (*string, error) {
	raw, ok := p[key]
	if !ok {
		return nil, nil
	}
	if p.isNull(key) {
		return nil, core.NewValidationError(key, "This field may not be null.")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, core.NewValidationError(key, "Not a valid string.")
	}
	return &s, nil
}

// plainString returns the string value of key or "" for anything else.
func (p Payload) plainString(key string) string {
	raw, ok := p[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Kind returns key as a Kind. Unknown values are left for validation.
func (p Payload) Kind(key string) (*core.Kind, error) {
	s, err := p.String(key)
	if err != nil || s == nil {
		return nil, err
	}
	k := core.Kind(*s)
	return &k, nil
}

func (p Payload) Money(key string) (*core.Money, error) {
	raw, ok := p[key]
	if !ok {
		return nil, nil
	}
	if p.isNull(key) {
		return nil, core.NewValidationError(key, "This field may not be null.")
	}
	var m core.Money
	if err := json.Unmarshal(raw, &m); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, core.NewValidationError(key, "A valid number is required.")
	}
	return &m, nil
}

func (p Payload) Date(key string) (*core.Date, error) {
	raw, ok := p[key]
	if !ok {
		return nil, nil
	}
	if p.isNull(key) {
		return nil, core.NewValidationError(key, "This field may not be null.")
	}
	var d core.Date
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, core.NewValidationError(key, "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
	}
	return &d, nil
}

// ID returns a primary key reference given as a JSON number or numeric string.
func (p Payload) ID(key string) (*int64, error) {
	raw, ok := p[key]
	if !ok {
		return nil, nil
	}
	if p.isNull(key) {
		return nil, core.NewValidationError(key, "This field may not be null.")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, core.NewValidationError(key, "Incorrect type. Expected pk value.")
	}

	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		return nil, core.NewValidationError(key, "Incorrect type. Expected pk value.")
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, core.NewValidationError(key, "Incorrect type. Expected pk value, received "+strconv.Quote(text)+".")
	}
	return &id, nil
}

// CategoryInput builds a category write from the payload.
func (p Payload) CategoryInput() (core.CategoryInput, error) {
	var in core.CategoryInput
	if err := p.RejectReadOnly("created_at"); err != nil {
		return in, err
	}
	var err error
	if in.Name, err = p.String("name"); err != nil {
		return in, err
	}
	if in.Kind, err = p.Kind("type"); err != nil {
		return in, err
	}
	return in, nil
}

// TransactionInput builds a transaction write. A null category clears it.
func (p Payload) TransactionInput() (core.TransactionInput, error) {
	var in core.TransactionInput
	if err := p.RejectReadOnly("created_at"); err != nil {
		return in, err
	}

	if p.isNull("category") {
		in.Category = &core.NullableID{}
	} else if p.has("category") {
		id, err := p.ID("category")
		if err != nil {
			return in, err
		}
		in.Category = &core.NullableID{ID: *id, Valid: true}
	}

	var err error
	if in.Amount, err = p.Money("amount"); err != nil {
		return in, err
	}
	if p.isNull("description") {
		empty := ""
		in.Description = &empty
	} else if in.Description, err = p.String("description"); err != nil {
		return in, err
	}
	if in.Date, err = p.Date("date"); err != nil {
		return in, err
	}
	if in.Kind, err = p.Kind("type"); err != nil {
		return in, err
	}
	return in, nil
}

// BudgetInput builds a budget write. start_date is assigned by the server.
func (p Payload) BudgetInput() (core.BudgetInput, error) {
	var in core.BudgetInput
	if err := p.RejectReadOnly("created_at", "start_date"); err != nil {
		return in, err
	}

	var err error
	if in.Category, err = p.ID("category"); err != nil {
		return in, err
	}
	if in.Amount, err = p.Money("amount"); err != nil {
		return in, err
	}
	period, err := p.String("period")
	if err != nil {
		return in, err
	}
	if period != nil {
		pp := core.Period(*period)
		in.Period = &pp
	}
	return in, nil
}

// ParseTransactionFilter reads the transaction list filters. Malformed type
// and category values are ignored; malformed dates are rejected.
func ParseTransactionFilter(q url.Values) (core.TransactionFilter, error) {
	var f core.TransactionFilter

	if v := strings.TrimSpace(q.Get("type")); v != "" {
		if k := core.Kind(v); k.Valid() {
			f.Kind = &k
		}
	}
	if v := strings.TrimSpace(q.Get("category")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.CategoryID = &id
		}
	}

	for _, bound := range []struct {
		key string
		dst **core.Date
	}{
		{"start_date", &f.StartDate},
		{"end_date", &f.EndDate},
	} {
		v := strings.TrimSpace(q.Get(bound.key))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return core.TransactionFilter{}, core.NewValidationError(bound.key, "Enter a valid date in YYYY-MM-DD format.")
		}
		*bound.dst = &d
	}
	return f, nil
}

// ParseCategoryFilter reads the optional ?type= filter of the category list.
func ParseCategoryFilter(q url.Values) core.CategoryFilter {
	var f core.CategoryFilter
	if v := strings.TrimSpace(q.Get("type")); v != "" {
		if k := core.Kind(v); k.Valid() {
			f.Kind = &k
		}
	}
	return f
}

// pathID extracts the {id} route variable. The route pattern only admits
// digits, so a failure here is an out-of-range value.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, &core.NotFoundError{ID: 0}
	}
	return id, nil
}
