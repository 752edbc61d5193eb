package model

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// unsetSentinel is how the application layer encodes an absent string option.
const unsetSentinel = "null"

// QueryOptions are the OData query parameters a list call may carry.
// Top and Skip are -1 when unset; the string options are nil when unset.
type QueryOptions struct {
	Top    int
	Skip   int
	Select *string
	Expand *string
	Filter *string
}

// DefaultQueryOptions returns fully unset options.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Top: -1, Skip: -1}
}

// IsZero reports whether no option is set.
func (q QueryOptions) IsZero() bool {
	return q.Top < 0 && q.Skip < 0 && q.Select == nil && q.Expand == nil && q.Filter == nil
}

// DecodeQueryOptions parses the query options object sent with list calls:
//
//	{"top": 10, "skip": -1, "select": "Subject", "expand": "null", "filter": "null"}
//
// Every key is required. On any failure the returned options are fully unset
// and the error carries QUERY_DECODE_FAILURE; callers are expected to log it
// and carry on without filtering.
func DecodeQueryOptions(raw string) (QueryOptions, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return DefaultQueryOptions(), NewQueryDecodeError(err)
	}
	if fields == nil {
		return DefaultQueryOptions(), NewQueryDecodeError(fmt.Errorf("query parameters must be a JSON object"))
	}

	opts := DefaultQueryOptions()
	var err error
	if opts.Top, err = intField(fields, "top"); err != nil {
		return DefaultQueryOptions(), NewQueryDecodeError(err)
	}
	if opts.Skip, err = intField(fields, "skip"); err != nil {
		return DefaultQueryOptions(), NewQueryDecodeError(err)
	}
	if opts.Select, err = stringField(fields, "select"); err != nil {
		return DefaultQueryOptions(), NewQueryDecodeError(err)
	}
	if opts.Expand, err = stringField(fields, "expand"); err != nil {
		return DefaultQueryOptions(), NewQueryDecodeError(err)
	}
	if opts.Filter, err = stringField(fields, "filter"); err != nil {
		return DefaultQueryOptions(), NewQueryDecodeError(err)
	}
	return opts, nil
}

// intField reads an integer key. Numeric strings are accepted and fractional
// values truncate toward zero.
func intField(fields map[string]json.RawMessage, key string) (int, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("%s not found", key)
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(t)
	default:
		return 0, fmt.Errorf("%s is not a number", key)
	}

	if i, err := strconv.Atoi(n.String()); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%s is not an integer", key)
	}
	return int(f), nil
}

// stringField reads a string key, mapping the "null" sentinel and JSON null
// to unset.
func stringField(fields map[string]json.RawMessage, key string) (*string, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("%s not found", key)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%s is not a string", key)
	}
	if s == unsetSentinel {
		return nil, nil
	}
	return &s, nil
}
