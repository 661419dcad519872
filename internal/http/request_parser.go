// Package http provides the JSON API server and its handlers.
//
// This file turns raw request bodies into validated core request values.
// Handlers never look at untyped JSON themselves.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"expenselog/internal/core"
)

// maxBodyBytes bounds request bodies; a day's expenses fit comfortably.
const maxBodyBytes = 1 << 20

// decodeJSONObject reads a single JSON object from the request body.
// Numbers are kept as json.Number so cost coercion sees the literal.
func decodeJSONObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, core.ErrInvalidBody
	}
	if body == nil {
		return nil, core.ErrInvalidBody
	}
	// Reject trailing data after the object.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, core.ErrInvalidBody
	}
	return body, nil
}

// parseDateField validates the "date" member of a request body.
func parseDateField(body map[string]any) (core.Date, error) {
	raw, ok := body["date"].(string)
	if !ok {
		return core.Date{}, core.ErrInvalidDate
	}
	return core.ParseDate(raw)
}

// ParseSubmitRequest validates an /add_data body. The date is checked before
// the items; nothing is partially accepted.
func ParseSubmitRequest(body map[string]any) (core.SubmitRequest, error) {
	date, err := parseDateField(body)
	if err != nil {
		return core.SubmitRequest{}, err
	}
	items, err := core.ParseItems(body["items"])
	if err != nil {
		return core.SubmitRequest{}, err
	}
	return core.SubmitRequest{Date: date, Items: items}, nil
}

// ParseFetchRequest validates a POST /get_data body.
func ParseFetchRequest(body map[string]any) (core.FetchRequest, error) {
	date, err := parseDateField(body)
	if err != nil {
		return core.FetchRequest{}, err
	}
	return core.FetchRequest{Date: date}, nil
}
