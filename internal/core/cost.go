package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CoerceCost converts a decoded JSON value into an item cost.
//
// Numbers are taken as-is, strings are parsed as floats after trimming
// surrounding whitespace, and booleans count as 1 or 0. Anything else, and any
// value that is not finite, is rejected with ErrInvalidItem.
func CoerceCost(v any) (float64, error) {
	var f float64
	switch c := v.(type) {
	case json.Number:
		parsed, err := c.Float64()
		if err != nil {
			return 0, ErrInvalidItem
		}
		f = parsed
	case float64:
		f = c
	case int:
		f = float64(c)
	case int64:
		f = float64(c)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return 0, ErrInvalidItem
		}
		f = parsed
	case bool:
		if c {
			f = 1
		}
	default:
		return 0, ErrInvalidItem
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidItem
	}
	return f, nil
}

// ParseItem validates one raw item object.
func ParseItem(raw any) (Item, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Item{}, ErrInvalidItem
	}
	titleVal, ok := obj["title"]
	if !ok {
		return Item{}, ErrInvalidItem
	}
	title, ok := titleVal.(string)
	if !ok {
		return Item{}, ErrInvalidItem
	}
	costVal, ok := obj["cost"]
	if !ok {
		return Item{}, ErrInvalidItem
	}
	cost, err := CoerceCost(costVal)
	if err != nil {
		return Item{}, err
	}
	return Item{Title: title, Cost: cost}, nil
}

// ParseItems validates a raw items value. A missing (nil) list is empty; any
// bad entry rejects the whole list.
func ParseItems(raw any) ([]Item, error) {
	if raw == nil {
		return []Item{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, ErrInvalidItem
	}
	items := make([]Item, 0, len(list))
	for _, r := range list {
		item, err := ParseItem(r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
