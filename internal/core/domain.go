package core

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire representation of a record date.
const DateLayout = "2006-01-02"

// parseLayout also accepts single-digit months and days ("2024-3-5").
const parseLayout = "2006-1-2"

type (
	// Date is a calendar day, always held at UTC midnight.
	Date struct {
		time.Time
	}

	Item struct {
		Title string  `json:"title"`
		Cost  float64 `json:"cost"`
	}

	// Record is the persisted unit: one per date.
	Record struct {
		Date  Date   `json:"date"`
		Items []Item `json:"items"`
	}

	// SubmitRequest is a validated /add_data body.
	SubmitRequest struct {
		Date  Date
		Items []Item
	}

	// FetchRequest is a validated POST /get_data body.
	FetchRequest struct {
		Date Date
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string into a Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	t, err := time.ParseInLocation(parseLayout, s, time.UTC)
	if err != nil || t.Year() < 1 {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NewRecord builds a record whose item list is never nil, so it encodes as [].
func NewRecord(date Date, items []Item) Record {
	out := make([]Item, len(items))
	copy(out, items)
	return Record{Date: date, Items: out}
}
