package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one entry in the collection. Records are open key/value
// structures; the only field the system relies on is an integer "id",
// which the caller keeps unique across the collection.
type Record map[string]any

// ID returns the record's id field. The second return is false when the
// field is absent or not an integer-valued number.
func (r Record) ID() (int64, bool) {
	v, ok := r["id"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		id, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return id, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// Number returns the named field as a float64. The second return is
// false when the field is absent or not numeric.
func (r Record) Number(field string) (float64, bool) {
	v, ok := r[field]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Collection is the full ordered set of records backing the service.
type Collection []Record

// MaxID returns the largest id present in the collection, or 0.
func (c Collection) MaxID() int64 {
	var max int64
	for _, rec := range c {
		if id, ok := rec.ID(); ok && id > max {
			max = id
		}
	}
	return max
}

// HasID reports whether any record in the collection carries the id.
func (c Collection) HasID(id int64) bool {
	for _, rec := range c {
		if got, ok := rec.ID(); ok && got == id {
			return true
		}
	}
	return false
}

// DecodeCollection parses the persisted form of a collection: a JSON
// array of objects. Numbers are kept as json.Number so integer ids
// survive the round trip.
func DecodeCollection(data []byte) (Collection, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var c Collection
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("malformed collection: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("malformed collection: trailing data after array")
	}
	return c, nil
}

// EncodeCollection serializes the collection to its persisted form.
// A nil collection encodes as an empty array, never as JSON null.
func EncodeCollection(c Collection) ([]byte, error) {
	if c == nil {
		c = Collection{}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return data, nil
}

// Aggregate is the derived statistic computed over the collection.
type Aggregate struct {
	Total        int     `json:"total"`
	AveragePrice float64 `json:"averagePrice"`
}

// CacheStats represents cache performance statistics.
type CacheStats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Reloads       uint64  `json:"reloads"`
	Invalidations uint64  `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
}
