package types

import (
	"encoding/json"
	"testing"
)

func TestRecordID(t *testing.T) {
	tests := []struct {
		name   string
		rec    Record
		wantID int64
		wantOK bool
	}{
		{"json number", Record{"id": json.Number("42")}, 42, true},
		{"float64 integral", Record{"id": float64(7)}, 7, true},
		{"float64 fractional", Record{"id": 7.5}, 0, false},
		{"int", Record{"id": 3}, 3, true},
		{"int64", Record{"id": int64(9)}, 9, true},
		{"string", Record{"id": "42"}, 0, false},
		{"absent", Record{"name": "x"}, 0, false},
		{"non-integral json number", Record{"id": json.Number("1.5")}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := tt.rec.ID()
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("ID() = (%d, %v), want (%d, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestRecordNumber(t *testing.T) {
	rec := Record{
		"price": json.Number("19.99"),
		"count": 3,
		"name":  "thing",
	}

	if v, ok := rec.Number("price"); !ok || v != 19.99 {
		t.Errorf("Number(price) = (%v, %v)", v, ok)
	}
	if v, ok := rec.Number("count"); !ok || v != 3 {
		t.Errorf("Number(count) = (%v, %v)", v, ok)
	}
	if _, ok := rec.Number("name"); ok {
		t.Error("Number(name) should fail for a string field")
	}
	if _, ok := rec.Number("missing"); ok {
		t.Error("Number(missing) should fail for an absent field")
	}
}

func TestCollectionMaxID(t *testing.T) {
	c := Collection{
		{"id": json.Number("3")},
		{"id": json.Number("10")},
		{"name": "no id"},
		{"id": json.Number("7")},
	}
	if got := c.MaxID(); got != 10 {
		t.Errorf("MaxID() = %d, want 10", got)
	}
	if got := (Collection{}).MaxID(); got != 0 {
		t.Errorf("empty MaxID() = %d, want 0", got)
	}
}

func TestCollectionHasID(t *testing.T) {
	c := Collection{{"id": json.Number("1")}, {"id": json.Number("2")}}
	if !c.HasID(2) {
		t.Error("HasID(2) should be true")
	}
	if c.HasID(3) {
		t.Error("HasID(3) should be false")
	}
}

func TestDecodeCollection(t *testing.T) {
	c, err := DecodeCollection([]byte(`[{"id": 1, "price": 9.5}, {"id": 2}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(c) != 2 {
		t.Fatalf("expected 2 records, got %d", len(c))
	}
	// Integer ids survive as json.Number, not float64.
	if id, ok := c[0].ID(); !ok || id != 1 {
		t.Errorf("first record id = (%d, %v)", id, ok)
	}

	for _, bad := range []string{
		`{"id": 1}`,
		`[{"id": 1}`,
		`[{"id": 1}] trailing`,
		`not json`,
	} {
		if _, err := DecodeCollection([]byte(bad)); err == nil {
			t.Errorf("decode(%q) should fail", bad)
		}
	}
}

func TestEncodeCollectionNilAsEmptyArray(t *testing.T) {
	data, err := EncodeCollection(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("nil collection encoded as %q, want []", data)
	}
}

func TestEncodeDecodePreservesIDs(t *testing.T) {
	in := Collection{{"id": json.Number("9007199254740993"), "price": json.Number("1.5")}}
	data, err := EncodeCollection(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeCollection(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// An id beyond float64 precision must survive the round trip intact.
	id, ok := out[0].ID()
	if !ok || id != 9007199254740993 {
		t.Errorf("round-tripped id = (%d, %v)", id, ok)
	}
}
