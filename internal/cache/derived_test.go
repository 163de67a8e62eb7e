package cache

import (
	"context"
	stderr "errors"
	"testing"

	"github.com/recordstore/recordstore/pkg/errors"
	"github.com/recordstore/recordstore/pkg/types"
)

func newTestDerived(t *testing.T, s *fakeStore) (*Primary, *Derived) {
	t.Helper()
	p := newTestPrimary(t, s)
	return p, NewDerived(p, "price", nil, nil)
}

func TestDerivedComputesAggregate(t *testing.T) {
	s := newFakeStore(sampleData)
	_, d := newTestDerived(t, s)

	agg, err := d.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if agg.Total != 2 || agg.AveragePrice != 150 {
		t.Fatalf("expected {2 150}, got %+v", agg)
	}
}

func TestDerivedCachesUntilTokenMoves(t *testing.T) {
	s := newFakeStore(sampleData)
	p, d := newTestDerived(t, s)

	if _, err := d.Get(context.Background()); err != nil {
		t.Fatalf("first get: %v", err)
	}
	readsBefore, _, _ := s.counts()

	// Unchanged token: no store work, no recompute.
	agg, err := d.Get(context.Background())
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if reads, _, _ := s.counts(); reads != readsBefore {
		t.Fatal("cached aggregate touched the store")
	}
	if agg.Total != 2 || agg.AveragePrice != 150 {
		t.Fatalf("expected {2 150}, got %+v", agg)
	}

	// A write through the primary moves the token; the aggregate follows.
	updated := types.Collection{
		{"id": 1, "price": 100.0},
		{"id": 2, "price": 200.0},
		{"id": 3, "price": 300.0},
	}
	if err := p.Write(context.Background(), updated); err != nil {
		t.Fatalf("write: %v", err)
	}
	agg, err = d.Get(context.Background())
	if err != nil {
		t.Fatalf("get after write: %v", err)
	}
	if agg.Total != 3 || agg.AveragePrice != 200 {
		t.Fatalf("expected {3 200}, got %+v", agg)
	}
}

func TestDerivedFollowsExternalChange(t *testing.T) {
	s := newFakeStore(sampleData)
	p, d := newTestDerived(t, s)

	if _, err := d.Get(context.Background()); err != nil {
		t.Fatalf("get: %v", err)
	}

	s.externalChange([]byte(`[{"id": 1, "price": 30}, {"id": 2, "price": 60}, {"id": 3, "price": 90}]`))
	p.Invalidate(context.Background())

	agg, err := d.Get(context.Background())
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if agg.Total != 3 || agg.AveragePrice != 60 {
		t.Fatalf("expected {3 60}, got %+v", agg)
	}
}

func TestDerivedEmptyCollection(t *testing.T) {
	s := newFakeStore([]byte(`[]`))
	_, d := newTestDerived(t, s)

	_, err := d.Get(context.Background())
	if !stderr.Is(err, errors.ErrEmptyAggregate) {
		t.Fatalf("expected empty-aggregate error, got %v", err)
	}

	// The failure is not cached: once records exist the aggregate works.
	s.externalChange(sampleData)
	d.primary.Invalidate(context.Background())
	agg, err := d.Get(context.Background())
	if err != nil {
		t.Fatalf("get after records appeared: %v", err)
	}
	if agg.Total != 2 {
		t.Fatalf("expected 2 records, got %+v", agg)
	}
}

func TestDerivedMissingFieldCountsAsZero(t *testing.T) {
	s := newFakeStore([]byte(`[{"id": 1, "price": 90}, {"id": 2}]`))
	_, d := newTestDerived(t, s)

	agg, err := d.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if agg.Total != 2 || agg.AveragePrice != 45 {
		t.Fatalf("expected {2 45}, got %+v", agg)
	}
}
