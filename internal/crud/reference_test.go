package crud

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/simp-lee/crudrouter/internal/domain"
)

var posts = []domain.Record{
	{"id": json.Number("10"), "author_id": json.Number("1"), "title": "a"},
	{"id": json.Number("11"), "author_id": json.Number("1"), "title": "b"},
	{"id": json.Number("12"), "author_id": json.Number("2"), "title": "c"},
}

var authors = []domain.Record{
	{"id": int64(1), "name": "Alice"},
	{"id": int64(2), "name": "Bob"},
	{"id": int64(3), "name": "Carol"},
}

// countingFetch returns every record of all and counts its calls.
func countingFetch(all []domain.Record, calls *atomic.Int32) FetchAllFunc {
	return func(context.Context, []domain.Record) ([]domain.Record, error) {
		calls.Add(1)
		return all, nil
	}
}

func TestPopulateReference(t *testing.T) {
	var calls atomic.Int32
	rows := []domain.Record{
		{"id": 10, "author_id": 2},
		{"id": 11, "author_id": "1"},
		{"id": 12, "author_id": 9},
		{"id": 13},
	}
	attrs := map[string]AttributeFunc{
		"author": PopulateReference(Reference{FetchAll: countingFetch(authors, &calls), Source: "author_id"}),
	}

	out, err := enrich(context.Background(), rows, attrs, 2)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}

	want := []any{authors[1], authors[0], nil, nil}
	for i, rec := range out {
		got := rec["author"]
		if want[i] == nil {
			if got != nil {
				t.Errorf("row %d author = %v; want nil", i, got)
			}
			continue
		}
		if !reflect.DeepEqual(got, want[i]) {
			t.Errorf("row %d author = %v; want %v", i, got, want[i])
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected FetchAll once per response, got %d", n)
	}
}

func TestPopulateReferenceMany(t *testing.T) {
	var calls atomic.Int32
	attrs := map[string]AttributeFunc{
		"posts":      PopulateReferenceMany(Reference{FetchAll: countingFetch(posts, &calls), Target: "author_id"}),
		"post_count": PopulateReferenceManyCount(Reference{FetchAll: countingFetch(posts, &calls), Target: "author_id"}),
		"first_post": PopulateReferenceOne(Reference{FetchAll: countingFetch(posts, &calls), Target: "author_id"}),
	}

	out, err := enrich(context.Background(), authors, attrs, 10)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}

	tests := []struct {
		count int
		first any
	}{
		{2, posts[0]},
		{1, posts[2]},
		{0, nil},
	}
	for i, tt := range tests {
		rec := out[i]
		many, ok := rec["posts"].([]domain.Record)
		if !ok {
			t.Fatalf("row %d posts has type %T", i, rec["posts"])
		}
		if len(many) != tt.count {
			t.Errorf("row %d: %d posts; want %d", i, len(many), tt.count)
		}
		if rec["post_count"] != tt.count {
			t.Errorf("row %d post_count = %v; want %d", i, rec["post_count"], tt.count)
		}
		if tt.first == nil {
			if rec["first_post"] != nil {
				t.Errorf("row %d first_post = %v; want nil", i, rec["first_post"])
			}
		} else if !reflect.DeepEqual(rec["first_post"], tt.first) {
			t.Errorf("row %d first_post = %v", i, rec["first_post"])
		}
	}

	// Each attribute fetches once, whatever the number of rows.
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 FetchAll calls, got %d", n)
	}
}

func TestPopulateReferenceMany_EmptyIsNotNil(t *testing.T) {
	attr := PopulateReferenceMany(Reference{
		FetchAll: func(context.Context, []domain.Record) ([]domain.Record, error) { return nil, nil },
		Target:   "author_id",
	})

	v, err := attr(context.Background(), domain.Record{"id": 1}, NewScope(nil))
	if err != nil {
		t.Fatalf("attr: %v", err)
	}
	if refs, ok := v.([]domain.Record); !ok || refs == nil || len(refs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", v)
	}
}

func TestPopulateReference_FetchError(t *testing.T) {
	boom := errors.New("boom")
	attrs := map[string]AttributeFunc{
		"author": PopulateReference(Reference{
			FetchAll: func(context.Context, []domain.Record) ([]domain.Record, error) { return nil, boom },
			Source:   "author_id",
		}),
	}

	_, err := enrich(context.Background(), []domain.Record{{"id": 1, "author_id": 1}}, attrs, 1)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestValues(t *testing.T) {
	rows := []domain.Record{
		{"author_id": 1},
		{"author_id": int64(1)},
		{"author_id": "2"},
		{"author_id": nil},
		{},
		{"author_id": json.Number("3")},
	}

	got := Values(rows, "author_id")
	want := []any{1, "2", json.Number("3")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Values = %#v; want %#v", got, want)
	}
}
