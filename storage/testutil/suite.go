package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/kbukum/persist/entity"
	apperrors "github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/observability"
	"github.com/kbukum/persist/pipeline"
	"github.com/kbukum/persist/storage"
)

// NewStore returns an empty store for one test.
type NewStore func(t *testing.T) storage.Store

// RunSuite runs the storage behaviour suite against stores made by newStore.
func RunSuite(t *testing.T, newStore NewStore) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(*testing.T, storage.Store)
	}{
		{"SaveAssignsIDs", testSaveAssignsIDs},
		{"SaveReplaces", testSaveReplaces},
		{"SaveEmpty", testSaveEmpty},
		{"FetchFilter", testFetchFilter},
		{"FetchOptions", testFetchOptions},
		{"FetchNested", testFetchNested},
		{"Count", testCount},
		{"Search", testSearch},
		{"Delete", testDelete},
		{"InvalidFilter", testInvalidFilter},
		{"Close", testClose},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

// Seed saves records and returns the ids the store assigned, in order.
func Seed(t *testing.T, s storage.Store, records ...entity.PlainData) []any {
	t.Helper()
	results, err := s.Save(context.Background(), records)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(results) != len(records) {
		t.Fatalf("Save returned %d results for %d records", len(results), len(records))
	}
	ids := make([]any, len(records))
	for i, r := range results {
		if r != nil {
			ids[i] = r[entity.IDField]
		} else {
			ids[i] = records[i][entity.IDField]
		}
	}
	return ids
}

// Fetch collects the records matching filter.
func Fetch(t *testing.T, s storage.Store, filter storage.Filter, opts ...storage.Option) []entity.PlainData {
	t.Helper()
	p, err := s.Fetch(context.Background(), filter, opts...)
	if err != nil {
		t.Fatalf("Fetch(%v): %v", filter, err)
	}
	records, err := pipeline.Collect(context.Background(), p)
	if err != nil {
		t.Fatalf("Fetch(%v) collect: %v", filter, err)
	}
	return records
}

// Field renders the named field of every record, for order-sensitive checks.
func Field(records []entity.PlainData, name string) string {
	values := make([]any, len(records))
	for i, r := range records {
		values[i] = r[name]
	}
	return fmt.Sprint(values)
}

func testSaveAssignsIDs(t *testing.T, s storage.Store) {
	ids := Seed(t, s, entity.PlainData{"name": "ann"}, entity.PlainData{"name": "bob"})
	for i, id := range ids {
		if entity.IsAbsentID(id) {
			t.Fatalf("record %d got no id", i)
		}
	}
	if storage.IDKey(ids[0]) == storage.IDKey(ids[1]) {
		t.Errorf("generated ids must differ, got %v twice", ids[0])
	}

	got := Fetch(t, s, storage.FilterOnID(ids[1]))
	if len(got) != 1 || got[0]["name"] != "bob" {
		t.Fatalf("expected bob by id, got %v", got)
	}
	if storage.IDKey(got[0][entity.IDField]) != storage.IDKey(ids[1]) {
		t.Errorf("fetched id %v, want %v", got[0][entity.IDField], ids[1])
	}
}

func testSaveReplaces(t *testing.T, s storage.Store) {
	ids := Seed(t, s, entity.PlainData{"name": "ann", "age": 30}, entity.PlainData{"name": "bob"})

	results, err := s.Save(context.Background(), []entity.PlainData{
		{entity.IDField: ids[0], "name": "anna"},
		{"name": "cid"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0] != nil {
		t.Errorf("replacing a record generates nothing, got %v", results[0])
	}
	if results[1] == nil || entity.IsAbsentID(results[1][entity.IDField]) {
		t.Errorf("new record should get an id, got %v", results[1])
	}

	got := Fetch(t, s, storage.FilterOnID(ids[0]))
	if len(got) != 1 || got[0]["name"] != "anna" {
		t.Fatalf("expected replaced record, got %v", got)
	}
	if _, ok := got[0]["age"]; ok {
		t.Error("Save replaces the whole record, age should be gone")
	}
	if n, _ := s.Count(context.Background(), nil); n != 3 {
		t.Errorf("expected 3 records, got %d", n)
	}
}

func testSaveEmpty(t *testing.T, s storage.Store) {
	results, err := s.Save(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", results)
	}
}

func seedPeople(t *testing.T, s storage.Store) []any {
	return Seed(t, s,
		entity.PlainData{"name": "ann", "age": 30, "role": "admin"},
		entity.PlainData{"name": "bob", "age": 20, "role": "user"},
		entity.PlainData{"name": "cid", "age": 40, "role": "user"},
		entity.PlainData{"name": "dee", "role": "guest"},
	)
}

func testFetchFilter(t *testing.T, s storage.Store) {
	ids := seedPeople(t, s)
	tests := []struct {
		name   string
		filter storage.Filter
		want   string
	}{
		{"all", nil, "[ann bob cid dee]"},
		{"eq", storage.Filter{"role": "user"}, "[bob cid]"},
		{"not", storage.Filter{"role(not)": "user"}, "[ann dee]"},
		{"in", storage.Filter{"role(in)": []any{"admin", "guest"}}, "[ann dee]"},
		{"not in", storage.Filter{"name(not in)": []string{"ann", "bob"}}, "[cid dee]"},
		{"min", storage.Filter{"age(min)": 30}, "[ann cid]"},
		{"max", storage.Filter{"age(max)": 30}, "[ann bob]"},
		{"like", storage.Filter{"name(like)": "N"}, "[ann]"},
		{"combined", storage.Filter{"role": "user", "age(min)": 25}, "[cid]"},
		{"missing field", storage.Filter{"age": 99}, "[]"},
		{"id", storage.FilterOnID(ids[2]), "[cid]"},
		{"id in", storage.FilterOnID([]any{ids[0], ids[3]}, storage.OpIn), "[ann dee]"},
		{"id not", storage.FilterOnID(ids[0], storage.OpNot), "[bob cid dee]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Fetch(t, s, tc.filter, storage.WithSort("name"))
			if names := Field(got, "name"); names != tc.want {
				t.Errorf("Fetch(%v) = %s, want %s", tc.filter, names, tc.want)
			}
		})
	}
}

func testFetchOptions(t *testing.T, s storage.Store) {
	seedPeople(t, s)

	if got := Field(Fetch(t, s, nil), "name"); got != "[ann bob cid dee]" {
		t.Errorf("default order should be insertion order, got %s", got)
	}
	if got := Field(Fetch(t, s, nil, storage.WithSort("-age")), "name"); got != "[cid ann bob dee]" {
		t.Errorf("descending sort, got %s", got)
	}
	got := Fetch(t, s, storage.Filter{"age(min)": 0}, storage.WithSort("age"), storage.WithOffset(1), storage.WithLimit(1))
	if names := Field(got, "name"); names != "[ann]" {
		t.Errorf("offset and limit, got %s", names)
	}
	if got := Fetch(t, s, nil, storage.WithOffset(10)); len(got) != 0 {
		t.Errorf("offset past the end should be empty, got %v", got)
	}
}

func testFetchNested(t *testing.T, s storage.Store) {
	ids := Seed(t, s, entity.PlainData{
		"name": "ann",
		"tags": []any{"a", "b"},
		"meta": map[string]any{"team": "core"},
	})
	got := Fetch(t, s, storage.FilterOnID(ids[0]))
	if len(got) != 1 {
		t.Fatalf("expected one record, got %v", got)
	}
	if fmt.Sprint(got[0]["tags"]) != "[a b]" {
		t.Errorf("tags = %v", got[0]["tags"])
	}
	meta, ok := got[0]["meta"].(map[string]any)
	if !ok || meta["team"] != "core" {
		t.Errorf("meta = %#v", got[0]["meta"])
	}
}

func testCount(t *testing.T, s storage.Store) {
	seedPeople(t, s)
	ctx := context.Background()
	tests := []struct {
		name   string
		filter storage.Filter
		opts   []storage.Option
		want   int
	}{
		{"all", nil, nil, 4},
		{"filtered", storage.Filter{"role": "user"}, nil, 2},
		{"limit", nil, []storage.Option{storage.WithLimit(3)}, 3},
		{"offset", nil, []storage.Option{storage.WithOffset(3)}, 1},
		{"none", storage.Filter{"role": "nobody"}, nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, err := s.Count(ctx, tc.filter, tc.opts...)
			if err != nil {
				t.Fatal(err)
			}
			if n != tc.want {
				t.Errorf("Count = %d, want %d", n, tc.want)
			}
		})
	}
}

func testSearch(t *testing.T, s storage.Store) {
	Seed(t, s,
		entity.PlainData{"title": "Go pipelines", "body": "lazy iterators"},
		entity.PlainData{"title": "Redis notes", "body": "sorted sets and pipelines"},
		entity.PlainData{"title": "SQLite", "body": "json_extract"},
	)
	p, err := s.Search(context.Background(), "PIPELINES", nil, storage.WithSort("title"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := pipeline.Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if titles := Field(got, "title"); titles != "[Go pipelines Redis notes]" {
		t.Errorf("Search = %s", titles)
	}

	p, err = s.Search(context.Background(), "pipelines sets", storage.Filter{"title(like)": "redis"})
	if err != nil {
		t.Fatal(err)
	}
	got, _ = pipeline.Collect(context.Background(), p)
	if len(got) != 1 || got[0]["title"] != "Redis notes" {
		t.Errorf("all terms and the filter must hold, got %v", got)
	}
}

func testDelete(t *testing.T, s storage.Store) {
	ids := seedPeople(t, s)
	ctx := context.Background()

	n, err := s.Delete(ctx, storage.FilterOnID([]any{ids[0], ids[1]}, storage.OpIn))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	n, err = s.Delete(ctx, storage.Filter{"role": "nobody"})
	if err != nil || n != 0 {
		t.Errorf("deleting nothing should report 0, got %d, %v", n, err)
	}

	if got := Field(Fetch(t, s, nil), "name"); got != "[cid dee]" {
		t.Errorf("remaining = %s", got)
	}

	n, err = s.Delete(ctx, nil)
	if err != nil || n != 2 {
		t.Errorf("empty filter deletes everything, got %d, %v", n, err)
	}
}

func testInvalidFilter(t *testing.T, s storage.Store) {
	ctx := context.Background()
	bad := storage.Filter{"age(between)": 1}
	if _, err := s.Fetch(ctx, bad); !apperrors.HasCode(err, apperrors.ErrCodeInvalidArgument) {
		t.Errorf("Fetch: expected INVALID_ARGUMENT, got %v", err)
	}
	if _, err := s.Count(ctx, bad); !apperrors.HasCode(err, apperrors.ErrCodeInvalidArgument) {
		t.Errorf("Count: expected INVALID_ARGUMENT, got %v", err)
	}
	if _, err := s.Delete(ctx, bad); !apperrors.HasCode(err, apperrors.ErrCodeInvalidArgument) {
		t.Errorf("Delete: expected INVALID_ARGUMENT, got %v", err)
	}
}

func testClose(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if h := s.CheckHealth(ctx); h.Status != observability.HealthStatusUp {
		t.Fatalf("expected healthy store, got %+v", h)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if h := s.CheckHealth(ctx); h.Status != observability.HealthStatusDown {
		t.Errorf("expected closed store down, got %+v", h)
	}
	if _, err := s.Save(ctx, []entity.PlainData{{"name": "late"}}); err == nil {
		t.Error("Save after Close should fail")
	}
}
