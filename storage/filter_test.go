package storage

import (
	"testing"

	"github.com/kbukum/persist/entity"
	apperrors "github.com/kbukum/persist/errors"
)

func TestFilter_Conditions(t *testing.T) {
	conds, err := Filter{
		"name":        "ann",
		"age(min)":    18,
		"id( not in)": []any{1, 2},
		"tag (like)":  "go",
	}.Conditions()
	if err != nil {
		t.Fatal(err)
	}
	want := []Condition{
		{Field: "age", Op: OpMin, Value: 18},
		{Field: "id", Op: OpNotIn},
		{Field: "name", Op: OpEq, Value: "ann"},
		{Field: "tag", Op: OpLike, Value: "go"},
	}
	if len(conds) != len(want) {
		t.Fatalf("got %d conditions, want %d", len(conds), len(want))
	}
	for i, w := range want {
		if conds[i].Field != w.Field || conds[i].Op != w.Op {
			t.Errorf("condition %d = %s(%s), want %s(%s)", i, conds[i].Field, conds[i].Op, w.Field, w.Op)
		}
	}
}

func TestFilter_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
	}{
		{"unknown op", Filter{"age(between)": 1}},
		{"unclosed", Filter{"age(min": 1}},
		{"empty field", Filter{"(eq)": 1}},
		{"bad field", Filter{"a.b": 1}},
		{"in needs list", Filter{"id(in)": 1}},
		{"not in needs list", Filter{"id(not in)": "x"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.filter.Conditions()
			if !apperrors.HasCode(err, apperrors.ErrCodeInvalidArgument) {
				t.Errorf("expected INVALID_ARGUMENT, got %v", err)
			}
		})
	}
}

func TestFilter_Empty(t *testing.T) {
	conds, err := Filter(nil).Conditions()
	if err != nil || len(conds) != 0 {
		t.Errorf("nil filter should parse to nothing, got %v, %v", conds, err)
	}
}

func TestFilterOnID(t *testing.T) {
	if f := FilterOnID(3); f["id"] != 3 || len(f) != 1 {
		t.Errorf("FilterOnID(3) = %v", f)
	}
	if f := FilterOnID(3, OpEq); f["id"] != 3 {
		t.Errorf("explicit eq should use the bare key, got %v", f)
	}
	if f := FilterOnID([]any{1, 2}, OpIn); len(f["id(in)"].([]any)) != 2 {
		t.Errorf("FilterOnID in = %v", f)
	}
}

func TestFilterExclude(t *testing.T) {
	f, err := FilterExclude(entity.NewRecord(entity.PlainData{"id": "a"}))
	if err != nil {
		t.Fatal(err)
	}
	if f["id(not)"] != "a" {
		t.Errorf("FilterExclude = %v", f)
	}
	if _, err := FilterExclude(entity.NewRecord(nil)); !apperrors.HasCode(err, apperrors.ErrCodeInvalidArgument) {
		t.Errorf("expected INVALID_ARGUMENT without id, got %v", err)
	}
}
