package storage

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/pipeline"
)

// Match reports whether data satisfies every condition.
func Match(conds []Condition, data entity.PlainData) bool {
	for _, c := range conds {
		if !matchOne(c, data) {
			return false
		}
	}
	return true
}

func matchOne(c Condition, data entity.PlainData) bool {
	v, ok := data[c.Field]
	switch c.Op {
	case OpEq:
		return ok && equal(v, c.Value)
	case OpNot:
		return !ok || !equal(v, c.Value)
	case OpIn:
		return ok && contains(c.Value, v)
	case OpNotIn:
		return !ok || !contains(c.Value, v)
	case OpMin:
		n, ordered := compare(v, c.Value)
		return ok && ordered && n >= 0
	case OpMax:
		n, ordered := compare(v, c.Value)
		return ok && ordered && n <= 0
	case OpLike:
		s, isString := v.(string)
		return ok && isString && strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(c.Value)))
	}
	return false
}

// MatchText reports whether every whitespace separated term appears, case
// insensitively, in one of the string values of data.
func MatchText(data entity.PlainData, terms string) bool {
	words := strings.Fields(strings.ToLower(terms))
	if len(words) == 0 {
		return true
	}
	var texts []string
	for _, v := range data {
		if s, ok := v.(string); ok {
			texts = append(texts, strings.ToLower(s))
		}
	}
	for _, w := range words {
		if !slices.ContainsFunc(texts, func(s string) bool { return strings.Contains(s, w) }) {
			return false
		}
	}
	return true
}

// Select filters, sorts and pages records in process. It is used by the
// backends that cannot push a query down to storage.
func Select(ctx context.Context, records []entity.PlainData, conds []Condition, opts Options) ([]entity.PlainData, error) {
	matched, err := pipeline.Collect(ctx, pipeline.Filter(pipeline.FromSlice(records), func(d entity.PlainData) bool {
		return Match(conds, d)
	}))
	if err != nil {
		return nil, err
	}
	SortRecords(matched, opts.Sort)
	return Page(matched, opts), nil
}

// SortRecords sorts records in place by the given sort entries. Records
// missing a field sort first.
func SortRecords(records []entity.PlainData, sortBy []string) {
	if len(sortBy) == 0 {
		return
	}
	slices.SortStableFunc(records, func(a, b entity.PlainData) int {
		for _, entry := range sortBy {
			field, desc := SortKey(entry)
			n := compareField(a, b, field)
			if desc {
				n = -n
			}
			if n != 0 {
				return n
			}
		}
		return 0
	})
}

// Page applies offset and limit.
func Page[T any](items []T, opts Options) []T {
	n := opts.Window(len(items))
	if n == 0 {
		return nil
	}
	return items[opts.Offset : opts.Offset+n]
}

func compareField(a, b entity.PlainData, field string) int {
	va, oka := a[field]
	vb, okb := b[field]
	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return -1
	case !okb:
		return 1
	}
	if n, ok := compare(va, vb); ok {
		return n
	}
	return cmp.Compare(fmt.Sprint(va), fmt.Sprint(vb))
}

// compare orders two scalars. Numbers of any Go type compare by value.
func compare(a, b any) (int, bool) {
	if ia, ok := intOf(a); ok {
		if ib, ok := intOf(b); ok {
			return ia.compare(ib), true
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp.Compare(fa, fb), true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func equal(a, b any) bool {
	if n, ok := compare(a, b); ok {
		return n == 0
	}
	return reflect.DeepEqual(a, b)
}

func contains(list, v any) bool {
	rv := reflect.ValueOf(list)
	for i := 0; i < rv.Len(); i++ {
		if equal(v, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// integer holds any Go integer as sign and magnitude, so int64 and uint64
// values compare exactly.
type integer struct {
	neg bool
	mag uint64
}

func intOf(v any) (integer, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < 0 {
			return integer{neg: true, mag: uint64(-(n + 1)) + 1}, true
		}
		return integer{mag: uint64(n)}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return integer{mag: rv.Uint()}, true
	}
	return integer{}, false
}

func (x integer) compare(y integer) int {
	switch {
	case x.neg && !y.neg:
		return -1
	case !x.neg && y.neg:
		return 1
	case x.neg:
		return cmp.Compare(y.mag, x.mag)
	}
	return cmp.Compare(x.mag, y.mag)
}

func (x integer) String() string {
	if x.neg {
		return "-" + strconv.FormatUint(x.mag, 10)
	}
	return strconv.FormatUint(x.mag, 10)
}
