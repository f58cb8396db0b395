package storage

import (
	"sort"
	"strings"

	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/errors"
)

// Op is a filter operator.
type Op string

const (
	OpEq    Op = "eq"
	OpNot   Op = "not"
	OpIn    Op = "in"
	OpNotIn Op = "not in"
	OpMin   Op = "min"
	OpMax   Op = "max"
	OpLike  Op = "like"
)

var validOps = map[Op]bool{
	OpEq: true, OpNot: true, OpIn: true, OpNotIn: true,
	OpMin: true, OpMax: true, OpLike: true,
}

// Condition is one parsed filter entry.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter selects records. Keys are a field name, optionally followed by an
// operator in parentheses:
//
//	storage.Filter{"status": "active", "age(min)": 18, "id(not in)": []any{1, 2}}
//
// All conditions must hold. An empty filter matches everything.
type Filter map[string]any

// Conditions parses the filter. Conditions are ordered by key so that
// backends produce stable queries.
func (f Filter) Conditions() ([]Condition, error) {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]Condition, 0, len(keys))
	for _, key := range keys {
		field, op, err := parseKey(key)
		if err != nil {
			return nil, err
		}
		value := f[key]
		if (op == OpIn || op == OpNotIn) && !isList(value) {
			return nil, errors.InvalidArgumentf("filter %q needs a list value, got %T", key, value)
		}
		conds = append(conds, Condition{Field: field, Op: op, Value: value})
	}
	return conds, nil
}

func parseKey(key string) (string, Op, error) {
	field, op := strings.TrimSpace(key), OpEq
	if i := strings.IndexByte(field, '('); i >= 0 {
		if !strings.HasSuffix(field, ")") {
			return "", "", errors.InvalidArgumentf("malformed filter key %q", key)
		}
		op = Op(strings.TrimSpace(field[i+1 : len(field)-1]))
		field = strings.TrimSpace(field[:i])
	}
	if !validOps[op] {
		return "", "", errors.InvalidArgumentf("unknown filter operator %q in %q", op, key).
			WithDetail("operator", string(op))
	}
	if !validField(field) {
		return "", "", errors.InvalidArgumentf("invalid filter field %q", field)
	}
	return field, op, nil
}

// validField accepts names made of letters, digits, '_' and '-'.
func validField(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// FilterOnID builds a filter on the default id field. Without op it matches
// the id exactly; pass OpIn with a slice to match several ids.
func FilterOnID(id any, op ...Op) Filter {
	key := entity.IDField
	if len(op) > 0 && op[0] != OpEq {
		key += "(" + string(op[0]) + ")"
	}
	return Filter{key: id}
}

// FilterExclude builds a filter matching every record except e.
func FilterExclude(e entity.Identifiable) (Filter, error) {
	if e == nil || entity.IsAbsentID(e.ID()) {
		return nil, errors.InvalidArgument("cannot exclude an entity without an id")
	}
	return FilterOnID(e.ID(), OpNot), nil
}
