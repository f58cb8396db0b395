package entity

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/persist/errors"
)

const tagName = "json"

// Encode converts a struct (or pointer to struct) to PlainData using json
// field tags. Fields tagged "-" are skipped and ",omitempty" is honoured.
func Encode(v any) (PlainData, error) {
	out := PlainData{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: tagName,
		Result:  &out,
	})
	if err != nil {
		return nil, errors.Internal(err)
	}
	if err := dec.Decode(v); err != nil {
		return nil, errors.InvalidArgumentf("cannot encode %T", v).WithCause(err)
	}
	return out, nil
}

// Decode assigns data onto target, a pointer to a struct, matching keys to
// json field tags case-insensitively. Numeric and string values are
// converted where the field type requires it, and RFC 3339 strings decode
// into time.Time.
//
// Keys with no matching field are ignored unless allowNewFields is set, in
// which case they land in the struct's ",remain" map field if it has one.
func Decode(data PlainData, target any, allowNewFields bool) error {
	if !allowNewFields {
		data = onlyDeclared(data, target)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          tagName,
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return errors.InvalidArgumentf("cannot decode into %T", target).WithCause(err)
	}
	if err := dec.Decode(map[string]any(data)); err != nil {
		return errors.InvalidArgumentf("cannot decode into %T", target).WithCause(err)
	}
	return nil
}

// onlyDeclared drops keys that do not correspond to a field of target.
func onlyDeclared(data PlainData, target any) PlainData {
	t := reflect.TypeOf(target)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return data
	}
	known := make(map[string]struct{})
	collectFieldNames(t, known)

	out := make(PlainData, len(data))
	for k, v := range data {
		if _, ok := known[strings.ToLower(k)]; ok {
			out[k] = v
		}
	}
	return out
}

func collectFieldNames(t reflect.Type, known map[string]struct{}) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get(tagName), ",")
		if name == "-" || strings.Contains(opts, "remain") {
			continue
		}
		if f.Anonymous && (name == "" || strings.Contains(opts, "squash")) {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectFieldNames(ft, known)
				continue
			}
		}
		if name == "" {
			name = f.Name
		}
		known[strings.ToLower(name)] = struct{}{}
	}
}
