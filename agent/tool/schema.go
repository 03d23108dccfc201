package tool

import (
	"fmt"
	"reflect"
	"strings"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	"github.com/cloudwego/eino/schema"
	"github.com/mitchellh/mapstructure"
)

// Struct tags read when deriving a tool schema from an args struct:
//
//	json:"name,omitempty"  property name; omitempty makes it optional
//	desc:"..."             property description
//	default:"..."          applied when the model omits the property; optional
//	inject:"key"           filled from bindings, hidden from the model
const (
	tagDesc    = "desc"
	tagDefault = "default"
	tagInject  = "inject"
)

type fieldSpec struct {
	index    []int
	name     string
	inject   string
	fallback string
	hasDef   bool
}

// ParamsOf derives a parameter schema from the exported fields of T.
func ParamsOf[T any]() (map[string]*schema.ParameterInfo, error) {
	fields, err := fieldsOf(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	t := structType(reflect.TypeFor[T]())

	params := make(map[string]*schema.ParameterInfo, len(fields))
	for _, f := range fields {
		if f.inject != "" {
			continue
		}
		sf := t.FieldByIndex(f.index)
		desc := sf.Tag.Get(tagDesc)
		if desc == "" {
			desc = f.name
		}
		params[f.name] = &schema.ParameterInfo{
			Type:     dataTypeOf(sf.Type),
			Desc:     desc,
			Required: isRequired(sf, f),
		}
	}
	return params, nil
}

func structType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func fieldsOf(t reflect.Type) ([]fieldSpec, error) {
	t = structType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: tool args must be a struct, got %v", contractx.ErrValidation, t)
	}

	out := make([]fieldSpec, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		spec := fieldSpec{index: sf.Index}
		if key, ok := sf.Tag.Lookup(tagInject); ok {
			spec.inject = strings.TrimSpace(key)
			if spec.inject == "" {
				spec.inject = sf.Name
			}
			out = append(out, spec)
			continue
		}

		name, _ := jsonName(sf)
		if name == "-" {
			continue
		}
		spec.name = name
		spec.fallback, spec.hasDef = sf.Tag.Lookup(tagDefault)
		out = append(out, spec)
	}
	return out, nil
}

func jsonName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name, false
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = sf.Name
	}
	return name, strings.Contains(opts, "omitempty")
}

func isRequired(sf reflect.StructField, f fieldSpec) bool {
	if f.hasDef || sf.Type.Kind() == reflect.Pointer {
		return false
	}
	_, omitempty := jsonName(sf)
	return !omitempty
}

func dataTypeOf(t reflect.Type) schema.DataType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return schema.Integer
	case reflect.Float32, reflect.Float64:
		return schema.Number
	case reflect.Bool:
		return schema.Boolean
	default:
		return schema.String
	}
}

// decodeArgs fills T from the merged argument map. Injected fields are set
// from bindings directly and never pass through the decoder.
func decodeArgs[T any](args map[string]any) (T, error) {
	var out T
	fields, err := fieldsOf(reflect.TypeFor[T]())
	if err != nil {
		return out, err
	}

	plain := make(map[string]any, len(args))
	for k, v := range args {
		plain[k] = v
	}
	for _, f := range fields {
		if f.inject != "" {
			delete(plain, f.inject)
			continue
		}
		if _, ok := plain[f.name]; !ok && f.hasDef {
			plain[f.name] = f.fallback
		}
	}

	target := reflect.ValueOf(&out).Elem()
	if target.Kind() == reflect.Pointer {
		target.Set(reflect.New(target.Type().Elem()))
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target.Addr().Interface(),
	})
	if err != nil {
		return out, fmt.Errorf("build args decoder: %w", err)
	}
	if err := dec.Decode(plain); err != nil {
		return out, fmt.Errorf("%w: decode tool args: %v", contractx.ErrValidation, err)
	}

	structVal := reflect.Indirect(target)
	for _, f := range fields {
		if f.inject == "" {
			continue
		}
		val, ok := args[f.inject]
		if !ok || val == nil {
			continue
		}
		field := structVal.FieldByIndex(f.index)
		rv := reflect.ValueOf(val)
		if !rv.Type().AssignableTo(field.Type()) {
			return out, fmt.Errorf("%w: binding %q has type %T", contractx.ErrValidation, f.inject, val)
		}
		field.Set(rv)
	}
	return out, nil
}
