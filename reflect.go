package sfntasks

import (
	"reflect"
	"strings"
	"time"
)

var (
	durationType  = reflect.TypeOf(time.Duration(0))
	taskInputType = reflect.TypeOf(&TaskInput{})
)

// apiObject converts a nested props struct into the service API request shape. Fields
// keep their Go names unless an `api` tag renames them; zero values are omitted.
// Durations render as seconds, or minutes with the `minutes` tag option. Embedded
// structs such as TaskProps are skipped.
func apiObject(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	out, _ := apiValue(rv, "").(map[string]any)
	return out
}

func apiValue(rv reflect.Value, unit string) any {
	if rv.Type() == taskInputType {
		if rv.IsNil() {
			return nil
		}
		return rv.Interface().(*TaskInput).value()
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return apiValue(rv.Elem(), unit)
	case reflect.Struct:
		out := map[string]any{}
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Anonymous {
				continue
			}
			name, fieldUnit, skip := apiName(f)
			if skip {
				continue
			}
			fv := rv.Field(i)
			if isZero(fv) {
				continue
			}
			if v := apiValue(fv, fieldUnit); v != nil {
				out[name] = v
			}
		}
		return out
	case reflect.Slice:
		if rv.Len() == 0 {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.String {
			items := make([]string, 0, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				items = append(items, rv.Index(i).String())
			}
			return items
		}
		items := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if v := apiValue(rv.Index(i), unit); v != nil {
				items = append(items, v)
			}
		}
		return items
	case reflect.Map:
		if rv.Len() == 0 {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if v := apiValue(iter.Value(), unit); v != nil {
				out[iter.Key().String()] = v
			}
		}
		return out
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int32, reflect.Int64:
		if rv.Type() == durationType {
			d := time.Duration(rv.Int())
			if unit == "minutes" {
				return int(d / time.Minute)
			}
			return int(d / time.Second)
		}
		return int(rv.Int())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return rv.Interface()
	}
}

func apiName(f reflect.StructField) (name, unit string, skip bool) {
	tag, ok := f.Tag.Lookup("api")
	if !ok {
		return f.Name, "", false
	}
	if tag == "-" {
		return "", "", true
	}
	name, unit, _ = strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, unit, false
}

func isZero(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	default:
		return rv.IsZero()
	}
}

type validator interface{ Valid() bool }

var validatorType = reflect.TypeOf((*validator)(nil)).Elem()

// validateStruct checks `field:"required"` tags and enum values (types with a Valid
// method) throughout a nested props struct. Field names in messages use the json names.
func validateStruct(p *problems, prefix string, v any) {
	walkValidate(p, prefix, reflect.ValueOf(v))
}

func walkValidate(p *problems, prefix string, rv reflect.Value) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Anonymous {
				continue
			}
			name := jsonName(f)
			path := name
			if prefix != "" {
				path = prefix + "." + name
			}
			fv := rv.Field(i)
			if f.Tag.Get("field") == "required" && isZero(fv) {
				p.required(path)
				continue
			}
			if !isZero(fv) && fv.Type().Implements(validatorType) && fv.Kind() == reflect.String {
				if !fv.Interface().(validator).Valid() {
					p.invalid(path, "%s has an unsupported value %q", path, fv.String())
				}
				continue
			}
			walkValidate(p, path, fv)
		}
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.String {
			for i := 0; i < rv.Len(); i++ {
				item := rv.Index(i)
				if item.Type().Implements(validatorType) && !item.Interface().(validator).Valid() {
					p.invalid(prefix, "%s has an unsupported value %q", prefix, item.String())
				}
			}
			return
		}
		for i := 0; i < rv.Len(); i++ {
			walkValidate(p, prefix, rv.Index(i))
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			walkValidate(p, prefix+"."+iter.Key().String(), iter.Value())
		}
	}
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}
