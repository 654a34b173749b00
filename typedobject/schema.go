package typedobject

import (
	"reflect"
	"strings"

	"github.com/agentrun/core/tool"
)

// SchemaFromType derives a tool.InputSchema from a Go struct type by
// reflecting over its exported fields' `json` tags — the host-language
// equivalent of walking a declarative tool.DomainType, using the same
// primitive-type mapping and cardinality rules tool.DomainType.ToInputSchema
// applies (see tool/schema.go): a field is required unless its json tag
// carries ",omitempty" or it is itself a pointer. filters is a
// tool.PropertyPredicate chain applied to the top-level field names,
// composing by conjunction in the order given, exactly as
// tool.DomainType.Filters does.
func SchemaFromType(t reflect.Type, filters ...tool.PropertyPredicate) tool.InputSchema {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return tool.InputSchema{}
	}

	var params []tool.Parameter
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, skip, omitempty := jsonFieldName(f)
		if skip {
			continue
		}
		if !tool.MatchesFilters(name, filters) {
			continue
		}
		params = append(params, fieldParameter(name, f.Type, !omitempty))
	}
	return tool.InputSchema{Parameters: params}
}

func jsonFieldName(f reflect.StructField) (name string, skip, omitempty bool) {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return f.Name, false, false
	}
	parts := strings.Split(tag, ",")
	name = f.Name
	if parts[0] == "-" {
		return "", true, false
	}
	if parts[0] != "" {
		name = parts[0]
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omitempty = true
		}
	}
	return name, false, omitempty
}

func fieldParameter(name string, ft reflect.Type, required bool) tool.Parameter {
	for ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
		required = false
	}
	switch ft.Kind() {
	case reflect.String:
		return tool.Parameter{Name: name, Type: tool.TypeString, Required: required}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return tool.Parameter{Name: name, Type: tool.TypeInteger, Required: required}
	case reflect.Float32, reflect.Float64:
		return tool.Parameter{Name: name, Type: tool.TypeNumber, Required: required}
	case reflect.Bool:
		return tool.Parameter{Name: name, Type: tool.TypeBoolean, Required: required}
	case reflect.Slice, reflect.Array:
		return arrayParameter(name, ft.Elem())
	case reflect.Struct:
		nested := SchemaFromType(ft)
		return tool.Parameter{Name: name, Type: tool.TypeObject, Required: required, NestedProperties: nested.Parameters}
	default:
		return tool.Parameter{Name: name, Type: tool.TypeString, Required: required}
	}
}

func arrayParameter(name string, elem reflect.Type) tool.Parameter {
	for elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	switch elem.Kind() {
	case reflect.Struct:
		return tool.Parameter{Name: name, Type: tool.TypeArray, ItemType: tool.TypeObject, Required: true, NestedProperties: SchemaFromType(elem).Parameters}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return tool.Parameter{Name: name, Type: tool.TypeArray, ItemType: tool.TypeInteger, Required: true}
	case reflect.Float32, reflect.Float64:
		return tool.Parameter{Name: name, Type: tool.TypeArray, ItemType: tool.TypeNumber, Required: true}
	case reflect.Bool:
		return tool.Parameter{Name: name, Type: tool.TypeArray, ItemType: tool.TypeBoolean, Required: true}
	default:
		return tool.Parameter{Name: name, Type: tool.TypeArray, ItemType: tool.TypeString, Required: true}
	}
}
