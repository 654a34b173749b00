// Package tool implements the tool and schema model: the
// Tool/Definition/InputSchema record types, JSON-Schema generation from a
// declarative DomainType, reflection-based registration of ToolObjects, and
// the naming strategies used to de-duplicate tool names within a scope.
package tool

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ParamType enumerates the primitive and structural JSON types a Parameter
// can declare.
type ParamType string

const (
	TypeString  ParamType = "STRING"
	TypeInteger ParamType = "INTEGER"
	TypeNumber  ParamType = "NUMBER"
	TypeBoolean ParamType = "BOOLEAN"
	TypeArray   ParamType = "ARRAY"
	TypeObject  ParamType = "OBJECT"
)

// Parameter describes a single input field of a tool.
type Parameter struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool

	// ItemType is the element ParamType when Type is ARRAY.
	ItemType ParamType
	// EnumValues restricts a STRING parameter to a closed set of values.
	EnumValues []string
	// NestedProperties describes the fields of an OBJECT parameter,
	// recursively.
	NestedProperties []Parameter
}

// InputSchema is an ordered list of Parameters plus the derived, Draft-07-
// compatible JSON-Schema document.
type InputSchema struct {
	Parameters []Parameter
}

// JSONSchema renders the InputSchema as a Draft-07-compatible JSON Schema
// object, with "type", "properties", "required", "items" for arrays, nested
// "properties"/"required" for objects, and "enum" where declared.
func (s InputSchema) JSONSchema() map[string]any {
	properties := map[string]any{}
	var required []string
	for _, p := range s.Parameters {
		properties[p.Name] = parameterSchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func parameterSchema(p Parameter) map[string]any {
	doc := map[string]any{}
	if p.Description != "" {
		doc["description"] = p.Description
	}
	switch p.Type {
	case TypeArray:
		doc["type"] = "array"
		doc["items"] = map[string]any{"type": jsonType(p.ItemType)}
	case TypeObject:
		nested := InputSchema{Parameters: p.NestedProperties}
		sub := nested.JSONSchema()
		delete(sub, "$schema")
		for k, v := range sub {
			doc[k] = v
		}
	default:
		doc["type"] = jsonType(p.Type)
	}
	if len(p.EnumValues) > 0 {
		enum := make([]any, len(p.EnumValues))
		for i, v := range p.EnumValues {
			enum[i] = v
		}
		doc["enum"] = enum
	}
	return doc
}

func jsonType(t ParamType) string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return "string"
	}
}

// Compile builds an executable jsonschema.Schema from the InputSchema,
// letting callers (the typed-object creator, tool dispatch validation)
// validate arguments/results against it before they ever reach Go structs.
func (s InputSchema) Compile(id string) (*jsonschema.Schema, error) {
	doc := s.JSONSchema()
	c := jsonschema.NewCompiler()
	if err := c.AddResource(id, doc); err != nil {
		return nil, fmt.Errorf("tool: add schema resource %q: %w", id, err)
	}
	schema, err := c.Compile(id)
	if err != nil {
		return nil, fmt.Errorf("tool: compile schema %q: %w", id, err)
	}
	return schema, nil
}

// ValidateJSON validates raw JSON against the compiled InputSchema.
func (s InputSchema) ValidateJSON(id string, raw json.RawMessage) error {
	schema, err := s.Compile(id)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("tool: arguments are not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("tool: arguments do not satisfy schema: %w", err)
	}
	return nil
}

// PropertyPredicate decides whether a named property survives schema
// generation. Predicates compose by conjunction in registration order: a
// property is included only if every predicate in the chain returns true
// for its name.
type PropertyPredicate func(name string) bool

// IncludeOnly returns a predicate admitting only the named properties.
func IncludeOnly(names ...string) PropertyPredicate {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

// Exclude returns a predicate admitting every property except the named
// ones.
func Exclude(names ...string) PropertyPredicate {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return !set[name] }
}

// MatchesFilters reports whether name survives every predicate in filters,
// evaluated in order.
func MatchesFilters(name string, filters []PropertyPredicate) bool {
	for _, f := range filters {
		if f != nil && !f(name) {
			return false
		}
	}
	return true
}

// Cardinality enumerates the cardinality of a DomainType property.
type Cardinality string

const (
	CardinalityOne      Cardinality = "ONE"
	CardinalityOptional Cardinality = "OPTIONAL"
	CardinalityList     Cardinality = "LIST"
	CardinalitySet      Cardinality = "SET"
)

// DomainProperty is one field of a DomainType.
type DomainProperty struct {
	Name        string
	Description string
	Cardinality Cardinality

	// TypeName is a primitive type name (string/int/long/double/boolean/...),
	// mutually exclusive with Nested.
	TypeName string
	// Nested is set when the property's value is itself a DomainType.
	Nested *DomainType
}

// DomainType is a declarative schema for a tool input or output shape,
// independent of any host-language reflection mechanism — a language-
// neutral alternative to annotation-driven extraction.
type DomainType struct {
	Name       string
	Properties []DomainProperty

	// Filters is the property-filter predicate chain applied by
	// ToInputSchema, registered via WithPropertyFilter/WithProperties/
	// WithoutProperties and evaluated by conjunction in registration order.
	Filters []PropertyPredicate
}

// WithPropertyFilter returns a copy of d with pred appended to its filter
// chain.
func (d DomainType) WithPropertyFilter(pred PropertyPredicate) DomainType {
	d.Filters = append(append([]PropertyPredicate(nil), d.Filters...), pred)
	return d
}

// WithProperties restricts ToInputSchema to exactly the named properties.
func (d DomainType) WithProperties(names ...string) DomainType {
	return d.WithPropertyFilter(IncludeOnly(names...))
}

// WithoutProperties excludes the named properties from ToInputSchema.
func (d DomainType) WithoutProperties(names ...string) DomainType {
	return d.WithPropertyFilter(Exclude(names...))
}

// ToInputSchema converts d into an InputSchema following these cardinality
// and primitive-type mapping rules:
//   - string -> string; int|integer|long|short|byte -> integer;
//     double|float|number|decimal -> number; boolean|bool -> boolean;
//     anything else -> string.
//   - ONE is required; OPTIONAL is not required; LIST/SET become an array
//     schema and are always required.
//   - Nested domain types recurse into nested object schemas.
//
// Properties are dropped before conversion when they fail d.Filters.
func (d DomainType) ToInputSchema() InputSchema {
	params := make([]Parameter, 0, len(d.Properties))
	for _, p := range d.Properties {
		if !MatchesFilters(p.Name, d.Filters) {
			continue
		}
		params = append(params, p.toParameter())
	}
	return InputSchema{Parameters: params}
}

func (p DomainProperty) toParameter() Parameter {
	param := Parameter{
		Name:        p.Name,
		Description: p.Description,
		Required:    p.Cardinality == CardinalityOne,
	}
	switch p.Cardinality {
	case CardinalityList, CardinalitySet:
		param.Required = true
		param.Type = TypeArray
		param.ItemType = p.elementParamType()
		return param
	}
	if p.Nested != nil {
		param.Type = TypeObject
		nested := p.Nested.ToInputSchema()
		param.NestedProperties = nested.Parameters
		return param
	}
	param.Type = primitiveParamType(p.TypeName)
	return param
}

func (p DomainProperty) elementParamType() ParamType {
	if p.Nested != nil {
		return TypeObject
	}
	return primitiveParamType(p.TypeName)
}

func primitiveParamType(typeName string) ParamType {
	switch typeName {
	case "string":
		return TypeString
	case "int", "integer", "long", "short", "byte":
		return TypeInteger
	case "double", "float", "number", "decimal":
		return TypeNumber
	case "boolean", "bool":
		return TypeBoolean
	default:
		return TypeString
	}
}
