package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Describer is implemented by a host object that wants its methods exposed
// as tools. ToolDescriptions returns one Definition per exported method that
// should be reflected into a Tool, keyed by the method's Go name; this is
// the tool-marker convention ToolObject reflects on, standing in for an
// annotation system Go methods cannot carry directly.
//
// Each described method must have the signature
// func(context.Context, <args struct>) (<result struct>, error) or
// func(context.Context, <args struct>) Result.
type Describer interface {
	ToolDescriptions() map[string]Definition
}

// Filter decides whether a method discovered on a ToolObject should be
// exposed. A nil Filter admits every described method.
type Filter func(methodName string) bool

// And composes filters by conjunction: every filter must admit the method.
func And(filters ...Filter) Filter {
	return func(name string) bool {
		for _, f := range filters {
			if f != nil && !f(name) {
				return false
			}
		}
		return true
	}
}

// ToolObject wraps an opaque host value plus a NamingStrategy and Filter,
// and lazily expands into a list of Tool by reflecting over the host's
// described methods. A ToolObject must not itself be an iterable container
// (slice, array, or map): that would flatten the wrapped value into
// unrelated per-element tools instead of the tools the host explicitly
// describes, so NewToolObject rejects it.
type ToolObject struct {
	host   Describer
	naming NamingStrategy
	filter Filter
}

// NewToolObject constructs a ToolObject. It returns an error if host's
// dynamic value is a slice, array, or map.
func NewToolObject(host Describer, naming NamingStrategy, filter Filter) (*ToolObject, error) {
	v := reflect.ValueOf(host)
	if v.IsValid() {
		switch v.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return nil, fmt.Errorf("tool: ToolObject host must not be an iterable container, got %s", v.Kind())
		}
	}
	if naming == nil {
		naming = IdentityNaming{}
	}
	return &ToolObject{host: host, naming: naming, filter: filter}, nil
}

// Tools expands the ToolObject into its constituent Tools, applying the
// naming strategy and filter. The expansion happens on every call rather
// than being cached, so a host whose ToolDescriptions vary by internal
// state (e.g. a state machine) stays accurate.
func (o *ToolObject) Tools() []Tool {
	descriptions := o.host.ToolDescriptions()
	names := make([]string, 0, len(descriptions))
	for name := range descriptions {
		names = append(names, name)
	}
	sortStrings(names)

	hostValue := reflect.ValueOf(o.host)
	var out []Tool
	for _, methodName := range names {
		if o.filter != nil && !o.filter(methodName) {
			continue
		}
		def := descriptions[methodName]
		method := hostValue.MethodByName(methodName)
		if !method.IsValid() {
			continue
		}
		def.Name = o.naming.Name(def.Name)
		out = append(out, &reflectTool{def: def, method: method})
	}
	return out
}

// sortStrings avoids pulling in "sort" for a single call site's worth of use
// while keeping the expansion's tool order deterministic across calls.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// reflectTool adapts a single reflected method into the Tool interface. The
// method must accept (context.Context, argsPtr) and return either
// (Result) or (resultValue, error); arguments are unmarshaled into a fresh
// zero value of the method's second parameter type before the call.
type reflectTool struct {
	def    Definition
	method reflect.Value
}

// Definition implements Tool.
func (t *reflectTool) Definition() Definition { return t.def }

// Call implements Tool.
func (t *reflectTool) Call(ctx context.Context, argumentsJSON json.RawMessage) Result {
	mt := t.method.Type()
	if mt.NumIn() != 2 {
		return ErrorResult(fmt.Errorf("tool: %s must accept exactly (context.Context, args)", t.def.Name))
	}
	argType := mt.In(1)
	argPtr := reflect.New(argType)
	if len(argumentsJSON) > 0 {
		if err := json.Unmarshal(argumentsJSON, argPtr.Interface()); err != nil {
			return ErrorResult(fmt.Errorf("tool: %s: unmarshal arguments: %w", t.def.Name, err))
		}
	}

	results := t.method.Call([]reflect.Value{reflect.ValueOf(ctx), argPtr.Elem()})
	return adaptCallResults(t.def.Name, results)
}

func adaptCallResults(name string, results []reflect.Value) Result {
	switch len(results) {
	case 1:
		if r, ok := results[0].Interface().(Result); ok {
			return r
		}
		return ErrorResult(fmt.Errorf("tool: %s: unsupported single return value type", name))
	case 2:
		errVal := results[1].Interface()
		if errVal != nil {
			err, ok := errVal.(error)
			if !ok {
				return ErrorResult(fmt.Errorf("tool: %s: second return value is not an error", name))
			}
			if err != nil {
				return ErrorResult(err)
			}
		}
		payload, err := json.Marshal(results[0].Interface())
		if err != nil {
			return ErrorResult(fmt.Errorf("tool: %s: marshal result: %w", name, err))
		}
		return TextResult(string(payload))
	default:
		return ErrorResult(fmt.Errorf("tool: %s: method must return (Result) or (value, error)", name))
	}
}
