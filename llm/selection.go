// Package llm provides the SingleLlmCaller implementations the tool loop
// driver dispatches through, plus the model-selection, throttling, and
// structured provider-error machinery shared by all of them.
package llm

import (
	"fmt"

	"github.com/agentrun/core/toolloop"
)

// Role names a logical model role (e.g. "planner", "summarizer") that a
// deployment maps to a concrete model name via config, independent of any
// one provider's naming.
type Role string

// SingleLlmCaller is the provider-facing half of toolloop.Caller: it issues
// exactly one inference and never itself executes a tool call. Every
// provider adapter in this package (and its anthropiccaller/openaicaller/
// bedrockcaller subpackages) implements this directly as toolloop.Caller.
type SingleLlmCaller = toolloop.Caller

// ModelSelectionCriteria picks, from a fixed set of named callers, the one
// that should serve a request: by explicit model name, by role, with a
// fallback chain, or automatically when neither is given.
type ModelSelectionCriteria struct {
	// ByName selects the caller registered under this exact model name.
	ByName string
	// ByRole selects the caller mapped to this role via RoleModel.
	ByRole Role
	// FallbackByName is tried, in order, if the primary selection's caller
	// is not registered.
	FallbackByName []string
}

// Registry maps model names and roles to concrete SingleLlmCaller
// implementations and resolves a ModelSelectionCriteria to one of them.
type Registry struct {
	byName      map[string]SingleLlmCaller
	roleToModel map[Role]string
	defaultName string
}

// NewRegistry constructs an empty Registry. defaultModel names the caller
// used when a ModelSelectionCriteria is the zero value (automatic
// selection).
func NewRegistry(defaultModel string) *Registry {
	return &Registry{
		byName:      make(map[string]SingleLlmCaller),
		roleToModel: make(map[Role]string),
		defaultName: defaultModel,
	}
}

// Register associates a model name with a caller implementation.
func (r *Registry) Register(modelName string, caller SingleLlmCaller) *Registry {
	r.byName[modelName] = caller
	return r
}

// MapRole associates a role with the model name that should serve it.
func (r *Registry) MapRole(role Role, modelName string) *Registry {
	r.roleToModel[role] = modelName
	return r
}

// Resolve picks a SingleLlmCaller for criteria, trying ByName, then ByRole,
// then each FallbackByName entry in order, then the registry default.
func (r *Registry) Resolve(criteria ModelSelectionCriteria) (string, SingleLlmCaller, error) {
	if criteria.ByName != "" {
		if c, ok := r.byName[criteria.ByName]; ok {
			return criteria.ByName, c, nil
		}
	}
	if criteria.ByRole != "" {
		if name, ok := r.roleToModel[criteria.ByRole]; ok {
			if c, ok := r.byName[name]; ok {
				return name, c, nil
			}
		}
	}
	for _, name := range criteria.FallbackByName {
		if c, ok := r.byName[name]; ok {
			return name, c, nil
		}
	}
	if r.defaultName != "" {
		if c, ok := r.byName[r.defaultName]; ok {
			return r.defaultName, c, nil
		}
	}
	return "", nil, fmt.Errorf("llm: no caller registered for criteria %+v", criteria)
}

// SelectCaller resolves criteria against r and returns the chosen caller's
// model name alongside the caller itself, for embedding in a
// toolloop.Config.
func SelectCaller(r *Registry, criteria ModelSelectionCriteria) (string, SingleLlmCaller, error) {
	return r.Resolve(criteria)
}
