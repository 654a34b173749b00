// Package facade implements the progressive and state-scoped tool
// visibility models: UnfoldingTool, which reveals a fixed inner set of
// tools on demand, and StateMachineTool, which scopes tool visibility to a
// named conversation state.
package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentrun/core/tool"
)

// RevealMode selects how an UnfoldingTool chooses which of its inner tools
// to reveal when invoked.
type RevealMode int

const (
	// RevealAll always reveals every inner tool, ignoring the call input.
	RevealAll RevealMode = iota
	// RevealSelector reveals the subset chosen by a selection function
	// over the call's JSON input.
	RevealSelector
	// RevealByCategory reveals the inner tools tagged with the single
	// category named by the call's "category" string input.
	RevealByCategory
)

// Injector is the runtime's tool-injection strategy hook: it publishes
// newly revealed tools into the loop's available-tools set and, when
// removeOnInvoke is true, removes the façade tool itself from that set.
// The tool loop driver supplies the concrete implementation; this package
// only calls it.
type Injector interface {
	Inject(facadeName string, revealed []tool.Tool, removeFacade bool)
}

// Category names a group of tools revealed together by a by-category
// UnfoldingTool.
type Category struct {
	Name  string
	Tools []tool.Tool
}

// UnfoldingTool is a façade tool carrying a fixed inner set of tools,
// revealed into the loop's available-tools set when called.
type UnfoldingTool struct {
	name                string
	description         string
	mode                RevealMode
	innerTools          []tool.Tool
	categories          []Category
	selector            func(input json.RawMessage, inner []tool.Tool) ([]tool.Tool, error)
	childToolUsageNotes string
	removeOnInvoke      bool
	injector            Injector
}

// NewUnfoldingTool constructs an all-reveal façade: calling it always
// reveals every tool in innerTools. The caller always passes removeOnInvoke
// (there is no default): true removes the façade when its children appear;
// false keeps the façade callable afterward.
func NewUnfoldingTool(name, description string, innerTools []tool.Tool, removeOnInvoke bool, injector Injector) *UnfoldingTool {
	return &UnfoldingTool{
		name:           name,
		description:    description,
		mode:           RevealAll,
		innerTools:     innerTools,
		removeOnInvoke: removeOnInvoke,
		injector:       injector,
	}
}

// NewSelectorUnfoldingTool constructs a façade whose revealed subset is
// chosen by selector from the call's raw JSON input.
func NewSelectorUnfoldingTool(name, description string, innerTools []tool.Tool, selector func(json.RawMessage, []tool.Tool) ([]tool.Tool, error), removeOnInvoke bool, injector Injector) *UnfoldingTool {
	return &UnfoldingTool{
		name:           name,
		description:    description,
		mode:           RevealSelector,
		innerTools:     innerTools,
		selector:       selector,
		removeOnInvoke: removeOnInvoke,
		injector:       injector,
	}
}

// NewCategoryUnfoldingTool constructs a façade whose single "category"
// string parameter selects which named group of inner tools is revealed.
// The parameter's enum lists the known category names.
func NewCategoryUnfoldingTool(name, description string, categories []Category, removeOnInvoke bool, injector Injector) *UnfoldingTool {
	var all []tool.Tool
	for _, c := range categories {
		all = append(all, c.Tools...)
	}
	return &UnfoldingTool{
		name:           name,
		description:    description,
		mode:           RevealByCategory,
		innerTools:     all,
		categories:     categories,
		removeOnInvoke: removeOnInvoke,
		injector:       injector,
	}
}

// NewCategory groups a named set of tools for use with
// NewCategoryUnfoldingTool.
func NewCategory(name string, tools ...tool.Tool) Category {
	return Category{Name: name, Tools: tools}
}

// WithChildToolUsageNotes attaches guidance shown to the model alongside the
// confirmation message once children are revealed.
func (u *UnfoldingTool) WithChildToolUsageNotes(notes string) *UnfoldingTool {
	u.childToolUsageNotes = notes
	return u
}

// Definition implements tool.Tool.
func (u *UnfoldingTool) Definition() tool.Definition {
	params := []tool.Parameter{}
	if u.mode == RevealByCategory {
		var names []string
		for _, c := range u.categories {
			names = append(names, c.Name)
		}
		params = append(params, tool.Parameter{
			Name:        "category",
			Type:        tool.TypeString,
			Description: "Which group of tools to enable",
			Required:    true,
			EnumValues:  names,
		})
	}
	return tool.Definition{
		Name:        u.name,
		Description: u.description,
		InputSchema: tool.InputSchema{Parameters: params},
	}
}

// Call implements tool.Tool: it resolves the revealed subset for this
// invocation, asks the injector to publish it into availableTools (removing
// the façade itself when removeOnInvoke is set), and returns a textual
// confirmation naming what was enabled.
func (u *UnfoldingTool) Call(ctx context.Context, argumentsJSON json.RawMessage) tool.Result {
	revealed, err := u.selectTools(argumentsJSON)
	if err != nil {
		return tool.ErrorResult(err)
	}
	if u.injector != nil {
		u.injector.Inject(u.name, revealed, u.removeOnInvoke)
	}

	names := make([]string, 0, len(revealed))
	for _, t := range revealed {
		names = append(names, t.Definition().Name)
	}
	msg := fmt.Sprintf("Enabled %d tools: %s", len(revealed), strings.Join(names, ", "))
	if u.childToolUsageNotes != "" {
		msg += "\n\n" + u.childToolUsageNotes
	}
	return tool.TextResult(msg)
}

func (u *UnfoldingTool) selectTools(argumentsJSON json.RawMessage) ([]tool.Tool, error) {
	switch u.mode {
	case RevealAll:
		return u.innerTools, nil
	case RevealSelector:
		if u.selector == nil {
			return u.innerTools, nil
		}
		return u.selector(argumentsJSON, u.innerTools)
	case RevealByCategory:
		var input struct {
			Category string `json:"category"`
		}
		if len(argumentsJSON) > 0 {
			if err := json.Unmarshal(argumentsJSON, &input); err != nil {
				return nil, fmt.Errorf("facade: %s: invalid category selection: %w", u.name, err)
			}
		}
		for _, c := range u.categories {
			if c.Name == input.Category {
				return c.Tools, nil
			}
		}
		return nil, fmt.Errorf("facade: %s: unknown category %q", u.name, input.Category)
	default:
		return u.innerTools, nil
	}
}
