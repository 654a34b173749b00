package process

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nexus-rpc/sdk-go/nexus"

	"github.com/agentrun/core/blackboard"
)

// PlanOperation is the Nexus operation name the external GOAP planner
// exposes: Plan(Blackboard, Goal) -> Action[]. AgentProcess treats the
// planner purely as a boundary collaborator reached over Nexus; it never
// itself decides a plan.
const PlanOperation = "agentrun.plan"

// PlanRequest is the Nexus operation input.
type PlanRequest struct {
	Goal string `json:"goal"`
	// Bound lists the TypeKeys currently bound on the blackboard, so the
	// planner can evaluate its preconditions without this module exposing
	// bound values it cannot safely serialize generically.
	Bound []string `json:"bound"`
}

// PlannedAction is a single step of the plan the external planner returns.
type PlannedAction struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// PlanResponse is the Nexus operation output.
type PlanResponse struct {
	Actions []PlannedAction `json:"actions"`
}

// executor captures the subset of *nexus.HTTPClient this package calls
// through, so a fake can stand in for tests without a live Nexus endpoint.
type executor interface {
	ExecuteOperation(ctx context.Context, operation string, input any, options nexus.ExecuteOperationOptions) (any, error)
}

// NexusPlanner calls the external planner over Nexus.
type NexusPlanner struct {
	client executor
}

// NewNexusPlanner builds a client bound to a Nexus endpoint serving the
// planner service at baseURL, under the given Nexus service name.
func NewNexusPlanner(baseURL, service string, httpClient *http.Client) (*NexusPlanner, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	client, err := nexus.NewHTTPClient(nexus.HTTPClientOptions{
		BaseURL:    baseURL,
		Service:    service,
		HTTPCaller: httpClient.Do,
	})
	if err != nil {
		return nil, fmt.Errorf("planner: create nexus client: %w", err)
	}
	return &NexusPlanner{client: client}, nil
}

// Plan invokes the external planner with the blackboard keys bound so far
// and the driving goal, returning the ordered action list it proposes.
func (p *NexusPlanner) Plan(ctx context.Context, bb *blackboard.Blackboard, goal string) ([]PlannedAction, error) {
	req := PlanRequest{Goal: goal, Bound: boundKeys(bb)}

	raw, err := p.client.ExecuteOperation(ctx, PlanOperation, req, nexus.ExecuteOperationOptions{})
	if err != nil {
		return nil, fmt.Errorf("planner: execute operation: %w", err)
	}

	resp, err := decodePlanResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("planner: decode response: %w", err)
	}
	return resp.Actions, nil
}

func decodePlanResponse(raw any) (PlanResponse, error) {
	if v, ok := raw.(PlanResponse); ok {
		return v, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return PlanResponse{}, err
	}
	var resp PlanResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return PlanResponse{}, err
	}
	return resp, nil
}

func boundKeys(bb *blackboard.Blackboard) []string {
	if bb == nil {
		return nil
	}
	keys := bb.Keys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}
