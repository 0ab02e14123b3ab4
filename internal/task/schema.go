package task

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// Actions accepted by the hsr_assistant tool.
const (
	ActionRun  = "run"
	ActionWait = "wait"
	ActionStop = "stop"
)

// Actions lists the accepted actions in schema order.
var Actions = []string{ActionRun, ActionWait, ActionStop}

// Schema returns the JSON schema of the hsr_assistant tool arguments:
// an action and, for run, the run config.
func Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"action": {
				Type:        "string",
				Enum:        anys(Actions),
				Description: "run starts a task, wait waits for the running task, stop terminates it.",
			},
			"run_config": RunConfigSchema(),
		},
		Required: []string{"action"},
		If:       whenEquals("action", ActionRun),
		Then:     &jsonschema.Schema{Required: []string{"run_config"}},
	}
}

// RunConfigSchema returns the JSON schema of a Request.
func RunConfigSchema() *jsonschema.Schema {
	idRules := make([]*jsonschema.Schema, len(Categories))
	for i, c := range Categories {
		idRules[i] = &jsonschema.Schema{
			If: whenEquals("category", c.Name),
			Then: &jsonschema.Schema{Properties: map[string]*jsonschema.Schema{
				"id": {Enum: anys(c.IDs)},
			}},
		}
	}

	minDifficulty, maxDifficulty := float64(MinDifficulty), float64(MaxDifficulty)
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"task": {Type: "string", Enum: anys(Kinds)},
			"material_config": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"category": {Type: "string", Enum: anys(CategoryNames())},
					"id":       {Type: "string"},
				},
				Required: []string{"category", "id"},
				AllOf:    idRules,
			},
			"universe_config": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"type":       {Type: "string", Enum: anys(UniverseTypes)},
					"difficulty": {Type: "integer", Minimum: &minDifficulty, Maximum: &maxDifficulty},
				},
				Required: []string{"type"},
			},
			"claim_reward_config": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"type": {Type: "string", Enum: anys(RewardTypes)},
				},
				Required: []string{"type"},
			},
		},
		Required: []string{"task"},
		AllOf: []*jsonschema.Schema{
			{If: whenEquals("task", string(KindMaterial)), Then: &jsonschema.Schema{Required: []string{"material_config"}}},
			{If: whenEquals("task", string(KindUniverse)), Then: &jsonschema.Schema{Required: []string{"universe_config"}}},
			{If: whenEquals("task", string(KindClaimReward)), Then: &jsonschema.Schema{Required: []string{"claim_reward_config"}}},
		},
	}
}

func whenEquals(prop, value string) *jsonschema.Schema {
	v := any(value)
	return &jsonschema.Schema{Properties: map[string]*jsonschema.Schema{
		prop: {Const: &v},
	}}
}

func anys[T ~string](vals []T) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}
