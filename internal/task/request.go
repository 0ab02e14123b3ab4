// Package task turns run requests into launch plans for the assistant: it
// validates the request against the closed task catalog, rewrites the
// assistant's config document and builds the command line.
package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Request describes one run. Exactly the config matching Task is used.
type Request struct {
	Task        Kind               `json:"task"`
	Material    *MaterialConfig    `json:"material_config,omitempty"`
	Universe    *UniverseConfig    `json:"universe_config,omitempty"`
	ClaimReward *ClaimRewardConfig `json:"claim_reward_config,omitempty"`
}

// MaterialConfig picks a material stage.
type MaterialConfig struct {
	Category string `json:"category"`
	ID       string `json:"id"`
}

// UniverseConfig picks a universe mode. Difficulty defaults to 0.
type UniverseConfig struct {
	Type       string `json:"type"`
	Difficulty *int   `json:"difficulty,omitempty"`
}

// DifficultyOrDefault returns the requested difficulty or MinDifficulty.
func (u *UniverseConfig) DifficultyOrDefault() int {
	if u.Difficulty == nil {
		return MinDifficulty
	}
	return *u.Difficulty
}

// ClaimRewardConfig picks a reward.
type ClaimRewardConfig struct {
	Type string `json:"type"`
}

// ValidationError reports a request that does not describe a runnable task.
type ValidationError struct {
	Field string // JSON path of the offending value, empty for the whole request
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Decode parses and validates a raw request. Unknown fields are ignored,
// as the published schema allows them. Every failure is a *ValidationError.
func Decode(raw json.RawMessage) (Request, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Request{}, invalid("", "run config is required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))

	var req Request
	if err := dec.Decode(&req); err != nil {
		return Request{}, invalid("", "%v", err)
	}
	if dec.More() {
		return Request{}, invalid("", "unexpected data after run config")
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate checks the request against the task catalog.
func (r Request) Validate() error {
	switch r.Task {
	case KindMaterial:
		if r.Material == nil {
			return invalid("material_config", "required for task %q", r.Task)
		}
		return r.Material.validate()
	case KindUniverse:
		if r.Universe == nil {
			return invalid("universe_config", "required for task %q", r.Task)
		}
		return r.Universe.validate()
	case KindClaimReward:
		if r.ClaimReward == nil {
			return invalid("claim_reward_config", "required for task %q", r.Task)
		}
		return r.ClaimReward.validate()
	case "":
		return invalid("task", "required")
	default:
		return invalid("task", "%q is not one of %s", r.Task, list(Kinds))
	}
}

func (m *MaterialConfig) validate() error {
	if m.Category == "" {
		return invalid("material_config.category", "required")
	}
	c, ok := LookupCategory(m.Category)
	if !ok {
		return invalid("material_config.category", "%q is not one of %s", m.Category, list(CategoryNames()))
	}
	if m.ID == "" {
		return invalid("material_config.id", "required")
	}
	if !slices.Contains(c.IDs, m.ID) {
		return invalid("material_config.id", "%q is not one of %s", m.ID, list(c.IDs))
	}
	return nil
}

func (u *UniverseConfig) validate() error {
	if !slices.Contains(UniverseTypes, u.Type) {
		if u.Type == "" {
			return invalid("universe_config.type", "required")
		}
		return invalid("universe_config.type", "%q is not one of %s", u.Type, list(UniverseTypes))
	}
	if d := u.DifficultyOrDefault(); d < MinDifficulty || d > MaxDifficulty {
		return invalid("universe_config.difficulty", "%d is outside %d..%d", d, MinDifficulty, MaxDifficulty)
	}
	return nil
}

func (c *ClaimRewardConfig) validate() error {
	if !slices.Contains(RewardTypes, c.Type) {
		if c.Type == "" {
			return invalid("claim_reward_config.type", "required")
		}
		return invalid("claim_reward_config.type", "%q is not one of %s", c.Type, list(RewardTypes))
	}
	return nil
}

func list[T ~string](vals []T) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
