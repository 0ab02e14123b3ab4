package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Assistant command line arguments, one per task kind.
const (
	ArgPower            = "power"
	ArgUniverse         = "universe"
	ArgClaimDailyReward = "claim_reward_daily_training"
)

// Plan is everything needed to launch one run.
type Plan struct {
	Task Kind
	Argv []string
	Dir  string
}

// Planner prepares runs for one assistant installation.
type Planner struct {
	Python         string // assistant interpreter
	AssistantDir   string
	UniverseDir    string
	UniversePython string // interpreter written into the universe config
}

// Prepare decodes and validates raw, rewrites the config document when the
// task needs one and returns the launch plan. Invalid requests produce a
// *ValidationError and leave the config document untouched.
func (p *Planner) Prepare(ctx context.Context, raw json.RawMessage) (Plan, error) {
	req, err := Decode(raw)
	if err != nil {
		return Plan{}, err
	}
	return p.PrepareRequest(ctx, req)
}

// PrepareRequest is Prepare for an already decoded request.
func (p *Planner) PrepareRequest(ctx context.Context, req Request) (Plan, error) {
	if err := req.Validate(); err != nil {
		return Plan{}, err
	}

	var (
		arg string
		doc any
	)
	switch req.Task {
	case KindMaterial:
		arg, doc = ArgPower, newMaterialDoc(req.Material)
	case KindUniverse:
		arg, doc = ArgUniverse, newUniverseDoc(req.Universe, p.UniverseDir, p.UniversePython)
	case KindClaimReward:
		arg = ArgClaimDailyReward
	}

	if doc != nil {
		path := filepath.Join(p.AssistantDir, ConfigFile)
		if err := writeConfigDoc(path, doc); err != nil {
			return Plan{}, fmt.Errorf("preparing %s task: %w", req.Task, err)
		}
		slog.DebugContext(ctx, "config document written", "path", path, "task", req.Task)
	}

	return Plan{
		Task: req.Task,
		Argv: []string{p.Python, filepath.Join(p.AssistantDir, "main.py"), arg},
		Dir:  p.AssistantDir,
	}, nil
}
