package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/chetanK28/PlanningPoker-Backend/pkg/state"
)

/*
 * The purpose of this is to detach the implementation of actions and modifiers
 * from the actual router
 */

type Cargo struct {
	Logger       *slog.Logger
	Ctx          context.Context
	Connection   *state.Connection
	StateManager state.Manager
	EventName    string
	Payload      json.RawMessage
}

// ActionFunc performs the state change of one event. A returned error means
// the event was dropped.
type ActionFunc func(pctx *Cargo) error

// ModifierFunc runs before the action and may veto it by returning an error.
// params are the raw strings from config.
type ModifierFunc func(pctx *Cargo, params ...string) error

// represents one modifier step in an execution pipeline
type Step struct {
	Name     string
	Function ModifierFunc
	Params   []string
}

type Pipeline struct {
	Modifiers []Step
	Action    ActionFunc
}

// Execute runs every modifier and then the action, stopping at the first error.
func (p Pipeline) Execute(pctx *Cargo) error {
	for _, step := range p.Modifiers {
		if err := step.Function(pctx, step.Params...); err != nil {
			return err
		}
	}
	return p.Action(pctx)
}
