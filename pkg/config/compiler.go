package config

import (
	"fmt"

	"github.com/chetanK28/PlanningPoker-Backend/pkg/pipeline"
)

// FuncProvider resolves action and modifier names to their Go functions.
type FuncProvider interface {
	GetActionFunc(name string) (pipeline.ActionFunc, bool)
	GetModifierFunc(name string) (pipeline.ModifierFunc, bool)
	ActionNames() []string
}

// CompilePipelines builds one pipeline per registered action, prefixing the
// modifiers configured for that event.
func CompilePipelines(cfg *Config, provider FuncProvider) (map[string]pipeline.Pipeline, error) {
	pipelines := make(map[string]pipeline.Pipeline)
	for _, eventName := range provider.ActionNames() {
		action, _ := provider.GetActionFunc(eventName)
		pipelines[eventName] = pipeline.Pipeline{Action: action}
	}

	for eventName, eventCfg := range cfg.Events {
		pipe, ok := pipelines[eventName]
		if !ok {
			return nil, fmt.Errorf("unknown event '%s' in config", eventName)
		}
		steps := make([]pipeline.Step, 0, len(eventCfg.Modifiers))
		for _, modCfg := range eventCfg.Modifiers {
			// look up the Go function for this modifier name.
			fn, ok := provider.GetModifierFunc(modCfg.Name)
			if !ok {
				return nil, fmt.Errorf("unknown modifier '%s' in event '%s'", modCfg.Name, eventName)
			}
			steps = append(steps, pipeline.Step{
				Name:     modCfg.Name,
				Function: fn,
				Params:   modCfg.Params,
			})
		}
		pipe.Modifiers = steps
		pipelines[eventName] = pipe
	}
	return pipelines, nil
}
