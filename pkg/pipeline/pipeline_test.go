package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipeline_ExecuteRunsModifiersThenAction(t *testing.T) {
	var calls []string
	p := Pipeline{
		Modifiers: []Step{
			{Name: "first", Params: []string{"a"}, Function: func(_ *Cargo, params ...string) error {
				calls = append(calls, "first:"+params[0])
				return nil
			}},
			{Name: "second", Function: func(_ *Cargo, params ...string) error {
				require.Empty(t, params)
				calls = append(calls, "second")
				return nil
			}},
		},
		Action: func(_ *Cargo) error {
			calls = append(calls, "action")
			return nil
		},
	}

	require.NoError(t, p.Execute(&Cargo{}))
	require.Equal(t, []string{"first:a", "second", "action"}, calls)
}

func TestPipeline_ModifierErrorHaltsPipeline(t *testing.T) {
	veto := errors.New("vetoed")
	actionRan := false
	p := Pipeline{
		Modifiers: []Step{{Name: "veto", Function: func(*Cargo, ...string) error { return veto }}},
		Action: func(*Cargo) error {
			actionRan = true
			return nil
		},
	}

	require.ErrorIs(t, p.Execute(&Cargo{}), veto)
	require.False(t, actionRan)
}
