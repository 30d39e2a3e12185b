package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chetanK28/PlanningPoker-Backend/pkg/pipeline"
	"github.com/chetanK28/PlanningPoker-Backend/pkg/state"
)

var ErrRateLimited = errors.New("rate limit exceeded")

type rateLimitState struct {
	Requests atomic.Int64
}

// parseRate parses "N/s", "N/m" or "N/h".
func parseRate(rate string) (int64, time.Duration, error) {
	parts := strings.Split(rate, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid rate_limit format: %s", rate)
	}

	limit, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || limit <= 0 {
		return 0, 0, fmt.Errorf("invalid rate_limit count: %s", parts[0])
	}

	var duration time.Duration
	switch strings.ToLower(parts[1]) {
	case "s":
		duration = time.Second
	case "m":
		duration = time.Minute
	case "h":
		duration = time.Hour
	default:
		return 0, 0, fmt.Errorf("invalid rate_limit duration unit: %s", parts[1])
	}
	return limit, duration, nil
}

// newRateLimitModifier caps how often one connection may send an event within
// a fixed window. The window starts at the first request and is cleared by timer.
func newRateLimitModifier(logger *slog.Logger) pipeline.ModifierFunc {
	const modifierName = "rate_limit"
	return func(pctx *pipeline.Cargo, params ...string) error {
		if len(params) != 1 {
			return errors.New("'rate_limit' modifier requires exactly one parameter (e.g., '10/m')")
		}
		limit, duration, err := parseRate(params[0])
		if err != nil {
			return err
		}
		if pctx.Connection == nil {
			return errNoConnection
		}

		connID := pctx.Connection.ID
		eventName := pctx.EventName
		manager := pctx.StateManager

		existingState, found := manager.GetModifierState(modifierName, connID, eventName)
		if !found {
			// First request in the window. Create the state.
			value := &rateLimitState{}
			value.Requests.Store(1)
			newState := &state.ModifierState{Value: value}
			newState.Timer = time.AfterFunc(duration, func() {
				logger.Debug("Auto-cleaning expired rate_limit state",
					slog.String("connID", connID.String()),
					slog.String("event", eventName),
				)
				manager.DeleteModifierState(modifierName, connID, eventName)
			})
			manager.SetModifierState(modifierName, connID, eventName, newState)
			return nil
		}

		current := existingState.Value.(*rateLimitState)
		if current.Requests.Load() < limit {
			current.Requests.Add(1)
			return nil
		}
		return fmt.Errorf("'%s': %w", eventName, ErrRateLimited)
	}
}
