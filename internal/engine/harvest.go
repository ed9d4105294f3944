package engine

import (
	"context"
	"fmt"

	"github.com/growth-engine/internal/harvest"
	"github.com/growth-engine/internal/logging"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/types"
)

// HarvestTick runs or resumes a harvest session. It no-ops while the engine
// is paused, cooling down, in error or engaging.
func (e *Engine) HarvestTick(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("engine").WithField("tick", "harvest")

	var seed map[string]string
	claimed := false
	st, err := e.update(ctx, func(st *models.EngineState) bool {
		changed := e.expireCooldown(ctx, st)
		switch st.Status {
		case types.EngineIdle, types.EngineHarvesting:
		default:
			return changed
		}
		claimed = true
		seed = copyCursors(st.Cursors)
		if st.Status == types.EngineHarvesting {
			return changed
		}
		st.Status = types.EngineHarvesting
		return true
	})
	if err != nil {
		return err
	}
	if !claimed {
		logger.WithField("state", string(st.Status)).Debug("Harvest tick deferred")
		return nil
	}

	result, runErr := e.pipeline.Tick(ctx, seed)

	if runErr != nil && e.handleFailure(ctx, runErr) {
		return nil
	}

	_, err = e.update(ctx, func(st *models.EngineState) bool {
		if st.Status != types.EngineHarvesting {
			return false
		}
		if result != nil && result.Cursors != nil {
			mergeCursors(st, result.Cursors)
		}
		if result != nil && result.Outcome == harvest.OutcomeInterrupted && runErr == nil {
			// cancelled mid-session; Resume picks the session up
			return true
		}
		st.Status = types.EngineIdle
		return true
	})
	if err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("harvest tick failed: %w", runErr)
	}
	if result.Outcome != harvest.OutcomeNoSources {
		logger.WithFields(map[string]interface{}{
			"sessionId":      result.SessionID,
			"outcome":        string(result.Outcome),
			"pages":          result.PagesFetched,
			"prospectsAdded": result.ProspectsAdded,
		}).Info("Harvest tick complete")
	}
	return nil
}

func copyCursors(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
