package storage

import (
	"context"

	"github.com/growth-engine/internal/logging"
	"github.com/growth-engine/internal/models"
)

// ActionRecorder receives copies of action log entries
type ActionRecorder interface {
	Record(ctx context.Context, entries ...*models.ActionLogEntry) error
}

// MirroredActionLog writes to a primary log and copies every entry to a
// recorder. Recorder failures are logged and never returned.
type MirroredActionLog struct {
	primary ActionLogStore
	mirror  ActionRecorder
	logger  *logging.Logger
}

// NewMirroredActionLog wraps primary. A nil mirror disables mirroring.
func NewMirroredActionLog(primary ActionLogStore, mirror ActionRecorder, logger *logging.Logger) *MirroredActionLog {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &MirroredActionLog{
		primary: primary,
		mirror:  mirror,
		logger:  logger.Named("action-mirror"),
	}
}

// Append writes to the primary log, then mirrors
func (m *MirroredActionLog) Append(ctx context.Context, e *models.ActionLogEntry) error {
	if err := m.primary.Append(ctx, e); err != nil {
		return err
	}
	if m.mirror == nil {
		return nil
	}
	if err := m.mirror.Record(ctx, e); err != nil {
		m.logger.WithError(err).WithFields(map[string]interface{}{
			"action":   string(e.Action),
			"targetId": e.TargetID,
		}).Warn("Failed to mirror action log entry")
	}
	return nil
}

// Query reads from the primary log
func (m *MirroredActionLog) Query(ctx context.Context, q models.ActionLogQuery) ([]models.ActionLogEntry, error) {
	return m.primary.Query(ctx, q)
}

var (
	_ ActionLogStore = (*MirroredActionLog)(nil)
	_ ActionRecorder = (*ActionAnalyticsRepository)(nil)
)
