package state

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dpereira/closings-tracker/constants"
	"github.com/dpereira/closings-tracker/internal/common"
)

// RunState is the scheduler's durable checkpoint, one value per
// property-store key. The scheduler is its single logical owner; it is
// created on start, mutated once per batch attempt, and on a terminal
// stop only the active flag is cleared so the remaining values stay
// behind as the audit trail.
type RunState struct {
	RunID          uuid.UUID
	Active         bool
	CurrentBatch   int // >= 1
	FilesProcessed int
	FailedAttempts int
	StartedAt      time.Time
}

// NewRunState is the state a fresh start resets to.
func NewRunState(now time.Time) *RunState {
	return &RunState{
		RunID:        uuid.New(),
		Active:       true,
		CurrentBatch: 1,
		StartedAt:    now,
	}
}

// Phase derives the user-facing phase from the stored values.
func (rs *RunState) Phase() constants.RunPhase {
	switch {
	case rs.Active:
		return constants.RunPhaseActive
	case rs.FailedAttempts > 0:
		return constants.RunPhaseFailed
	case rs.CurrentBatch > 1 || rs.FilesProcessed > 0:
		return constants.RunPhaseCompleted
	default:
		return constants.RunPhaseIdle
	}
}

// Load reads the run state; ok is false when no run was ever recorded.
func Load(ctx context.Context, ps PropertyStore) (*RunState, bool, error) {
	activeRaw, ok, err := ps.Get(ctx, constants.KeyProcessingActive)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	rs := &RunState{Active: strings.EqualFold(activeRaw, "true")}

	if v, ok, err := ps.Get(ctx, constants.KeyRunID); err != nil {
		return nil, false, err
	} else if ok {
		if id, err := uuid.Parse(v); err == nil {
			rs.RunID = id
		}
	}
	if rs.CurrentBatch, err = getInt(ctx, ps, constants.KeyCurrentBatch, 1); err != nil {
		return nil, false, err
	}
	if rs.FilesProcessed, err = getInt(ctx, ps, constants.KeyFilesProcessed, 0); err != nil {
		return nil, false, err
	}
	if rs.FailedAttempts, err = getInt(ctx, ps, constants.KeyFailedAttempts, 0); err != nil {
		return nil, false, err
	}
	if v, ok, err := ps.Get(ctx, constants.KeyStartTime); err != nil {
		return nil, false, err
	} else if ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			rs.StartedAt = t
		}
	}
	return rs, true, nil
}

// Save writes every run-state property.
func Save(ctx context.Context, ps PropertyStore, rs *RunState) error {
	pairs := []struct{ k, v string }{
		{constants.KeyProcessingActive, strconv.FormatBool(rs.Active)},
		{constants.KeyRunID, rs.RunID.String()},
		{constants.KeyCurrentBatch, strconv.Itoa(rs.CurrentBatch)},
		{constants.KeyFilesProcessed, strconv.Itoa(rs.FilesProcessed)},
		{constants.KeyFailedAttempts, strconv.Itoa(rs.FailedAttempts)},
		{constants.KeyStartTime, rs.StartedAt.UTC().Format(time.RFC3339)},
	}
	for _, p := range pairs {
		if err := ps.Set(ctx, p.k, p.v); err != nil {
			return common.WrapError(err, "save run state")
		}
	}
	return nil
}

// SetActive flips only the durable active flag; cancellation and pause
// go through here and are observed at the next batch-start check.
func SetActive(ctx context.Context, ps PropertyStore, active bool) error {
	return ps.Set(ctx, constants.KeyProcessingActive, strconv.FormatBool(active))
}

func getInt(ctx context.Context, ps PropertyStore, key string, def int) (int, error) {
	v, ok, err := ps.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, nil
	}
	return n, nil
}

// Open picks the backend from the DSN: postgres:// (or postgresql://)
// selects pgx, anything else is treated as a SQLite path. An empty DSN
// defaults to a local state file.
func Open(ctx context.Context, cfg common.StateConfig, logger *slog.Logger) (PropertyStore, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = "closings-state.db"
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return OpenPostgres(ctx, dsn, cfg.DialTimeout, logger)
	}
	return OpenSQLite(ctx, dsn, logger)
}
