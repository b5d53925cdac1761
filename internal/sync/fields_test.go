package sync

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drew-myers/ticket-to-ride/internal/config"
	"github.com/drew-myers/ticket-to-ride/internal/github"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func statusSchema() []github.ProjectField {
	return []github.ProjectField{
		{
			ID:       "F_status",
			Name:     "Status",
			DataType: "SINGLE_SELECT",
			Options: []github.FieldOption{
				{ID: "O_todo", Name: "Todo"},
				{ID: "O_done", Name: "Done"},
			},
		},
		{
			ID:       "F_iter",
			Name:     "Iteration",
			DataType: "ITERATION",
			Iterations: []github.ProjectIteration{
				{ID: "IT_past", Title: "Sprint 0", StartDate: "2026-08-01", Duration: 7},
				{ID: "IT_now", Title: "Sprint 1", StartDate: "2026-08-24", Duration: 14},
			},
		},
	}
}

func TestResolveProjectFieldsStatus(t *testing.T) {
	cfg := config.ProjectConfig{
		StatusField: "Status",
		Status:      map[string]string{"open": "Todo", "closed": "Done"},
	}
	pf, err := resolveProjectFields(statusSchema(), cfg, quietLogger, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "F_status", pf.statusFieldID)
	assert.Equal(t, "O_todo", pf.statusOptions["open"])
	assert.Equal(t, "O_done", pf.statusOptions["closed"])
}

func TestResolveProjectFieldsMissingFieldSkips(t *testing.T) {
	cfg := config.ProjectConfig{
		StatusField: "Nonexistent",
		Status:      map[string]string{"open": "Todo"},
	}
	pf, err := resolveProjectFields(statusSchema(), cfg, quietLogger, time.Now())
	require.NoError(t, err)
	assert.Empty(t, pf.statusFieldID, "missing field should be skipped, not fatal")
}

func TestResolveProjectFieldsWrongKindSkips(t *testing.T) {
	cfg := config.ProjectConfig{
		StatusField: "Iteration", // exists but is an iteration field
		Status:      map[string]string{"open": "Todo"},
	}
	pf, err := resolveProjectFields(statusSchema(), cfg, quietLogger, time.Now())
	require.NoError(t, err)
	assert.Empty(t, pf.statusFieldID)
}

func TestResolveProjectFieldsUnknownOptionFatal(t *testing.T) {
	cfg := config.ProjectConfig{
		StatusField: "Status",
		Status:      map[string]string{"open": "Doing"},
	}
	_, err := resolveProjectFields(statusSchema(), cfg, quietLogger, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Doing")
	assert.Contains(t, err.Error(), "Todo, Done")
}

func TestResolveProjectFieldsIterationByName(t *testing.T) {
	cfg := config.ProjectConfig{IterationField: "Iteration", Iteration: "Sprint 1"}
	pf, err := resolveProjectFields(statusSchema(), cfg, quietLogger, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "IT_now", pf.iterationID)
}

func TestResolveProjectFieldsIterationUnknownFatal(t *testing.T) {
	cfg := config.ProjectConfig{IterationField: "Iteration", Iteration: "Sprint 99"}
	_, err := resolveProjectFields(statusSchema(), cfg, quietLogger, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sprint 99")
}

func TestResolveProjectFieldsCurrentIteration(t *testing.T) {
	cfg := config.ProjectConfig{IterationField: "Iteration", Iteration: CurrentIteration}
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	pf, err := resolveProjectFields(statusSchema(), cfg, quietLogger, now)
	require.NoError(t, err)
	assert.Equal(t, "IT_now", pf.iterationID, "should pick the active window, not the past one")
}

func TestResolveProjectFieldsNoActiveIterationSkips(t *testing.T) {
	cfg := config.ProjectConfig{IterationField: "Iteration", Iteration: CurrentIteration}
	now := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	pf, err := resolveProjectFields(statusSchema(), cfg, quietLogger, now)
	require.NoError(t, err)
	assert.Empty(t, pf.iterationID)
}
