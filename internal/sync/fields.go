package sync

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/drew-myers/ticket-to-ride/internal/config"
	"github.com/drew-myers/ticket-to-ride/internal/github"
)

// CurrentIteration is the sentinel iteration name meaning "the first
// currently-active iteration".
const CurrentIteration = "@current"

// projectFields is the per-run cache of resolved project field IDs. A nil
// statusOptions map or empty iterationFieldID means that sub-resolution was
// skipped; the field-writing phases check before queueing work.
type projectFields struct {
	statusFieldID string
	statusOptions map[string]string // ticket status -> option ID

	iterationFieldID string
	iterationID      string
}

// resolveProjectFields builds the field cache from the project's schema.
// A missing or wrong-kind field is a warning and the sub-resolution is
// skipped; a configured option or iteration name that does not exist on a
// usable field is a configuration error and fails the run.
func resolveProjectFields(fields []github.ProjectField, cfg config.ProjectConfig, logger *slog.Logger, now time.Time) (*projectFields, error) {
	pf := &projectFields{}

	if len(cfg.Status) > 0 {
		if err := pf.resolveStatus(fields, cfg, logger); err != nil {
			return nil, err
		}
	}
	if cfg.Iteration != "" {
		if err := pf.resolveIteration(fields, cfg, logger, now); err != nil {
			return nil, err
		}
	}
	return pf, nil
}

func (pf *projectFields) resolveStatus(fields []github.ProjectField, cfg config.ProjectConfig, logger *slog.Logger) error {
	field := findField(fields, cfg.StatusField)
	if field == nil {
		logger.Warn("project field not found, skipping status sync", "field", cfg.StatusField)
		return nil
	}
	if field.DataType != "SINGLE_SELECT" {
		logger.Warn("project field is not single-select, skipping status sync",
			"field", cfg.StatusField, "dataType", field.DataType)
		return nil
	}

	options := make(map[string]string, len(cfg.Status))
	for ticketStatus, optionName := range cfg.Status {
		option := findOption(field.Options, optionName)
		if option == nil {
			return fmt.Errorf("project field %q has no option %q (mapped from ticket status %q); available options: %s",
				cfg.StatusField, optionName, ticketStatus, optionNames(field.Options))
		}
		options[ticketStatus] = option.ID
	}

	pf.statusFieldID = field.ID
	pf.statusOptions = options
	return nil
}

func (pf *projectFields) resolveIteration(fields []github.ProjectField, cfg config.ProjectConfig, logger *slog.Logger, now time.Time) error {
	field := findField(fields, cfg.IterationField)
	if field == nil {
		logger.Warn("project field not found, skipping iteration sync", "field", cfg.IterationField)
		return nil
	}
	if field.DataType != "ITERATION" {
		logger.Warn("project field is not an iteration field, skipping iteration sync",
			"field", cfg.IterationField, "dataType", field.DataType)
		return nil
	}

	if cfg.Iteration == CurrentIteration {
		for _, it := range field.Iterations {
			if iterationActive(it, now) {
				pf.iterationFieldID = field.ID
				pf.iterationID = it.ID
				return nil
			}
		}
		logger.Warn("no active iteration, skipping iteration sync", "field", cfg.IterationField)
		return nil
	}

	for _, it := range field.Iterations {
		if strings.EqualFold(it.Title, cfg.Iteration) {
			pf.iterationFieldID = field.ID
			pf.iterationID = it.ID
			return nil
		}
	}
	titles := make([]string, len(field.Iterations))
	for i, it := range field.Iterations {
		titles[i] = it.Title
	}
	return fmt.Errorf("project field %q has no iteration %q; available iterations: %s",
		cfg.IterationField, cfg.Iteration, strings.Join(titles, ", "))
}

// iterationActive reports whether now falls within the iteration's window.
func iterationActive(it github.ProjectIteration, now time.Time) bool {
	start, err := time.Parse("2006-01-02", it.StartDate)
	if err != nil {
		return false
	}
	end := start.AddDate(0, 0, it.Duration)
	return !now.Before(start) && now.Before(end)
}

func findField(fields []github.ProjectField, name string) *github.ProjectField {
	for i := range fields {
		if strings.EqualFold(fields[i].Name, name) {
			return &fields[i]
		}
	}
	return nil
}

func findOption(options []github.FieldOption, name string) *github.FieldOption {
	for i := range options {
		if strings.EqualFold(options[i].Name, name) {
			return &options[i]
		}
	}
	return nil
}

func optionNames(options []github.FieldOption) string {
	names := make([]string, len(options))
	for i, o := range options {
		names[i] = o.Name
	}
	return strings.Join(names, ", ")
}
