// Package status collects a snapshot of the migration ledger for CLI display
// and external tooling.
package status

import (
	"context"
	"fmt"

	"github.com/cargotrail/schemarun"
)

// Status display constants
const (
	defaultHistoryLimit = 10 // Default number of history entries to show
)

// Info aggregates ledger state: per-status counts and the record history,
// most recent attempt first.
type Info struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Running   int
	History   []schemarun.Record
}

// FromStore collects status information from a connected store.
func FromStore(ctx context.Context, st *schemarun.Store) (Info, error) {
	if err := st.Ensure(ctx); err != nil {
		return Info{}, err
	}
	records, err := st.List(ctx)
	if err != nil {
		return Info{}, err
	}
	info := Info{Total: len(records), History: records}
	for _, r := range records {
		switch r.Status {
		case schemarun.StatusCompleted:
			info.Completed++
		case schemarun.StatusFailed:
			info.Failed++
		case schemarun.StatusSkipped:
			info.Skipped++
		case schemarun.StatusRunning:
			info.Running++
		}
	}
	return info, nil
}

// FromConfig opens a store for the given config, collects status, and closes it.
func FromConfig(ctx context.Context, cfg schemarun.StoreConfig) (Info, error) {
	st, err := schemarun.OpenStore(cfg)
	if err != nil {
		return Info{}, err
	}
	defer func() { _ = st.Close() }()
	return FromStore(ctx, st)
}

// FormatHuman returns a human-friendly multiline string for CLI output.
// history=false prints only the per-status counts; history=true additionally
// appends the formatted ledger, most recent attempt first.
func (i Info) FormatHuman(history bool) string {
	return i.FormatHumanWithLimit(history, defaultHistoryLimit, false)
}

// FormatHumanWithLimit prints status like FormatHuman, but caps the history
// section at limit entries. If all=true the entire history is printed and
// limit is ignored. limit<=0 falls back to the default of 10.
func (i Info) FormatHumanWithLimit(history bool, limit int, all bool) string {
	base := fmt.Sprintf("total: %d\ncompleted: %d\nfailed: %d\nskipped: %d\nrunning: %d\n",
		i.Total, i.Completed, i.Failed, i.Skipped, i.Running)
	if !history {
		return base
	}
	if len(i.History) == 0 {
		return base + "history: \n"
	}
	items := i.History
	if !all {
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		if len(items) > limit {
			items = items[:limit]
		}
	}
	out := base + "history:\n"
	for _, r := range items {
		line := fmt.Sprintf("%s@%s status=%s", r.Name, r.Version, r.Status)
		if r.ExecutedAt != nil {
			line += " at=" + r.ExecutedAt.UTC().Format(timeLayout)
		}
		if r.Status != schemarun.StatusRunning {
			line += fmt.Sprintf(" took=%dms", r.DurationMS)
		}
		if r.ErrorMessage != "" {
			line += " err=" + r.ErrorMessage
		}
		out += line + "\n"
	}
	return out
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
