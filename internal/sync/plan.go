package sync

import (
	"time"

	"github.com/dgreenaway/posbridge/internal/storage"
)

// runMode selects how a sync run fetches and filters sales.
type runMode int

const (
	// modeFresh fetches the full history, newest to oldest, unfiltered.
	modeFresh runMode = iota

	// modeIncremental fetches only sales updated since the last
	// completed run, newest to oldest.
	modeIncremental

	// modeResume continues an interrupted historical run backward from
	// its checkpointed cursor.
	modeResume
)

// String implements fmt.Stringer.
func (m runMode) String() string {
	switch m {
	case modeIncremental:
		return "incremental"
	case modeResume:
		return "resume"
	default:
		return "fresh"
	}
}

// runPlan is the mode and parameters of one sync run, computed once at
// run entry from the connection's checkpoint state.
type runPlan struct {
	// cursor is the update-time upper bound for resume runs.
	cursor time.Time

	// mode selects the fetch strategy.
	mode runMode

	// since is the update-time lower bound for incremental runs.
	since time.Time

	// startedAt is the run's start time. For resume runs it is carried
	// over from the interrupted run so the eventual last-sync stamp
	// reflects the original run's start.
	startedAt time.Time
}

// planRun computes the run plan from the connection's checkpoint state.
// A set cursor always wins over a set last-sync time: an interrupted
// historical run must finish before incremental syncs make sense.
func planRun(conn *storage.Connection, now time.Time) runPlan {
	switch {
	case !conn.SyncCursor.IsZero():
		startedAt := conn.SyncStartedAt
		if startedAt.IsZero() {
			startedAt = now
		}
		return runPlan{
			cursor:    conn.SyncCursor,
			mode:      modeResume,
			startedAt: startedAt,
		}
	case !conn.LastSalesSync.IsZero():
		return runPlan{
			mode:      modeIncremental,
			since:     conn.LastSalesSync,
			startedAt: now,
		}
	default:
		return runPlan{
			mode:      modeFresh,
			startedAt: now,
		}
	}
}
