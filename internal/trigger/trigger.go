// Package trigger models the events that start a workflow run and the
// concurrency grouping policy that serializes overlapping runs.
package trigger

import (
	"fmt"
	"path"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/conveyorci/conveyor/internal/config"
)

// Kind identifies how a run was started.
type Kind int

const (
	// Push is a run started by a branch or tag push.
	Push Kind = iota
	// Schedule is a run started by a cron schedule.
	Schedule
	// Dispatch is a run started manually.
	Dispatch
)

// String returns the canonical name of the trigger kind.
func (k Kind) String() string {
	switch k {
	case Push:
		return "push"
	case Schedule:
		return "schedule"
	case Dispatch:
		return "dispatch"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name from the CLI into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "push":
		return Push, nil
	case "schedule":
		return Schedule, nil
	case "dispatch":
		return Dispatch, nil
	default:
		return 0, fmt.Errorf("unknown trigger kind %q: must be 'push', 'schedule', or 'dispatch'", s)
	}
}

// RefType distinguishes branch refs from tag refs.
type RefType int

const (
	Branch RefType = iota
	Tag
)

// String returns the canonical name of the ref type.
func (t RefType) String() string {
	if t == Tag {
		return "tag"
	}
	return "branch"
}

// ParseRefType converts a ref type name from the CLI into a RefType.
func ParseRefType(s string) (RefType, error) {
	switch s {
	case "branch":
		return Branch, nil
	case "tag":
		return Tag, nil
	default:
		return 0, fmt.Errorf("unknown ref type %q: must be 'branch' or 'tag'", s)
	}
}

// Event is a single occurrence that may start a run.
type Event struct {
	Kind    Kind
	Ref     string
	RefType RefType
}

// Matches reports whether the given triggers admit the event. A nil trigger
// set admits nothing.
func Matches(triggers *config.Triggers, ev Event) bool {
	if triggers == nil {
		return false
	}

	switch ev.Kind {
	case Push:
		if triggers.Push == nil {
			return false
		}
		if ev.RefType == Tag {
			return matchesAny(triggers.Push.Tags, ev.Ref)
		}
		return matchesAny(triggers.Push.Branches, ev.Ref)
	case Schedule:
		return len(triggers.Schedule) > 0
	case Dispatch:
		return triggers.Dispatch
	default:
		return false
	}
}

// matchesAny reports whether ref matches at least one glob pattern. An empty
// pattern list matches every ref, mirroring the behavior of push triggers
// that omit branch filters.
func matchesAny(patterns []string, ref string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, err := path.Match(p, ref); err == nil && ok {
			return true
		}
	}
	return false
}

// cronParser accepts the standard five-field cron format used by CI systems.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCron checks that a schedule's cron expression parses.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NextRun returns the earliest firing time after the given instant across all
// schedule triggers. The second return value is false when the workflow has
// no valid schedules.
func NextRun(triggers *config.Triggers, after time.Time) (time.Time, bool) {
	if triggers == nil {
		return time.Time{}, false
	}
	var next time.Time
	for _, s := range triggers.Schedule {
		sched, err := cronParser.Parse(s.Cron)
		if err != nil {
			continue
		}
		t := sched.Next(after)
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next, !next.IsZero()
}
