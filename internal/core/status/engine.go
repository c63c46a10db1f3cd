package status

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roomgate/roomgate/internal/core"
)

// DefaultKinds are the flag kinds available without configuration.
var DefaultKinds = map[core.StatusKind]time.Duration{
	core.StatusAvailable: 60 * time.Minute,
	core.StatusLooking:   30 * time.Minute,
}

// Snapshot is the derived state of one flag at read time.
type Snapshot struct {
	Kind        core.StatusKind `json:"kind"`
	Active      bool            `json:"active"`
	ActiveUntil *time.Time      `json:"activeUntil"`
	Remaining   *time.Duration  `json:"-"`
}

// Engine manages every configured flag kind for a subject. Kinds share one
// implementation and never affect each other.
type Engine struct {
	flags map[core.StatusKind]*TTLFlag[core.StatusKind]
	clock func() time.Time
}

// NewEngine builds an engine for kinds backed by store. A nil or empty kinds
// map uses DefaultKinds.
func NewEngine(store FlagStore, kinds map[core.StatusKind]time.Duration, clock func() time.Time) *Engine {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}

	e := &Engine{
		flags: make(map[core.StatusKind]*TTLFlag[core.StatusKind], len(kinds)),
		clock: clock,
	}
	for kind, ttl := range kinds {
		e.flags[kind] = &TTLFlag[core.StatusKind]{
			Kind:  kind,
			TTL:   ttl,
			Store: store,
			Clock: clock,
		}
	}
	return e
}

// Kinds returns the configured kinds in a stable order.
func (e *Engine) Kinds() []core.StatusKind {
	kinds := make([]core.StatusKind, 0, len(e.flags))
	for kind := range e.flags {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// ParseKind resolves a caller-supplied kind name.
func (e *Engine) ParseKind(raw string) (core.StatusKind, error) {
	kind := core.StatusKind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := e.flags[kind]; !ok {
		return "", &core.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown status kind %q", raw)}
	}
	return kind, nil
}

// Activate sets the subject's flag to expire after ttl, or after the kind's
// default TTL when ttl is not positive.
func (e *Engine) Activate(ctx context.Context, subjectID string, kind core.StatusKind, ttl time.Duration) (time.Time, error) {
	flag, err := e.flag(kind)
	if err != nil {
		return time.Time{}, err
	}
	return flag.Activate(ctx, subjectID, ttl)
}

// Deactivate clears the subject's flag.
func (e *Engine) Deactivate(ctx context.Context, subjectID string, kind core.StatusKind) error {
	flag, err := e.flag(kind)
	if err != nil {
		return err
	}
	return flag.Deactivate(ctx, subjectID)
}

// Toggle flips the subject's flag and returns the resulting state.
func (e *Engine) Toggle(ctx context.Context, subjectID string, kind core.StatusKind) (Snapshot, error) {
	flag, err := e.flag(kind)
	if err != nil {
		return Snapshot{}, err
	}
	rec, err := flag.Toggle(ctx, subjectID)
	if err != nil {
		return Snapshot{}, err
	}
	return e.snapshot(rec), nil
}

// Snapshot returns the derived state of every kind for the subject.
func (e *Engine) Snapshot(ctx context.Context, subjectID string) ([]Snapshot, error) {
	out := make([]Snapshot, 0, len(e.flags))
	for _, kind := range e.Kinds() {
		rec, err := e.flags[kind].Load(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		out = append(out, e.snapshot(rec))
	}
	return out, nil
}

func (e *Engine) snapshot(rec Record[core.StatusKind]) Snapshot {
	now := e.now()
	snap := Snapshot{
		Kind:      rec.Kind,
		Active:    rec.Active(now),
		Remaining: rec.Remaining(now),
	}
	if snap.Active {
		snap.ActiveUntil = rec.ActiveUntil
	}
	return snap
}

func (e *Engine) flag(kind core.StatusKind) (*TTLFlag[core.StatusKind], error) {
	flag, ok := e.flags[kind]
	if !ok {
		return nil, &core.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown status kind %q", kind)}
	}
	return flag, nil
}

func (e *Engine) now() time.Time {
	if e != nil && e.clock != nil {
		return e.clock()
	}
	return time.Now().UTC()
}
