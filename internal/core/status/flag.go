package status

import (
	"context"
	"time"
)

// FlagStore persists the expiry timestamp of a flag. A nil timestamp means
// the flag is inactive. Implementations return core.ErrNotFound when the
// subject is unknown.
type FlagStore interface {
	LoadFlag(ctx context.Context, subjectID string, kind string) (*time.Time, error)
	SaveFlag(ctx context.Context, subjectID string, kind string, activeUntil *time.Time) error
}

// Record is the derived view of a flag at read time.
type Record[K ~string] struct {
	SubjectID   string
	Kind        K
	ActiveUntil *time.Time
}

// IsActive reports whether activeUntil lies strictly after now.
func IsActive(activeUntil *time.Time, now time.Time) bool {
	return activeUntil != nil && activeUntil.After(now)
}

// Remaining returns max(0, activeUntil-now), or nil when the flag was never
// set or has been cleared.
func Remaining(activeUntil *time.Time, now time.Time) *time.Duration {
	if activeUntil == nil {
		return nil
	}
	left := max(activeUntil.Sub(now), 0)
	return &left
}

// Active reports whether the record is active at now.
func (r Record[K]) Active(now time.Time) bool {
	return IsActive(r.ActiveUntil, now)
}

// Remaining returns the time left on the record at now.
func (r Record[K]) Remaining(now time.Time) *time.Duration {
	return Remaining(r.ActiveUntil, now)
}

// TTLFlag is a self-expiring flag of one kind. There is no background
// sweeper: readers derive the state from ActiveUntil and the current time.
type TTLFlag[K ~string] struct {
	Kind  K
	TTL   time.Duration
	Store FlagStore
	Clock func() time.Time
}

// Activate sets the expiry to now+ttl. Repeated activation resets the window
// rather than stacking. A non-positive ttl uses the flag's default TTL.
func (f *TTLFlag[K]) Activate(ctx context.Context, subjectID string, ttl time.Duration) (time.Time, error) {
	if ttl <= 0 {
		ttl = f.TTL
	}
	until := f.now().Add(ttl)
	if err := f.Store.SaveFlag(ctx, subjectID, string(f.Kind), &until); err != nil {
		return time.Time{}, err
	}
	return until, nil
}

// Deactivate clears the expiry.
func (f *TTLFlag[K]) Deactivate(ctx context.Context, subjectID string) error {
	return f.Store.SaveFlag(ctx, subjectID, string(f.Kind), nil)
}

// Load returns the stored record for the subject.
func (f *TTLFlag[K]) Load(ctx context.Context, subjectID string) (Record[K], error) {
	until, err := f.Store.LoadFlag(ctx, subjectID, string(f.Kind))
	if err != nil {
		return Record[K]{}, err
	}
	return Record[K]{SubjectID: subjectID, Kind: f.Kind, ActiveUntil: until}, nil
}

// Toggle deactivates an active flag and activates an inactive one with the
// default TTL. It returns the resulting record.
func (f *TTLFlag[K]) Toggle(ctx context.Context, subjectID string) (Record[K], error) {
	current, err := f.Load(ctx, subjectID)
	if err != nil {
		return Record[K]{}, err
	}

	if current.Active(f.now()) {
		if err := f.Deactivate(ctx, subjectID); err != nil {
			return Record[K]{}, err
		}
		current.ActiveUntil = nil
		return current, nil
	}

	until, err := f.Activate(ctx, subjectID, 0)
	if err != nil {
		return Record[K]{}, err
	}
	current.ActiveUntil = &until
	return current, nil
}

func (f *TTLFlag[K]) now() time.Time {
	if f != nil && f.Clock != nil {
		return f.Clock()
	}
	return time.Now().UTC()
}
