/*
store.go - Profile persistence interface

PURPOSE:
  ProfileStore is the single dependency the rest of the engine has on
  employee persistence. Implementations keep the full version history;
  readers resolve the version effective on a given date.

SEE ALSO:
  - profile.go: Profile, effective dating
  - store/memory: in-memory implementation
  - store/sqlite: durable implementation
*/
package employee

import (
	"context"
	"time"
)

// ProfileStore persists compensation profiles as append-only version
// histories keyed by employee ID.
type ProfileStore interface {
	// Append adds a new profile version. The previous open-ended version
	// for the same employee is closed at the day before the new version's
	// EffectiveFrom. Fails with ErrInvalidProfile on validation errors.
	Append(ctx context.Context, p Profile) error

	// CurrentAt returns the profile version effective on the given date.
	// Fails with ProfileNotFoundError when no version covers it.
	CurrentAt(ctx context.Context, id ID, date time.Time) (Profile, error)

	// History returns every version for the employee, oldest first.
	// Empty when the employee is unknown.
	History(ctx context.Context, id ID) ([]Profile, error)

	// ListIDs returns every employee with at least one profile version.
	ListIDs(ctx context.Context) ([]ID, error)
}
