package availability

import (
	"fmt"

	"bookcatalog/internal/book"
)

// Policy names accepted by PolicyByName.
const (
	PolicySnapshot = "snapshot"
	PolicyRead     = "read"
)

// TogglePolicy computes the flag the consumer persists.
type TogglePolicy interface {
	Next(ev Event, stored book.Book) bool
}

// SnapshotToggle negates the flag carried by the event. Two events published
// for the same state therefore converge on the same value.
type SnapshotToggle struct{}

func (SnapshotToggle) Next(ev Event, _ book.Book) bool { return !ev.Availability }

// ReadThenToggle negates the stored flag, so every event flips the book.
type ReadThenToggle struct{}

func (ReadThenToggle) Next(_ Event, stored book.Book) bool { return !stored.Availability }

// PolicyByName maps the TOGGLE_POLICY setting to a policy. Empty selects the
// snapshot policy.
func PolicyByName(name string) (TogglePolicy, error) {
	switch name {
	case "", PolicySnapshot:
		return SnapshotToggle{}, nil
	case PolicyRead:
		return ReadThenToggle{}, nil
	default:
		return nil, fmt.Errorf("unknown toggle policy %q", name)
	}
}
