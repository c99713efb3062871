package feed

import (
	"fmt"
	"slices"
	"time"

	"github.com/dailyrhapsody/diary/internal/diary"
)

// Sort orders entries in place: the pinned entry first, then newest effective
// time first. Entries with equal keys keep their relative order.
func Sort(entries []diary.Entry, loc *time.Location) {
	type keyed struct {
		entry diary.Entry
		at    time.Time
	}

	ks := make([]keyed, len(entries))
	for i, e := range entries {
		ks[i] = keyed{entry: e, at: e.EffectiveTime(loc)}
	}

	slices.SortStableFunc(ks, func(a, b keyed) int {
		if a.entry.Pinned != b.entry.Pinned {
			if a.entry.Pinned {
				return -1
			}
			return 1
		}
		return b.at.Compare(a.at)
	})

	for i, k := range ks {
		entries[i] = k.entry
	}
}

// PinConflictError is returned when a write would leave two entries pinned.
type PinConflictError struct {
	PinnedID int
}

func (e *PinConflictError) Error() string {
	return fmt.Sprintf("entry %d is already pinned; unpin it before pinning another", e.PinnedID)
}

func (e *PinConflictError) Is(target error) bool {
	return target == diary.ErrPinConflict
}

// checkPin fails if any entry other than id is pinned.
func checkPin(entries []diary.Entry, id int) error {
	for _, e := range entries {
		if e.Pinned && e.ID != id {
			return &PinConflictError{PinnedID: e.ID}
		}
	}

	return nil
}

// nextID is one past the highest id in use or ever handed out.
func nextID(entries []diary.Entry, last int) int {
	highest := last
	for _, e := range entries {
		highest = max(highest, e.ID)
	}

	return highest + 1
}
