package heritage

import "fmt"

// canTransition checks whether an entry may move from one status to another.
// Only pending entries can be moderated: approve moves them to active, reject
// to archived.
func canTransition(from, to Status) (bool, error) {
	if !to.IsValid() {
		return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatus, to)
	}
	switch from {
	case StatusPending:
		if to == StatusActive || to == StatusArchived {
			return true, nil
		}
		return false, fmt.Errorf("%w: entry is already pending", ErrInvalidTransition)
	case StatusActive:
		return false, fmt.Errorf("%w: entry has already been published (status: %s)", ErrInvalidTransition, from)
	case StatusArchived:
		return false, fmt.Errorf("%w: entry has been archived (status: %s)", ErrInvalidTransition, from)
	default:
		return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatus, from)
	}
}
