package shadowextract

import (
	"fmt"
)

// lifecycle of one extraction run. forward transitions are strictly in this order; any
// state may go to StateFailed.
type State int

const (
	StateIdle State = iota
	StateServiceEnsured
	StateSnapshotCreated
	StatePathResolved
	StateFilesCopied
	StateSnapshotDeleted
	StateServiceRestored
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateServiceEnsured:
		return "ServiceEnsured"
	case StateSnapshotCreated:
		return "SnapshotCreated"
	case StatePathResolved:
		return "PathResolved"
	case StateFilesCopied:
		return "FilesCopied"
	case StateSnapshotDeleted:
		return "SnapshotDeleted"
	case StateServiceRestored:
		return "ServiceRestored"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// describes the step that leads into the state
func (s State) stepDescription() string {
	switch s {
	case StateServiceEnsured:
		return "ensure provider service"
	case StateSnapshotCreated:
		return "create snapshot"
	case StatePathResolved:
		return "resolve snapshot device path"
	case StateFilesCopied:
		return "copy files"
	case StateSnapshotDeleted:
		return "delete snapshot"
	case StateServiceRestored:
		return "restore provider service"
	default:
		return s.String()
	}
}
