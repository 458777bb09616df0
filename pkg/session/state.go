package session

import "fmt"

// State is the single process-wide lifecycle value of the automation
// session, owned by the Manager.
type State int

const (
	Uninitialized State = iota
	Active
	Degraded
	Recovering
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Degraded:
		return "degraded"
	case Recovering:
		return "recovering"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
