package task

import "github.com/tmkelly/choreboard/internal/model"

// transitions maps each status to the statuses reachable from it. Approved
// and cancelled are terminal.
var transitions = map[model.TaskStatus][]model.TaskStatus{
	model.TaskOpen:       {model.TaskClaimed, model.TaskCancelled},
	model.TaskClaimed:    {model.TaskInProgress, model.TaskCancelled},
	model.TaskInProgress: {model.TaskCompleted, model.TaskCancelled},
	model.TaskCompleted:  {model.TaskApproved},
	model.TaskApproved:   nil,
	model.TaskCancelled:  nil,
}

// CanTransition reports whether a task in status from may move to status to.
func CanTransition(from, to model.TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an InvalidTransitionError if the move is not
// allowed.
func ValidateTransition(from, to model.TaskStatus) error {
	if !CanTransition(from, to) {
		return InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// IsTerminal reports whether no transition leaves the given status.
func IsTerminal(s model.TaskStatus) bool {
	return len(transitions[s]) == 0
}

// ValidStatus reports whether s is one of the known task statuses.
func ValidStatus(s model.TaskStatus) bool {
	_, ok := transitions[s]
	return ok
}
