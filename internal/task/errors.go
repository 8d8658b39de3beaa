package task

import (
	"fmt"

	"github.com/tmkelly/choreboard/internal/model"
)

// ValidationError reports bad input to a task operation. Nothing is written
// when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a lifecycle operation applied in the wrong
// state, including repeats of a transition that already happened. Safe for
// callers to retry-and-ignore.
type InvalidTransitionError struct {
	From model.TaskStatus
	To   model.TaskStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition task from %s to %s", e.From, e.To)
}

// NotAuthorizedError reports an actor who lacks the required relationship to
// the task (non-claimant starting or completing, claimant self-approving).
type NotAuthorizedError struct {
	Reason string
}

func (e NotAuthorizedError) Error() string {
	return e.Reason
}

// DuplicateLinkageError reports that a non-cancelled task already carries
// the meal linkage pair. The meal-plan linker treats it as "already
// generated"; other callers surface it.
type DuplicateLinkageError struct {
	MealPlanDayID int64
	Slot          model.MealSlot
}

func (e DuplicateLinkageError) Error() string {
	return fmt.Sprintf("a task already exists for meal plan day %d slot %s", e.MealPlanDayID, e.Slot)
}
