package task

import (
	"errors"
	"testing"

	"github.com/tmkelly/choreboard/internal/model"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct {
		from, to model.TaskStatus
	}{
		{model.TaskOpen, model.TaskClaimed},
		{model.TaskOpen, model.TaskCancelled},
		{model.TaskClaimed, model.TaskInProgress},
		{model.TaskClaimed, model.TaskCancelled},
		{model.TaskInProgress, model.TaskCompleted},
		{model.TaskInProgress, model.TaskCancelled},
		{model.TaskCompleted, model.TaskApproved},
	}

	allowedSet := make(map[[2]model.TaskStatus]bool)
	for _, tr := range allowed {
		allowedSet[[2]model.TaskStatus{tr.from, tr.to}] = true
		if !CanTransition(tr.from, tr.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tr.from, tr.to)
		}
	}

	all := []model.TaskStatus{
		model.TaskOpen, model.TaskClaimed, model.TaskInProgress,
		model.TaskCompleted, model.TaskApproved, model.TaskCancelled,
	}
	for _, from := range all {
		for _, to := range all {
			if allowedSet[[2]model.TaskStatus{from, to}] {
				continue
			}
			if CanTransition(from, to) {
				t.Errorf("CanTransition(%s, %s) = true, want false", from, to)
			}
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []model.TaskStatus{model.TaskApproved, model.TaskCancelled} {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}
	for _, s := range []model.TaskStatus{model.TaskOpen, model.TaskClaimed, model.TaskInProgress, model.TaskCompleted} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
}

func TestValidateTransitionError(t *testing.T) {
	err := ValidateTransition(model.TaskApproved, model.TaskApproved)
	if err == nil {
		t.Fatal("expected error for approved -> approved")
	}
	var ite InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %T", err)
	}
	if ite.From != model.TaskApproved || ite.To != model.TaskApproved {
		t.Errorf("error fields = %s -> %s, want approved -> approved", ite.From, ite.To)
	}

	if err := ValidateTransition(model.TaskOpen, model.TaskClaimed); err != nil {
		t.Errorf("open -> claimed: unexpected error %v", err)
	}
}

func TestValidStatus(t *testing.T) {
	if !ValidStatus(model.TaskInProgress) {
		t.Error("in_progress should be valid")
	}
	if ValidStatus(model.TaskStatus("done")) {
		t.Error("unknown status should not be valid")
	}
}
