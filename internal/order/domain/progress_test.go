package domain

import (
	"errors"
	"testing"
	"time"
)

var stepNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestDefaultSteps(t *testing.T) {
	steps := DefaultSteps()
	if len(steps) != 8 {
		t.Fatalf("len = %d, want 8", len(steps))
	}
	for i, s := range steps {
		if s.Number != i+1 {
			t.Errorf("step %d number = %d", i, s.Number)
		}
		if s.Status != StepPending {
			t.Errorf("step %d status = %q, want pending", s.Number, s.Status)
		}
		if s.Name == "" || s.Description == "" {
			t.Errorf("step %d missing name or description", s.Number)
		}
	}
}

func TestPercent(t *testing.T) {
	steps := DefaultSteps()
	if got := Percent(steps); got != 0 {
		t.Errorf("fresh: %d, want 0", got)
	}
	steps[0].Status = StepCompleted
	if got := Percent(steps); got != 12 {
		t.Errorf("1/8: %d, want 12 (truncated)", got)
	}
	steps[1].Status = StepActive
	if got := Percent(steps); got != 12 {
		t.Errorf("active steps must not count: %d, want 12", got)
	}
	for i := range steps {
		steps[i].Status = StepCompleted
	}
	if got := Percent(steps); got != 100 {
		t.Errorf("all complete: %d, want 100", got)
	}
	if got := Percent(nil); got != 0 {
		t.Errorf("no steps: %d, want 0", got)
	}
}

func TestStartStep(t *testing.T) {
	steps := DefaultSteps()

	if err := StartStep(steps, 1, stepNow); err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	if steps[0].Status != StepActive || steps[0].StartedAt == nil {
		t.Fatalf("step 1 = %+v", steps[0])
	}

	// Only one step active at a time.
	if err := StartStep(steps, 2, stepNow); !errors.Is(err, ErrPreviousNotDone) {
		t.Fatalf("err = %v, want ErrPreviousNotDone", err)
	}
	// An active step cannot start again.
	if err := StartStep(steps, 1, stepNow); !errors.Is(err, ErrStepNotPending) {
		t.Fatalf("err = %v, want ErrStepNotPending", err)
	}
	if err := StartStep(steps, 99, stepNow); !errors.Is(err, ErrStepNotFound) {
		t.Fatalf("err = %v, want ErrStepNotFound", err)
	}
}

func TestStartStep_SkippingForbidden(t *testing.T) {
	steps := DefaultSteps()
	if err := StartStep(steps, 3, stepNow); !errors.Is(err, ErrPreviousNotDone) {
		t.Fatalf("err = %v, want ErrPreviousNotDone", err)
	}
}

func TestCompleteStep(t *testing.T) {
	steps := DefaultSteps()

	// Pending steps cannot complete.
	if err := CompleteStep(steps, 1, stepNow); !errors.Is(err, ErrStepNotActive) {
		t.Fatalf("err = %v, want ErrStepNotActive", err)
	}

	if err := StartStep(steps, 1, stepNow); err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	if err := CompleteStep(steps, 1, stepNow); err != nil {
		t.Fatalf("CompleteStep: %v", err)
	}
	if steps[0].Status != StepCompleted || steps[0].CompletedAt == nil {
		t.Fatalf("step 1 = %+v", steps[0])
	}
	// The next step auto-activates.
	if steps[1].Status != StepActive || steps[1].StartedAt == nil {
		t.Fatalf("step 2 = %+v", steps[1])
	}

	// No reverse transitions: a completed step cannot restart or re-complete.
	if err := StartStep(steps, 1, stepNow); !errors.Is(err, ErrStepNotPending) {
		t.Fatalf("err = %v, want ErrStepNotPending", err)
	}
	if err := CompleteStep(steps, 1, stepNow); !errors.Is(err, ErrStepNotActive) {
		t.Fatalf("err = %v, want ErrStepNotActive", err)
	}
}

func TestCompleteStep_LastStepHasNoNext(t *testing.T) {
	steps := DefaultSteps()
	for n := 1; n <= len(steps); n++ {
		if steps[n-1].Status == StepPending {
			if err := StartStep(steps, n, stepNow); err != nil {
				t.Fatalf("StartStep(%d): %v", n, err)
			}
		}
		if err := CompleteStep(steps, n, stepNow); err != nil {
			t.Fatalf("CompleteStep(%d): %v", n, err)
		}
	}
	if got := Percent(steps); got != 100 {
		t.Errorf("percent = %d, want 100", got)
	}
}
