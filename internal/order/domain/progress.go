package domain

import (
	"errors"
	"time"
)

// StepStatus is the state of one progress step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
)

// Step is one stage of an order's delivery. Steps advance strictly
// pending → active → completed, in step order, with no skipping and no
// reverse transitions, so the derived percentage never decreases.
type Step struct {
	Number      int
	Name        string
	Description string
	Status      StepStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Step transition errors.
var (
	ErrStepNotFound      = errors.New("progress step not found")
	ErrStepNotPending    = errors.New("step is not pending")
	ErrStepNotActive     = errors.New("step is not active")
	ErrPreviousNotDone   = errors.New("previous step is not completed")
	ErrStepAlreadyActive = errors.New("another step is already active")
)

// DefaultSteps returns the steps created with every new order, all pending.
func DefaultSteps() []Step {
	names := []struct{ name, desc string }{
		{"Order Received", "Your order has been received and is being reviewed by our team."},
		{"Requirements Analysis", "Our team is analyzing your requirements and preparing a development plan."},
		{"Design Phase", "Creating mockups and design concepts for your approval."},
		{"Development", "Building your website with all requested features and functionality."},
		{"Testing & Optimization", "Ensuring everything works perfectly across all devices and browsers."},
		{"Domain & Hosting Setup", "Configuring your domain and hosting environment."},
		{"Final Review", "Final quality check and client approval."},
		{"Launch", "Your website is live and ready for the world!"},
	}
	steps := make([]Step, len(names))
	for i, n := range names {
		steps[i] = Step{Number: i + 1, Name: n.name, Description: n.desc, Status: StepPending}
	}
	return steps
}

// Percent derives the order's overall progress from step states:
// 100 * completed / total, truncated. It is never stored; a fresh order (all
// pending) is 0.
func Percent(steps []Step) int {
	if len(steps) == 0 {
		return 0
	}
	completed := 0
	for _, s := range steps {
		if s.Status == StepCompleted {
			completed++
		}
	}
	return 100 * completed / len(steps)
}

func findStep(steps []Step, number int) (int, error) {
	for i := range steps {
		if steps[i].Number == number {
			return i, nil
		}
	}
	return 0, ErrStepNotFound
}

// StartStep activates the pending step with the given number. Every earlier
// step must already be completed and no other step may be active.
func StartStep(steps []Step, number int, now time.Time) error {
	i, err := findStep(steps, number)
	if err != nil {
		return err
	}
	if steps[i].Status != StepPending {
		return ErrStepNotPending
	}
	for j := range steps {
		if steps[j].Number < number && steps[j].Status != StepCompleted {
			return ErrPreviousNotDone
		}
		if steps[j].Status == StepActive {
			return ErrStepAlreadyActive
		}
	}
	steps[i].Status = StepActive
	t := now
	steps[i].StartedAt = &t
	return nil
}

// CompleteStep completes the active step with the given number and activates
// the next pending step, if any.
func CompleteStep(steps []Step, number int, now time.Time) error {
	i, err := findStep(steps, number)
	if err != nil {
		return err
	}
	if steps[i].Status != StepActive {
		return ErrStepNotActive
	}
	t := now
	steps[i].Status = StepCompleted
	steps[i].CompletedAt = &t
	for j := range steps {
		if steps[j].Number == number+1 && steps[j].Status == StepPending {
			steps[j].Status = StepActive
			started := now
			steps[j].StartedAt = &started
			break
		}
	}
	return nil
}
