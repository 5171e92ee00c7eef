package client

import (
	"fmt"

	"taskboard-api/pkg/task"
)

type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusActive    StatusFilter = "active"
	StatusCompleted StatusFilter = "completed"
)

// PriorityAll disables the priority filter.
const PriorityAll = "all"

type Filter struct {
	Status   StatusFilter
	Priority string
}

func (f Filter) Validate() error {
	switch f.Status {
	case "", StatusAll, StatusActive, StatusCompleted:
	default:
		return fmt.Errorf("unknown status filter %q (want all, active or completed)", f.Status)
	}
	if f.Priority != "" && f.Priority != PriorityAll && !task.Priority(f.Priority).Valid() {
		return fmt.Errorf("unknown priority filter %q (want all, low, medium or high)", f.Priority)
	}
	return nil
}

// Apply keeps the tasks matching f, preserving order.
func (f Filter) Apply(tasks []task.Task) []task.Task {
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		switch f.Status {
		case StatusActive:
			if t.Completed {
				continue
			}
		case StatusCompleted:
			if !t.Completed {
				continue
			}
		}
		if f.Priority != "" && f.Priority != PriorityAll && string(t.Priority) != f.Priority {
			continue
		}
		out = append(out, t)
	}
	return out
}
