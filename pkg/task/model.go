package task

import (
	"bytes"
	"encoding/json"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is the shape returned to RPC callers.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Priority    Priority  `json:"priority"`
	DueDate     *string   `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateTaskInput struct {
	Title       string    `json:"title" validate:"required"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty" validate:"omitempty,priority"`
	DueDate     *string   `json:"dueDate,omitempty" validate:"omitempty,duedate"`
}

// UpdateTaskInput carries only the fields the caller sent. Fields that were
// not sent stay untouched in the store.
type UpdateTaskInput struct {
	ID          string             `json:"id" validate:"required"`
	Title       Optional[string]   `json:"title,omitzero"`
	Description Optional[string]   `json:"description,omitzero"`
	Completed   Optional[bool]     `json:"completed,omitzero"`
	Priority    Optional[Priority] `json:"priority,omitzero"`
	DueDate     Optional[*string]  `json:"dueDate,omitzero"`
}

// Empty reports whether no field besides the id was provided.
func (in UpdateTaskInput) Empty() bool {
	return !in.Title.Set && !in.Description.Set && !in.Completed.Set && !in.Priority.Set && !in.DueDate.Set
}

type IDInput struct {
	ID string `json:"id" validate:"required"`
}

type DeleteTaskResult struct {
	Success bool `json:"success"`
}

// Optional distinguishes a field that was not provided from one provided
// with its zero value or with null.
type Optional[T any] struct {
	Value T
	Set   bool
	// Null is true when the field was provided as JSON null.
	Null bool
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{Value: value, Set: true}
}

func (o Optional[T]) IsZero() bool {
	return !o.Set
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Null = bytes.Equal(bytes.TrimSpace(data), []byte("null"))
	if o.Null {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
