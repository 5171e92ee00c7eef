package task

import (
	"fmt"

	"github.com/pkg/errors"
)

// Action prefixes carried by StoreError messages.
const (
	ActionFetchTasks = "Failed to fetch tasks"
	ActionFetchTask  = "Failed to fetch task"
	ActionCreateTask = "Failed to create task"
	ActionUpdateTask = "Failed to update task"
	ActionDeleteTask = "Failed to delete task"
	ActionToggleTask = "Failed to toggle task"
)

type NotFoundError struct {
	ID  string
	Err error
}

func (e *NotFoundError) Error() string {
	cause := "task with ID " + e.ID + " not found"
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return "Task not found: " + cause
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// IsNotFoundError checks if an error is a NotFoundError
func IsNotFoundError(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// ValidationError rejects an input before it reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// StoreError wraps any other store failure with the action that failed.
type StoreError struct {
	Action string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}
