package task

import (
	"context"
	"strings"

	"taskboard-api/pkg/orm"
	"taskboard-api/utils"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// maxToggleAttempts bounds the compare-and-swap loop in ToggleTask.
const maxToggleAttempts = 5

type TaskService struct {
	store orm.Store
}

func NewTaskService(store orm.Store) *TaskService {
	return &TaskService{store: store}
}

// ListTasks returns all tasks, newest first.
func (s *TaskService) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.store.ListTasks(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Error fetching tasks")
		return nil, &StoreError{Action: ActionFetchTasks, Err: err}
	}

	tasks := make([]Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, taskFromRow(row))
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*Task, error) {
	row, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, s.classify(ActionFetchTask, id, err)
	}
	task := taskFromRow(*row)
	return &task, nil
}

func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*Task, error) {
	if input.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "Title is required"}
	}

	newRow := orm.NewTaskRow{
		Title:       input.Title,
		Description: "",
		Completed:   false,
		Priority:    string(PriorityMedium),
	}
	if input.Description != nil {
		newRow.Description = *input.Description
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, invalidPriority(*input.Priority)
		}
		newRow.Priority = string(*input.Priority)
	}
	dueDate, err := normalizeDueDate(input.DueDate)
	if err != nil {
		return nil, err
	}
	newRow.DueDate = dueDate

	row, err := s.store.InsertTask(ctx, newRow)
	if err != nil {
		log.Error().Stack().Err(err).Str("title", input.Title).Msg("Error creating task")
		return nil, &StoreError{Action: ActionCreateTask, Err: err}
	}
	log.Info().Str("id", row.ID).Msg("Task created")
	task := taskFromRow(*row)
	return &task, nil
}

// UpdateTask writes only the fields present in input.
func (s *TaskService) UpdateTask(ctx context.Context, input UpdateTaskInput) (*Task, error) {
	patch, err := patchFromInput(input)
	if err != nil {
		return nil, err
	}

	var row *orm.TaskRow
	if len(patch) == 0 {
		// nothing to write; answer with the stored task
		row, err = s.store.GetTask(ctx, input.ID)
	} else {
		row, err = s.store.UpdateTask(ctx, input.ID, patch, nil)
	}
	if err != nil {
		return nil, s.classify(ActionUpdateTask, input.ID, err)
	}
	if len(patch) > 0 {
		log.Info().Str("id", row.ID).Strs("columns", patch.Columns()).Msg("Task updated")
	}
	task := taskFromRow(*row)
	return &task, nil
}

// DeleteTask succeeds even when no task had the id.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		log.Error().Stack().Err(err).Str("id", id).Msg("Error deleting task")
		return &StoreError{Action: ActionDeleteTask, Err: err}
	}
	log.Info().Str("id", id).Msg("Task deleted")
	return nil
}

// ToggleTask flips completed. The write is conditional on the value that was
// read, so concurrent toggles cannot overwrite each other; a lost race is
// retried against the fresh value.
func (s *TaskService) ToggleTask(ctx context.Context, id string) (*Task, error) {
	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		current, err := s.store.GetTask(ctx, id)
		if err != nil {
			return nil, s.classify(ActionToggleTask, id, err)
		}

		row, err := s.store.UpdateTask(ctx, id,
			orm.Patch{orm.ColumnCompleted: !current.Completed},
			orm.Patch{orm.ColumnCompleted: current.Completed},
		)
		if err == nil {
			task := taskFromRow(*row)
			return &task, nil
		}
		if !orm.IsNotFound(err) {
			return nil, s.classify(ActionToggleTask, id, err)
		}
		// Either deleted or flipped by someone else. The next read tells.
		log.Debug().Str("id", id).Int("attempt", attempt).Msg("Toggle lost a race, retrying")
	}
	err := errors.Errorf("task %s changed concurrently %d times", id, maxToggleAttempts)
	log.Warn().Err(err).Msg("Giving up toggle")
	return nil, &StoreError{Action: ActionToggleTask, Err: err}
}

func (s *TaskService) classify(action string, id string, err error) error {
	if orm.IsNotFound(err) {
		log.Debug().Str("id", id).Msg("Task not found")
		return &NotFoundError{ID: id, Err: err}
	}
	log.Error().Stack().Err(err).Str("id", id).Msg(action)
	return &StoreError{Action: action, Err: err}
}

func patchFromInput(input UpdateTaskInput) (orm.Patch, error) {
	patch := orm.Patch{}
	if input.Title.Set {
		if input.Title.Null || input.Title.Value == "" {
			return nil, &ValidationError{Field: "title", Message: "Title is required"}
		}
		patch[orm.ColumnTitle] = input.Title.Value
	}
	if input.Description.Set {
		patch[orm.ColumnDescription] = input.Description.Value
	}
	if input.Completed.Set {
		patch[orm.ColumnCompleted] = input.Completed.Value
	}
	if input.Priority.Set {
		if !input.Priority.Value.Valid() {
			return nil, invalidPriority(input.Priority.Value)
		}
		patch[orm.ColumnPriority] = string(input.Priority.Value)
	}
	if input.DueDate.Set {
		dueDate, err := normalizeDueDate(input.DueDate.Value)
		if err != nil {
			return nil, err
		}
		patch[orm.ColumnDueDate] = dueDate
	}
	return patch, nil
}

// normalizeDueDate stores due dates as calendar dates. Empty means no date.
func normalizeDueDate(dueDate *string) (*string, error) {
	if dueDate == nil || strings.TrimSpace(*dueDate) == "" {
		return nil, nil
	}
	parsed := utils.ParseDate(strings.TrimSpace(*dueDate))
	if parsed == nil {
		return nil, &ValidationError{Field: "dueDate", Message: "Invalid date: " + *dueDate}
	}
	formatted := utils.FormatDate(*parsed)
	return &formatted, nil
}

func invalidPriority(p Priority) error {
	return &ValidationError{
		Field:   "priority",
		Message: "Invalid enum value. Expected 'low' | 'medium' | 'high', received '" + string(p) + "'",
	}
}

func taskFromRow(row orm.TaskRow) Task {
	return Task{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Completed:   row.Completed,
		Priority:    Priority(row.Priority),
		DueDate:     row.DueDate,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
