package fixtures

import (
	"context"
	_ "embed"
	"encoding/json"

	"taskboard-api/pkg/task"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:embed task_data.json
var taskData []byte

type FixtureService struct {
	tasks *task.TaskService
}

// NewFixtureService creates a new FixtureService writing through the given task service.
func NewFixtureService(tasks *task.TaskService) *FixtureService {
	return &FixtureService{tasks: tasks}
}

// LoadTaskData decodes the bundled fixture tasks.
func LoadTaskData() ([]task.CreateTaskInput, error) {
	var inputs []task.CreateTaskInput
	if err := json.Unmarshal(taskData, &inputs); err != nil {
		return nil, errors.Wrap(err, "decode task_data.json")
	}
	return inputs, nil
}

// ResetTasks deletes existing tasks whose title matches a fixture so seeding
// can be run repeatedly.
func (o *FixtureService) ResetTasks(ctx context.Context, inputs []task.CreateTaskInput) (int, error) {
	titles := make(map[string]struct{}, len(inputs))
	for _, input := range inputs {
		titles[input.Title] = struct{}{}
	}

	existing, err := o.tasks.ListTasks(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, t := range existing {
		if _, ok := titles[t.Title]; !ok {
			continue
		}
		if err := o.tasks.DeleteTask(ctx, t.ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// SeedTasks resets and then creates every fixture task, oldest first.
func (o *FixtureService) SeedTasks(ctx context.Context) ([]task.Task, error) {
	inputs, err := LoadTaskData()
	if err != nil {
		return nil, err
	}

	deleted, err := o.ResetTasks(ctx, inputs)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reset fixture tasks")
		return nil, err
	}
	log.Info().Int("deleted", deleted).Msg("Reset fixture tasks")

	created := make([]task.Task, 0, len(inputs))
	for _, input := range inputs {
		t, err := o.tasks.CreateTask(ctx, input)
		if err != nil {
			log.Error().Err(err).Str("title", input.Title).Msg("Failed to create fixture task")
			return created, err
		}
		log.Info().Str("id", t.ID).Str("title", t.Title).Msg("Created fixture task")
		created = append(created, *t)
	}
	return created, nil
}
