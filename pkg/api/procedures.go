package api

import (
	"context"
	"encoding/json"
	"sort"

	"taskboard-api/pkg/task"

	"github.com/go-playground/validator/v10"
)

type ProcedureType string

const (
	Query    ProcedureType = "query"
	Mutation ProcedureType = "mutation"
)

type Resolver func(ctx context.Context, input json.RawMessage) (interface{}, error)

type Procedure struct {
	Type    ProcedureType
	Resolve Resolver
}

// Router holds the procedure set served under /trpc.
type Router struct {
	procedures map[string]Procedure
	tasks      *task.TaskService
	validate   *validator.Validate
}

func NewRouter(tasks *task.TaskService) *Router {
	r := &Router{
		tasks:    tasks,
		validate: newValidator(),
	}
	r.procedures = map[string]Procedure{
		"hello":      {Type: Query, Resolve: r.hello},
		"getTasks":   {Type: Query, Resolve: r.getTasks},
		"getTask":    {Type: Query, Resolve: r.getTask},
		"createTask": {Type: Mutation, Resolve: r.createTask},
		"updateTask": {Type: Mutation, Resolve: r.updateTask},
		"deleteTask": {Type: Mutation, Resolve: r.deleteTask},
		"toggleTask": {Type: Mutation, Resolve: r.toggleTask},
	}
	return r
}

func (r *Router) Procedure(name string) (Procedure, bool) {
	proc, ok := r.procedures[name]
	return proc, ok
}

// Names lists the registered procedures in alphabetical order.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.procedures))
	for name := range r.procedures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) hello(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return "Hello World", nil
}

func (r *Router) getTasks(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return r.tasks.ListTasks(ctx)
}

func (r *Router) getTask(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	input, err := decodeInput[task.IDInput](r.validate, raw)
	if err != nil {
		return nil, err
	}
	return r.tasks.GetTask(ctx, input.ID)
}

func (r *Router) createTask(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	input, err := decodeInput[task.CreateTaskInput](r.validate, raw)
	if err != nil {
		return nil, err
	}
	return r.tasks.CreateTask(ctx, input)
}

func (r *Router) updateTask(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	input, err := decodeInput[task.UpdateTaskInput](r.validate, raw)
	if err != nil {
		return nil, err
	}
	if err := validateUpdate(r.validate, input); err != nil {
		return nil, err
	}
	return r.tasks.UpdateTask(ctx, input)
}

func (r *Router) deleteTask(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	input, err := decodeInput[task.IDInput](r.validate, raw)
	if err != nil {
		return nil, err
	}
	if err := r.tasks.DeleteTask(ctx, input.ID); err != nil {
		return nil, err
	}
	return task.DeleteTaskResult{Success: true}, nil
}

func (r *Router) toggleTask(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	input, err := decodeInput[task.IDInput](r.validate, raw)
	if err != nil {
		return nil, err
	}
	return r.tasks.ToggleTask(ctx, input.ID)
}
