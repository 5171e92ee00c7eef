package metric

import (
	"context"
	"testing"
	"time"

	"taskboard-api/pkg/orm"
	"taskboard-api/pkg/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) *string {
	return &s
}

func TestCount(t *testing.T) {
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	tasks := []task.Task{
		{ID: "1", Priority: task.PriorityHigh, DueDate: date("2025-06-09")},
		{ID: "2", Priority: task.PriorityHigh, DueDate: date("2025-06-10")},
		{ID: "3", Priority: task.PriorityLow, Completed: true, DueDate: date("2025-01-01")},
		{ID: "4", Priority: task.PriorityMedium},
	}

	counts := Count(tasks, now)
	assert.Equal(t, 4, counts.Total)
	assert.Equal(t, 3, counts.Active)
	assert.Equal(t, 1, counts.Completed)
	assert.Equal(t, 1, counts.Overdue)
	assert.Equal(t, 2, counts.ByPriority[task.PriorityHigh])
	assert.Equal(t, 1, counts.ByPriority[task.PriorityLow])
	assert.Equal(t, "4 tasks total, 3 active", counts.Summary())
}

func TestCountEmpty(t *testing.T) {
	counts := Count(nil, time.Now())
	assert.Equal(t, "0 tasks total, 0 active", counts.Summary())
	assert.Len(t, counts.ByPriority, len(task.Priorities))
}

type listerFunc func(ctx context.Context) ([]task.Task, error)

func (f listerFunc) Tasks(ctx context.Context) ([]task.Task, error) {
	return f(ctx)
}

func TestTaskCountsFromService(t *testing.T) {
	svc := task.NewTaskService(orm.NewMemoryStore())
	ctx := context.Background()
	_, err := svc.CreateTask(ctx, task.CreateTaskInput{Title: "a"})
	require.NoError(t, err)
	created, err := svc.CreateTask(ctx, task.CreateTaskInput{Title: "b"})
	require.NoError(t, err)
	_, err = svc.ToggleTask(ctx, created.ID)
	require.NoError(t, err)

	counts, err := NewMetricService(listerFunc(svc.ListTasks)).TaskCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 1, counts.Active)
	assert.Equal(t, 2, counts.ByPriority[task.PriorityMedium])

	_, err = NewMetricService(listerFunc(func(context.Context) ([]task.Task, error) {
		return nil, assert.AnError
	})).TaskCounts(ctx)
	assert.ErrorIs(t, err, assert.AnError)
}
