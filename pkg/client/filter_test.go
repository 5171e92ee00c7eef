package client

import (
	"testing"

	"taskboard-api/pkg/task"

	"github.com/stretchr/testify/assert"
)

func TestFilterApply(t *testing.T) {
	tasks := []task.Task{
		{ID: "1", Completed: false, Priority: task.PriorityHigh},
		{ID: "2", Completed: true, Priority: task.PriorityHigh},
		{ID: "3", Completed: false, Priority: task.PriorityLow},
	}

	ids := func(ts []task.Task) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids(Filter{}.Apply(tasks)))
	assert.Equal(t, []string{"1", "3"}, ids(Filter{Status: StatusActive}.Apply(tasks)))
	assert.Equal(t, []string{"2"}, ids(Filter{Status: StatusCompleted}.Apply(tasks)))
	assert.Equal(t, []string{"1", "2"}, ids(Filter{Status: StatusAll, Priority: "high"}.Apply(tasks)))
	assert.Equal(t, []string{"1"}, ids(Filter{Status: StatusActive, Priority: "high"}.Apply(tasks)))
	assert.Empty(t, Filter{Priority: "medium"}.Apply(tasks))
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{}.Validate())
	assert.NoError(t, Filter{Status: StatusCompleted, Priority: PriorityAll}.Validate())
	assert.Error(t, Filter{Status: "done"}.Validate())
	assert.Error(t, Filter{Priority: "urgent"}.Validate())
}
