package metric

import "taskboard-api/pkg/task"

// TaskCounts summarises a task list.
type TaskCounts struct {
	Total      int                   `json:"total"`
	Active     int                   `json:"active"`
	Completed  int                   `json:"completed"`
	Overdue    int                   `json:"overdue"`
	ByPriority map[task.Priority]int `json:"byPriority"`
}
