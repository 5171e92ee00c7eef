package metric

import (
	"context"
	"fmt"
	"time"

	"taskboard-api/pkg/task"

	"github.com/rs/zerolog/log"
)

// TaskLister is anything that can produce the current task list, e.g. the
// task service or the HTTP client.
type TaskLister interface {
	Tasks(ctx context.Context) ([]task.Task, error)
}

type MetricService struct {
	lister TaskLister
	now    func() time.Time
}

func NewMetricService(lister TaskLister) *MetricService {
	return &MetricService{lister: lister, now: time.Now}
}

func (metricService *MetricService) TaskCounts(ctx context.Context) (*TaskCounts, error) {
	tasks, err := metricService.lister.Tasks(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tasks for metrics")
		return nil, err
	}
	counts := Count(tasks, metricService.now())
	log.Debug().Interface("TaskCounts", counts).Msg("Computed task counts")
	return &counts, nil
}

// Count tallies tasks. A task is overdue when it is still active and its due
// date is before today's date at now.
func Count(tasks []task.Task, now time.Time) TaskCounts {
	counts := TaskCounts{ByPriority: make(map[task.Priority]int, len(task.Priorities))}
	for _, p := range task.Priorities {
		counts.ByPriority[p] = 0
	}

	today := now.Format(time.DateOnly)
	for _, t := range tasks {
		counts.Total++
		counts.ByPriority[t.Priority]++
		if t.Completed {
			counts.Completed++
			continue
		}
		counts.Active++
		if t.DueDate != nil && len(*t.DueDate) >= len(time.DateOnly) && (*t.DueDate)[:len(time.DateOnly)] < today {
			counts.Overdue++
		}
	}
	return counts
}

// Summary is the one-line list footer, e.g. "3 tasks total, 2 active".
func (c TaskCounts) Summary() string {
	return fmt.Sprintf("%d tasks total, %d active", c.Total, c.Active)
}
