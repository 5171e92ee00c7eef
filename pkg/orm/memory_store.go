package orm

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryStore keeps tasks in process. It backs tests and local runs without a
// database.
type MemoryStore struct {
	mu       sync.RWMutex
	rows     map[string]TaskRow
	lastTime time.Time
	failWith error
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[string]TaskRow),
		now:  time.Now,
	}
}

// FailWith makes every following call return err until it is called again
// with nil.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Len reports the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// timestamp must be called with mu held. Timestamps strictly increase so
// created_at ordering matches insertion order.
func (s *MemoryStore) timestamp() time.Time {
	t := s.now().UTC()
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Microsecond)
	}
	s.lastTime = t
	return t
}

func (s *MemoryStore) ListTasks(ctx context.Context) ([]TaskRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	rows := make([]TaskRow, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, cloneRow(row))
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})
	return rows, nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id string) (*TaskRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	row, ok := s.rows[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "task %s", id)
	}
	row = cloneRow(row)
	return &row, nil
}

func (s *MemoryStore) InsertTask(ctx context.Context, newRow NewTaskRow) (*TaskRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	now := s.timestamp()
	row := TaskRow{
		ID:          uuid.NewString(),
		Title:       newRow.Title,
		Description: newRow.Description,
		Completed:   newRow.Completed,
		Priority:    newRow.Priority,
		DueDate:     copyString(newRow.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.rows[row.ID] = row
	row = cloneRow(row)
	return &row, nil
}

func (s *MemoryStore) UpdateTask(ctx context.Context, id string, patch Patch, where Patch) (*TaskRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateColumns(patch); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	row, ok := s.rows[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "task %s", id)
	}
	matched, err := rowMatches(row, where)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errors.Wrapf(ErrNotFound, "task %s with conditions %v", id, where.Columns())
	}
	if err := applyPatch(&row, patch); err != nil {
		return nil, err
	}
	row.UpdatedAt = s.timestamp()
	s.rows[id] = row
	row = cloneRow(row)
	return &row, nil
}

func (s *MemoryStore) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	delete(s.rows, id)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func applyPatch(row *TaskRow, patch Patch) error {
	for _, column := range patch.Columns() {
		value := patch[column]
		var ok bool
		switch column {
		case ColumnTitle:
			row.Title, ok = value.(string)
		case ColumnDescription:
			row.Description, ok = value.(string)
		case ColumnCompleted:
			row.Completed, ok = value.(bool)
		case ColumnPriority:
			row.Priority, ok = value.(string)
		case ColumnDueDate:
			dueDate, err := normalizeDueDate(value)
			if err != nil {
				return err
			}
			row.DueDate, ok = copyString(dueDate), true
		}
		if !ok {
			return errors.Errorf("%s: unsupported value type %T", column, value)
		}
	}
	return nil
}

func rowMatches(row TaskRow, where Patch) (bool, error) {
	for _, column := range where.Columns() {
		value := where[column]
		switch column {
		case ColumnTitle:
			if v, ok := value.(string); !ok || v != row.Title {
				return false, nil
			}
		case ColumnDescription:
			if v, ok := value.(string); !ok || v != row.Description {
				return false, nil
			}
		case ColumnCompleted:
			if v, ok := value.(bool); !ok || v != row.Completed {
				return false, nil
			}
		case ColumnPriority:
			if v, ok := value.(string); !ok || v != row.Priority {
				return false, nil
			}
		case ColumnDueDate:
			dueDate, err := normalizeDueDate(value)
			if err != nil {
				return false, err
			}
			if (dueDate == nil) != (row.DueDate == nil) || (dueDate != nil && *dueDate != *row.DueDate) {
				return false, nil
			}
		default:
			return false, errors.Errorf("column %q cannot be matched", column)
		}
	}
	return true, nil
}

func cloneRow(row TaskRow) TaskRow {
	row.DueDate = copyString(row.DueDate)
	return row
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
