package orm

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
)

const TasksTable = "tasks"

// Column names of the tasks table.
const (
	ColumnID          = "id"
	ColumnTitle       = "title"
	ColumnDescription = "description"
	ColumnCompleted   = "completed"
	ColumnPriority    = "priority"
	ColumnDueDate     = "due_date"
	ColumnCreatedAt   = "created_at"
	ColumnUpdatedAt   = "updated_at"
)

// ErrNotFound is returned when no row matches the requested id (and any
// extra conditions passed along with it).
var ErrNotFound = errors.New("no rows matched")

// TaskRow mirrors one row of the tasks table.
type TaskRow struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Priority    string    `json:"priority"`
	DueDate     *string   `json:"due_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTaskRow holds the columns written on insert. id and the timestamps are
// assigned by the store.
type NewTaskRow struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Completed   bool    `json:"completed"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
}

// Patch maps column names to values. A nil value (or a nil *string for
// due_date) writes NULL.
type Patch map[string]interface{}

// Columns returns the patch keys in a stable order.
func (p Patch) Columns() []string {
	columns := make([]string, 0, len(p))
	for column := range p {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// Store is the handle the task service talks to. Implementations must be
// safe for concurrent use.
type Store interface {
	// ListTasks returns every row ordered by created_at then id, newest first.
	ListTasks(ctx context.Context) ([]TaskRow, error)
	GetTask(ctx context.Context, id string) (*TaskRow, error)
	InsertTask(ctx context.Context, row NewTaskRow) (*TaskRow, error)
	// UpdateTask writes patch to the row with the given id, provided the row
	// also equals every column in where. ErrNotFound when nothing matched.
	UpdateTask(ctx context.Context, id string, patch Patch, where Patch) (*TaskRow, error)
	// DeleteTask does not fail when no row matched.
	DeleteTask(ctx context.Context, id string) error
	Close() error
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func validateColumns(p Patch) error {
	for column := range p {
		switch column {
		case ColumnTitle, ColumnDescription, ColumnCompleted, ColumnPriority, ColumnDueDate:
		default:
			return errors.Errorf("column %q cannot be written", column)
		}
	}
	return nil
}

// normalizeDueDate flattens the accepted due_date representations into a
// *string so every store treats them the same.
func normalizeDueDate(value interface{}) (*string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *string:
		return v, nil
	case string:
		return &v, nil
	default:
		return nil, errors.Errorf("due_date: unsupported value type %T", value)
	}
}
