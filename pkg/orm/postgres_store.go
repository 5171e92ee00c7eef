package orm

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaSQL string

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// due_date is a date column; reading it as text keeps the calendar date
// without a timezone round trip.
var taskColumns = []string{
	ColumnID,
	ColumnTitle,
	ColumnDescription,
	ColumnCompleted,
	ColumnPriority,
	ColumnDueDate + "::text AS " + ColumnDueDate,
	ColumnCreatedAt,
	ColumnUpdatedAt,
}

// PostgresStore talks to the tasks table directly over database/sql.
type PostgresStore struct {
	db           *sql.DB
	queryTracker *QueryTracker
}

// NewPostgresStore opens databaseURL and pings it, retrying a few times while
// the database comes up.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	maxRetries := 5
	retryDelay := time.Second
	for i := 0; i < maxRetries; i++ {
		err = db.PingContext(ctx)
		if err == nil {
			log.Info().Msg("Successfully connected to Postgres")
			return &PostgresStore{db: db, queryTracker: &QueryTracker{}}, nil
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("Failed to ping Postgres, retrying...")
		select {
		case <-ctx.Done():
			db.Close()
			return nil, errors.Wrap(ctx.Err(), "ping postgres")
		case <-time.After(retryDelay):
		}
	}
	db.Close()
	return nil, errors.Wrapf(err, "ping postgres after %d retries", maxRetries)
}

// Migrate creates the tasks table and its index when they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	s.queryTracker.BeforeQuery()
	defer s.queryTracker.AfterQuery()
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	log.Info().Msg("Applied tasks schema")
	return nil
}

func (s *PostgresStore) ListTasks(ctx context.Context) ([]TaskRow, error) {
	return s.queryRows(ctx, listTasksQuery())
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*TaskRow, error) {
	return s.queryOne(ctx, getTaskQuery(id), id)
}

func (s *PostgresStore) InsertTask(ctx context.Context, row NewTaskRow) (*TaskRow, error) {
	sqlStr, args, err := insertTaskQuery(row).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build insert")
	}
	return s.scanOne(ctx, sqlStr, args, "")
}

func (s *PostgresStore) UpdateTask(ctx context.Context, id string, patch Patch, where Patch) (*TaskRow, error) {
	query, err := updateTaskQuery(id, patch, where)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build update")
	}
	return s.scanOne(ctx, sqlStr, args, id)
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	sqlStr, args, err := deleteTaskQuery(id).ToSql()
	if err != nil {
		return errors.Wrap(err, "build delete")
	}

	s.queryTracker.BeforeQuery()
	defer s.queryTracker.AfterQuery()
	log.Debug().Interface("args", args).Msgf("Executing: %s", sqlStr)
	result, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return errors.Wrapf(err, "delete task %s", id)
	}
	if n, err := result.RowsAffected(); err == nil {
		log.Debug().Str("id", id).Int64("rows", n).Msg("Deleted task")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if !s.queryTracker.WaitForAllQueries(2 * time.Second) {
		log.Warn().Int("active", s.queryTracker.Active()).Msg("Closing Postgres with queries still in flight")
	}
	return s.db.Close()
}

func (s *PostgresStore) queryRows(ctx context.Context, query sq.SelectBuilder) ([]TaskRow, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build select")
	}

	s.queryTracker.BeforeQuery()
	defer s.queryTracker.AfterQuery()
	log.Debug().Interface("args", args).Msgf("Executing: %s", sqlStr)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select tasks")
	}
	defer rows.Close()

	tasks := []TaskRow{}
	for rows.Next() {
		row, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate tasks")
	}
	return tasks, nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query sq.SelectBuilder, id string) (*TaskRow, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build select")
	}
	return s.scanOne(ctx, sqlStr, args, id)
}

func (s *PostgresStore) scanOne(ctx context.Context, sqlStr string, args []interface{}, id string) (*TaskRow, error) {
	s.queryTracker.BeforeQuery()
	defer s.queryTracker.AfterQuery()
	log.Debug().Interface("args", args).Msgf("Executing: %s", sqlStr)

	row, err := scanTaskRow(s.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		return nil, notFoundOnNoRows(err, id)
	}
	return row, nil
}

func notFoundOnNoRows(err error, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(ErrNotFound, "task %s", id)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTaskRow(scanner rowScanner) (*TaskRow, error) {
	var (
		row     TaskRow
		dueDate sql.NullString
	)
	err := scanner.Scan(
		&row.ID,
		&row.Title,
		&row.Description,
		&row.Completed,
		&row.Priority,
		&dueDate,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan task")
	}
	if dueDate.Valid {
		row.DueDate = &dueDate.String
	}
	return &row, nil
}

func listTasksQuery() sq.SelectBuilder {
	return psql.Select(taskColumns...).
		From(TasksTable).
		OrderBy(ColumnCreatedAt+" DESC", ColumnID+" DESC")
}

func getTaskQuery(id string) sq.SelectBuilder {
	return psql.Select(taskColumns...).
		From(TasksTable).
		Where(sq.Eq{ColumnID: id})
}

func insertTaskQuery(row NewTaskRow) sq.InsertBuilder {
	return psql.Insert(TasksTable).
		Columns(ColumnTitle, ColumnDescription, ColumnCompleted, ColumnPriority, ColumnDueDate).
		Values(row.Title, row.Description, row.Completed, row.Priority, sqlValue(row.DueDate)).
		Suffix("RETURNING " + strings.Join(taskColumns, ", "))
}

// updateTaskQuery writes patch to the row with id, matching only while every
// column in where still holds its value.
func updateTaskQuery(id string, patch Patch, where Patch) (sq.UpdateBuilder, error) {
	if err := validateColumns(patch); err != nil {
		return sq.UpdateBuilder{}, err
	}
	if err := validateColumns(where); err != nil {
		return sq.UpdateBuilder{}, err
	}

	setMap := make(map[string]interface{}, len(patch)+1)
	for column, value := range patch {
		setMap[column] = sqlValue(value)
	}
	setMap[ColumnUpdatedAt] = sq.Expr("now()")

	conditions := sq.Eq{ColumnID: id}
	for column, value := range where {
		conditions[column] = sqlValue(value)
	}

	return psql.Update(TasksTable).
		SetMap(setMap).
		Where(conditions).
		Suffix("RETURNING " + strings.Join(taskColumns, ", ")), nil
}

func deleteTaskQuery(id string) sq.DeleteBuilder {
	return psql.Delete(TasksTable).Where(sq.Eq{ColumnID: id})
}

// sqlValue unwraps *string so a nil pointer becomes SQL NULL (and IS NULL in
// conditions).
func sqlValue(value interface{}) interface{} {
	if s, ok := value.(*string); ok {
		if s == nil {
			return nil
		}
		return *s
	}
	return value
}
