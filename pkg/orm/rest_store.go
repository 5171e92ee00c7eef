package orm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	postgrest "github.com/supabase-community/postgrest-go"
)

const (
	restPath   = "/rest/v1"
	restSchema = "public"

	// invalidTextRepresentation is the Postgres code for a value that cannot
	// be cast to the column type, e.g. a malformed uuid in an id filter.
	invalidTextRepresentation = "22P02"
)

// RestError is the error body returned by the hosted store's REST gateway.
type RestError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *RestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store responded with status %d", e.StatusCode)
	}
	return e.Message
}

// RestStore reaches the tasks table through a PostgREST gateway (the hosted
// store's HTTP API) using the project URL and access key.
type RestStore struct {
	restURL   string
	apiKey    string
	transport http.RoundTripper
	timeout   time.Duration
	now       func() time.Time
}

type RestStoreOption func(*RestStore)

// WithTransport routes gateway requests through rt instead of
// http.DefaultTransport.
func WithTransport(rt http.RoundTripper) RestStoreOption {
	return func(s *RestStore) {
		s.transport = rt
	}
}

func WithTimeout(timeout time.Duration) RestStoreOption {
	return func(s *RestStore) {
		s.timeout = timeout
	}
}

func NewRestStore(projectURL, apiKey string, opts ...RestStoreOption) *RestStore {
	s := &RestStore{
		restURL:   strings.TrimRight(projectURL, "/") + restPath,
		apiKey:    apiKey,
		transport: http.DefaultTransport,
		timeout:   30 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RestStore) ListTasks(ctx context.Context) ([]TaskRow, error) {
	desc := &postgrest.OrderOpts{Ascending: false}
	rows := []TaskRow{}
	err := s.execute(ctx, &rows, func(tasks *postgrest.QueryBuilder) *postgrest.FilterBuilder {
		return tasks.Select("*", "", false).
			Order(ColumnCreatedAt, desc).
			Order(ColumnID, desc)
	})
	if err != nil {
		return nil, errors.Wrap(err, "select tasks")
	}
	return rows, nil
}

func (s *RestStore) GetTask(ctx context.Context, id string) (*TaskRow, error) {
	var rows []TaskRow
	err := s.execute(ctx, &rows, func(tasks *postgrest.QueryBuilder) *postgrest.FilterBuilder {
		return tasks.Select("*", "", false).Eq(ColumnID, id)
	})
	if err != nil {
		if isInvalidID(err) {
			return nil, errors.Wrapf(ErrNotFound, "task %s", id)
		}
		return nil, errors.Wrapf(err, "select task %s", id)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "task %s", id)
	}
	return &rows[0], nil
}

func (s *RestStore) InsertTask(ctx context.Context, row NewTaskRow) (*TaskRow, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, errors.Wrap(err, "encode task")
	}

	var rows []TaskRow
	err = s.execute(ctx, &rows, func(tasks *postgrest.QueryBuilder) *postgrest.FilterBuilder {
		return tasks.Insert(json.RawMessage(payload), false, "", "representation", "")
	})
	if err != nil {
		return nil, errors.Wrap(err, "insert task")
	}
	if len(rows) == 0 {
		return nil, errors.New("insert task: store returned no row")
	}
	return &rows[0], nil
}

func (s *RestStore) UpdateTask(ctx context.Context, id string, patch Patch, where Patch) (*TaskRow, error) {
	if err := validateColumns(patch); err != nil {
		return nil, err
	}
	if err := validateColumns(where); err != nil {
		return nil, err
	}

	type condition struct{ column, operator, operand string }
	conditions := make([]condition, 0, len(where))
	for _, column := range where.Columns() {
		operator, operand, err := filterValue(where[column])
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, condition{column, operator, operand})
	}

	body := make(map[string]interface{}, len(patch)+1)
	for column, value := range patch {
		body[column] = value
	}
	body[ColumnUpdatedAt] = s.now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode patch")
	}

	var rows []TaskRow
	err = s.execute(ctx, &rows, func(tasks *postgrest.QueryBuilder) *postgrest.FilterBuilder {
		filter := tasks.Update(json.RawMessage(payload), "representation", "").Eq(ColumnID, id)
		for _, c := range conditions {
			filter = filter.Filter(c.column, c.operator, c.operand)
		}
		return filter
	})
	if err != nil {
		if isInvalidID(err) {
			return nil, errors.Wrapf(ErrNotFound, "task %s", id)
		}
		return nil, errors.Wrapf(err, "update task %s", id)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "task %s", id)
	}
	return &rows[0], nil
}

func (s *RestStore) DeleteTask(ctx context.Context, id string) error {
	err := s.execute(ctx, nil, func(tasks *postgrest.QueryBuilder) *postgrest.FilterBuilder {
		return tasks.Delete("minimal", "").Eq(ColumnID, id)
	})
	if err != nil {
		// no row can carry a malformed id, so there is nothing to delete
		if isInvalidID(err) {
			return nil
		}
		return errors.Wrapf(err, "delete task %s", id)
	}
	return nil
}

func (s *RestStore) Close() error {
	if closer, ok := s.transport.(interface{ CloseIdleConnections() }); ok {
		closer.CloseIdleConnections()
	}
	return nil
}

// execute runs one gateway request built by build against the tasks table
// and decodes the JSON response into out when out is non-nil.
func (s *RestStore) execute(ctx context.Context, out interface{}, build func(*postgrest.QueryBuilder) *postgrest.FilterBuilder) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client := postgrest.NewClient(s.restURL, restSchema, nil)
	if client.ClientError != nil {
		return errors.Wrap(client.ClientError, "create gateway client")
	}
	client.SetApiKey(s.apiKey).SetAuthToken(s.apiKey)

	call := &callTransport{ctx: ctx, base: s.transport}
	client.Transport.Parent = call

	log.Trace().Str("url", s.restURL).Str("table", TasksTable).Msg("Store request")
	payload, _, err := build(client.From(TasksTable)).Execute()
	if err != nil {
		if call.status >= http.StatusBadRequest {
			return errors.WithStack(call.restError())
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, err.Error())
		}
		return errors.WithStack(err)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}

// callTransport binds a single gateway request to ctx and keeps the status
// and body of an error response, which the gateway client reduces to a
// string.
type callTransport struct {
	ctx    context.Context
	base   http.RoundTripper
	status int
	body   []byte
}

func (t *callTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, err
	}
	t.status = resp.StatusCode
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	payload, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, errors.Wrap(err, "read error response")
	}
	t.body = payload
	resp.Body = io.NopCloser(bytes.NewReader(payload))
	return resp, nil
}

func (t *callTransport) restError() *RestError {
	restErr := &RestError{}
	if err := json.Unmarshal(t.body, restErr); err != nil {
		restErr = &RestError{Message: strings.TrimSpace(string(t.body))}
	}
	restErr.StatusCode = t.status
	return restErr
}

func isInvalidID(err error) bool {
	var restErr *RestError
	return errors.As(err, &restErr) && restErr.Code == invalidTextRepresentation
}

// filterValue turns a condition value into a gateway filter operator and
// operand.
func filterValue(value interface{}) (string, string, error) {
	switch v := sqlValue(value).(type) {
	case nil:
		return "is", "null", nil
	case bool:
		return "is", fmt.Sprintf("%t", v), nil
	case string:
		return "eq", v, nil
	default:
		return "", "", errors.Errorf("cannot filter on value of type %T", value)
	}
}
