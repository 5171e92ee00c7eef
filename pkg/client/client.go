// Package client is a typed Go binding for the task procedures served under
// /trpc. It keeps the task list cached and drops the cache after every
// successful mutation, so the next read refetches.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"taskboard-api/pkg/task"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Error is a procedure error as reported by the server. Its message is the
// server's message, unchanged.
type Error struct {
	Message    string
	Code       string
	HTTPStatus int
	Path       string
}

func (e *Error) Error() string {
	return e.Message
}

func IsNotFound(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == "NOT_FOUND"
}

func IsBadRequest(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == "BAD_REQUEST"
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu         sync.Mutex
	tasks      []task.Task
	tasksValid bool
	generation uint64
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New returns a client for the procedure endpoint, e.g.
// http://localhost:3001/trpc.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Hello(ctx context.Context) (string, error) {
	var out string
	err := c.query(ctx, "hello", nil, &out)
	return out, err
}

// Tasks returns the cached list, fetching it when the cache is empty or was
// invalidated.
func (c *Client) Tasks(ctx context.Context) ([]task.Task, error) {
	c.mu.Lock()
	if c.tasksValid {
		tasks := append([]task.Task(nil), c.tasks...)
		c.mu.Unlock()
		return tasks, nil
	}
	generation := c.generation
	c.mu.Unlock()

	return c.fetchTasks(ctx, generation)
}

// RefetchTasks ignores the cache and stores the fresh list.
func (c *Client) RefetchTasks(ctx context.Context) ([]task.Task, error) {
	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()
	return c.fetchTasks(ctx, generation)
}

// Invalidate drops the cached list.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = nil
	c.tasksValid = false
	c.generation++
}

func (c *Client) fetchTasks(ctx context.Context, generation uint64) ([]task.Task, error) {
	var tasks []task.Task
	if err := c.query(ctx, "getTasks", nil, &tasks); err != nil {
		return nil, err
	}

	c.mu.Lock()
	// A mutation that finished while we were fetching makes this list stale.
	if c.generation == generation {
		c.tasks = append([]task.Task(nil), tasks...)
		c.tasksValid = true
	}
	c.mu.Unlock()
	return tasks, nil
}

func (c *Client) Task(ctx context.Context, id string) (*task.Task, error) {
	var out task.Task
	if err := c.query(ctx, "getTask", task.IDInput{ID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TasksByID fetches several tasks in one batched request. The result has one
// entry per id; errs[i] is set when ids[i] failed.
func (c *Client) TasksByID(ctx context.Context, ids ...string) ([]*task.Task, []error, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	inputs := make([]interface{}, len(ids))
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = "getTask"
		inputs[i] = task.IDInput{ID: id}
	}

	results, err := c.batch(ctx, http.MethodGet, names, inputs)
	if err != nil {
		return nil, nil, err
	}

	tasks := make([]*task.Task, len(ids))
	errs := make([]error, len(ids))
	for i, result := range results {
		if result.err != nil {
			errs[i] = result.err
			continue
		}
		var t task.Task
		if err := json.Unmarshal(result.data, &t); err != nil {
			errs[i] = errors.Wrap(err, "decode task")
			continue
		}
		tasks[i] = &t
	}
	return tasks, errs, nil
}

func (c *Client) CreateTask(ctx context.Context, input task.CreateTaskInput) (*task.Task, error) {
	var out task.Task
	if err := c.mutate(ctx, "createTask", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTask(ctx context.Context, input task.UpdateTaskInput) (*task.Task, error) {
	var out task.Task
	if err := c.mutate(ctx, "updateTask", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	var out task.DeleteTaskResult
	if err := c.mutate(ctx, "deleteTask", task.IDInput{ID: id}, &out); err != nil {
		return err
	}
	if !out.Success {
		return errors.Errorf("delete of task %s was not acknowledged", id)
	}
	return nil
}

func (c *Client) ToggleTask(ctx context.Context, id string) (*task.Task, error) {
	var out task.Task
	if err := c.mutate(ctx, "toggleTask", task.IDInput{ID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) query(ctx context.Context, path string, input interface{}, out interface{}) error {
	return c.single(ctx, http.MethodGet, path, input, out)
}

func (c *Client) mutate(ctx context.Context, path string, input interface{}, out interface{}) error {
	if err := c.single(ctx, http.MethodPost, path, input, out); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

func (c *Client) single(ctx context.Context, method string, path string, input interface{}, out interface{}) error {
	results, err := c.batch(ctx, method, []string{path}, []interface{}{input})
	if err != nil {
		return err
	}
	if results[0].err != nil {
		return results[0].err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(results[0].data, out); err != nil {
		return errors.Wrapf(err, "decode %s result", path)
	}
	return nil
}

type callResult struct {
	data json.RawMessage
	err  error
}

type wireResponse struct {
	Result *struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
		Data    struct {
			Code       string `json:"code"`
			HTTPStatus int    `json:"httpStatus"`
			Path       string `json:"path"`
		} `json:"data"`
	} `json:"error"`
}

// batch always speaks the batched form of the protocol, even for one call.
func (c *Client) batch(ctx context.Context, method string, names []string, inputs []interface{}) ([]callResult, error) {
	keyed := make(map[string]interface{}, len(inputs))
	for i, input := range inputs {
		if input != nil {
			keyed[strconv.Itoa(i)] = input
		}
	}
	encoded, err := json.Marshal(keyed)
	if err != nil {
		return nil, errors.Wrap(err, "encode input")
	}

	endpoint := c.baseURL + "/" + strings.Join(names, ",") + "?batch=1"
	var body io.Reader
	if method == http.MethodGet {
		if len(keyed) > 0 {
			endpoint += "&input=" + url.QueryEscape(string(encoded))
		}
	} else {
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Strs("procedures", names).Msg("Calling procedures")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	var responses []wireResponse
	if err := json.Unmarshal(payload, &responses); err != nil {
		// Whole-request failures come back as a single error object.
		var single wireResponse
		if jsonErr := json.Unmarshal(payload, &single); jsonErr == nil && single.Error != nil {
			return nil, toError(single)
		}
		return nil, fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if len(responses) != len(names) {
		return nil, errors.Errorf("expected %d results, got %d", len(names), len(responses))
	}

	results := make([]callResult, len(responses))
	for i, response := range responses {
		if response.Error != nil {
			results[i].err = toError(response)
			continue
		}
		if response.Result == nil {
			results[i].err = errors.Errorf("%s: empty response", names[i])
			continue
		}
		results[i].data = response.Result.Data
	}
	return results, nil
}

func toError(response wireResponse) *Error {
	return &Error{
		Message:    response.Error.Message,
		Code:       response.Error.Data.Code,
		HTTPStatus: response.Error.Data.HTTPStatus,
		Path:       response.Error.Data.Path,
	}
}
