package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"taskboard-api/pkg/orm"
	"taskboard-api/pkg/task"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Result *struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	Error *ErrorBody `json:"error"`
}

func newTestEngine(t *testing.T) (*gin.Engine, *orm.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := orm.NewMemoryStore()
	return NewEngine(task.NewTaskService(store), CorsConfig(nil)), store
}

func query(t *testing.T, engine *gin.Engine, path string, input string) *httptest.ResponseRecorder {
	t.Helper()
	target := BasePath + "/" + path
	if input != "" {
		target += "?input=" + url.QueryEscape(input)
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func mutate(t *testing.T, engine *gin.Engine, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, BasePath+"/"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) task.Task {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Result, rec.Body.String())
	var out task.Task
	require.NoError(t, json.Unmarshal(env.Result.Data, &out))
	return out
}

func TestHello(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := query(t, engine, "hello", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":{"data":"Hello World"}}`, rec.Body.String())
}

func TestCreateTaskOverHTTP(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := mutate(t, engine, "createTask", `{"title":"Buy milk","priority":"high"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	created := decodeTask(t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Buy milk", created.Title)
	assert.Equal(t, "", created.Description)
	assert.False(t, created.Completed)
	assert.Equal(t, task.PriorityHigh, created.Priority)
	assert.Nil(t, created.DueDate)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Result.Data, &raw))
	for _, key := range []string{"id", "title", "description", "completed", "priority", "dueDate", "createdAt", "updatedAt"} {
		assert.Contains(t, raw, key)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	engine, store := newTestEngine(t)

	cases := map[string]struct {
		body    string
		message string
	}{
		"empty title":     {`{"title":""}`, "Title is required"},
		"missing title":   {`{"description":"x"}`, "Title is required"},
		"no input":        {``, "Title is required"},
		"bad priority":    {`{"title":"t","priority":"urgent"}`, "Invalid enum value. Expected 'low' | 'medium' | 'high', received 'urgent'"},
		"bad due date":    {`{"title":"t","dueDate":"soon"}`, "Invalid date: soon"},
		"wrong json type": {`{"title":42}`, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := mutate(t, engine, "createTask", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			env := decodeEnvelope(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(ErrBadRequest), env.Error.Data.Code)
			assert.Equal(t, -32600, env.Error.Code)
			assert.Equal(t, "createTask", env.Error.Data.Path)
			if tc.message != "" {
				assert.Equal(t, tc.message, env.Error.Message)
			}
		})
	}
	assert.Equal(t, 0, store.Len())
}

func TestGetTaskNotFound(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := query(t, engine, "getTask", `{"id":"missing"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(ErrNotFound), env.Error.Data.Code)
	assert.True(t, strings.HasPrefix(env.Error.Message, "Task not found: "), env.Error.Message)
}

func TestGetTaskRequiresID(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := query(t, engine, "getTask", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id is required", decodeEnvelope(t, rec).Error.Message)
}

func TestUpdateTaskPartial(t *testing.T) {
	engine, _ := newTestEngine(t)

	created := decodeTask(t, mutate(t, engine, "createTask", `{"title":"t","description":"d","dueDate":"2025-02-01"}`))

	rec := mutate(t, engine, "updateTask", `{"id":"`+created.ID+`","completed":true,"dueDate":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeTask(t, rec)
	assert.True(t, updated.Completed)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, "t", updated.Title)
	assert.Equal(t, "d", updated.Description)
	assert.Equal(t, task.PriorityMedium, updated.Priority)

	rec = mutate(t, engine, "updateTask", `{"id":"`+created.ID+`","title":null}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = mutate(t, engine, "updateTask", `{"id":"`+created.ID+`","title":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Title is required", decodeEnvelope(t, rec).Error.Message)

	rec = mutate(t, engine, "updateTask", `{"id":"nope","title":"x"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleAndDelete(t *testing.T) {
	engine, _ := newTestEngine(t)

	created := decodeTask(t, mutate(t, engine, "createTask", `{"title":"Buy milk","priority":"high"}`))

	toggled := decodeTask(t, mutate(t, engine, "toggleTask", `{"id":"`+created.ID+`"}`))
	assert.True(t, toggled.Completed)

	rec := mutate(t, engine, "deleteTask", `{"id":"`+created.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":{"data":{"success":true}}}`, rec.Body.String())

	rec = query(t, engine, "getTask", `{"id":"`+created.ID+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = mutate(t, engine, "deleteTask", `{"id":"`+created.ID+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetTasksOrder(t *testing.T) {
	engine, _ := newTestEngine(t)

	first := decodeTask(t, mutate(t, engine, "createTask", `{"title":"first"}`))
	second := decodeTask(t, mutate(t, engine, "createTask", `{"title":"second"}`))

	rec := query(t, engine, "getTasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []task.Task
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Result.Data, &tasks))
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)
	assert.Equal(t, first.ID, tasks[1].ID)
}

func TestStoreFailureIsInternalError(t *testing.T) {
	engine, store := newTestEngine(t)
	store.FailWith(errors.New("boom"))

	rec := query(t, engine, "getTasks", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, string(ErrInternal), env.Error.Data.Code)
	assert.Equal(t, "Failed to fetch tasks: boom", env.Error.Message)
}

func TestBatchedQueries(t *testing.T) {
	engine, _ := newTestEngine(t)

	created := decodeTask(t, mutate(t, engine, "createTask", `{"title":"t"}`))

	input := `{"1":{"id":"` + created.ID + `"},"2":{"id":"missing"}}`
	req := httptest.NewRequest(http.MethodGet, BasePath+"/getTasks,getTask,getTask?batch=1&input="+url.QueryEscape(input), nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	var envs []envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envs))
	require.Len(t, envs, 3)
	require.NotNil(t, envs[0].Result)
	require.NotNil(t, envs[1].Result)
	require.NotNil(t, envs[2].Error)
	assert.Equal(t, string(ErrNotFound), envs[2].Error.Data.Code)

	var fetched task.Task
	require.NoError(t, json.Unmarshal(envs[1].Result.Data, &fetched))
	assert.Equal(t, created.ID, fetched.ID)
}

func TestBatchedMutationsSameStatus(t *testing.T) {
	engine, store := newTestEngine(t)

	req := httptest.NewRequest(http.MethodPost, BasePath+"/createTask,createTask?batch=1",
		strings.NewReader(`{"0":{"title":"a"},"1":{"title":"b","priority":"low"}}`))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var envs []envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envs))
	require.Len(t, envs, 2)
	assert.Equal(t, 2, store.Len())
}

func TestMethodMismatch(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := query(t, engine, "createTask", `{"title":"t"}`)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, string(ErrMethodNotSupported), decodeEnvelope(t, rec).Error.Data.Code)

	rec = mutate(t, engine, "getTasks", ``)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUnknownProcedure(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := query(t, engine, "listEverything", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, `No "query"-procedure on path "listEverything"`, env.Error.Message)
}

func TestMalformedInput(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := mutate(t, engine, "createTask", `{"title":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, string(ErrParse), env.Error.Data.Code)
	assert.Equal(t, -32700, env.Error.Code)
}

func TestCorsAllowsAnyOriginByDefault(t *testing.T) {
	engine, _ := newTestEngine(t)

	req := httptest.NewRequest(http.MethodGet, BasePath+"/hello", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBatchStatus(t *testing.T) {
	ok := defaultSuccessResponse(1)
	notFound := defaultErrorResponse(newRPCError(ErrNotFound, "x"), "p")

	assert.Equal(t, http.StatusOK, batchStatus([]ApiResponse{ok, ok}))
	assert.Equal(t, http.StatusNotFound, batchStatus([]ApiResponse{notFound, notFound}))
	assert.Equal(t, http.StatusMultiStatus, batchStatus([]ApiResponse{ok, notFound}))
}

func TestOversizedBodyIsRejected(t *testing.T) {
	engine, store := newTestEngine(t)

	body := `{"title":"big","description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := mutate(t, engine, "createTask", body)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, string(ErrPayloadTooLarge), env.Error.Data.Code)
	assert.Equal(t, -32413, env.Error.Code)
	assert.Equal(t, 0, store.Len())
}

func TestBodyAtLimitIsRead(t *testing.T) {
	engine, _ := newTestEngine(t)

	prefix := `{"title":"","description":"`
	suffix := `"}`
	body := prefix + strings.Repeat("x", maxBodyBytes-len(prefix)-len(suffix)) + suffix
	require.Len(t, body, maxBodyBytes)

	rec := mutate(t, engine, "createTask", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(ErrBadRequest), decodeEnvelope(t, rec).Error.Data.Code)
}

func TestUnsupportedHTTPMethod(t *testing.T) {
	engine, _ := newTestEngine(t)

	for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		req := httptest.NewRequest(method, BasePath+"/getTasks", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, string(ErrMethodNotSupported), env.Error.Data.Code)
		assert.Equal(t, -32005, env.Error.Code)
		assert.Equal(t, "Unsupported "+method+"-request", env.Error.Message)
	}
}
