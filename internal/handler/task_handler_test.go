package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/charity-tasks-api/internal/dto"
	"github.com/noah-isme/charity-tasks-api/internal/middleware"
	"github.com/noah-isme/charity-tasks-api/internal/models"
	"github.com/noah-isme/charity-tasks-api/internal/service"
	appErrors "github.com/noah-isme/charity-tasks-api/pkg/errors"
)

type taskServiceMock struct {
	listResp    []dto.TaskView
	listErr     error
	taskResp    *dto.TaskView
	taskErr     error
	exportResp  *service.TaskExport
	exportErr   error
	lastFilter  dto.TaskFilter
	lastFormat  string
	lastID      string
	lastCreate  dto.CreateTaskRequest
	lastRespond dto.RespondTaskRequest
	lastActor   *models.Actor
	called      bool
}

func (m *taskServiceMock) Create(ctx context.Context, actor *models.Actor, req dto.CreateTaskRequest) (*dto.TaskView, error) {
	m.called, m.lastActor, m.lastCreate = true, actor, req
	return m.taskResp, m.taskErr
}

func (m *taskServiceMock) List(ctx context.Context, actor *models.Actor, filter dto.TaskFilter) ([]dto.TaskView, error) {
	m.called, m.lastActor, m.lastFilter = true, actor, filter
	return m.listResp, m.listErr
}

func (m *taskServiceMock) Get(ctx context.Context, actor *models.Actor, id string) (*dto.TaskView, error) {
	m.called, m.lastActor, m.lastID = true, actor, id
	return m.taskResp, m.taskErr
}

func (m *taskServiceMock) Export(ctx context.Context, actor *models.Actor, filter dto.TaskFilter, format string) (*service.TaskExport, error) {
	m.called, m.lastActor, m.lastFilter, m.lastFormat = true, actor, filter, format
	return m.exportResp, m.exportErr
}

func (m *taskServiceMock) Request(ctx context.Context, actor *models.Actor, id string) (*dto.TaskView, error) {
	m.called, m.lastActor, m.lastID = true, actor, id
	return m.taskResp, m.taskErr
}

func (m *taskServiceMock) Respond(ctx context.Context, actor *models.Actor, id string, req dto.RespondTaskRequest) (*dto.TaskView, error) {
	m.called, m.lastActor, m.lastID, m.lastRespond = true, actor, id, req
	return m.taskResp, m.taskErr
}

func (m *taskServiceMock) Complete(ctx context.Context, actor *models.Actor, id string) (*dto.TaskView, error) {
	m.called, m.lastActor, m.lastID = true, actor, id
	return m.taskResp, m.taskErr
}

func newTaskContext(method, target, body string, actor *models.Actor) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	if actor != nil {
		c.Set(middleware.ContextActorKey, actor)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTaskHandlerListBindsFilter(t *testing.T) {
	mockSvc := &taskServiceMock{listResp: []dto.TaskView{{ID: "t1"}, {ID: "t2"}}}
	handler := NewTaskHandler(mockSvc)
	actor := &models.Actor{UserID: "u1", BenefactorID: "b1"}

	c, w := newTaskContext(http.MethodGet, "/tasks?title=Paint&state=p&age=20&unknown=x", "", actor)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Paint", mockSvc.lastFilter.Title)
	assert.Equal(t, "p", mockSvc.lastFilter.State)
	assert.Equal(t, "20", mockSvc.lastFilter.Age)
	assert.Same(t, actor, mockSvc.lastActor)

	body := decodeEnvelope(t, w)
	assert.Len(t, body["data"], 2)
	assert.Equal(t, float64(2), body["meta"].(map[string]interface{})["count"])
}

func TestTaskHandlerListServiceError(t *testing.T) {
	mockSvc := &taskServiceMock{listErr: appErrors.Clone(appErrors.ErrValidation, "age must be an integer")}
	handler := NewTaskHandler(mockSvc)

	c, w := newTaskContext(http.MethodGet, "/tasks?age=old", "", &models.Actor{UserID: "u1"})
	handler.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body["error"].(map[string]interface{})["code"])
}

func TestTaskHandlerCreate(t *testing.T) {
	mockSvc := &taskServiceMock{taskResp: &dto.TaskView{ID: "t1", State: models.TaskStatePending}}
	handler := NewTaskHandler(mockSvc)

	c, w := newTaskContext(http.MethodPost, "/tasks", `{"title":"Paint the fence","age_limit_from":18}`, &models.Actor{UserID: "u1", CharityID: "c1"})
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Paint the fence", mockSvc.lastCreate.Title)
	require.NotNil(t, mockSvc.lastCreate.AgeLimitFrom)
	assert.Equal(t, 18, *mockSvc.lastCreate.AgeLimitFrom)
}

func TestTaskHandlerCreateRejectsUnknownFields(t *testing.T) {
	mockSvc := &taskServiceMock{}
	handler := NewTaskHandler(mockSvc)

	c, w := newTaskContext(http.MethodPost, "/tasks", `{"title":"Paint","charity_id":"someone-else"}`, &models.Actor{UserID: "u1", CharityID: "c1"})
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.called)
}

func TestTaskHandlerCreateRejectsMalformedBody(t *testing.T) {
	cases := map[string]string{
		"empty":     "",
		"truncated": `{"title":"Paint"`,
		"trailing":  `{"title":"Paint"}{"title":"Again"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			mockSvc := &taskServiceMock{}
			c, w := newTaskContext(http.MethodPost, "/tasks", body, &models.Actor{UserID: "u1", CharityID: "c1"})
			NewTaskHandler(mockSvc).Create(c)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, mockSvc.called)
		})
	}
}

func TestTaskHandlerGetNotFound(t *testing.T) {
	mockSvc := &taskServiceMock{taskErr: appErrors.Clone(appErrors.ErrNotFound, "Task not found.")}
	handler := NewTaskHandler(mockSvc)

	c, w := newTaskContext(http.MethodGet, "/tasks/t9", "", &models.Actor{UserID: "u1"})
	c.Params = gin.Params{{Key: "id", Value: "t9"}}
	handler.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "t9", mockSvc.lastID)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "Task not found.", body["error"].(map[string]interface{})["message"])
}

func TestTaskHandlerRequestPassesID(t *testing.T) {
	mockSvc := &taskServiceMock{taskResp: &dto.TaskView{ID: "t1", State: models.TaskStateWaiting}}
	handler := NewTaskHandler(mockSvc)

	c, w := newTaskContext(http.MethodPost, "/tasks/t1/request", "", &models.Actor{UserID: "u2", BenefactorID: "b1"})
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Request(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", mockSvc.lastID)
}

func TestTaskHandlerRespond(t *testing.T) {
	mockSvc := &taskServiceMock{taskResp: &dto.TaskView{ID: "t1", State: models.TaskStateAssigned}}
	handler := NewTaskHandler(mockSvc)

	c, w := newTaskContext(http.MethodPost, "/tasks/t1/response", `{"response":"A"}`, &models.Actor{UserID: "u1", CharityID: "c1"})
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Respond(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ResponseAccept, mockSvc.lastRespond.Response)
}

func TestTaskHandlerRespondMissingBody(t *testing.T) {
	mockSvc := &taskServiceMock{}
	handler := NewTaskHandler(mockSvc)

	c, w := newTaskContext(http.MethodPost, "/tasks/t1/response", "", &models.Actor{UserID: "u1", CharityID: "c1"})
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Respond(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.called)
}

func TestTaskHandlerDoneForbidden(t *testing.T) {
	mockSvc := &taskServiceMock{taskErr: appErrors.Clone(appErrors.ErrForbidden, "not allowed")}
	handler := NewTaskHandler(mockSvc)

	c, w := newTaskContext(http.MethodPost, "/tasks/t1/done", "", &models.Actor{UserID: "u3"})
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Done(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestTaskHandlerExport(t *testing.T) {
	mockSvc := &taskServiceMock{exportResp: &service.TaskExport{
		Filename:    "tasks.csv",
		ContentType: "text/csv",
		Body:        []byte("id,title\n"),
	}}
	handler := NewTaskHandler(mockSvc)

	c, w := newTaskContext(http.MethodGet, "/tasks/export?format=csv&charity=red", "", &models.Actor{UserID: "u1", CharityID: "c1"})
	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mockSvc.lastFormat)
	assert.Equal(t, "red", mockSvc.lastFilter.Charity)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "tasks.csv")
	assert.Equal(t, "id,title\n", w.Body.String())
}
