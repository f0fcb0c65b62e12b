package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/charity-tasks-api/internal/dto"
	"github.com/noah-isme/charity-tasks-api/internal/models"
	"github.com/noah-isme/charity-tasks-api/internal/repository"
	appErrors "github.com/noah-isme/charity-tasks-api/pkg/errors"
)

type taskStoreStub struct {
	mu            sync.Mutex
	seq           int
	tasks         map[string]*models.TaskRecord
	charityNames  map[string]string
	lastQuery     models.TaskQuery
	transitions   int
	transitionErr error
}

func newTaskStoreStub() *taskStoreStub {
	return &taskStoreStub{tasks: make(map[string]*models.TaskRecord), charityNames: make(map[string]string)}
}

func (s *taskStoreStub) Create(ctx context.Context, task *models.Task) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	task.ID = fmt.Sprintf("task-%d", s.seq)
	task.State = models.TaskStatePending
	task.BenefactorID = nil
	rec := &models.TaskRecord{Task: *task, CharityName: s.charityNames[task.CharityID]}
	s.tasks[task.ID] = rec
	copy := *rec
	return &copy, nil
}

func (s *taskStoreStub) GetByID(ctx context.Context, id string) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *rec
	return &copy, nil
}

func (s *taskStoreStub) List(ctx context.Context, query models.TaskQuery) ([]models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = query
	records := make([]models.TaskRecord, 0, len(s.tasks))
	for _, rec := range s.tasks {
		records = append(records, *rec)
	}
	return records, nil
}

func (s *taskStoreStub) Transition(ctx context.Context, id string, mutate repository.TaskMutator) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions++
	if s.transitionErr != nil {
		return nil, s.transitionErr
	}
	rec, ok := s.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	working := *rec
	if err := mutate(&working); err != nil {
		return nil, err
	}
	s.tasks[id] = &working
	copy := working
	return &copy, nil
}

func (s *taskStoreStub) stored(t *testing.T, id string) models.TaskRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[id]
	require.True(t, ok)
	return *rec
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

func newTaskServiceUnderTest() (*TaskService, *taskStoreStub, *auditStub, *MetricsService) {
	store := newTaskStoreStub()
	audit := &auditStub{}
	metrics := NewMetricsService()
	return NewTaskService(store, audit, metrics, nil, nil), store, audit, metrics
}

func charityActor(name string) *models.Actor {
	return &models.Actor{UserID: "user-" + name, Username: name, CharityID: "charity-" + name}
}

func benefactorActor(name string) *models.Actor {
	return &models.Actor{UserID: "user-" + name, Username: name, BenefactorID: "benefactor-" + name}
}

func requireAppError(t *testing.T, err error, status int, message string) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, status, appErr.Status, err.Error())
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}

func TestTaskServiceCreate(t *testing.T) {
	svc, store, audit, metrics := newTaskServiceUnderTest()
	ctx := context.Background()
	store.charityNames["charity-c"] = "Helping Hands"

	date := "2026-11-02"
	view, err := svc.Create(ctx, charityActor("c"), dto.CreateTaskRequest{Title: "  Sort donations ", Date: &date})
	require.NoError(t, err)
	assert.Equal(t, "Sort donations", view.Title)
	assert.Equal(t, models.TaskStatePending, view.State)
	assert.Equal(t, "charity-c", view.Charity.ID)
	assert.Equal(t, "Helping Hands", view.Charity.Name)
	assert.Nil(t, view.AssignedBenefactor)
	require.NotNil(t, view.Date)
	assert.Equal(t, date, *view.Date)
	assert.Equal(t, []string{models.AuditActionTaskCreate}, audit.actions())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.tasksCreated))
}

func TestTaskServiceCreateRejections(t *testing.T) {
	svc, _, _, _ := newTaskServiceUnderTest()
	ctx := context.Background()

	_, err := svc.Create(ctx, benefactorActor("b"), dto.CreateTaskRequest{Title: "x"})
	requireAppError(t, err, http.StatusForbidden, "Only charities can create tasks.")

	_, err = svc.Create(ctx, &models.Actor{UserID: "nobody"}, dto.CreateTaskRequest{Title: "x"})
	requireAppError(t, err, http.StatusForbidden, "")

	_, err = svc.Create(ctx, charityActor("c"), dto.CreateTaskRequest{})
	requireAppError(t, err, http.StatusBadRequest, "")

	_, err = svc.Create(ctx, charityActor("c"), dto.CreateTaskRequest{Title: "   "})
	requireAppError(t, err, http.StatusBadRequest, "")

	_, err = svc.Create(ctx, charityActor("c"), dto.CreateTaskRequest{Title: strings.Repeat("a", 61)})
	requireAppError(t, err, http.StatusBadRequest, "")

	from, to := 40, 20
	_, err = svc.Create(ctx, charityActor("c"), dto.CreateTaskRequest{Title: "x", AgeLimitFrom: &from, AgeLimitTo: &to})
	requireAppError(t, err, http.StatusBadRequest, "")

	bad := "02/11/2026"
	_, err = svc.Create(ctx, charityActor("c"), dto.CreateTaskRequest{Title: "x", Date: &bad})
	requireAppError(t, err, http.StatusBadRequest, "")

	other := models.Gender("X")
	_, err = svc.Create(ctx, charityActor("c"), dto.CreateTaskRequest{Title: "x", GenderLimit: &other})
	requireAppError(t, err, http.StatusBadRequest, "")
}

func TestTaskServiceLifecycleScenario(t *testing.T) {
	svc, store, audit, metrics := newTaskServiceUnderTest()
	ctx := context.Background()

	c := charityActor("c")
	stranger := charityActor("other")
	b1 := benefactorActor("b1")
	b2 := benefactorActor("b2")

	created, err := svc.Create(ctx, c, dto.CreateTaskRequest{Title: "Paint the shelter"})
	require.NoError(t, err)
	id := created.ID

	assertState := func(want models.TaskState, benefactor string) {
		t.Helper()
		rec := store.stored(t, id)
		assert.Equal(t, want, rec.State)
		assert.True(t, rec.Consistent())
		if benefactor == "" {
			assert.Nil(t, rec.BenefactorID)
			return
		}
		require.NotNil(t, rec.BenefactorID)
		assert.Equal(t, benefactor, *rec.BenefactorID)
	}
	accept := dto.RespondTaskRequest{Response: dto.ResponseAccept}
	reject := dto.RespondTaskRequest{Response: dto.ResponseReject}

	view, err := svc.Request(ctx, b1, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateWaiting, view.State)
	assertState(models.TaskStateWaiting, b1.BenefactorID)

	_, err = svc.Request(ctx, b2, id)
	requireAppError(t, err, http.StatusNotFound, "This task is not pending.")
	assertState(models.TaskStateWaiting, b1.BenefactorID)

	_, err = svc.Respond(ctx, stranger, id, accept)
	requireAppError(t, err, http.StatusForbidden, "")
	_, err = svc.Respond(ctx, b1, id, accept)
	requireAppError(t, err, http.StatusForbidden, "")

	view, err = svc.Respond(ctx, c, id, reject)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatePending, view.State)
	assert.Nil(t, view.AssignedBenefactor)
	assertState(models.TaskStatePending, "")

	_, err = svc.Respond(ctx, c, id, accept)
	requireAppError(t, err, http.StatusNotFound, "This task is not waiting.")

	_, err = svc.Request(ctx, b2, id)
	require.NoError(t, err)
	assertState(models.TaskStateWaiting, b2.BenefactorID)

	_, err = svc.Complete(ctx, b2, id)
	requireAppError(t, err, http.StatusNotFound, "Task is not assigned yet.")

	view, err = svc.Respond(ctx, c, id, accept)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateAssigned, view.State)
	require.NotNil(t, view.AssignedBenefactor)
	assert.Equal(t, b2.BenefactorID, view.AssignedBenefactor.ID)
	assertState(models.TaskStateAssigned, b2.BenefactorID)

	_, err = svc.Complete(ctx, b1, id)
	requireAppError(t, err, http.StatusForbidden, "")
	_, err = svc.Complete(ctx, stranger, id)
	requireAppError(t, err, http.StatusForbidden, "")

	view, err = svc.Complete(ctx, b2, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateCompleted, view.State)
	assertState(models.TaskStateCompleted, b2.BenefactorID)

	_, err = svc.Request(ctx, b1, id)
	requireAppError(t, err, http.StatusNotFound, "This task is not pending.")
	_, err = svc.Respond(ctx, c, id, reject)
	requireAppError(t, err, http.StatusNotFound, "This task is not waiting.")
	_, err = svc.Complete(ctx, c, id)
	requireAppError(t, err, http.StatusNotFound, "Task is not assigned yet.")
	assertState(models.TaskStateCompleted, b2.BenefactorID)

	assert.Equal(t, []string{
		models.AuditActionTaskCreate,
		models.AuditActionTaskRequest,
		models.AuditActionTaskReject,
		models.AuditActionTaskRequest,
		models.AuditActionTaskAccept,
		models.AuditActionTaskComplete,
	}, audit.actions())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.taskTransitions.WithLabelValues(string(models.TaskEventRequest), TransitionApplied)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.taskTransitions.WithLabelValues(string(models.TaskEventComplete), TransitionApplied)))
}

func TestTaskServiceOwningCharityCanComplete(t *testing.T) {
	svc, _, _, _ := newTaskServiceUnderTest()
	ctx := context.Background()
	c := charityActor("c")
	b := benefactorActor("b")

	created, err := svc.Create(ctx, c, dto.CreateTaskRequest{Title: "Clean park"})
	require.NoError(t, err)
	_, err = svc.Request(ctx, b, created.ID)
	require.NoError(t, err)
	_, err = svc.Respond(ctx, c, created.ID, dto.RespondTaskRequest{Response: dto.ResponseAccept})
	require.NoError(t, err)

	view, err := svc.Complete(ctx, c, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateCompleted, view.State)
}

func TestTaskServiceCheckOrder(t *testing.T) {
	svc, store, _, _ := newTaskServiceUnderTest()
	ctx := context.Background()

	_, err := svc.Respond(ctx, benefactorActor("b"), "missing", dto.RespondTaskRequest{Response: "X"})
	requireAppError(t, err, http.StatusBadRequest, "")

	_, err = svc.Respond(ctx, benefactorActor("b"), "missing", dto.RespondTaskRequest{Response: dto.ResponseAccept})
	requireAppError(t, err, http.StatusForbidden, "")

	_, err = svc.Request(ctx, charityActor("c"), "missing")
	requireAppError(t, err, http.StatusForbidden, "Only benefactors can request tasks.")
	assert.Zero(t, store.transitions)

	_, err = svc.Request(ctx, benefactorActor("b"), "missing")
	requireAppError(t, err, http.StatusNotFound, "Task not found.")
	_, err = svc.Respond(ctx, charityActor("c"), "missing", dto.RespondTaskRequest{Response: dto.ResponseReject})
	requireAppError(t, err, http.StatusNotFound, "Task not found.")
	_, err = svc.Complete(ctx, benefactorActor("b"), "missing")
	requireAppError(t, err, http.StatusNotFound, "Task not found.")
}

func TestTaskServiceRespondOwnerCheckPrecedesState(t *testing.T) {
	svc, _, _, _ := newTaskServiceUnderTest()
	ctx := context.Background()

	created, err := svc.Create(ctx, charityActor("c"), dto.CreateTaskRequest{Title: "Pending task"})
	require.NoError(t, err)

	_, err = svc.Respond(ctx, charityActor("other"), created.ID, dto.RespondTaskRequest{Response: dto.ResponseAccept})
	requireAppError(t, err, http.StatusForbidden, "")
}

func TestTaskServiceConcurrentChangeReportsState(t *testing.T) {
	svc, store, _, metrics := newTaskServiceUnderTest()
	store.transitionErr = repository.ErrTaskStateChanged

	_, err := svc.Request(context.Background(), benefactorActor("b"), "task-1")
	requireAppError(t, err, http.StatusNotFound, "This task is not pending.")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.taskTransitions.WithLabelValues(string(models.TaskEventRequest), TransitionRejected)))
}

func TestTaskServiceStoreFailureIsInternal(t *testing.T) {
	svc, store, _, _ := newTaskServiceUnderTest()
	store.transitionErr = fmt.Errorf("connection reset")

	_, err := svc.Complete(context.Background(), benefactorActor("b"), "task-1")
	requireAppError(t, err, http.StatusInternalServerError, "")
}

func TestTaskServiceGetRespectsVisibility(t *testing.T) {
	svc, _, _, _ := newTaskServiceUnderTest()
	ctx := context.Background()
	c := charityActor("c")
	b1 := benefactorActor("b1")

	created, err := svc.Create(ctx, c, dto.CreateTaskRequest{Title: "Visible"})
	require.NoError(t, err)

	for _, actor := range []*models.Actor{c, b1, benefactorActor("b2")} {
		_, err := svc.Get(ctx, actor, created.ID)
		assert.NoError(t, err, actor.Username)
	}

	_, err = svc.Request(ctx, b1, created.ID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, b1, created.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, benefactorActor("b2"), created.ID)
	requireAppError(t, err, http.StatusNotFound, "Task not found.")
	_, err = svc.Get(ctx, charityActor("other"), created.ID)
	requireAppError(t, err, http.StatusNotFound, "Task not found.")
	_, err = svc.Get(ctx, &models.Actor{UserID: "plain"}, created.ID)
	requireAppError(t, err, http.StatusNotFound, "Task not found.")
}

func TestTaskServiceListPassesScopeAndFilters(t *testing.T) {
	svc, store, _, _ := newTaskServiceUnderTest()
	actor := &models.Actor{UserID: "u", CharityID: "charity-1", BenefactorID: "benefactor-1"}

	_, err := svc.List(context.Background(), actor, dto.TaskFilter{Title: "cats", Age: "21"})
	require.NoError(t, err)
	assert.Equal(t, models.TaskScope{CharityID: "charity-1", BenefactorID: "benefactor-1"}, store.lastQuery.Scope)
	assert.Len(t, store.lastQuery.Include, 1)
	assert.Len(t, store.lastQuery.Exclude, 2)

	_, err = svc.List(context.Background(), actor, dto.TaskFilter{Age: "old"})
	requireAppError(t, err, http.StatusBadRequest, "")
}

func TestTaskServiceExport(t *testing.T) {
	svc, _, _, _ := newTaskServiceUnderTest()
	ctx := context.Background()
	c := charityActor("c")

	_, err := svc.Create(ctx, c, dto.CreateTaskRequest{Title: "Export me"})
	require.NoError(t, err)

	file, err := svc.Export(ctx, c, dto.TaskFilter{}, "csv")
	require.NoError(t, err)
	assert.Contains(t, file.ContentType, "text/csv")
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.Contains(t, string(file.Body), "Export me")

	file, err = svc.Export(ctx, c, dto.TaskFilter{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Body), "%PDF"))

	_, err = svc.Export(ctx, c, dto.TaskFilter{}, "xlsx")
	requireAppError(t, err, http.StatusBadRequest, "")
}
