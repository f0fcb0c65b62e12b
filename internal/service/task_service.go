package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/charity-tasks-api/internal/dto"
	"github.com/noah-isme/charity-tasks-api/internal/models"
	"github.com/noah-isme/charity-tasks-api/internal/repository"
	appErrors "github.com/noah-isme/charity-tasks-api/pkg/errors"
)

type taskStore interface {
	Create(ctx context.Context, task *models.Task) (*models.TaskRecord, error)
	GetByID(ctx context.Context, id string) (*models.TaskRecord, error)
	List(ctx context.Context, query models.TaskQuery) ([]models.TaskRecord, error)
	Transition(ctx context.Context, id string, mutate repository.TaskMutator) (*models.TaskRecord, error)
}

var transitionAuditAction = map[models.TaskEvent]string{
	models.TaskEventRequest:  models.AuditActionTaskRequest,
	models.TaskEventAccept:   models.AuditActionTaskAccept,
	models.TaskEventReject:   models.AuditActionTaskReject,
	models.TaskEventComplete: models.AuditActionTaskComplete,
}

// TaskService runs the task workflow: posting, browsing and the lifecycle
// transitions, each checked against the caller's relationship to the task.
type TaskService struct {
	repo      taskStore
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTaskService constructs a TaskService. audit and metrics may be nil.
func NewTaskService(repo taskStore, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TaskService{repo: repo, audit: audit, metrics: metrics, validator: validate, logger: logger}
}

// Create posts a new pending task owned by the caller's charity.
func (s *TaskService) Create(ctx context.Context, actor *models.Actor, req dto.CreateTaskRequest) (*dto.TaskView, error) {
	if !actor.IsCharity() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Only charities can create tasks.")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	if req.AgeLimitFrom != nil && req.AgeLimitTo != nil && *req.AgeLimitFrom > *req.AgeLimitTo {
		return nil, appErrors.Clone(appErrors.ErrValidation, "age_limit_from must not exceed age_limit_to")
	}

	task := &models.Task{
		Title:        req.Title,
		Description:  req.Description,
		CharityID:    actor.CharityID,
		AgeLimitFrom: req.AgeLimitFrom,
		AgeLimitTo:   req.AgeLimitTo,
		GenderLimit:  req.GenderLimit,
	}
	if req.Date != nil {
		date, err := time.Parse(dto.DateLayout, *req.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must use YYYY-MM-DD")
		}
		task.Date = &date
	}

	rec, err := s.repo.Create(ctx, task)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create task")
	}
	s.metrics.RecordTaskCreated()

	view := dto.NewTaskView(rec)
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionTaskCreate,
		Resource:   "task",
		ResourceID: &rec.ID,
		NewValues:  auditPayload(view),
	})
	return &view, nil
}

// List returns the tasks visible to the caller that match the filter.
func (s *TaskService) List(ctx context.Context, actor *models.Actor, filter dto.TaskFilter) ([]dto.TaskView, error) {
	records, err := s.list(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewTaskViews(records), nil
}

func (s *TaskService) list(ctx context.Context, actor *models.Actor, filter dto.TaskFilter) ([]models.TaskRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	query, err := buildTaskQuery(actor, filter)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records, err := s.repo.List(ctx, query)
	s.metrics.ObserveDBQuery("task_list", time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list tasks")
	}
	return records, nil
}

// Get returns a single task when it is visible to the caller. Invisible
// tasks are reported as missing.
func (s *TaskService) Get(ctx context.Context, actor *models.Actor, id string) (*dto.TaskView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, taskNotFound()
		}
		return nil, appErrors.Internal(err, "failed to load task")
	}
	if !taskVisible(actor, rec) {
		return nil, taskNotFound()
	}
	view := dto.NewTaskView(rec)
	return &view, nil
}

// Request moves a pending task to waiting on behalf of the calling benefactor.
func (s *TaskService) Request(ctx context.Context, actor *models.Actor, id string) (*dto.TaskView, error) {
	if !actor.IsBenefactor() {
		s.metrics.RecordTaskTransition(models.TaskEventRequest, TransitionForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, transitionDenied[models.TaskEventRequest])
	}
	return s.transition(ctx, actor, id, models.TaskEventRequest)
}

// Respond accepts or rejects the pending request on a waiting task.
func (s *TaskService) Respond(ctx context.Context, actor *models.Actor, id string, req dto.RespondTaskRequest) (*dto.TaskView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
			"response must be 'A' to accept or 'R' to reject")
	}
	event := models.TaskEventAccept
	if req.Response == dto.ResponseReject {
		event = models.TaskEventReject
	}
	if !actor.IsCharity() {
		s.metrics.RecordTaskTransition(event, TransitionForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, transitionDenied[event])
	}
	return s.transition(ctx, actor, id, event)
}

// Complete marks an assigned task as done.
func (s *TaskService) Complete(ctx context.Context, actor *models.Actor, id string) (*dto.TaskView, error) {
	return s.transition(ctx, actor, id, models.TaskEventComplete)
}

// transition applies event inside one store transaction. The gate is
// evaluated on the locked row before the state check.
func (s *TaskService) transition(ctx context.Context, actor *models.Actor, id string, event models.TaskEvent) (*dto.TaskView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var before models.Task
	rec, err := s.repo.Transition(ctx, id, func(rec *models.TaskRecord) error {
		if err := authorizeTransition(event, actor, rec); err != nil {
			return err
		}
		if rec.State != event.RequiredState() {
			return transitionStateError(event)
		}
		before = rec.Task
		return rec.Apply(event, actor.BenefactorID)
	})
	if err != nil {
		appErr := s.transitionError(event, err)
		s.logger.Debug("task transition refused",
			zap.String("task_id", id),
			zap.String("event", string(event)),
			zap.String("user_id", actor.UserID),
			zap.String("code", appErr.Code),
		)
		return nil, appErr
	}
	s.metrics.RecordTaskTransition(event, TransitionApplied)

	view := dto.NewTaskView(rec)
	s.logger.Info("task transitioned",
		zap.String("task_id", rec.ID),
		zap.String("event", string(event)),
		zap.String("from", string(before.State)),
		zap.String("to", string(rec.State)),
	)
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     transitionAuditAction[event],
		Resource:   "task",
		ResourceID: &rec.ID,
		OldValues:  auditPayload(map[string]interface{}{"state": before.State, "benefactor_id": before.BenefactorID}),
		NewValues:  auditPayload(map[string]interface{}{"state": rec.State, "benefactor_id": rec.BenefactorID}),
	})
	return &view, nil
}

func (s *TaskService) transitionError(event models.TaskEvent, err error) *appErrors.Error {
	var (
		appErr        *appErrors.Error
		transitionErr *models.TransitionError
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.metrics.RecordTaskTransition(event, TransitionNotFound)
		return taskNotFound()
	case errors.Is(err, repository.ErrTaskStateChanged), errors.As(err, &transitionErr):
		s.metrics.RecordTaskTransition(event, TransitionRejected)
		return transitionStateError(event)
	case errors.As(err, &appErr):
		outcome := TransitionRejected
		if appErr.Status == appErrors.ErrForbidden.Status {
			outcome = TransitionForbidden
		}
		s.metrics.RecordTaskTransition(event, outcome)
		return appErr
	default:
		s.metrics.RecordTaskTransition(event, TransitionFailed)
		return appErrors.Internal(err, "failed to update task")
	}
}

func taskNotFound() *appErrors.Error {
	return appErrors.Clone(appErrors.ErrNotFound, "Task not found.")
}
