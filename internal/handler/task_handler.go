package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/charity-tasks-api/internal/dto"
	"github.com/noah-isme/charity-tasks-api/internal/models"
	"github.com/noah-isme/charity-tasks-api/internal/service"
	appErrors "github.com/noah-isme/charity-tasks-api/pkg/errors"
	"github.com/noah-isme/charity-tasks-api/pkg/response"
)

type taskService interface {
	Create(ctx context.Context, actor *models.Actor, req dto.CreateTaskRequest) (*dto.TaskView, error)
	List(ctx context.Context, actor *models.Actor, filter dto.TaskFilter) ([]dto.TaskView, error)
	Get(ctx context.Context, actor *models.Actor, id string) (*dto.TaskView, error)
	Export(ctx context.Context, actor *models.Actor, filter dto.TaskFilter, format string) (*service.TaskExport, error)
	Request(ctx context.Context, actor *models.Actor, id string) (*dto.TaskView, error)
	Respond(ctx context.Context, actor *models.Actor, id string, req dto.RespondTaskRequest) (*dto.TaskView, error)
	Complete(ctx context.Context, actor *models.Actor, id string) (*dto.TaskView, error)
}

// TaskHandler exposes the task workflow endpoints.
type TaskHandler struct {
	service taskService
}

// NewTaskHandler builds a new handler.
func NewTaskHandler(service taskService) *TaskHandler {
	return &TaskHandler{service: service}
}

func bindTaskFilter(c *gin.Context) (dto.TaskFilter, error) {
	var filter dto.TaskFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task filter")
	}
	return filter, nil
}

// List godoc
// @Summary List visible tasks
// @Tags Tasks
// @Produce json
// @Param title query string false "Title contains"
// @Param charity query string false "Charity name contains"
// @Param description query string false "Description contains"
// @Param gender query string false "Gender limit (M/F)"
// @Param state query string false "State (P/W/A/D)"
// @Param age query int false "Hide tasks this age is not eligible for"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	filter, err := bindTaskFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	tasks, err := h.service.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, map[string]interface{}{"count": len(tasks)})
}

// Create godoc
// @Summary Post a new task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param payload body dto.CreateTaskRequest true "Task payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := bindStrictJSON(c, &req, "invalid task payload"); err != nil {
		response.Error(c, err)
		return
	}
	task, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// Export godoc
// @Summary Download visible tasks
// @Tags Tasks
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /tasks/export [get]
func (h *TaskHandler) Export(c *gin.Context) {
	filter, err := bindTaskFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.Export(c.Request.Context(), actorFromContext(c), filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

// Get godoc
// @Summary Task detail
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, task)
}

// Request godoc
// @Summary Request a pending task
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id}/request [post]
func (h *TaskHandler) Request(c *gin.Context) {
	task, err := h.service.Request(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, task)
}

// Respond godoc
// @Summary Accept or reject a task request
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body dto.RespondTaskRequest true "A to accept, R to reject"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id}/response [post]
func (h *TaskHandler) Respond(c *gin.Context) {
	var req dto.RespondTaskRequest
	if err := bindStrictJSON(c, &req, "invalid response payload"); err != nil {
		response.Error(c, err)
		return
	}
	task, err := h.service.Respond(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, task)
}

// Done godoc
// @Summary Mark an assigned task as completed
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id}/done [post]
func (h *TaskHandler) Done(c *gin.Context) {
	task, err := h.service.Complete(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, task)
}
