package dto

import (
	"time"

	"github.com/noah-isme/charity-tasks-api/internal/models"
)

// DateLayout is the wire format of task dates.
const DateLayout = "2006-01-02"

// CreateTaskRequest is posted by a charity. The owning charity is never part
// of the payload; it is taken from the caller.
type CreateTaskRequest struct {
	Title        string         `json:"title" validate:"required,max=60"`
	Description  string         `json:"description" validate:"max=2000"`
	Date         *string        `json:"date" validate:"omitempty,datetime=2006-01-02"`
	AgeLimitFrom *int           `json:"age_limit_from" validate:"omitempty,min=0,max=150"`
	AgeLimitTo   *int           `json:"age_limit_to" validate:"omitempty,min=0,max=150"`
	GenderLimit  *models.Gender `json:"gender_limit" validate:"omitempty,oneof=M F"`
}

// Task response outcomes.
const (
	ResponseAccept = "A"
	ResponseReject = "R"
)

// RespondTaskRequest carries the owning charity's decision on a waiting task.
type RespondTaskRequest struct {
	Response string `json:"response" validate:"required,oneof=A R"`
}

// TaskFilter holds the recognised list query parameters. Anything else in
// the query string is ignored.
type TaskFilter struct {
	Title       string `form:"title"`
	Charity     string `form:"charity"`
	Description string `form:"description"`
	Gender      string `form:"gender"`
	State       string `form:"state"`
	Age         string `form:"age"`
}

// CharitySummary is the charity embedded in task responses.
type CharitySummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RegNumber string `json:"reg_number"`
	UserID    string `json:"user_id"`
}

// BenefactorSummary is the benefactor embedded in task responses.
type BenefactorSummary struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	Experience      int    `json:"experience"`
	FreeTimePerWeek int    `json:"free_time_per_week"`
}

// TaskView is the serialised task.
type TaskView struct {
	ID                 string             `json:"id"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	State              models.TaskState   `json:"state"`
	StateLabel         string             `json:"state_label"`
	Charity            CharitySummary     `json:"charity"`
	AssignedBenefactor *BenefactorSummary `json:"assigned_benefactor"`
	Date               *string            `json:"date"`
	AgeLimitFrom       *int               `json:"age_limit_from"`
	AgeLimitTo         *int               `json:"age_limit_to"`
	GenderLimit        *models.Gender     `json:"gender_limit"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// NewTaskView flattens a joined task record for the wire.
func NewTaskView(rec *models.TaskRecord) TaskView {
	view := TaskView{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		State:       rec.State,
		StateLabel:  rec.State.Label(),
		Charity: CharitySummary{
			ID:        rec.CharityID,
			Name:      rec.CharityName,
			RegNumber: rec.CharityRegNumber,
			UserID:    rec.CharityUserID,
		},
		AgeLimitFrom: rec.AgeLimitFrom,
		AgeLimitTo:   rec.AgeLimitTo,
		GenderLimit:  rec.GenderLimit,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	if rec.Date != nil {
		date := rec.Date.Format(DateLayout)
		view.Date = &date
	}
	if rec.BenefactorID != nil {
		summary := &BenefactorSummary{ID: *rec.BenefactorID}
		if rec.BenefactorUserID != nil {
			summary.UserID = *rec.BenefactorUserID
		}
		if rec.BenefactorExperience != nil {
			summary.Experience = *rec.BenefactorExperience
		}
		if rec.BenefactorFreeTime != nil {
			summary.FreeTimePerWeek = *rec.BenefactorFreeTime
		}
		view.AssignedBenefactor = summary
	}
	return view
}

// NewTaskViews converts a list of records.
func NewTaskViews(records []models.TaskRecord) []TaskView {
	views := make([]TaskView, 0, len(records))
	for i := range records {
		views = append(views, NewTaskView(&records[i]))
	}
	return views
}
