package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/charity-tasks-api/internal/dto"
	"github.com/noah-isme/charity-tasks-api/internal/models"
	appErrors "github.com/noah-isme/charity-tasks-api/pkg/errors"
	"github.com/noah-isme/charity-tasks-api/pkg/export"
)

var taskExportHeaders = []string{"ID", "Title", "State", "Charity", "Benefactor", "Date", "Age From", "Age To", "Gender", "Created"}

// TaskExport is a rendered task listing ready to download.
type TaskExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Export renders the caller's filtered task list as CSV or PDF.
func (s *TaskService) Export(ctx context.Context, actor *models.Actor, filter dto.TaskFilter, format string) (*TaskExport, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	records, err := s.list(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	body, err := export.RendererFor(f).Render(taskDataset(records), "Tasks")
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render task export")
	}
	return &TaskExport{
		Filename:    fmt.Sprintf("tasks-%s.%s", time.Now().UTC().Format("20060102-150405"), f),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

func taskDataset(records []models.TaskRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for i := range records {
		view := dto.NewTaskView(&records[i])
		row := map[string]string{
			"ID":      view.ID,
			"Title":   view.Title,
			"State":   view.StateLabel,
			"Charity": view.Charity.Name,
			"Created": view.CreatedAt.Format(time.RFC3339),
		}
		if view.AssignedBenefactor != nil {
			row["Benefactor"] = view.AssignedBenefactor.UserID
		}
		if view.Date != nil {
			row["Date"] = *view.Date
		}
		if view.AgeLimitFrom != nil {
			row["Age From"] = strconv.Itoa(*view.AgeLimitFrom)
		}
		if view.AgeLimitTo != nil {
			row["Age To"] = strconv.Itoa(*view.AgeLimitTo)
		}
		if view.GenderLimit != nil {
			row["Gender"] = string(*view.GenderLimit)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: taskExportHeaders, Rows: rows}
}
