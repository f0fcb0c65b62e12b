package service

import (
	"strconv"
	"strings"

	"github.com/noah-isme/charity-tasks-api/internal/dto"
	"github.com/noah-isme/charity-tasks-api/internal/models"
	appErrors "github.com/noah-isme/charity-tasks-api/pkg/errors"
)

// buildTaskQuery turns the allow-listed query parameters into predicates
// under the actor's scope. Empty parameters are skipped.
func buildTaskQuery(actor *models.Actor, filter dto.TaskFilter) (models.TaskQuery, error) {
	query := models.TaskQuery{Scope: taskScope(actor)}

	contains := []struct {
		field models.TaskField
		value string
	}{
		{models.TaskFieldTitle, filter.Title},
		{models.TaskFieldCharityName, filter.Charity},
		{models.TaskFieldDescription, filter.Description},
	}
	for _, c := range contains {
		if value := strings.TrimSpace(c.value); value != "" {
			query.Include = append(query.Include, models.TaskPredicate{Field: c.field, Comparison: models.CompareContains, Value: value})
		}
	}

	if raw := strings.TrimSpace(filter.Gender); raw != "" {
		gender := models.Gender(strings.ToUpper(raw))
		if !gender.Valid() {
			return models.TaskQuery{}, appErrors.Clone(appErrors.ErrValidation, "gender must be M or F")
		}
		query.Include = append(query.Include, models.TaskPredicate{Field: models.TaskFieldGenderLimit, Comparison: models.CompareEquals, Value: gender})
	}

	if raw := strings.TrimSpace(filter.State); raw != "" {
		state, err := models.ParseTaskState(strings.ToUpper(raw))
		if err != nil {
			return models.TaskQuery{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "state must be one of P, W, A, D")
		}
		query.Include = append(query.Include, models.TaskPredicate{Field: models.TaskFieldState, Comparison: models.CompareEquals, Value: state})
	}

	if raw := strings.TrimSpace(filter.Age); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil || age < 0 {
			return models.TaskQuery{}, appErrors.Clone(appErrors.ErrValidation, "age must be a non-negative integer")
		}
		query.Exclude = append(query.Exclude,
			models.TaskPredicate{Field: models.TaskFieldAgeLimitFrom, Comparison: models.CompareGreater, Value: age},
			models.TaskPredicate{Field: models.TaskFieldAgeLimitTo, Comparison: models.CompareLess, Value: age},
		)
	}

	return query, nil
}
