package service

import (
	"github.com/noah-isme/charity-tasks-api/internal/models"
	appErrors "github.com/noah-isme/charity-tasks-api/pkg/errors"
)

// capability is a relationship between an actor and a task.
type capability uint8

const (
	capOwningCharity capability = 1 << iota
	capAssignedBenefactor
	capAnyBenefactor
)

// transitionGate lists the capabilities that may trigger each event; any
// one of them suffices.
var transitionGate = map[models.TaskEvent]capability{
	models.TaskEventRequest:  capAnyBenefactor,
	models.TaskEventAccept:   capOwningCharity,
	models.TaskEventReject:   capOwningCharity,
	models.TaskEventComplete: capOwningCharity | capAssignedBenefactor,
}

var transitionDenied = map[models.TaskEvent]string{
	models.TaskEventRequest:  "Only benefactors can request tasks.",
	models.TaskEventAccept:   "Only the owning charity can respond to this task.",
	models.TaskEventReject:   "Only the owning charity can respond to this task.",
	models.TaskEventComplete: "Only the assigned benefactor or the owning charity can complete this task.",
}

var transitionStateMessage = map[models.TaskEvent]string{
	models.TaskEventRequest:  "This task is not pending.",
	models.TaskEventAccept:   "This task is not waiting.",
	models.TaskEventReject:   "This task is not waiting.",
	models.TaskEventComplete: "Task is not assigned yet.",
}

func capabilitiesFor(actor *models.Actor, rec *models.TaskRecord) capability {
	var caps capability
	if actor == nil {
		return caps
	}
	if actor.IsBenefactor() {
		caps |= capAnyBenefactor
		if rec != nil && rec.BenefactorID != nil && *rec.BenefactorID == actor.BenefactorID {
			caps |= capAssignedBenefactor
		}
	}
	if actor.IsCharity() && rec != nil && rec.CharityID == actor.CharityID {
		caps |= capOwningCharity
	}
	return caps
}

// authorizeTransition checks the gate for event against the locked task.
func authorizeTransition(event models.TaskEvent, actor *models.Actor, rec *models.TaskRecord) error {
	if capabilitiesFor(actor, rec)&transitionGate[event] == 0 {
		return appErrors.Clone(appErrors.ErrForbidden, transitionDenied[event])
	}
	return nil
}

func transitionStateError(event models.TaskEvent) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrNotFound, transitionStateMessage[event])
}

// taskScope is the part of the task collection visible to actor.
func taskScope(actor *models.Actor) models.TaskScope {
	var scope models.TaskScope
	if actor.IsCharity() {
		scope.CharityID = actor.CharityID
	}
	if actor.IsBenefactor() {
		scope.BenefactorID = actor.BenefactorID
	}
	return scope
}

// taskVisible applies taskScope to a single task.
func taskVisible(actor *models.Actor, rec *models.TaskRecord) bool {
	scope := taskScope(actor)
	if scope.CharityID != "" && rec.CharityID == scope.CharityID {
		return true
	}
	if scope.BenefactorID != "" {
		if rec.State == models.TaskStatePending {
			return true
		}
		if rec.BenefactorID != nil && *rec.BenefactorID == scope.BenefactorID {
			return true
		}
	}
	return false
}
