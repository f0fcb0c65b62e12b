package models

import "fmt"

// TaskState captures the lifecycle position of a task. Values are the
// single-letter codes persisted in tasks.state.
type TaskState string

const (
	TaskStatePending   TaskState = "P"
	TaskStateWaiting   TaskState = "W"
	TaskStateAssigned  TaskState = "A"
	TaskStateCompleted TaskState = "D"
)

// TaskEvent is an action that may move a task to another state.
type TaskEvent string

const (
	TaskEventRequest  TaskEvent = "REQUEST"
	TaskEventAccept   TaskEvent = "ACCEPT"
	TaskEventReject   TaskEvent = "REJECT"
	TaskEventComplete TaskEvent = "COMPLETE"
)

// taskTransitions is the complete transition table. A (state, event) pair
// missing here is not a legal move.
var taskTransitions = map[TaskState]map[TaskEvent]TaskState{
	TaskStatePending: {
		TaskEventRequest: TaskStateWaiting,
	},
	TaskStateWaiting: {
		TaskEventAccept: TaskStateAssigned,
		TaskEventReject: TaskStatePending,
	},
	TaskStateAssigned: {
		TaskEventComplete: TaskStateCompleted,
	},
	TaskStateCompleted: {},
}

// Valid reports whether s is one of the known states.
func (s TaskState) Valid() bool {
	_, ok := taskTransitions[s]
	return ok
}

// Terminal reports whether no event leaves s.
func (s TaskState) Terminal() bool {
	return s.Valid() && len(taskTransitions[s]) == 0
}

// Next returns the state reached from s by event.
func (s TaskState) Next(event TaskEvent) (TaskState, bool) {
	next, ok := taskTransitions[s][event]
	return next, ok
}

// Label returns the human readable state name.
func (s TaskState) Label() string {
	switch s {
	case TaskStatePending:
		return "Pending"
	case TaskStateWaiting:
		return "Waiting"
	case TaskStateAssigned:
		return "Assigned"
	case TaskStateCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// ParseTaskState validates a state code.
func ParseTaskState(raw string) (TaskState, error) {
	s := TaskState(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown task state %q", raw)
	}
	return s, nil
}

// RequiredState returns the only state event may be applied from.
func (e TaskEvent) RequiredState() TaskState {
	for from, edges := range taskTransitions {
		if _, ok := edges[e]; ok {
			return from
		}
	}
	return ""
}

// TransitionError reports an event applied from a state with no such edge.
type TransitionError struct {
	From  TaskState
	Event TaskEvent
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s to task in state %s", e.Event, e.From)
}

// Apply moves the task along event and updates the benefactor link: a
// request links benefactorID, a rejection clears the link, every other
// transition keeps it. The task is left untouched when the move is illegal.
func (t *Task) Apply(event TaskEvent, benefactorID string) error {
	next, ok := t.State.Next(event)
	if !ok {
		return &TransitionError{From: t.State, Event: event}
	}
	switch event {
	case TaskEventRequest:
		if benefactorID == "" {
			return fmt.Errorf("request requires a benefactor")
		}
		id := benefactorID
		t.BenefactorID = &id
	case TaskEventReject:
		t.BenefactorID = nil
	}
	t.State = next
	return nil
}

// Consistent reports whether the benefactor link matches the state: a
// pending task has no benefactor, every other state has one.
func (t *Task) Consistent() bool {
	linked := t.BenefactorID != nil && *t.BenefactorID != ""
	return (t.State == TaskStatePending) != linked
}
