package models

import "time"

// Gender restricts a task to volunteers of one gender; it doubles as the
// profile gender on users.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Valid reports whether g is a known gender code.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Task is a unit of volunteer work posted by a charity.
type Task struct {
	ID           string     `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	State        TaskState  `db:"state" json:"state"`
	CharityID    string     `db:"charity_id" json:"charity_id"`
	BenefactorID *string    `db:"benefactor_id" json:"benefactor_id"`
	Date         *time.Time `db:"date" json:"date,omitempty"`
	AgeLimitFrom *int       `db:"age_limit_from" json:"age_limit_from"`
	AgeLimitTo   *int       `db:"age_limit_to" json:"age_limit_to"`
	GenderLimit  *Gender    `db:"gender_limit" json:"gender_limit"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// TaskRecord is a task joined with its owning charity and, when linked,
// the assigned benefactor.
type TaskRecord struct {
	Task
	CharityName          string  `db:"charity_name"`
	CharityRegNumber     string  `db:"charity_reg_number"`
	CharityUserID        string  `db:"charity_user_id"`
	BenefactorUserID     *string `db:"benefactor_user_id"`
	BenefactorExperience *int    `db:"benefactor_experience"`
	BenefactorFreeTime   *int    `db:"benefactor_free_time_per_week"`
}

// TaskScope restricts the task collection to what an actor may see. Empty
// fields contribute nothing; a scope with no fields set matches no rows.
type TaskScope struct {
	CharityID    string
	BenefactorID string
}

// Empty reports whether the scope grants no visibility at all.
func (s TaskScope) Empty() bool {
	return s.CharityID == "" && s.BenefactorID == ""
}

// TaskField names a filterable task attribute.
type TaskField string

const (
	TaskFieldTitle        TaskField = "title"
	TaskFieldCharityName  TaskField = "charity_name"
	TaskFieldDescription  TaskField = "description"
	TaskFieldGenderLimit  TaskField = "gender_limit"
	TaskFieldState        TaskField = "state"
	TaskFieldAgeLimitFrom TaskField = "age_limit_from"
	TaskFieldAgeLimitTo   TaskField = "age_limit_to"
)

// Comparison is the operator of a task predicate.
type Comparison string

const (
	CompareContains Comparison = "icontains"
	CompareEquals   Comparison = "eq"
	CompareGreater  Comparison = "gt"
	CompareLess     Comparison = "lt"
)

// TaskPredicate is a single (field, comparison, value) condition.
type TaskPredicate struct {
	Field      TaskField
	Comparison Comparison
	Value      interface{}
}

// TaskQuery selects tasks: the scope first, then every Include predicate
// must hold and no Exclude predicate may hold.
type TaskQuery struct {
	Scope   TaskScope
	Include []TaskPredicate
	Exclude []TaskPredicate
}
