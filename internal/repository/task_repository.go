package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/charity-tasks-api/internal/models"
)

// ErrTaskStateChanged is returned when the guarded update of a transition
// finds the task no longer in the state it was read in.
var ErrTaskStateChanged = errors.New("task state changed concurrently")

const taskSelect = `SELECT t.id, t.title, t.description, t.state, t.charity_id, t.benefactor_id, t.date,
	t.age_limit_from, t.age_limit_to, t.gender_limit, t.created_at, t.updated_at,
	c.name AS charity_name, c.reg_number AS charity_reg_number, c.user_id AS charity_user_id,
	b.user_id AS benefactor_user_id, b.experience AS benefactor_experience,
	b.free_time_per_week AS benefactor_free_time_per_week
FROM tasks t
JOIN charities c ON c.id = t.charity_id
LEFT JOIN benefactors b ON b.id = t.benefactor_id`

var taskColumns = map[models.TaskField]string{
	models.TaskFieldTitle:        "t.title",
	models.TaskFieldCharityName:  "c.name",
	models.TaskFieldDescription:  "t.description",
	models.TaskFieldGenderLimit:  "t.gender_limit",
	models.TaskFieldState:        "t.state",
	models.TaskFieldAgeLimitFrom: "t.age_limit_from",
	models.TaskFieldAgeLimitTo:   "t.age_limit_to",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// TaskMutator inspects and changes a task while its row is locked. Returning
// an error aborts the surrounding transaction.
type TaskMutator func(rec *models.TaskRecord) error

// TaskRepository persists tasks.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new pending task and returns it joined with its charity.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) (*models.TaskRecord, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	task.State = models.TaskStatePending
	task.BenefactorID = nil
	task.CreatedAt = now
	task.UpdatedAt = now

	query := r.db.Rebind(`INSERT INTO tasks
	(id, title, description, state, charity_id, benefactor_id, date, age_limit_from, age_limit_to, gender_limit, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		task.ID, task.Title, task.Description, string(task.State), task.CharityID, task.BenefactorID, task.Date,
		task.AgeLimitFrom, task.AgeLimitTo, genderValue(task.GenderLimit), task.CreatedAt, task.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return r.GetByID(ctx, task.ID)
}

// GetByID fetches a task with its charity and benefactor. It returns
// sql.ErrNoRows when the task does not exist.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.TaskRecord, error) {
	var rec models.TaskRecord
	if err := r.db.GetContext(ctx, &rec, r.db.Rebind(taskSelect+" WHERE t.id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &rec, nil
}

// List returns the tasks inside the query scope matching every include
// predicate and no exclude predicate, newest first.
func (r *TaskRepository) List(ctx context.Context, q models.TaskQuery) ([]models.TaskRecord, error) {
	if q.Scope.Empty() {
		return []models.TaskRecord{}, nil
	}

	where, args, err := buildTaskWhere(q)
	if err != nil {
		return nil, err
	}
	query := taskSelect + " WHERE " + where + " ORDER BY t.created_at DESC, t.id"

	records := []models.TaskRecord{}
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return records, nil
}

// Transition runs mutate against the locked task row and persists the new
// state and benefactor link in the same transaction. The update is guarded
// on the state that was read, so a concurrent transition surfaces as
// ErrTaskStateChanged instead of being overwritten.
func (r *TaskRepository) Transition(ctx context.Context, id string, mutate TaskMutator) (rec *models.TaskRecord, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin task transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.TaskRecord
	if err = tx.GetContext(ctx, &current, tx.Rebind(taskSelect+" WHERE t.id = ?"+r.lockClause()), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock task: %w", err)
	}

	prevState := current.State
	if err = mutate(&current); err != nil {
		return nil, err
	}

	const updateQuery = `UPDATE tasks SET state = ?, benefactor_id = ?, updated_at = ? WHERE id = ? AND state = ?`
	result, err := tx.ExecContext(ctx, tx.Rebind(updateQuery),
		string(current.State), current.BenefactorID, time.Now().UTC(), id, string(prevState))
	if err != nil {
		return nil, fmt.Errorf("update task state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check task update rows: %w", err)
	}
	if affected == 0 {
		err = ErrTaskStateChanged
		return nil, err
	}

	var updated models.TaskRecord
	if err = tx.GetContext(ctx, &updated, tx.Rebind(taskSelect+" WHERE t.id = ?"), id); err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit task transition: %w", err)
	}
	return &updated, nil
}

// lockClause returns the row lock suffix for drivers that support it.
// SQLite has no row locks; its single writer connection serialises
// transitions instead.
func (r *TaskRepository) lockClause() string {
	if r.db.DriverName() == "postgres" {
		return " FOR UPDATE OF t"
	}
	return ""
}

func buildTaskWhere(q models.TaskQuery) (string, []interface{}, error) {
	args := make([]interface{}, 0, 2+len(q.Include)+len(q.Exclude))

	scope := make([]string, 0, 2)
	if q.Scope.CharityID != "" {
		scope = append(scope, "t.charity_id = ?")
		args = append(args, q.Scope.CharityID)
	}
	if q.Scope.BenefactorID != "" {
		scope = append(scope, "(t.state = ? OR t.benefactor_id = ?)")
		args = append(args, string(models.TaskStatePending), q.Scope.BenefactorID)
	}
	conditions := []string{"(" + strings.Join(scope, " OR ") + ")"}

	for _, p := range q.Include {
		clause, value, err := predicateSQL(p)
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, clause)
		args = append(args, value)
	}
	for _, p := range q.Exclude {
		clause, value, err := predicateSQL(p)
		if err != nil {
			return "", nil, err
		}
		// A NULL comparison never excludes a row.
		conditions = append(conditions, "NOT COALESCE("+clause+", FALSE)")
		args = append(args, value)
	}
	return strings.Join(conditions, " AND "), args, nil
}

func predicateSQL(p models.TaskPredicate) (string, interface{}, error) {
	column, ok := taskColumns[p.Field]
	if !ok {
		return "", nil, fmt.Errorf("unsupported task field %q", p.Field)
	}
	switch p.Comparison {
	case models.CompareContains:
		value, ok := p.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("%s %s needs a string value", p.Field, p.Comparison)
		}
		return "LOWER(" + column + `) LIKE ? ESCAPE '\'`, "%" + likeEscaper.Replace(strings.ToLower(value)) + "%", nil
	case models.CompareEquals:
		return column + " = ?", plainValue(p.Value), nil
	case models.CompareGreater:
		return column + " > ?", plainValue(p.Value), nil
	case models.CompareLess:
		return column + " < ?", plainValue(p.Value), nil
	default:
		return "", nil, fmt.Errorf("unsupported comparison %q", p.Comparison)
	}
}

// plainValue unwraps named domain types so every driver receives a
// primitive argument.
func plainValue(v interface{}) interface{} {
	switch value := v.(type) {
	case models.TaskState:
		return string(value)
	case models.Gender:
		return string(value)
	case models.ExperienceLevel:
		return int(value)
	default:
		return v
	}
}

func genderValue(g *models.Gender) interface{} {
	if g == nil {
		return nil
	}
	return string(*g)
}
