package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/charity-tasks-api/internal/models"
)

var taskRowColumns = []string{
	"id", "title", "description", "state", "charity_id", "benefactor_id", "date",
	"age_limit_from", "age_limit_to", "gender_limit", "created_at", "updated_at",
	"charity_name", "charity_reg_number", "charity_user_id",
	"benefactor_user_id", "benefactor_experience", "benefactor_free_time_per_week",
}

func newTaskRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func taskRows(state models.TaskState, benefactorID interface{}) *sqlmock.Rows {
	now := time.Now()
	var benefactorUser interface{}
	if benefactorID != nil {
		benefactorUser = "user-b1"
	}
	return sqlmock.NewRows(taskRowColumns).AddRow(
		"task-1", "Feed the cats", "Shelter duty", string(state), "charity-1", benefactorID, nil,
		18, 60, nil, now, now,
		"Paws", "REG-1", "user-c", benefactorUser, nil, nil,
	)
}

func TestTaskRepositoryListEmptyScopeSkipsQuery(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	records, err := repo.List(context.Background(), models.TaskQuery{})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryListBuildsScopedPredicates(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE (t.charity_id = $1 OR (t.state = $2 OR t.benefactor_id = $3)) AND LOWER(t.title) LIKE $4 ESCAPE '\' AND NOT COALESCE(t.age_limit_from > $5, FALSE) ORDER BY t.created_at DESC, t.id`)).
		WithArgs("charity-1", "P", "ben-1", "%cat%", 30).
		WillReturnRows(taskRows(models.TaskStatePending, nil))

	records, err := repo.List(context.Background(), models.TaskQuery{
		Scope:   models.TaskScope{CharityID: "charity-1", BenefactorID: "ben-1"},
		Include: []models.TaskPredicate{{Field: models.TaskFieldTitle, Comparison: models.CompareContains, Value: "CAT"}},
		Exclude: []models.TaskPredicate{{Field: models.TaskFieldAgeLimitFrom, Comparison: models.CompareGreater, Value: 30}},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Paws", records[0].CharityName)
	assert.Equal(t, models.TaskStatePending, records[0].State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildTaskWhereEscapesLikeWildcards(t *testing.T) {
	_, args, err := buildTaskWhere(models.TaskQuery{
		Scope:   models.TaskScope{CharityID: "c"},
		Include: []models.TaskPredicate{{Field: models.TaskFieldDescription, Comparison: models.CompareContains, Value: "100%_sure"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"c", `%100\%\_sure%`}, args)
}

func TestBuildTaskWhereRejectsUnknownField(t *testing.T) {
	_, _, err := buildTaskWhere(models.TaskQuery{
		Scope:   models.TaskScope{CharityID: "c"},
		Include: []models.TaskPredicate{{Field: "password", Comparison: models.CompareEquals, Value: "x"}},
	})
	assert.Error(t, err)
}

func TestTaskRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryTransitionCommits(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1 FOR UPDATE OF t")).
		WithArgs("task-1").
		WillReturnRows(taskRows(models.TaskStatePending, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET state = $1, benefactor_id = $2, updated_at = $3 WHERE id = $4 AND state = $5")).
		WithArgs("W", "ben-1", sqlmock.AnyArg(), "task-1", "P").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).
		WithArgs("task-1").
		WillReturnRows(taskRows(models.TaskStateWaiting, "ben-1"))
	mock.ExpectCommit()

	rec, err := repo.Transition(context.Background(), "task-1", func(rec *models.TaskRecord) error {
		return rec.Apply(models.TaskEventRequest, "ben-1")
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateWaiting, rec.State)
	require.NotNil(t, rec.BenefactorID)
	assert.Equal(t, "ben-1", *rec.BenefactorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryTransitionStaleStateRollsBack(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF t")).
		WithArgs("task-1").
		WillReturnRows(taskRows(models.TaskStatePending, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET state")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), "task-1", func(rec *models.TaskRecord) error {
		return rec.Apply(models.TaskEventRequest, "ben-1")
	})
	assert.ErrorIs(t, err, ErrTaskStateChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryTransitionMutatorErrorRollsBack(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	denied := errors.New("denied")
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF t")).
		WithArgs("task-1").
		WillReturnRows(taskRows(models.TaskStateWaiting, "ben-1"))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), "task-1", func(rec *models.TaskRecord) error {
		return denied
	})
	assert.ErrorIs(t, err, denied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryTransitionMissingTask(t *testing.T) {
	db, mock, cleanup := newTaskRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF t")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), "nope", func(rec *models.TaskRecord) error {
		t.Fatal("mutator must not run for a missing task")
		return nil
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
