package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/charity-tasks-api/internal/models"
)

const userColumns = `id, username, first_name, last_name, email, phone, address, gender, age, description, created_at, updated_at`

// UserRepository provides database access for user profiles and the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// EnsureUser inserts the user unless a row with the same id or username
// already exists. It reports whether a row was created.
func (r *UserRepository) EnsureUser(ctx context.Context, user *models.User) (bool, error) {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := r.db.Rebind(`INSERT INTO users (` + userColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING`)
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.FirstName, user.LastName, user.Email, user.Phone, user.Address,
		genderValue(user.Gender), user.Age, user.Description, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure user rows: %w", err)
	}
	return affected > 0, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindActor resolves the user together with the ids of the role profiles it owns.
func (r *UserRepository) FindActor(ctx context.Context, userID string) (*models.Actor, error) {
	const query = `SELECT u.id AS user_id, u.username,
	COALESCE(c.id, '') AS charity_id, COALESCE(b.id, '') AS benefactor_id
FROM users u
LEFT JOIN charities c ON c.user_id = u.id
LEFT JOIN benefactors b ON b.user_id = u.id
WHERE u.id = ?`
	var actor models.Actor
	if err := r.db.GetContext(ctx, &actor, r.db.Rebind(query), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find actor: %w", err)
	}
	return &actor, nil
}

// UpdateProfile updates the mutable profile fields of a user.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`UPDATE users SET first_name = ?, last_name = ?, email = ?, phone = ?, address = ?,
	gender = ?, age = ?, description = ?, updated_at = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query,
		user.FirstName, user.LastName, user.Email, user.Phone, user.Address,
		genderValue(user.Gender), user.Age, user.Description, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user profile rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`INSERT INTO audit_logs
	(id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		log.ID, log.UserID, log.Action, log.Resource, log.ResourceID,
		jsonText(log.OldValues), jsonText(log.NewValues), log.IPAddress, log.UserAgent, log.CreatedAt,
	); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// jsonText stores JSON payloads as text so drivers do not encode them as bytea.
func jsonText(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
