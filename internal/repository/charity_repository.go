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

// ErrProfileExists is returned when a user already owns the role profile being created.
var ErrProfileExists = errors.New("profile already exists for user")

// CharityRepository persists charity profiles.
type CharityRepository struct {
	db *sqlx.DB
}

// NewCharityRepository constructs the repository.
func NewCharityRepository(db *sqlx.DB) *CharityRepository {
	return &CharityRepository{db: db}
}

// Create inserts the charity. It returns ErrProfileExists when the user
// already owns one.
func (r *CharityRepository) Create(ctx context.Context, charity *models.Charity) error {
	if charity.ID == "" {
		charity.ID = uuid.NewString()
	}
	if charity.CreatedAt.IsZero() {
		charity.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`INSERT INTO charities (id, user_id, name, reg_number, created_at)
	VALUES (?, ?, ?, ?, ?) ON CONFLICT (user_id) DO NOTHING`)
	result, err := r.db.ExecContext(ctx, query, charity.ID, charity.UserID, charity.Name, charity.RegNumber, charity.CreatedAt)
	if err != nil {
		return fmt.Errorf("create charity: %w", err)
	}
	return profileInserted(result)
}

// FindByUserID returns the charity owned by the user.
func (r *CharityRepository) FindByUserID(ctx context.Context, userID string) (*models.Charity, error) {
	var charity models.Charity
	query := r.db.Rebind(`SELECT id, user_id, name, reg_number, created_at FROM charities WHERE user_id = ?`)
	if err := r.db.GetContext(ctx, &charity, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find charity by user: %w", err)
	}
	return &charity, nil
}

func profileInserted(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check profile insert: %w", err)
	}
	if affected == 0 {
		return ErrProfileExists
	}
	return nil
}
