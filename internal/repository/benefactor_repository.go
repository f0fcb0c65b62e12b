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

// BenefactorRepository persists benefactor profiles.
type BenefactorRepository struct {
	db *sqlx.DB
}

// NewBenefactorRepository constructs the repository.
func NewBenefactorRepository(db *sqlx.DB) *BenefactorRepository {
	return &BenefactorRepository{db: db}
}

// Create inserts the benefactor. It returns ErrProfileExists when the user
// already owns one.
func (r *BenefactorRepository) Create(ctx context.Context, benefactor *models.Benefactor) error {
	if benefactor.ID == "" {
		benefactor.ID = uuid.NewString()
	}
	if benefactor.CreatedAt.IsZero() {
		benefactor.CreatedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`INSERT INTO benefactors (id, user_id, experience, free_time_per_week, created_at)
	VALUES (?, ?, ?, ?, ?) ON CONFLICT (user_id) DO NOTHING`)
	result, err := r.db.ExecContext(ctx, query,
		benefactor.ID, benefactor.UserID, int(benefactor.Experience), benefactor.FreeTimePerWeek, benefactor.CreatedAt)
	if err != nil {
		return fmt.Errorf("create benefactor: %w", err)
	}
	return profileInserted(result)
}

// FindByUserID returns the benefactor owned by the user.
func (r *BenefactorRepository) FindByUserID(ctx context.Context, userID string) (*models.Benefactor, error) {
	var benefactor models.Benefactor
	query := r.db.Rebind(`SELECT id, user_id, experience, free_time_per_week, created_at FROM benefactors WHERE user_id = ?`)
	if err := r.db.GetContext(ctx, &benefactor, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find benefactor by user: %w", err)
	}
	return &benefactor, nil
}
