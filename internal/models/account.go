package models

import "time"

// User is the profile of an authenticated identity. The ID is the subject
// issued by the identity provider.
type User struct {
	ID          string    `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	Email       string    `db:"email" json:"email"`
	Phone       string    `db:"phone" json:"phone"`
	Address     string    `db:"address" json:"address"`
	Gender      *Gender   `db:"gender" json:"gender"`
	Age         *int      `db:"age" json:"age"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Charity is the organisation profile owned by a user.
type Charity struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	RegNumber string    `db:"reg_number" json:"reg_number"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ExperienceLevel grades a benefactor's volunteering background.
type ExperienceLevel int

const (
	ExperienceBeginner     ExperienceLevel = 0
	ExperienceIntermediate ExperienceLevel = 1
	ExperienceExpert       ExperienceLevel = 2
)

// Benefactor is the volunteer profile owned by a user.
type Benefactor struct {
	ID              string          `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	Experience      ExperienceLevel `db:"experience" json:"experience"`
	FreeTimePerWeek int             `db:"free_time_per_week" json:"free_time_per_week"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Actor is the authenticated caller together with the role profiles it
// owns. It is passed explicitly to every service operation.
type Actor struct {
	UserID       string `db:"user_id" json:"user_id"`
	Username     string `db:"username" json:"username"`
	CharityID    string `db:"charity_id" json:"charity_id,omitempty"`
	BenefactorID string `db:"benefactor_id" json:"benefactor_id,omitempty"`
}

// IsCharity reports whether the actor owns a charity profile.
func (a *Actor) IsCharity() bool {
	return a != nil && a.CharityID != ""
}

// IsBenefactor reports whether the actor owns a benefactor profile.
func (a *Actor) IsBenefactor() bool {
	return a != nil && a.BenefactorID != ""
}
