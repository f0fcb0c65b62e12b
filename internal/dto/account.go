package dto

import "github.com/noah-isme/charity-tasks-api/internal/models"

// UpdateProfileRequest replaces the mutable profile fields of the current user.
type UpdateProfileRequest struct {
	FirstName   string         `json:"first_name" validate:"max=150"`
	LastName    string         `json:"last_name" validate:"max=150"`
	Email       string         `json:"email" validate:"omitempty,email"`
	Phone       string         `json:"phone" validate:"max=15"`
	Address     string         `json:"address" validate:"max=100"`
	Gender      *models.Gender `json:"gender" validate:"omitempty,oneof=M F"`
	Age         *int           `json:"age" validate:"omitempty,min=0,max=150"`
	Description string         `json:"description" validate:"max=1000"`
}

// RegisterCharityRequest creates the charity profile of the current user.
type RegisterCharityRequest struct {
	Name      string `json:"name" validate:"required,max=50"`
	RegNumber string `json:"reg_number" validate:"required,max=10"`
}

// RegisterBenefactorRequest creates the benefactor profile of the current user.
// Omitted values default to a beginner with no declared free time.
type RegisterBenefactorRequest struct {
	Experience      *int `json:"experience" validate:"omitempty,oneof=0 1 2"`
	FreeTimePerWeek *int `json:"free_time_per_week" validate:"omitempty,min=0,max=168"`
}

// ProfileView describes the current user with the role profiles it owns.
type ProfileView struct {
	User         models.User        `json:"user"`
	IsCharity    bool               `json:"is_charity"`
	IsBenefactor bool               `json:"is_benefactor"`
	Charity      *models.Charity    `json:"charity,omitempty"`
	Benefactor   *models.Benefactor `json:"benefactor,omitempty"`
}
