package models

import "time"

// UserProfile holds the self-reported health attributes collected by the
// survey step. It is owned by exactly one user, mutated only via profile
// submission, and cleared locally on logout.
type UserProfile struct {
	Age            int       `json:"age,omitempty" validate:"omitempty,gte=0,lte=130"`
	Weight         float64   `json:"weight,omitempty" validate:"omitempty,gt=0"`
	HealthConcerns string    `json:"health_concerns" validate:"required"`
	Diseases       string    `json:"diseases,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// User is the storefront's view of an account as returned by the backend.
// Profile stays nil until the survey has been completed; that nilness is the
// single condition that forces the survey flow open.
type User struct {
	Email     string       `json:"email" validate:"required,email"`
	Name      string       `json:"name" validate:"required,min=2,max=100"`
	Profile   *UserProfile `json:"profile"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// HasProfile reports whether the survey has been completed for this user.
func (u *User) HasProfile() bool {
	return u != nil && u.Profile != nil
}
