package domain

import (
	"net/mail"
	"strings"
	"time"
)

type User struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Preference *UserPreference `json:"userPreference,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type UserPreference struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ReceiveEmail bool      `json:"receiveEmail"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DefaultReceiveEmail is the preference every new user starts with.
const DefaultReceiveEmail = true

type UserPatch struct {
	Name         *string
	Email        *string
	ReceiveEmail *bool
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.ReceiveEmail == nil
}

// NormalizeEmail lower-cases and trims an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", NewValidationError("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", NewValidationError("email", "is not a valid address")
	}
	return email, nil
}

func ValidateUserName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewValidationError("name", "is required")
	}
	if len([]rune(name)) > 60 {
		return NewValidationError("name", "must be at most 60 characters")
	}
	return nil
}
