package users

import "time"

// DefaultCredits is the balance granted at signup.
const DefaultCredits = 5

type User struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Credits      int       `json:"credits"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
