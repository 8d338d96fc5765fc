package domain

import "time"

// User es la cuenta registrada. ResetToken y ResetTokenExpiresAt van siempre
// juntos: ambos presentes mientras hay un reset pendiente, ambos vacios si no.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	DisplayName         string     `json:"display_name,omitempty"`
	PasswordHash        string     `json:"-"`
	ResetToken          string     `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
}
