package domain

import "time"

// Store es el recurso editable con autor. AuthorID es lo unico que mira la
// validacion de propiedad antes de cualquier mutacion.
type Store struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
