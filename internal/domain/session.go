package domain

import "time"

// Session es el registro del lado servidor que vincula un request a un
// usuario autenticado. Un usuario puede tener varias sesiones activas; la
// expiracion la maneja el SessionStore, no el dominio.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
