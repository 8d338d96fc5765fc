package service

import "errors"

var ErrNotOwner = errors.New("not the owner")

// ConfirmOwner autoriza la mutacion de un recurso solo a su autor. Falla
// cerrado: autor vacio, caller vacio o cualquier diferencia es ErrNotOwner.
func ConfirmOwner(authorID, callerID string) error {
	if authorID == "" || callerID == "" {
		return ErrNotOwner
	}
	if authorID != callerID {
		return ErrNotOwner
	}
	return nil
}
