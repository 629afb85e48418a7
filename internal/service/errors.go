package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrRoleInvalid        = errors.New("role is not assignable")
	ErrCannotDeleteOwner  = errors.New("owner account cannot be deleted")
	ErrTargetNotAdmin     = errors.New("ownership can only be transferred to an admin")
	ErrValidation         = errors.New("invalid input")
)
