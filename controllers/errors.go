package controller

import "errors"

var (
	errMissingContact = errors.New("at least one of email or phone is required")
	errInvalidEmail   = errors.New("email must be a valid address")
	errCreateFailed   = errors.New("failed to create lead")
)
