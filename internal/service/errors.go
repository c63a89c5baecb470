package service

import "errors"

// Adapters wrap platform and store failures with these so callers can branch
// with errors.Is without knowing which collaborator failed.
var (
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrPermission        = errors.New("not permitted by the platform")
	ErrTransientDelivery = errors.New("alert delivery failed")
	ErrPersistence       = errors.New("ban store write failed")

	ErrNoAlertChannel     = errors.New("no alert chat configured")
	ErrChannelUnusable    = errors.New("alert chat unusable")
	ErrGuildNotRegistered = errors.New("guild not registered")
)
