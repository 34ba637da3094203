package plansync

import "errors"

// Intent rejections. A rejected intent leaves the state unchanged.
var (
	ErrNotLoaded          = errors.New("plansync: document not loaded")
	ErrNotEditing         = errors.New("plansync: no edit session")
	ErrAlreadyEditing     = errors.New("plansync: edit session already active")
	ErrEditing            = errors.New("plansync: not allowed while editing")
	ErrSaveInFlight       = errors.New("plansync: save already in flight")
	ErrUnconfirmedDiscard = errors.New("plansync: draft has unsaved changes, confirm to discard")
	ErrUnsavedDraft       = errors.New("plansync: draft has unsaved changes")
	ErrClosed             = errors.New("plansync: store closed")
)
