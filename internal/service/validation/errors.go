package validation

import "errors"

// Sentinel errors for the validation service layer.
var (
	ErrRunInProgress      = errors.New("a run over this source is already in progress")
	ErrRunNotFound        = errors.New("run not found")
	ErrIdentifierNotFound = errors.New("identifier not found in run")
	ErrBatchTooLarge      = errors.New("batch exceeds the configured maximum size")
	ErrNoRunStore         = errors.New("no run store configured")
	ErrNoHistory          = errors.New("no summary history configured")
)
