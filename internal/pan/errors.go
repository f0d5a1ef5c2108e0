package pan

import "errors"

var (
	// ErrInvalidRecord is returned when an input element is neither a string nor null.
	ErrInvalidRecord = errors.New("record must be a string or null")

	// ErrUnknownVerdict is returned when a label does not name a verdict.
	ErrUnknownVerdict = errors.New("unknown verdict")
)
