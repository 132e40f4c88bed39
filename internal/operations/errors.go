package operations

import "errors"

const (
	ErrInvalidChapterID        = "invalid_chapter_id"
	ErrInvalidAssignmentID     = "invalid_assignment_id"
	ErrDuplicateTempID         = "duplicate_temp_id"
	ErrReservedTempID          = "reserved_temp_id"
	ErrDuplicateID             = "duplicate_id"
	ErrUnknownChapterReference = "unknown_chapter_reference"
)

type Error struct {
	Code string
	// Ref is the offending id or temp id, when there is one.
	Ref string
}

func (e *Error) Error() string {
	if e.Ref == "" {
		return e.Code
	}
	return e.Code + ": " + e.Ref
}

// AsError unwraps err into an *Error when it carries one.
func AsError(err error) (*Error, bool) {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr, true
	}
	return nil, false
}
