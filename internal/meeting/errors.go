package meeting

import "errors"

// Typed errors returned by meeting operations. Callers match with errors.Is
// and translate into structured protocol/HTTP responses; no operation here
// mutates state before failing.
var (
	ErrMeetingNotFound     = errors.New("meeting not found")
	ErrMeetingExists       = errors.New("meeting already exists")
	ErrMeetingEnded        = errors.New("meeting already ended")
	ErrParticipantNotFound = errors.New("participant not found")
)
