package session

import "errors"

var (
	// ErrUnknownSession is returned when a session id does not name a live session.
	ErrUnknownSession = errors.New("unknown session")

	// ErrNoActiveSession is returned when a user has no sessions at all.
	ErrNoActiveSession = errors.New("no active session")
)
