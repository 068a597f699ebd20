package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrInvalidRecord = errors.New("invalid match record")
	ErrNotReady      = errors.New("ratings not built yet")

	// ErrInvalidRatingInput rejects non-finite values before they reach the
	// rating recurrence.
	ErrInvalidRatingInput = errors.New("invalid rating input")
	// ErrNonMonotonicUpdate rejects a live update whose minute or score goes
	// backwards. The live state is left untouched.
	ErrNonMonotonicUpdate = errors.New("non-monotonic live update")
	// ErrMatchAlreadyFinished rejects updates to a match at full time or one
	// that has been stopped.
	ErrMatchAlreadyFinished = errors.New("match already finished")
	// ErrMissingUpstreamState signals that features were requested for a team
	// neither engine has registered. Treated as a programming error.
	ErrMissingUpstreamState = errors.New("missing upstream state")
)
