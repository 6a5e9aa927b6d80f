package usecase

import "errors"

var (
	ErrMissingSearchParams    = errors.New("Missing required parameters: origin, destination, start_date")
	ErrInvalidSearchParams    = errors.New("invalid search parameters")
	ErrOutOfOrderSnapshot     = errors.New("snapshot is older than the latest recorded one")
	ErrTrackingAlreadyRunning = errors.New("a tracking run is already in progress")
	ErrNoActiveSession        = errors.New("no active tracking session")
)
