package auction

import "errors"

// Engine errors. Handlers classify them with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrItemNotFound    = errors.New("item not found")
	ErrInvalidBid      = errors.New("bid is too low")
	ErrUserNotFound    = errors.New("user not found")
	ErrResultsNotReady = errors.New("results not ready")
)
