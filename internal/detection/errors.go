package detection

import "errors"

// Errors returned by the serial helpers. The detection operations
// themselves never fail.
var (
	// ErrInvalidBaud is returned when a baud rate is zero or negative.
	ErrInvalidBaud = errors.New("detection: invalid baud rate")

	// ErrInvalidFraming is returned when a framing string is not of the form "8E1".
	ErrInvalidFraming = errors.New("detection: invalid framing")
)
