package datascope

import "errors"

var (
	// ErrInvalidChannelCount is returned when a channel count is 0 or
	// exceeds MaxChannels.
	ErrInvalidChannelCount = errors.New("invalid channel count")
	// ErrNullData is returned when no value slice is supplied.
	ErrNullData = errors.New("no channel data")
	// ErrShortData is returned when fewer values than channels are supplied.
	ErrShortData = errors.New("fewer values than channels")
)
