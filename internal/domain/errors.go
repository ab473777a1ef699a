package domain

import "errors"

var (
	// ErrDigestInProgress is returned when a digest run is requested for a
	// (group, topic) pair that already has one in flight.
	ErrDigestInProgress = errors.New("digest already in progress for this group")

	// ErrInvalidImage marks a photo payload that is not a valid JPEG.
	ErrInvalidImage = errors.New("payload is not a valid jpeg image")

	// ErrInvalidPermalink marks a string that cannot be parsed as a message link.
	ErrInvalidPermalink = errors.New("malformed message permalink")
)
