package resolver

import "errors"

var (
	// ErrURLNotSupported indicates the URL is not from a supported source
	ErrURLNotSupported = errors.New("url not supported")

	// ErrUnavailable indicates the media is not available
	ErrUnavailable = errors.New("media unavailable")

	// ErrPrivate indicates the media is private
	ErrPrivate = errors.New("media is private")

	// ErrAgeRestricted indicates the content is age-restricted
	ErrAgeRestricted = errors.New("content is age-restricted")

	// ErrNetwork indicates a network-related error
	ErrNetwork = errors.New("network error")

	// ErrBinaryNotFound indicates yt-dlp is not installed
	ErrBinaryNotFound = errors.New("yt-dlp not found in PATH")

	// ErrResolveFailed indicates resolution failed for an uncategorized reason
	ErrResolveFailed = errors.New("resolve failed")

	// ErrInvalidURL indicates the URL format is invalid
	ErrInvalidURL = errors.New("invalid url format")
)

// Error wraps a resolution failure with the URL it concerned.
type Error struct {
	URL     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
