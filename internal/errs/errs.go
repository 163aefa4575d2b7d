// Package errs classifies per-video failures into a small set of kinds,
// each with its own user-facing message.
package errs

import (
	"errors"
	"fmt"

	yterrs "github.com/ytget/ytdlp/errs"
)

var (
	// ErrMalformedURL indicates that a URL does not have the shape of a video address.
	ErrMalformedURL = errors.New("malformed video url")
	// ErrMalformedPlaylist indicates that a playlist URL carries no usable list id.
	ErrMalformedPlaylist = errors.New("malformed playlist url")
	// ErrConversion indicates that the external converter exited unsuccessfully.
	ErrConversion = errors.New("conversion failed")
)

// Kind enumerates the known failure categories.
type Kind int

const (
	KindUnknown Kind = iota
	KindPrivate
	KindUnavailable
	KindAgeRestricted
	KindGeoBlocked
	KindRateLimited
	KindMalformedURL
	KindConversion
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindPrivate:       "private",
	KindUnavailable:   "unavailable",
	KindAgeRestricted: "age-restricted",
	KindGeoBlocked:    "geo-blocked",
	KindRateLimited:   "rate-limited",
	KindMalformedURL:  "malformed-url",
	KindConversion:    "conversion",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Error ties a failure to the URL it happened on.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

// Wrap classifies err and attaches the URL. A nil err yields nil.
func Wrap(url string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: Classify(err), URL: url, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the line shown to the user for this failure.
func (e *Error) Message() string {
	switch e.Kind {
	case KindPrivate:
		return fmt.Sprintf("%s is a private video.", e.URL)
	case KindUnavailable:
		return fmt.Sprintf("%s is an unavailable video.", e.URL)
	case KindAgeRestricted:
		return fmt.Sprintf("%s is age restricted.", e.URL)
	case KindGeoBlocked:
		return fmt.Sprintf("%s is not available in your region.", e.URL)
	case KindRateLimited:
		return fmt.Sprintf("Rate limited while fetching %s.", e.URL)
	case KindMalformedURL:
		return fmt.Sprintf("%s is not a valid video URL.", e.URL)
	case KindConversion:
		return fmt.Sprintf("Converting %s failed: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("Unknown error occurred on URL %s", e.URL)
	}
}

// Classify maps an error onto its Kind using the library sentinels.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, yterrs.ErrPrivate):
		return KindPrivate
	case errors.Is(err, yterrs.ErrVideoUnavailable):
		return KindUnavailable
	case errors.Is(err, yterrs.ErrAgeRestricted):
		return KindAgeRestricted
	case errors.Is(err, yterrs.ErrGeoBlocked):
		return KindGeoBlocked
	case errors.Is(err, yterrs.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrMalformedURL), errors.Is(err, ErrMalformedPlaylist):
		return KindMalformedURL
	case errors.Is(err, ErrConversion):
		return KindConversion
	default:
		return KindUnknown
	}
}
