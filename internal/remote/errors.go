package remote

import "errors"

var (
	// ErrUnavailable wraps transient transport failures: the submission
	// may be retried on a later sync opportunity.
	ErrUnavailable = errors.New("remote: scheduler unavailable")

	// ErrRejected marks permanent failures: the service answered but
	// refused the submission. Retrying the same request will not help.
	ErrRejected = errors.New("remote: submission rejected")

	// ErrInvalidResponse marks a response that failed schema validation.
	ErrInvalidResponse = errors.New("remote: invalid response")
)
