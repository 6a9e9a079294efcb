package domain

import "errors"

var (
	// ErrAdmissionDenied is returned when a user exceeds a rate ceiling.
	ErrAdmissionDenied = errors.New("admission denied")
	// ErrNoCandidate is returned when the catalog has nothing to offer.
	ErrNoCandidate = errors.New("no candidate")
	// ErrDeadlineExceeded is returned when the request budget runs out.
	ErrDeadlineExceeded = errors.New("request deadline exceeded")
)
