// Package common defines shared sentinel errors used across the client and
// server parts of pilotlog. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Sync protocol errors.
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownMutation   = errors.New("unknown mutation type")
	ErrMalformedRecord   = errors.New("malformed record")

	// Remote endpoint errors. Both are transient from the client's point of view.
	ErrUnavailable  = errors.New("server unavailable")
	ErrRemoteStatus = errors.New("unexpected remote status")

	// Validation errors for pushed entries (server side).
	ErrorValidation = errors.New("validation error")
)
