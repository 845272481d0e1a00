package aq

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential means no API key was supplied. This is a
	// precondition failure; no network call is attempted.
	ErrMissingCredential = errors.New("openaq api key is not configured")

	// ErrMalformedResponse means the upstream body could not be decoded.
	// Fatal during discovery, skip-item during enrichment.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// DiscoveryError is returned when the discovery call fails. Discovery errors
// are fail-fast: they usually indicate a misconfigured query (bad key, bad
// coordinates) and must be visible to the caller.
type DiscoveryError struct {
	// Status is the upstream HTTP status, or 0 if the failure happened
	// below HTTP (transport error, decode error).
	Status int
	Err    error
}

func (e *DiscoveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("discovery failed with status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("discovery failed: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }
