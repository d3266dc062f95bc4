package model

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Every one of these maps to the same generic failure
// response at the request boundary.
var (
	ErrOriginFetch     = errors.New("origin fetch failed")
	ErrNotAnImage      = errors.New("content is not an image")
	ErrTransformFailed = errors.New("transform failed")
	ErrPayloadTooLarge = errors.New("encoded payload exceeds response size limit")
)

// OriginFetchError describes a failed origin fetch. Exactly one of
// StatusCode and Err is set.
type OriginFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *OriginFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrOriginFetch, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s: status %d", ErrOriginFetch, e.URL, e.StatusCode)
}

// Is makes errors.Is(err, ErrOriginFetch) hold for every OriginFetchError.
func (e *OriginFetchError) Is(target error) bool {
	return target == ErrOriginFetch
}

func (e *OriginFetchError) Unwrap() error {
	return e.Err
}
