package models

import (
	"fmt"
)

// RequestError means a remote call failed at the transport or status level.
type RequestError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	default:
		return e.Op + ": request failed"
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// UpstreamError means the catalog answered but reported a logical failure.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return "upstream reported failure"
	}
	return "upstream reported failure: " + e.Message
}

// RecommendationError wraps any failure of the recommendation stage.
type RecommendationError struct {
	Title string
	Err   error
}

func (e *RecommendationError) Error() string {
	return fmt.Sprintf("recommendations for %q: %v", e.Title, e.Err)
}

func (e *RecommendationError) Unwrap() error {
	return e.Err
}
