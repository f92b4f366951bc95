// Package remote calls and serves the out-of-process extraction capability:
// a multipart PDF upload answered with a JSON array of flat records.
package remote

import "fmt"

// Kind classifies a failed remote call.
type Kind string

const (
	KindConnection Kind = "connection"
	KindTimeout    Kind = "timeout"
	KindMalformed  Kind = "malformed"
	KindStatus     Kind = "status"
)

// Error is returned by Client for every failed call.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindStatus:
		return fmt.Sprintf("remote extraction returned %d: %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("remote extraction %s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("remote extraction %s error: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }
