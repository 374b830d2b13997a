// Package kernelerr defines the error taxonomy shared across the
// simulation kernel: InvalidArgument, NotFound, UnknownDomain,
// UnknownService, HandlerFailure, and SubscriberFailure. Fatal conditions
// are not modeled as an error type — they panic, since they indicate a
// scheduler or clock invariant violation that should abort the simulator.
package kernelerr

import (
	"errors"
	"fmt"
)

// InvalidArgument reports a synchronously-rejected bad argument: a
// non-positive speed, a malformed timestamp, an out-of-range service
// field. No state is mutated before this error is returned.
type InvalidArgument struct {
	Field  string
	Reason string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// NewInvalidArgument builds an InvalidArgument error.
func NewInvalidArgument(field, reason string) error {
	return &InvalidArgument{Field: field, Reason: reason}
}

// NotFound reports a lookup miss: an unknown entity id or history id.
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound builds a NotFound error.
func NewNotFound(kind, id string) error {
	return &NotFound{Kind: kind, ID: id}
}

// UnknownDomain reports a service call against a domain with no
// registered engine.
type UnknownDomain struct {
	Domain string
}

func (e *UnknownDomain) Error() string {
	return fmt.Sprintf("unknown domain: %s", e.Domain)
}

// UnknownService reports a service call naming a service the domain's
// engine does not implement.
type UnknownService struct {
	Domain  string
	Service string
}

func (e *UnknownService) Error() string {
	return fmt.Sprintf("unknown service %s.%s", e.Domain, e.Service)
}

// HandlerFailure wraps a panic or error raised by an engine's service
// handler. It is always caught at the registry boundary and surfaced as
// a per-target {ok:false} result — it never propagates out of
// CallService.
type HandlerFailure struct {
	Domain  string
	Service string
	Cause   error
}

func (e *HandlerFailure) Error() string {
	return fmt.Sprintf("handler failure in %s.%s: %v", e.Domain, e.Service, e.Cause)
}

func (e *HandlerFailure) Unwrap() error { return e.Cause }

// SubscriberFailure wraps a panic raised by a state-store listener during
// fan-out. It is always caught and logged; it never aborts the write or
// blocks other listeners.
type SubscriberFailure struct {
	Cause error
}

func (e *SubscriberFailure) Error() string {
	return fmt.Sprintf("subscriber failure: %v", e.Cause)
}

func (e *SubscriberFailure) Unwrap() error { return e.Cause }

// IsNotFound reports whether err is, or wraps, a NotFound.
func IsNotFound(err error) bool {
	var target *NotFound
	return errors.As(err, &target)
}

// IsInvalidArgument reports whether err is, or wraps, an InvalidArgument.
func IsInvalidArgument(err error) bool {
	var target *InvalidArgument
	return errors.As(err, &target)
}
