// Package apperr classifies failures surfaced by units of work into the three kinds
// understood by invokers and message brokers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a failure.
type Kind string

const (
	// KindValidation is bad or missing input. Not worth retrying.
	KindValidation Kind = "ValidationError"
	// KindDatabase wraps any relational store failure.
	KindDatabase Kind = "DatabaseError"
	// KindApplication is everything else, including send/publish/delete failures.
	KindApplication Kind = "ApplicationError"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Payload is the JSON shape of an error returned to an invoker.
type Payload struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Validation returns a validation failure.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Validationf returns a validation failure with a formatted message.
func Validationf(format string, args ...any) error {
	return Validation(fmt.Sprintf(format, args...))
}

// Database classifies err as a relational store failure. Errors that are already
// classified are returned unchanged.
func Database(err error) error {
	return classify(KindDatabase, err, "")
}

// Application classifies err as an application failure. Errors that are already
// classified are returned unchanged.
func Application(err error) error {
	return classify(KindApplication, err, "")
}

// Applicationf returns an application failure with a formatted message.
func Applicationf(format string, args ...any) error {
	return &Error{Kind: KindApplication, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, prefixing msg to the message.
func Wrap(kind Kind, err error, msg string) error {
	return classify(kind, err, msg)
}

func classify(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return err
	}

	message := err.Error()
	if msg != "" {
		message = msg + ": " + message
	}

	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of err. Unclassified errors are application errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindApplication
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// AsPayload renders err as the invoker facing error object.
func AsPayload(err error) Payload {
	var e *Error
	if errors.As(err, &e) {
		return Payload{Kind: e.Kind, Message: e.Message}
	}
	return Payload{Kind: KindApplication, Message: err.Error()}
}
