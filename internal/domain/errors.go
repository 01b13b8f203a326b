package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrNotInitialized signals a required collaborator that was never set up.
	ErrNotInitialized = errors.New("not initialized")
	// ErrNoValidEmbeddings signals that none of the phenotypes resolved to an embedding.
	ErrNoValidEmbeddings = errors.New("no valid embeddings found for provided phenotypes")
	// ErrCapacityExceeded signals that the store refused a query because of its result count.
	ErrCapacityExceeded = errors.New("query result capacity exceeded")
	// ErrInvalidQuery signals a malformed query request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// NotInitializedError names the collaborator that is missing.
type NotInitializedError struct {
	Component string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("%s is %s", e.Component, ErrNotInitialized.Error())
}

func (e *NotInitializedError) Unwrap() error { return ErrNotInitialized }

// NewNotInitialized creates a configuration error for the named component.
func NewNotInitialized(component string) error {
	return &NotInitializedError{Component: component}
}
