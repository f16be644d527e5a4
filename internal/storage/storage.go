// Package storage persists small configuration documents in namespaces.
package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when a key is not found
	ErrNotFound = errors.New("key not found")

	// ErrEmptyNamespace is returned when a namespace name is empty
	ErrEmptyNamespace = errors.New("namespace must not be empty")
)

// Storage is a namespaced store of JSON documents. Each component owns one
// namespace (for example "energy").
type Storage interface {
	// GetJSON retrieves and unmarshals a JSON value by key.
	// Returns ErrNotFound if the key doesn't exist
	GetJSON(namespace, key string, v interface{}) error

	// SetJSON marshals and stores a JSON value by key
	SetJSON(namespace, key string, v interface{}) error

	// Delete removes a key. Deleting a missing key is not an error
	Delete(namespace, key string) error

	// Close closes the storage
	Close() error
}
