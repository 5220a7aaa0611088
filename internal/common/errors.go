// Package common defines shared sentinel errors used across the sync
// engine, import pipeline, and repositories. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository/cache-level errors.
	ErrNotFound = errors.New("not found")

	// ErrRemoteQuery covers transport or process failures while talking to
	// the catalog source. It is fatal to the calling operation and is never
	// retried at this layer.
	ErrRemoteQuery = errors.New("remote query failed")

	// Per-entry import conditions. These are isolated to the entry that
	// produced them and never abort a batch.
	ErrValidation  = errors.New("invalid metadata")
	ErrDuplicate   = errors.New("entry already exists")
	ErrPersistence = errors.New("persistence failure")
)
