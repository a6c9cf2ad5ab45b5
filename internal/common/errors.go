package common

import "errors"

var (
	// Caller's fault; surfaced synchronously.
	ErrValidation = errors.New("invalid input")
	ErrNotFound   = errors.New("not found")

	// Ingestion produced zero usable chunks for a project.
	ErrEmptyIngestion = errors.New("ingestion produced no usable content")

	// Index requested before any artifact exists for the project.
	ErrIndexUnavailable = errors.New("index not available")

	// Embedding/generation call failed (timeout, rate limit, malformed output).
	ErrProvider = errors.New("model provider failure")

	// Store write failed; fatal to the request.
	ErrPersistence = errors.New("persistence failure")
)
