package aliases

import (
	"github.com/google/uuid"
)

// This file contains interface types for function types used across
// this repository. Mocks are generated for these interfaces, so that
// tests can set expectations on calls to plain functions.

// UUIDGenerator is the interface equivalent of util.UUIDGenerator.
type UUIDGenerator interface {
	Call() (uuid.UUID, error)
}
