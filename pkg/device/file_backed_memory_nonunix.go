//go:build !unix

package device

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewFileBackedMemory creates a MemoryBacking that maps a file into
// memory. This is not supported on this platform.
func NewFileBackedMemory(path string, sizeBytes uint64) (MemoryBacking, error) {
	return nil, status.Error(codes.Unimplemented, "File backed memory windows are not supported on this platform")
}

// DefaultBlockSizeBytes returns the granularity at which device memory
// is handed out if none is configured.
func DefaultBlockSizeBytes() uint64 {
	return 4096
}
