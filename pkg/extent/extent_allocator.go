package extent

import (
	"context"
)

// ExtentAllocator hands out contiguous ranges of blocks of a single
// device to owners, and reclaims them when owners go away.
//
// Errors are reported as gRPC status errors:
//
//   - RESOURCE_EXHAUSTED if no range of sufficient size is available,
//   - NOT_FOUND if Release() is called for an owner that holds no
//     ranges,
//   - ABORTED if waiting for exclusive access to the device was
//     interrupted through the Context. Such calls may be retried.
type ExtentAllocator interface {
	// Allocate a contiguous range of blocks on behalf of an owner.
	// The offset of the first block is returned. The state of the
	// allocator is left unmodified upon failure.
	Allocate(ctx context.Context, owner OwnerID, requestedBlocks uint64) (uint64, error)
	// Release all ranges of blocks held by an owner. The number of
	// ranges that were released is returned.
	Release(ctx context.Context, owner OwnerID) (int, error)
	// GetExtents returns a consistent snapshot of all extents
	// managed by the allocator, ordered by offset.
	GetExtents(ctx context.Context) ([]Extent, error)
}
