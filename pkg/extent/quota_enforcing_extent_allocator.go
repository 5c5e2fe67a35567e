package extent

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type quotaEnforcingExtentAllocator struct {
	ExtentAllocator
	maximumBlocksPerOwner uint64

	lock           sync.Mutex
	blocksPerOwner map[OwnerID]uint64
}

// NewQuotaEnforcingExtentAllocator creates a decorator for
// ExtentAllocator that limits how many blocks a single owner may hold
// at any given time. This prevents a single process from claiming all
// of a device's memory.
//
// Space is reserved against the quota before calling into the
// underlying allocator, and returned if the allocation fails. Callers
// must not release an owner's extents while allocations for the same
// owner are still in flight.
func NewQuotaEnforcingExtentAllocator(base ExtentAllocator, maximumBlocksPerOwner uint64) ExtentAllocator {
	return &quotaEnforcingExtentAllocator{
		ExtentAllocator:       base,
		maximumBlocksPerOwner: maximumBlocksPerOwner,
		blocksPerOwner:        map[OwnerID]uint64{},
	}
}

func (a *quotaEnforcingExtentAllocator) reserve(owner OwnerID, blocks uint64) bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	used := a.blocksPerOwner[owner]
	if blocks > a.maximumBlocksPerOwner-used {
		return false
	}
	a.blocksPerOwner[owner] = used + blocks
	return true
}

func (a *quotaEnforcingExtentAllocator) unreserve(owner OwnerID, blocks uint64) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if used := a.blocksPerOwner[owner]; used > blocks {
		a.blocksPerOwner[owner] = used - blocks
	} else {
		delete(a.blocksPerOwner, owner)
	}
}

func (a *quotaEnforcingExtentAllocator) Allocate(ctx context.Context, owner OwnerID, requestedBlocks uint64) (uint64, error) {
	if !a.reserve(owner, requestedBlocks) {
		return 0, status.Errorf(codes.ResourceExhausted, "Owner %#v has reached its quota of %d blocks", owner, a.maximumBlocksPerOwner)
	}
	offset, err := a.ExtentAllocator.Allocate(ctx, owner, requestedBlocks)
	if err != nil {
		a.unreserve(owner, requestedBlocks)
		return 0, err
	}
	return offset, nil
}

func (a *quotaEnforcingExtentAllocator) Release(ctx context.Context, owner OwnerID) (int, error) {
	released, err := a.ExtentAllocator.Release(ctx, owner)
	if err == nil || status.Code(err) == codes.NotFound {
		a.lock.Lock()
		delete(a.blocksPerOwner, owner)
		a.lock.Unlock()
	}
	return released, err
}
