package extent

import (
	"context"

	"github.com/buildbarn/bb-storage/pkg/util"

	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type bestFitExtentAllocator struct {
	// A semaphore with weight one is used instead of a sync.Mutex,
	// as it permits waiting for the lock to be interrupted.
	lock *semaphore.Weighted
	list *ExtentList
}

// NewBestFitExtentAllocator creates an ExtentAllocator that hands out
// ranges of an ExtentList using a best-fit strategy. Of all free
// extents that are large enough, the one leaving the smallest
// remainder is picked, while an exact match is picked as soon as it is
// encountered.
//
// Device memory handed out by this allocator is mapped into the
// address space of processes directly, meaning it can never be
// compacted. Keeping fragmentation low is therefore preferred over
// keeping allocation cheap. Both allocation and release are O(n) in
// the number of extents.
//
// Extents that are released are coalesced with their free neighbors
// immediately, so that the list never contains two adjacent free
// extents.
func NewBestFitExtentAllocator(list *ExtentList) ExtentAllocator {
	return &bestFitExtentAllocator{
		lock: semaphore.NewWeighted(1),
		list: list,
	}
}

func (a *bestFitExtentAllocator) acquire(ctx context.Context) error {
	if err := a.lock.Acquire(ctx, 1); err != nil {
		return util.StatusWrapWithCode(err, codes.Aborted, "Interrupted while waiting for exclusive access to the extent list")
	}
	return nil
}

func (a *bestFitExtentAllocator) Allocate(ctx context.Context, owner OwnerID, requestedBlocks uint64) (uint64, error) {
	if owner == "" {
		return 0, status.Error(codes.InvalidArgument, "No owner provided")
	}
	if requestedBlocks == 0 {
		return 0, status.Error(codes.InvalidArgument, "At least one block must be requested")
	}
	if err := a.acquire(ctx); err != nil {
		return 0, err
	}
	defer a.lock.Release(1)

	l := a.list

	// Find the first free extent that is large enough. This
	// provides the initial candidate.
	h := l.first()
	for h != nilHandle {
		if e := &l.nodes[h].extent; e.State == Free && e.SizeBlocks >= requestedBlocks {
			break
		}
		h = l.nodes[h].next
	}
	if h == nilHandle {
		return 0, status.Error(codes.ResourceExhausted, "No space available")
	}
	chosen := h
	leftover := l.nodes[h].extent.SizeBlocks - requestedBlocks

	// Scan the remainder of the list for better candidates. Exact
	// matches are used immediately. On ties, the earliest extent
	// is retained.
	for ; h != nilHandle; h = l.nodes[h].next {
		e := &l.nodes[h].extent
		if e.State != Free || e.SizeBlocks < requestedBlocks {
			continue
		}
		if e.SizeBlocks == requestedBlocks {
			e.markBusy(owner)
			return e.OffsetBlocks, nil
		}
		if remainder := e.SizeBlocks - requestedBlocks; remainder < leftover {
			chosen = h
			leftover = remainder
		}
	}

	// Split the chosen extent. The allocated range is placed at the
	// start, while the chosen extent retains the remainder.
	offset := l.nodes[chosen].extent.OffsetBlocks
	l.insertBefore(chosen, Extent{
		OffsetBlocks: offset,
		SizeBlocks:   requestedBlocks,
		State:        Busy,
		Owner:        owner,
		HasOwner:     true,
	})
	remainder := &l.nodes[chosen].extent
	remainder.OffsetBlocks += requestedBlocks
	remainder.SizeBlocks = leftover
	return offset, nil
}

func (a *bestFitExtentAllocator) Release(ctx context.Context, owner OwnerID) (int, error) {
	if owner == "" {
		return 0, status.Error(codes.InvalidArgument, "No owner provided")
	}
	if err := a.acquire(ctx); err != nil {
		return 0, err
	}
	defer a.lock.Release(1)

	// An owner may hold multiple extents, so the entire list needs
	// to be traversed. Coalescing removes nodes from the list,
	// meaning the successor must be obtained from whichever node
	// survives a merge.
	l := a.list
	released := 0
	for h := l.first(); h != nilHandle; {
		n := &l.nodes[h]
		if e := &n.extent; e.State != Busy || !e.HasOwner || e.Owner != owner {
			h = n.next
			continue
		}
		n.extent.markFree()
		released++

		// The head anchor is always busy, so every extent has a
		// predecessor that can be inspected safely.
		previous, next := n.previous, n.next
		previousFree := l.nodes[previous].extent.State == Free
		nextFree := next != nilHandle && l.nodes[next].extent.State == Free
		switch {
		case previousFree && nextFree:
			l.removeAndMergeInto(previous, h)
			l.removeAndMergeInto(previous, next)
			h = l.nodes[previous].next
		case previousFree:
			l.removeAndMergeInto(previous, h)
			h = l.nodes[previous].next
		case nextFree:
			l.removeAndMergeInto(h, next)
			h = l.nodes[h].next
		default:
			h = next
		}
	}
	if released == 0 {
		return 0, status.Errorf(codes.NotFound, "Owner %#v does not hold any extents", owner)
	}
	return released, nil
}

func (a *bestFitExtentAllocator) GetExtents(ctx context.Context) ([]Extent, error) {
	if err := a.acquire(ctx); err != nil {
		return nil, err
	}
	defer a.lock.Release(1)

	return a.list.GetExtents(), nil
}
