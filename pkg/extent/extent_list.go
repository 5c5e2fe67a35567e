package extent

import (
	"fmt"
	"iter"
	"math"
	"slices"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// extentHandle is a stable reference to a node in the ExtentList's
// arena. Handles of nodes that are removed by coalescing are recycled.
type extentHandle uint32

const (
	// headAnchor is the handle of the zero-sized, permanently busy
	// node that precedes all real extents. It guarantees that every
	// real extent has a predecessor, so that merging with the
	// predecessor never needs to be bounds checked.
	headAnchor extentHandle = 0
	// nilHandle terminates the list.
	nilHandle extentHandle = math.MaxUint32
)

type extentNode struct {
	extent   Extent
	previous extentHandle
	next     extentHandle
}

// ExtentList is a doubly linked list of extents, ordered by offset,
// that covers the address space [0, totalBlocks) without any gaps or
// overlaps.
//
// Nodes are stored in an arena and are referenced by index, as opposed
// to pointers. This makes splicing O(1), while allowing nodes that are
// removed by coalescing to be reused by successive allocations.
//
// ExtentList provides no locking of its own. Mutations are performed
// by ExtentAllocator, which serializes all access.
type ExtentList struct {
	nodes       []extentNode
	freeHandles []extentHandle
	totalBlocks uint64
}

// NewExtentList creates an ExtentList that consists of a single free
// extent that spans totalBlocks blocks.
func NewExtentList(totalBlocks uint64) (*ExtentList, error) {
	if totalBlocks == 0 {
		return nil, status.Error(codes.InvalidArgument, "Extent list must span at least one block")
	}
	return &ExtentList{
		nodes: []extentNode{
			{
				extent:   Extent{State: Busy},
				previous: nilHandle,
				next:     1,
			},
			{
				extent:   Extent{SizeBlocks: totalBlocks, State: Free},
				previous: headAnchor,
				next:     nilHandle,
			},
		},
		totalBlocks: totalBlocks,
	}, nil
}

// TotalBlocks returns the number of blocks spanned by the list.
func (l *ExtentList) TotalBlocks() uint64 {
	return l.totalBlocks
}

// FreeBlocks returns the number of blocks that are part of free
// extents.
func (l *ExtentList) FreeBlocks() uint64 {
	freeBlocks := uint64(0)
	for e := range l.All() {
		if e.State == Free {
			freeBlocks += e.SizeBlocks
		}
	}
	return freeBlocks
}

// All iterates over the extents in the list in order of increasing
// offset. The head anchor is not included.
func (l *ExtentList) All() iter.Seq[Extent] {
	return func(yield func(Extent) bool) {
		for h := l.first(); h != nilHandle; h = l.nodes[h].next {
			if !yield(l.nodes[h].extent) {
				return
			}
		}
	}
}

// GetExtents returns a copy of all extents in the list in order of
// increasing offset.
func (l *ExtentList) GetExtents() []Extent {
	return slices.Collect(l.All())
}

// Validate checks that the list is well formed. Extents must be
// non-empty, contiguous and cover the full address space. No two
// adjacent extents may both be free, and only busy extents may have an
// owner.
func (l *ExtentList) Validate() error {
	if head := l.nodes[headAnchor].extent; head.SizeBlocks != 0 || head.State != Busy || head.HasOwner || l.nodes[headAnchor].previous != nilHandle {
		return status.Error(codes.Internal, "Head anchor has been modified")
	}

	expectedOffset := uint64(0)
	previous := headAnchor
	previousFree := false
	visited := 0
	for h := l.first(); h != nilHandle; h = l.nodes[h].next {
		if visited++; visited >= len(l.nodes) {
			return status.Error(codes.Internal, "Extent list contains a cycle")
		}
		n := &l.nodes[h]
		e := n.extent
		if n.previous != previous {
			return status.Errorf(codes.Internal, "Extent at offset %d does not link back to its predecessor", e.OffsetBlocks)
		}
		if e.SizeBlocks == 0 {
			return status.Errorf(codes.Internal, "Extent at offset %d is empty", e.OffsetBlocks)
		}
		if e.OffsetBlocks != expectedOffset {
			return status.Errorf(codes.Internal, "Extent at offset %d was expected to start at offset %d", e.OffsetBlocks, expectedOffset)
		}
		switch e.State {
		case Free:
			if e.HasOwner {
				return status.Errorf(codes.Internal, "Free extent at offset %d has owner %#v", e.OffsetBlocks, e.Owner)
			}
			if previousFree {
				return status.Errorf(codes.Internal, "Free extent at offset %d is adjacent to another free extent", e.OffsetBlocks)
			}
			previousFree = true
		case Busy:
			if !e.HasOwner {
				return status.Errorf(codes.Internal, "Busy extent at offset %d has no owner", e.OffsetBlocks)
			}
			previousFree = false
		default:
			return status.Errorf(codes.Internal, "Extent at offset %d has invalid state %d", e.OffsetBlocks, e.State)
		}
		expectedOffset = e.EndBlocks()
		previous = h
	}
	if expectedOffset != l.totalBlocks {
		return status.Errorf(codes.Internal, "Extents span %d blocks, while %d blocks were expected", expectedOffset, l.totalBlocks)
	}
	return nil
}

func (l *ExtentList) first() extentHandle {
	return l.nodes[headAnchor].next
}

// newNode obtains a node from the arena, preferring handles of nodes
// that were removed previously.
func (l *ExtentList) newNode(e Extent) extentHandle {
	if n := len(l.freeHandles); n > 0 {
		h := l.freeHandles[n-1]
		l.freeHandles = l.freeHandles[:n-1]
		l.nodes[h] = extentNode{extent: e, previous: nilHandle, next: nilHandle}
		return h
	}
	if len(l.nodes) >= int(nilHandle) {
		panic("Extent list has run out of node handles")
	}
	l.nodes = append(l.nodes, extentNode{extent: e, previous: nilHandle, next: nilHandle})
	return extentHandle(len(l.nodes) - 1)
}

// insertBefore inserts a new node containing an extent directly in
// front of an existing node.
func (l *ExtentList) insertBefore(target extentHandle, e Extent) extentHandle {
	if target == headAnchor {
		panic("Attempted to insert an extent in front of the head anchor")
	}
	// Allocate first, as growing the arena invalidates pointers.
	h := l.newNode(e)
	previous := l.nodes[target].previous
	l.nodes[h].previous = previous
	l.nodes[h].next = target
	l.nodes[previous].next = h
	l.nodes[target].previous = h
	return h
}

// removeAndMergeInto splices a node out of the list and adds its size
// to an adjacent node. The removed node's handle is returned to the
// arena.
func (l *ExtentList) removeAndMergeInto(target, neighbor extentHandle) {
	if target == headAnchor || neighbor == headAnchor {
		panic("Attempted to merge the head anchor")
	}
	t, n := &l.nodes[target], &l.nodes[neighbor]
	switch {
	case t.next == neighbor:
	case t.previous == neighbor:
		t.extent.OffsetBlocks = n.extent.OffsetBlocks
	default:
		panic(fmt.Sprintf("Attempted to merge extent at offset %d into non-adjacent extent at offset %d", n.extent.OffsetBlocks, t.extent.OffsetBlocks))
	}
	t.extent.SizeBlocks += n.extent.SizeBlocks

	l.nodes[n.previous].next = n.next
	if n.next != nilHandle {
		l.nodes[n.next].previous = n.previous
	}
	*n = extentNode{previous: nilHandle, next: nilHandle}
	l.freeHandles = append(l.freeHandles, neighbor)
}
