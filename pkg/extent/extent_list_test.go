package extent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestExtentList(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		_, err := NewExtentList(0)
		require.Equal(t, status.Error(codes.InvalidArgument, "Extent list must span at least one block"), err)
	})

	t.Run("Initial", func(t *testing.T) {
		// A new list consists of a single free extent. The head
		// anchor is not visible.
		l, err := NewExtentList(100)
		require.NoError(t, err)
		require.NoError(t, l.Validate())
		require.Equal(t, []Extent{{SizeBlocks: 100, State: Free}}, l.GetExtents())
		require.Equal(t, uint64(100), l.TotalBlocks())
		require.Equal(t, uint64(100), l.FreeBlocks())
	})

	t.Run("HandleReuse", func(t *testing.T) {
		// Nodes removed by merging must be returned to the
		// arena, so that the arena does not grow without bound.
		l, err := NewExtentList(100)
		require.NoError(t, err)
		a := l.insertBefore(1, Extent{OffsetBlocks: 0, SizeBlocks: 10, State: Busy, Owner: "a", HasOwner: true})
		l.nodes[1].extent.OffsetBlocks = 10
		l.nodes[1].extent.SizeBlocks = 90
		require.NoError(t, l.Validate())
		require.Len(t, l.nodes, 3)

		l.nodes[a].extent.markFree()
		l.removeAndMergeInto(1, a)
		require.NoError(t, l.Validate())
		require.Equal(t, []Extent{{SizeBlocks: 100, State: Free}}, l.GetExtents())
		require.Equal(t, []extentHandle{a}, l.freeHandles)

		b := l.insertBefore(1, Extent{OffsetBlocks: 0, SizeBlocks: 5, State: Busy, Owner: "b", HasOwner: true})
		require.Equal(t, a, b)
		require.Len(t, l.nodes, 3)
		require.Empty(t, l.freeHandles)
	})

	t.Run("HeadAnchorIsImmutable", func(t *testing.T) {
		l, err := NewExtentList(10)
		require.NoError(t, err)
		require.Panics(t, func() { l.removeAndMergeInto(1, headAnchor) })
		require.Panics(t, func() { l.removeAndMergeInto(headAnchor, 1) })
		require.Panics(t, func() { l.insertBefore(headAnchor, Extent{SizeBlocks: 1}) })
	})

	t.Run("ValidateDetectsCorruption", func(t *testing.T) {
		l, err := NewExtentList(10)
		require.NoError(t, err)
		// The original extent has not been shrunk, so it
		// overlaps with the one inserted in front of it.
		l.insertBefore(1, Extent{OffsetBlocks: 0, SizeBlocks: 4, State: Free})
		require.Equal(t, status.Error(codes.Internal, "Extent at offset 0 was expected to start at offset 4"), l.Validate())

		l.nodes[1].extent.OffsetBlocks = 4
		l.nodes[1].extent.SizeBlocks = 6
		require.Equal(t, status.Error(codes.Internal, "Free extent at offset 4 is adjacent to another free extent"), l.Validate())

		l.nodes[1].extent.markBusy("a")
		l.nodes[1].extent.SizeBlocks = 5
		require.Equal(t, status.Error(codes.Internal, "Extents span 9 blocks, while 10 blocks were expected"), l.Validate())
	})
}
