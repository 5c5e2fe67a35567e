package device_test

import (
	"context"
	"testing"

	"github.com/buildbarn/bb-cxl-memory/internal/mock"
	"github.com/buildbarn/bb-cxl-memory/pkg/device"
	"github.com/buildbarn/bb-cxl-memory/pkg/extent"
	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.uber.org/mock/gomock"
)

const (
	uuid1 = "36ebab65-3c4f-4faf-818b-2eabb4cd1b02"
	uuid2 = "7c7b4dcd-d8a4-4a8b-8f5b-d5e0b6e3f0a1"
)

func newBestFitDevice(t *testing.T, window device.ResourceWindow, blockSizeBytes uint64, backing device.MemoryBacking, uuidGenerator *mock.MockUUIDGenerator) *device.Device {
	list, err := extent.NewExtentList(window.SizeBytes / blockSizeBytes)
	require.NoError(t, err)
	return device.NewDevice("cxl_mem0", window, blockSizeBytes, extent.NewBestFitExtentAllocator(list), backing, clock.SystemClock, uuidGenerator.Call)
}

func TestDeviceSession(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	uuidGenerator := mock.NewMockUUIDGenerator(ctrl)
	d := newBestFitDevice(t, device.ResourceWindow{
		BaseAddress: 0x100000000,
		SizeBytes:   16 * 4096,
	}, 4096, nil, uuidGenerator)

	uuidGenerator.EXPECT().Call().Return(uuid.Parse(uuid1))
	s1, err := d.Open()
	require.NoError(t, err)
	require.Equal(t, extent.OwnerID(uuid1), s1.Owner())
	uuidGenerator.EXPECT().Call().Return(uuid.Parse(uuid2))
	s2, err := d.Open()
	require.NoError(t, err)

	require.Equal(t, device.Info{
		Name:           "cxl_mem0",
		BaseAddress:    0x100000000,
		SizeBytes:      16 * 4096,
		BlockSizeBytes: 4096,
		TotalBlocks:    16,
		OpenSessions:   2,
	}, d.GetInfo())

	t.Run("InvalidSize", func(t *testing.T) {
		_, err := s1.Map(ctx, 0)
		require.Equal(t, status.Error(codes.InvalidArgument, "Mapping size of 0 bytes is not a positive multiple of the block size of 4096 bytes"), err)
		_, err = s1.Map(ctx, 4097)
		require.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("Map", func(t *testing.T) {
		// The physical address is derived from the offset of
		// the extent and the base address of the window.
		m, err := s1.Map(ctx, 4*4096)
		require.NoError(t, err)
		require.Equal(t, device.Mapping{
			OffsetBlocks:    0,
			SizeBlocks:      4,
			PhysicalAddress: 0x100000000,
			SizeBytes:       4 * 4096,
		}, m)

		m, err = s2.Map(ctx, 12*4096)
		require.NoError(t, err)
		require.Equal(t, device.Mapping{
			OffsetBlocks:    4,
			SizeBlocks:      12,
			PhysicalAddress: 0x100004000,
			SizeBytes:       12 * 4096,
		}, m)
		require.Len(t, s2.GetMappings(), 1)
	})

	t.Run("OutOfSpace", func(t *testing.T) {
		_, err := s1.Map(ctx, 4096)
		require.Equal(t, codes.ResourceExhausted, status.Code(err))
		require.Len(t, s1.GetMappings(), 1)
	})

	t.Run("Close", func(t *testing.T) {
		released, err := s1.Close(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, released)

		extents, err := d.GetExtents(ctx)
		require.NoError(t, err)
		require.Equal(t, []extent.Extent{
			{OffsetBlocks: 0, SizeBlocks: 4, State: extent.Free},
			{OffsetBlocks: 4, SizeBlocks: 12, State: extent.Busy, Owner: uuid2, HasOwner: true},
		}, extents)

		_, ok := d.GetSession(uuid1)
		require.False(t, ok)
		require.Equal(t, []*device.Session{s2}, d.GetSessions())

		// Closed sessions can no longer be used.
		_, err = s1.Map(ctx, 4096)
		require.Equal(t, status.Error(codes.FailedPrecondition, "Session has already been closed"), err)
		_, err = s1.Close(ctx)
		require.Equal(t, status.Error(codes.FailedPrecondition, "Session has already been closed"), err)
	})

	t.Run("CloseInterrupted", func(t *testing.T) {
		// Interrupted closes leave the session open, so that
		// they can be retried.
		canceledCtx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s2.Close(canceledCtx)
		require.Equal(t, codes.Aborted, status.Code(err))
		_, ok := d.GetSession(uuid2)
		require.True(t, ok)

		released, err := s2.Close(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, released)

		extents, err := d.GetExtents(ctx)
		require.NoError(t, err)
		require.Equal(t, []extent.Extent{{SizeBlocks: 16, State: extent.Free}}, extents)
	})

	t.Run("CloseWithoutMappings", func(t *testing.T) {
		// Closing a session that never mapped any memory is
		// not an error.
		uuidGenerator.EXPECT().Call().Return(uuid.Parse(uuid1))
		s, err := d.Open()
		require.NoError(t, err)
		released, err := s.Close(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, released)
		require.Empty(t, d.GetSessions())
	})
}

func TestDeviceBacking(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	uuidGenerator := mock.NewMockUUIDGenerator(ctrl)
	backing := mock.NewMockMemoryBacking(ctrl)
	d := newBestFitDevice(t, device.ResourceWindow{
		BaseAddress: 0x200000,
		SizeBytes:   8 * 512,
	}, 512, backing, uuidGenerator)

	uuidGenerator.EXPECT().Call().Return(uuid.Parse(uuid1))
	s, err := d.Open()
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		contents := make([]byte, 1024)
		backing.EXPECT().Slice(uint64(0), uint64(1024)).Return(contents, nil)
		m, err := s.Map(ctx, 1024)
		require.NoError(t, err)
		require.Equal(t, uint64(0x200000), m.PhysicalAddress)
		require.Len(t, m.Contents, 1024)
	})

	t.Run("Failure", func(t *testing.T) {
		// The allocation remains in place, and is released
		// when the session is closed.
		backing.EXPECT().Slice(uint64(1024), uint64(512)).
			Return(nil, status.Error(codes.OutOfRange, "Range [1024, 1536) exceeds memory window of 1024 bytes"))
		_, err := s.Map(ctx, 512)
		testutil.RequireEqualStatus(t, status.Error(codes.Internal, "Failed to obtain contents of memory window: Range [1024, 1536) exceeds memory window of 1024 bytes"), err)

		released, err := s.Close(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, released)
	})
}

func TestDeviceOpenUUIDFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	uuidGenerator := mock.NewMockUUIDGenerator(ctrl)
	d := newBestFitDevice(t, device.ResourceWindow{SizeBytes: 4096}, 4096, nil, uuidGenerator)

	uuidGenerator.EXPECT().Call().Return(uuid.UUID{}, status.Error(codes.Unavailable, "Entropy pool depleted"))
	_, err := d.Open()
	testutil.RequireEqualStatus(t, status.Error(codes.Internal, "Failed to generate session ID: Entropy pool depleted"), err)
}
