package extent_test

import (
	"context"
	"testing"

	"github.com/buildbarn/bb-cxl-memory/internal/mock"
	"github.com/buildbarn/bb-cxl-memory/pkg/extent"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.uber.org/mock/gomock"
)

func TestMetricsAndTracingExtentAllocator(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	// Decorators should forward all calls and results unmodified.
	baseAllocator := mock.NewMockExtentAllocator(ctrl)
	allocator := extent.NewTracingExtentAllocator(
		extent.NewMetricsExtentAllocator(baseAllocator, "cxl_mem0"),
		noop.NewTracerProvider(),
		"cxl_mem0")

	t.Run("Allocate", func(t *testing.T) {
		baseAllocator.EXPECT().Allocate(gomock.Any(), extent.OwnerID("a"), uint64(3)).Return(uint64(7), nil)
		offset, err := allocator.Allocate(ctx, "a", 3)
		require.NoError(t, err)
		require.Equal(t, uint64(7), offset)

		baseAllocator.EXPECT().Allocate(gomock.Any(), extent.OwnerID("a"), uint64(100)).
			Return(uint64(0), status.Error(codes.ResourceExhausted, "No space available"))
		_, err = allocator.Allocate(ctx, "a", 100)
		require.Equal(t, status.Error(codes.ResourceExhausted, "No space available"), err)
	})

	t.Run("Release", func(t *testing.T) {
		baseAllocator.EXPECT().Release(gomock.Any(), extent.OwnerID("a")).Return(1, nil)
		released, err := allocator.Release(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, 1, released)

		baseAllocator.EXPECT().Release(gomock.Any(), extent.OwnerID("a")).
			Return(0, status.Error(codes.NotFound, "Owner \"a\" does not hold any extents"))
		_, err = allocator.Release(ctx, "a")
		require.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("GetExtents", func(t *testing.T) {
		extents := []extent.Extent{busy(0, 3, "a"), free(3, 7)}
		baseAllocator.EXPECT().GetExtents(gomock.Any()).Return(extents, nil)
		observed, err := allocator.GetExtents(ctx)
		require.NoError(t, err)
		require.Equal(t, extents, observed)
	})
}
