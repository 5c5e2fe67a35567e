package extent

import (
	"context"
	"sync"

	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/prometheus/client_golang/prometheus"

	"google.golang.org/grpc/status"
)

var (
	extentAllocatorPrometheusMetrics sync.Once

	extentAllocatorAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "cxl_memory",
			Name:      "extent_allocator_allocations_total",
			Help:      "Number of times extents were requested from a device.",
		},
		[]string{"device", "grpc_code"})
	extentAllocatorAllocatedBlocks = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "buildbarn",
			Subsystem: "cxl_memory",
			Name:      "extent_allocator_allocated_blocks",
			Help:      "Number of blocks requested per allocation.",
			Buckets:   prometheus.ExponentialBuckets(1.0, 2.0, 25),
		},
		[]string{"device", "grpc_code"})
	extentAllocatorReleases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "cxl_memory",
			Name:      "extent_allocator_releases_total",
			Help:      "Number of times all extents held by an owner were released.",
		},
		[]string{"device", "grpc_code"})
	extentAllocatorReleasedExtents = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "buildbarn",
			Subsystem: "cxl_memory",
			Name:      "extent_allocator_released_extents",
			Help:      "Number of extents that were released at once.",
			Buckets:   util.DecimalExponentialBuckets(0, 4, 2),
		},
		[]string{"device"})
	extentAllocatorFreeBlocks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "buildbarn",
			Subsystem: "cxl_memory",
			Name:      "extent_allocator_free_blocks",
			Help:      "Number of blocks in free extents, as observed when extents were last listed.",
		},
		[]string{"device"})
	extentAllocatorExtents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "buildbarn",
			Subsystem: "cxl_memory",
			Name:      "extent_allocator_extents",
			Help:      "Number of extents, as observed when extents were last listed.",
		},
		[]string{"device", "state"})
)

type metricsExtentAllocator struct {
	base ExtentAllocator

	allocations     *prometheus.CounterVec
	allocatedBlocks prometheus.ObserverVec
	releases        *prometheus.CounterVec
	releasedExtents prometheus.Observer
	freeBlocks      prometheus.Gauge
	freeExtents     prometheus.Gauge
	busyExtents     prometheus.Gauge
}

// NewMetricsExtentAllocator creates a decorator for ExtentAllocator
// that exposes Prometheus metrics on the number of allocations and
// releases performed against a device. Gauges on the fragmentation of
// the device are updated whenever extents are listed.
func NewMetricsExtentAllocator(base ExtentAllocator, deviceName string) ExtentAllocator {
	extentAllocatorPrometheusMetrics.Do(func() {
		prometheus.MustRegister(extentAllocatorAllocations)
		prometheus.MustRegister(extentAllocatorAllocatedBlocks)
		prometheus.MustRegister(extentAllocatorReleases)
		prometheus.MustRegister(extentAllocatorReleasedExtents)
		prometheus.MustRegister(extentAllocatorFreeBlocks)
		prometheus.MustRegister(extentAllocatorExtents)
	})

	deviceLabels := prometheus.Labels{"device": deviceName}
	return &metricsExtentAllocator{
		base: base,

		allocations:     extentAllocatorAllocations.MustCurryWith(deviceLabels),
		allocatedBlocks: extentAllocatorAllocatedBlocks.MustCurryWith(deviceLabels),
		releases:        extentAllocatorReleases.MustCurryWith(deviceLabels),
		releasedExtents: extentAllocatorReleasedExtents.WithLabelValues(deviceName),
		freeBlocks:      extentAllocatorFreeBlocks.WithLabelValues(deviceName),
		freeExtents:     extentAllocatorExtents.WithLabelValues(deviceName, Free.String()),
		busyExtents:     extentAllocatorExtents.WithLabelValues(deviceName, Busy.String()),
	}
}

func (a *metricsExtentAllocator) Allocate(ctx context.Context, owner OwnerID, requestedBlocks uint64) (uint64, error) {
	offset, err := a.base.Allocate(ctx, owner, requestedBlocks)
	code := status.Code(err).String()
	a.allocations.WithLabelValues(code).Inc()
	a.allocatedBlocks.WithLabelValues(code).Observe(float64(requestedBlocks))
	return offset, err
}

func (a *metricsExtentAllocator) Release(ctx context.Context, owner OwnerID) (int, error) {
	released, err := a.base.Release(ctx, owner)
	a.releases.WithLabelValues(status.Code(err).String()).Inc()
	if err == nil {
		a.releasedExtents.Observe(float64(released))
	}
	return released, err
}

func (a *metricsExtentAllocator) GetExtents(ctx context.Context) ([]Extent, error) {
	extents, err := a.base.GetExtents(ctx)
	if err != nil {
		return nil, err
	}
	var freeBlocks uint64
	var freeExtents, busyExtents int
	for _, e := range extents {
		if e.State == Free {
			freeBlocks += e.SizeBlocks
			freeExtents++
		} else {
			busyExtents++
		}
	}
	a.freeBlocks.Set(float64(freeBlocks))
	a.freeExtents.Set(float64(freeExtents))
	a.busyExtents.Set(float64(busyExtents))
	return extents, nil
}
