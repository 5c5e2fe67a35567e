package device

import (
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/buildbarn/bb-cxl-memory/pkg/extent"
	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AllocatorFactory is called by Registry to create the ExtentAllocator
// of a newly added device. It may be used to add decorators.
type AllocatorFactory func(deviceName string, list *extent.ExtentList) extent.ExtentAllocator

// NewBestFitAllocatorFactory is an AllocatorFactory that creates plain
// best-fit allocators.
func NewBestFitAllocatorFactory(deviceName string, list *extent.ExtentList) extent.ExtentAllocator {
	return extent.NewBestFitExtentAllocator(list)
}

// Registry of devices. Devices are named "cxl_mem0", "cxl_mem1", etc.
// in the order in which they were added. Every device has its own
// allocator and lock, so operations against different devices never
// block each other.
type Registry struct {
	maximumDevices int
	blockSizeBytes uint64
	newAllocator   AllocatorFactory
	clock          clock.Clock
	uuidGenerator  util.UUIDGenerator

	lock      sync.Mutex
	devices   map[string]*Device
	nextIndex int
}

// NewRegistry creates an empty Registry.
func NewRegistry(maximumDevices int, blockSizeBytes uint64, newAllocator AllocatorFactory, clock clock.Clock, uuidGenerator util.UUIDGenerator) *Registry {
	return &Registry{
		maximumDevices: maximumDevices,
		blockSizeBytes: blockSizeBytes,
		newAllocator:   newAllocator,
		clock:          clock,
		uuidGenerator:  uuidGenerator,
		devices:        map[string]*Device{},
	}
}

// Add a device that exposes a given memory window. The backing store
// is optional. Upon success, ownership of the backing store is
// transferred to the registry.
func (r *Registry) Add(window ResourceWindow, backing MemoryBacking) (*Device, error) {
	if window.BaseAddress%r.blockSizeBytes != 0 {
		return nil, status.Errorf(codes.InvalidArgument, "Base address %#x is not aligned to the block size of %d bytes", window.BaseAddress, r.blockSizeBytes)
	}
	if backing != nil && backing.SizeBytes() < window.SizeBytes {
		return nil, status.Errorf(codes.InvalidArgument, "Backing store of %d bytes is smaller than the memory window of %d bytes", backing.SizeBytes(), window.SizeBytes)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if len(r.devices) >= r.maximumDevices {
		return nil, status.Errorf(codes.ResourceExhausted, "Maximum number of %d devices reached", r.maximumDevices)
	}
	name := fmt.Sprintf("cxl_mem%d", r.nextIndex)
	list, err := extent.NewExtentList(window.SizeBytes / r.blockSizeBytes)
	if err != nil {
		return nil, util.StatusWrapf(err, "Memory window of device %s is smaller than a single block", name)
	}
	d := NewDevice(name, window, r.blockSizeBytes, r.newAllocator(name, list), backing, r.clock, r.uuidGenerator)
	d.index = r.nextIndex
	r.devices[name] = d
	r.nextIndex++

	log.Printf("Detected device %s: base address %#x, size %#x (%d MB)", name, window.BaseAddress, window.SizeBytes, window.SizeBytes>>20)
	return d, nil
}

// Get a device by name.
func (r *Registry) Get(name string) (*Device, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	d, ok := r.devices[name]
	return d, ok
}

// GetDevices returns all devices in the order in which they were
// added.
func (r *Registry) GetDevices() []*Device {
	r.lock.Lock()
	devices := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.lock.Unlock()

	slices.SortFunc(devices, func(a, b *Device) int { return a.index - b.index })
	return devices
}

// Remove a device, closing its backing store. Sessions that are still
// open against the device are abandoned, as the device's memory window
// ceases to exist.
func (r *Registry) Remove(name string) error {
	r.lock.Lock()
	d, ok := r.devices[name]
	delete(r.devices, name)
	r.lock.Unlock()

	if !ok {
		return status.Errorf(codes.NotFound, "Device %#v does not exist", name)
	}
	if d.backing != nil {
		if err := d.backing.Close(); err != nil {
			return util.StatusWrapf(err, "Failed to close backing store of device %s", name)
		}
	}
	log.Printf("Resources of device %s have been released", name)
	return nil
}
