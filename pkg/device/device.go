package device

import (
	"context"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/buildbarn/bb-cxl-memory/pkg/extent"
	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ResourceWindow describes the range of physical memory exposed by a
// device, as read from its base address register.
type ResourceWindow struct {
	BaseAddress uint64
	SizeBytes   uint64
}

// Info contains general properties of a device, similar to what is
// returned by a CXL memory device's GET_INFO ioctl.
type Info struct {
	Name           string
	BaseAddress    uint64
	SizeBytes      uint64
	BlockSizeBytes uint64
	TotalBlocks    uint64
	OpenSessions   int
}

// Device hands out ranges of a single device's memory window to
// sessions. All bookkeeping of the window is performed by an
// ExtentAllocator, which is owned by the Device.
type Device struct {
	name           string
	index          int
	window         ResourceWindow
	blockSizeBytes uint64
	totalBlocks    uint64
	allocator      extent.ExtentAllocator
	backing        MemoryBacking
	clock          clock.Clock
	uuidGenerator  util.UUIDGenerator

	lock     sync.Mutex
	sessions map[extent.OwnerID]*Session
}

// NewDevice creates a Device. The window's base address must be
// aligned to the block size, while any trailing part of the window
// that is smaller than a block is left unused. The backing store is
// optional.
func NewDevice(name string, window ResourceWindow, blockSizeBytes uint64, allocator extent.ExtentAllocator, backing MemoryBacking, clock clock.Clock, uuidGenerator util.UUIDGenerator) *Device {
	return &Device{
		name:           name,
		window:         window,
		blockSizeBytes: blockSizeBytes,
		totalBlocks:    window.SizeBytes / blockSizeBytes,
		allocator:      allocator,
		backing:        backing,
		clock:          clock,
		uuidGenerator:  uuidGenerator,
		sessions:       map[extent.OwnerID]*Session{},
	}
}

// Name of the device, e.g. "cxl_mem0".
func (d *Device) Name() string {
	return d.name
}

// GetInfo returns general properties of the device.
func (d *Device) GetInfo() Info {
	d.lock.Lock()
	openSessions := len(d.sessions)
	d.lock.Unlock()

	return Info{
		Name:           d.name,
		BaseAddress:    d.window.BaseAddress,
		SizeBytes:      d.window.SizeBytes,
		BlockSizeBytes: d.blockSizeBytes,
		TotalBlocks:    d.totalBlocks,
		OpenSessions:   openSessions,
	}
}

// GetExtents returns a snapshot of the device's allocation table.
func (d *Device) GetExtents(ctx context.Context) ([]extent.Extent, error) {
	extents, err := d.allocator.GetExtents(ctx)
	if err != nil {
		return nil, util.StatusWrapf(err, "Failed to obtain extents of device %s", d.name)
	}
	return extents, nil
}

// Open a new session against the device. Every session has its own
// owner identity, meaning that memory mapped through different
// sessions is released independently.
func (d *Device) Open() (*Session, error) {
	id, err := d.uuidGenerator()
	if err != nil {
		return nil, util.StatusWrapWithCode(err, codes.Internal, "Failed to generate session ID")
	}
	s := &Session{
		device:   d,
		owner:    extent.OwnerID(id.String()),
		openedAt: d.clock.Now(),
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	if _, ok := d.sessions[s.owner]; ok {
		return nil, status.Errorf(codes.AlreadyExists, "Session %#v already exists", s.owner)
	}
	d.sessions[s.owner] = s
	return s, nil
}

// GetSession looks up an open session by its owner identity.
func (d *Device) GetSession(owner extent.OwnerID) (*Session, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	s, ok := d.sessions[owner]
	return s, ok
}

// GetSessions returns all open sessions, ordered by the time at which
// they were opened.
func (d *Device) GetSessions() []*Session {
	d.lock.Lock()
	sessions := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.lock.Unlock()

	slices.SortFunc(sessions, func(a, b *Session) int {
		if c := a.openedAt.Compare(b.openedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.owner), string(b.owner))
	})
	return sessions
}

func (d *Device) removeSession(owner extent.OwnerID) {
	d.lock.Lock()
	delete(d.sessions, owner)
	d.lock.Unlock()
}

// logExtentTable writes the device's allocation table to the log.
// Failures are logged, as the table is purely informational.
func (d *Device) logExtentTable(ctx context.Context) {
	extents, err := d.GetExtents(ctx)
	if err != nil {
		log.Print(err)
		return
	}
	var sb strings.Builder
	if err := extent.WriteExtentTable(&sb, d.name, extents); err != nil {
		log.Print(err)
		return
	}
	log.Print(sb.String())
}

// Mapping describes a range of device memory handed out to a session.
type Mapping struct {
	OffsetBlocks    uint64
	SizeBlocks      uint64
	PhysicalAddress uint64
	SizeBytes       uint64

	// Contents of the range, if the device has a backing store.
	Contents []byte
}

// Session is the equivalent of an open file descriptor of the device.
// Memory is mapped through the session, and released in its entirety
// when the session is closed.
type Session struct {
	device   *Device
	owner    extent.OwnerID
	openedAt time.Time

	// Serializes Map() and Close(), so that memory is never
	// allocated on behalf of an owner that is being released.
	lock     sync.Mutex
	closed   bool
	mappings []Mapping
}

// Owner returns the identity under which the session's memory is
// allocated.
func (s *Session) Owner() extent.OwnerID {
	return s.owner
}

// OpenedAt returns the time at which the session was opened.
func (s *Session) OpenedAt() time.Time {
	return s.openedAt
}

// GetMappings returns all ranges mapped through this session that have
// not been released.
func (s *Session) GetMappings() []Mapping {
	s.lock.Lock()
	defer s.lock.Unlock()
	return slices.Clone(s.mappings)
}

// Map a range of device memory into the session. The length must be a
// positive multiple of the device's block size.
func (s *Session) Map(ctx context.Context, sizeBytes uint64) (Mapping, error) {
	d := s.device
	if sizeBytes == 0 || sizeBytes%d.blockSizeBytes != 0 {
		return Mapping{}, status.Errorf(codes.InvalidArgument, "Mapping size of %d bytes is not a positive multiple of the block size of %d bytes", sizeBytes, d.blockSizeBytes)
	}
	sizeBlocks := sizeBytes / d.blockSizeBytes

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return Mapping{}, status.Error(codes.FailedPrecondition, "Session has already been closed")
	}

	offsetBlocks, err := d.allocator.Allocate(ctx, s.owner, sizeBlocks)
	if err != nil {
		return Mapping{}, util.StatusWrapf(err, "Failed to allocate %d blocks on device %s", sizeBlocks, d.name)
	}
	m := Mapping{
		OffsetBlocks:    offsetBlocks,
		SizeBlocks:      sizeBlocks,
		PhysicalAddress: d.window.BaseAddress + offsetBlocks*d.blockSizeBytes,
		SizeBytes:       sizeBytes,
	}
	if d.backing != nil {
		// The allocation is kept upon failure. It is released
		// when the session is closed.
		if m.Contents, err = d.backing.Slice(offsetBlocks*d.blockSizeBytes, sizeBytes); err != nil {
			return Mapping{}, util.StatusWrapWithCode(err, codes.Internal, "Failed to obtain contents of memory window")
		}
	}
	s.mappings = append(s.mappings, m)

	log.Printf("Memory has been allocated for session %s on device %s, starting at address %#x, starting device memory block is %d", s.owner, d.name, m.PhysicalAddress, offsetBlocks)
	d.logExtentTable(ctx)
	return m, nil
}

// Close the session, releasing all memory mapped through it. The
// number of extents released is returned.
//
// If the session did not map any memory, Close() succeeds without
// releasing anything. If waiting for the device is interrupted, the
// session remains open, and Close() may be retried.
func (s *Session) Close(ctx context.Context) (int, error) {
	d := s.device

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return 0, status.Error(codes.FailedPrecondition, "Session has already been closed")
	}

	released, err := d.allocator.Release(ctx, s.owner)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return 0, util.StatusWrapf(err, "Failed to release memory of session %s on device %s", s.owner, d.name)
		}
		released = 0
	}
	s.closed = true
	s.mappings = nil
	d.removeSession(s.owner)

	if released > 0 {
		log.Printf("Memory allocated by session %s on device %s has been freed", s.owner, d.name)
		d.logExtentTable(ctx)
	}
	return released, nil
}
