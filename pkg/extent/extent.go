package extent

// OwnerID identifies the holder of a busy extent. It is provided by the
// caller (e.g., a process identifier or a session name) and is opaque
// to the allocator.
type OwnerID string

// ExtentState indicates whether an extent may be handed out.
type ExtentState int

const (
	// Free extents are available for allocation. They never have an
	// owner.
	Free ExtentState = iota
	// Busy extents have been handed out to an owner.
	Busy
)

func (s ExtentState) String() string {
	switch s {
	case Free:
		return "Free"
	case Busy:
		return "Allocated"
	default:
		return "Unknown"
	}
}

// Extent is a contiguous range of blocks within a device's address
// space, expressed in units of the device's block size.
//
// Free extents and the list's head anchor have no owner. Instead of
// reserving an OwnerID value for this purpose, the absence of an owner
// is stored explicitly.
type Extent struct {
	OffsetBlocks uint64
	SizeBlocks   uint64
	State        ExtentState
	Owner        OwnerID
	HasOwner     bool
}

// EndBlocks returns the first block past the end of the extent.
func (e Extent) EndBlocks() uint64 {
	return e.OffsetBlocks + e.SizeBlocks
}

func (e *Extent) markBusy(owner OwnerID) {
	e.State = Busy
	e.Owner = owner
	e.HasOwner = true
}

func (e *Extent) markFree() {
	e.State = Free
	e.Owner = ""
	e.HasOwner = false
}
