package device

// MemoryBacking provides access to the contents of a device's memory
// window. Physical devices don't need one, as their memory is mapped
// into processes through the address returned by Session.Map(). It is
// used when a device is simulated, or when the window is accessed by
// this process directly.
type MemoryBacking interface {
	// SizeBytes returns the size of the backing store. It must be at
	// least as large as the device's resource window.
	SizeBytes() uint64
	// Slice returns a range of the backing store. The returned
	// slice aliases the backing store, and remains valid until
	// Close() is called.
	Slice(offsetBytes, sizeBytes uint64) ([]byte, error)
	// Close releases all resources associated with the backing
	// store.
	Close() error
}
