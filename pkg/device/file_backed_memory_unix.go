//go:build unix

package device

import (
	"math"
	"os"

	"github.com/buildbarn/bb-storage/pkg/util"

	"golang.org/x/sys/unix"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fileBackedMemory struct {
	data []byte
}

// NewFileBackedMemory creates a MemoryBacking that maps a file into
// memory using a shared mapping. The file is created if it does not
// exist, and resized to the requested size. Placing the file on a
// tmpfs (e.g., /dev/shm) makes it behave like a device's memory
// window that is shared between processes.
func NewFileBackedMemory(path string, sizeBytes uint64) (MemoryBacking, error) {
	if sizeBytes == 0 || sizeBytes > math.MaxInt {
		return nil, status.Errorf(codes.InvalidArgument, "Invalid memory window size of %d bytes", sizeBytes)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, util.StatusWrapfWithCode(err, codes.Internal, "Failed to open %#v", path)
	}
	// The mapping remains valid after the file is closed.
	defer f.Close()

	if err := f.Truncate(int64(sizeBytes)); err != nil {
		return nil, util.StatusWrapfWithCode(err, codes.Internal, "Failed to resize %#v to %d bytes", path, sizeBytes)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(sizeBytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, util.StatusWrapfWithCode(err, codes.Internal, "Failed to map %#v", path)
	}
	return &fileBackedMemory{data: data}, nil
}

func (m *fileBackedMemory) SizeBytes() uint64 {
	return uint64(len(m.data))
}

func (m *fileBackedMemory) Slice(offsetBytes, sizeBytes uint64) ([]byte, error) {
	if m.data == nil {
		return nil, status.Error(codes.FailedPrecondition, "Memory window has already been closed")
	}
	if offsetBytes > uint64(len(m.data)) || sizeBytes > uint64(len(m.data))-offsetBytes {
		return nil, status.Errorf(codes.OutOfRange, "Range [%d, %d) exceeds memory window of %d bytes", offsetBytes, offsetBytes+sizeBytes, len(m.data))
	}
	return m.data[offsetBytes : offsetBytes+sizeBytes : offsetBytes+sizeBytes], nil
}

func (m *fileBackedMemory) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if err := unix.Munmap(data); err != nil {
		return util.StatusWrapWithCode(err, codes.Internal, "Failed to unmap memory window")
	}
	return nil
}

// DefaultBlockSizeBytes returns the granularity at which device memory
// is handed out if none is configured, which is the host's page size.
func DefaultBlockSizeBytes() uint64 {
	return uint64(unix.Getpagesize())
}
