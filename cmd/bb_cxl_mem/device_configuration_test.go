package main

import (
	"testing"

	"github.com/buildbarn/bb-cxl-memory/pkg/device"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestParseDeviceConfiguration(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		configuration, err := parseDeviceConfiguration("0x100000000:0x40000000")
		require.NoError(t, err)
		require.Equal(t, deviceConfiguration{
			window: device.ResourceWindow{
				BaseAddress: 0x100000000,
				SizeBytes:   0x40000000,
			},
		}, configuration)

		// Backing file paths may contain colons.
		configuration, err = parseDeviceConfiguration("4096:65536:/dev/shm/cxl:0")
		require.NoError(t, err)
		require.Equal(t, deviceConfiguration{
			window: device.ResourceWindow{
				BaseAddress: 4096,
				SizeBytes:   65536,
			},
			backingFile: "/dev/shm/cxl:0",
		}, configuration)
	})

	t.Run("MissingSize", func(t *testing.T) {
		_, err := parseDeviceConfiguration("0x1000")
		require.Equal(t, status.Error(codes.InvalidArgument, "Device \"0x1000\" is not of the form BASE:SIZE[:BACKING_FILE]"), err)
	})

	t.Run("InvalidNumbers", func(t *testing.T) {
		_, err := parseDeviceConfiguration("hello:0x1000")
		require.Equal(t, codes.InvalidArgument, status.Code(err))
		_, err = parseDeviceConfiguration("0x1000:-1")
		require.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("Overflow", func(t *testing.T) {
		_, err := parseDeviceConfiguration("0xfffffffffffff000:0x2000")
		require.Equal(t, status.Error(codes.InvalidArgument, "Memory window of 8192 bytes at base address 0xfffffffffffff000 exceeds the address space"), err)
	})

	t.Run("EmptyBackingFile", func(t *testing.T) {
		_, err := parseDeviceConfiguration("0x1000:0x1000:")
		require.Equal(t, status.Error(codes.InvalidArgument, "Device \"0x1000:0x1000:\" has an empty backing file path"), err)
	})
}
