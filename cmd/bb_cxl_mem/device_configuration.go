package main

import (
	"math"
	"strconv"
	"strings"

	"github.com/buildbarn/bb-cxl-memory/pkg/device"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// deviceConfiguration is the parsed form of a --device flag.
type deviceConfiguration struct {
	window      device.ResourceWindow
	backingFile string
}

// parseDeviceConfiguration parses a device declaration of the form
// BASE:SIZE[:BACKING_FILE]. The base address and size may be provided
// in decimal, or in hexadecimal when prefixed with "0x".
func parseDeviceConfiguration(s string) (deviceConfiguration, error) {
	fields := strings.SplitN(s, ":", 3)
	if len(fields) < 2 {
		return deviceConfiguration{}, status.Errorf(codes.InvalidArgument, "Device %#v is not of the form BASE:SIZE[:BACKING_FILE]", s)
	}
	baseAddress, err := strconv.ParseUint(fields[0], 0, 64)
	if err != nil {
		return deviceConfiguration{}, util.StatusWrapfWithCode(err, codes.InvalidArgument, "Invalid base address %#v", fields[0])
	}
	sizeBytes, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		return deviceConfiguration{}, util.StatusWrapfWithCode(err, codes.InvalidArgument, "Invalid size %#v", fields[1])
	}
	if sizeBytes > math.MaxUint64-baseAddress {
		return deviceConfiguration{}, status.Errorf(codes.InvalidArgument, "Memory window of %d bytes at base address %#x exceeds the address space", sizeBytes, baseAddress)
	}

	configuration := deviceConfiguration{
		window: device.ResourceWindow{
			BaseAddress: baseAddress,
			SizeBytes:   sizeBytes,
		},
	}
	if len(fields) == 3 {
		if fields[2] == "" {
			return deviceConfiguration{}, status.Errorf(codes.InvalidArgument, "Device %#v has an empty backing file path", s)
		}
		configuration.backingFile = fields[2]
	}
	return configuration, nil
}
