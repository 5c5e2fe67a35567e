package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/buildbarn/bb-cxl-memory/pkg/device"
	"github.com/buildbarn/bb-cxl-memory/pkg/extent"
	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/program"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/spf13/pflag"

	"go.opentelemetry.io/otel"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// bb_cxl_mem hands out ranges of the memory windows of CXL attached
// memory devices to clients. Every device has its own best-fit extent
// allocator. Clients open sessions against a device through an HTTP
// API, map memory through those sessions, and release all memory held
// by a session by closing it.

func main() {
	program.RunMain(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
		listenAddress := pflag.String("listen-address", ":7982", "Address on which to serve the HTTP API, diagnostics pages and metrics")
		blockSizeBytes := pflag.Uint64("block-size-bytes", device.DefaultBlockSizeBytes(), "Granularity at which device memory is handed out")
		deviceFlags := pflag.StringArray("device", nil, "Memory window of a device, of the form BASE:SIZE[:BACKING_FILE]. May be provided multiple times")
		maximumDevices := pflag.Int("maximum-devices", 8, "Maximum number of devices that may be declared")
		maximumBlocksPerOwner := pflag.Uint64("maximum-blocks-per-owner", 0, "Maximum number of blocks a single session may hold on a device, or zero to disable")
		pflag.Parse()
		if pflag.NArg() != 0 {
			return status.Error(codes.InvalidArgument, "Usage: bb_cxl_mem [flags]")
		}
		if *blockSizeBytes == 0 {
			return status.Error(codes.InvalidArgument, "Block size must be positive")
		}

		tracerProvider := otel.GetTracerProvider()
		registry := device.NewRegistry(
			*maximumDevices,
			*blockSizeBytes,
			func(deviceName string, list *extent.ExtentList) extent.ExtentAllocator {
				allocator := extent.NewBestFitExtentAllocator(list)
				if *maximumBlocksPerOwner > 0 {
					allocator = extent.NewQuotaEnforcingExtentAllocator(allocator, *maximumBlocksPerOwner)
				}
				return extent.NewTracingExtentAllocator(
					extent.NewMetricsExtentAllocator(allocator, deviceName),
					tracerProvider,
					deviceName)
			},
			clock.SystemClock,
			uuid.NewRandom)

		// Release all device resources upon shutdown.
		dependenciesGroup.Go(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
			<-ctx.Done()
			for _, d := range registry.GetDevices() {
				if err := registry.Remove(d.Name()); err != nil {
					log.Print(err)
				}
			}
			return nil
		})

		for _, deviceFlag := range *deviceFlags {
			configuration, err := parseDeviceConfiguration(deviceFlag)
			if err != nil {
				return err
			}
			var backing device.MemoryBacking
			if configuration.backingFile != "" {
				backing, err = device.NewFileBackedMemory(configuration.backingFile, configuration.window.SizeBytes)
				if err != nil {
					return util.StatusWrapf(err, "Failed to create backing store for device %#v", deviceFlag)
				}
			}
			if _, err := registry.Add(configuration.window, backing); err != nil {
				if backing != nil {
					backing.Close()
				}
				return util.StatusWrapf(err, "Failed to add device %#v", deviceFlag)
			}
		}

		// Web server for the API, diagnostics pages, metrics and
		// profiling.
		router := mux.NewRouter()
		util.RegisterAdministrativeHTTPEndpoints(router)
		newDeviceService(registry, clock.SystemClock, router)

		server := &http.Server{
			Addr:    *listenAddress,
			Handler: router,
		}
		siblingsGroup.Go(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
			<-ctx.Done()
			return server.Shutdown(context.Background())
		})
		siblingsGroup.Go(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return util.StatusWrap(err, "HTTP server failure")
			}
			return nil
		})
		return nil
	})
}
