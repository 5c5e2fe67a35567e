package mock

//go:generate mockgen -package mock -destination aliases.go github.com/buildbarn/bb-cxl-memory/internal/mock/aliases UUIDGenerator
//go:generate mockgen -package mock -destination device.go github.com/buildbarn/bb-cxl-memory/pkg/device MemoryBacking
//go:generate mockgen -package mock -destination extent.go github.com/buildbarn/bb-cxl-memory/pkg/extent ExtentAllocator
