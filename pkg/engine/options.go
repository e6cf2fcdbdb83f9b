package engine

import "context"

// Adapter persists and restores the memory backend's index metadata so a
// process restart can rebuild the index without re-scanning page contents.
// It is a configuration seam, not a behavioral variation: every adapter
// implementation must be functionally interchangeable.
type Adapter interface {
	// SaveDatabase persists the encoded index metadata.
	SaveDatabase(ctx context.Context, blob []byte) error

	// LoadDatabase returns the most recently persisted snapshot, or
	// ErrNoSnapshot if none exists.
	LoadDatabase(ctx context.Context) ([]byte, error)
}

// HighReliabilityOptions configures the admission filter.
type HighReliabilityOptions struct {
	// ReliabilityThreshold is the number of *additional* matching
	// observations beyond the first required before a version is admitted.
	ReliabilityThreshold int
}

// PersistenceOptions configures the memory backend's metadata persistence.
type PersistenceOptions struct {
	// Adapter implements SaveDatabase/LoadDatabase. A no-op adapter is used
	// if this is nil.
	Adapter Adapter
}

// Options configures Engine.Init.
type Options struct {
	// CachePath is the filesystem backend's root directory. The memory
	// backend ignores it and does not create it.
	CachePath string

	// PageSize is the memory backend's page size in bytes. Default 1 MiB.
	PageSize uint64

	// MinFreeBlockSize is the memory backend's minimum tracked free block
	// size in bytes. Default 1 KiB.
	MinFreeBlockSize uint64

	// PersistenceOptions configures the memory backend's index persistence.
	PersistenceOptions PersistenceOptions

	// HighReliability and HighReliabilityOptions describe the admission
	// filter. Neither backend's Init reads them: the filter is enabled and
	// its threshold set only by wrapping an engine with WithReliability.
	HighReliability bool

	// HighReliabilityOptions carries the admission filter's threshold.
	HighReliabilityOptions HighReliabilityOptions
}

const (
	// DefaultPageSize is the memory backend's default page size (1 MiB).
	DefaultPageSize = 1 << 20

	// DefaultMinFreeBlockSize is the memory backend's default minimum
	// tracked free block size (1 KiB).
	DefaultMinFreeBlockSize = 1 << 10
)

// WithDefaults returns a copy of opts with zero-valued fields replaced by
// their defaults.
func (opts Options) WithDefaults() Options {
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MinFreeBlockSize == 0 {
		opts.MinFreeBlockSize = DefaultMinFreeBlockSize
	}
	return opts
}
