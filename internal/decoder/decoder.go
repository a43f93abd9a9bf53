// Package decoder defines the narrow capability interface the lazy
// session manager (internal/recording) needs from the binary-recording
// library. The real MF4/CAN decoder is an external collaborator kept
// behind this seam; this package only states the contract and ships an
// in-memory fake satisfying it, used by tests and by the development
// server when no real binding has registered itself.
package decoder

import "context"

// Channel identifies one signal's origin within a recording: the
// channel-group it belongs to and its index inside that group.
type Channel struct {
	Group    int
	Index    int
	Name     string
	Unit     string
	DType    string
}

// Recording is a narrow capability interface over one opened binary
// recording. Any backend satisfying it — the real decoder library, a test
// fake, or a future alternate format reader — can be swapped in behind
// internal/recording without that package changing.
type Recording interface {
	// Channels enumerates every channel in the recording without loading
	// any samples.
	Channels(ctx context.Context) ([]Channel, error)

	// Get loads one channel's (timestamps, samples) pair.
	Get(ctx context.Context, group, index int) (timestamps, samples []float64, err error)

	// Close releases any resources (file handles, mmaps) held open.
	Close() error
}

// Opener opens a recording file, optionally applying CAN bus-decoding
// against a database (DBC) file first.
type Opener interface {
	// Open opens the recording at path. If databasePath is non-empty, the
	// bus is decoded against that database before the channel catalog is
	// enumerated.
	Open(ctx context.Context, path, databasePath string) (Recording, error)
}

// Concatenator merges multiple recordings that share an (already
// filtered) channel catalog into one output file.
type Concatenator interface {
	// Concatenate synchronizes and merges inputs into outputPath, writing
	// the target format version given by formatVersion (e.g. "4.10").
	Concatenate(ctx context.Context, inputs []string, outputPath, formatVersion string) error
}

// Resampler offers the decoder's native resample-to-raster path used by
// the convert pipeline's fast path.
type Resampler interface {
	Resample(ctx context.Context, raster float64) (Recording, error)
}

// Filterer writes a copy of a recording containing only the named
// channels to outPath, used by the concatenate pipeline to
// materialize each input reduced to the intersected channel catalog
// before the real Concatenate call.
type Filterer interface {
	FilterChannels(ctx context.Context, names []string, outPath string) error
}
