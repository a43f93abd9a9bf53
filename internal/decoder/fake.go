package decoder

import (
	"context"
	"fmt"
	"sort"
)

// FakeChannel is one channel's full data in the in-memory fake.
type FakeChannel struct {
	Channel
	Timestamps []float64
	Samples    []float64
	// FailOnGet, when true, makes Get return an error for this channel
	// only — used to exercise the session manager's per-channel
	// skip-not-fail recovery.
	FailOnGet bool
}

// FakeRecording is a deterministic in-memory Recording used by tests and
// by the development server when no real decoder binding is registered.
type FakeRecording struct {
	channels []FakeChannel
	closed   bool
	// owner, when set by FakeOpener.Open/Register, is where FilterChannels
	// registers its filtered output so it can be reopened by path.
	owner *FakeOpener
	// FailOpen, when set on the FakeOpener that produced this value, is
	// surfaced by Open rather than by this type.
}

// NewFakeRecording builds a fake recording from a channel set.
func NewFakeRecording(channels []FakeChannel) *FakeRecording {
	return &FakeRecording{channels: channels}
}

func (r *FakeRecording) Channels(ctx context.Context) ([]Channel, error) {
	out := make([]Channel, len(r.channels))
	for i, c := range r.channels {
		out[i] = c.Channel
	}
	return out, nil
}

func (r *FakeRecording) Get(ctx context.Context, group, index int) ([]float64, []float64, error) {
	for _, c := range r.channels {
		if c.Group == group && c.Index == index {
			if c.FailOnGet {
				return nil, nil, fmt.Errorf("decode error: channel %d/%d", group, index)
			}
			return c.Timestamps, c.Samples, nil
		}
	}
	return nil, nil, fmt.Errorf("channel %d/%d not found", group, index)
}

func (r *FakeRecording) Close() error {
	r.closed = true
	return nil
}

// Closed reports whether Close has been called (test helper).
func (r *FakeRecording) Closed() bool { return r.closed }

// Resample satisfies Resampler by linearly resampling every channel onto a
// uniform raster, letting tests exercise the convert pipeline's native-
// resample fast path without a real decoder.
func (r *FakeRecording) Resample(ctx context.Context, raster float64) (Recording, error) {
	out := make([]FakeChannel, len(r.channels))
	for i, c := range r.channels {
		if len(c.Timestamps) == 0 {
			out[i] = c
			continue
		}
		start, end := c.Timestamps[0], c.Timestamps[len(c.Timestamps)-1]
		var ts, vs []float64
		for t := start; t <= end; t += raster {
			ts = append(ts, t)
			vs = append(vs, interpLinear(c.Timestamps, c.Samples, t))
		}
		out[i] = FakeChannel{Channel: c.Channel, Timestamps: ts, Samples: vs}
	}
	return NewFakeRecording(out), nil
}

func interpLinear(xs, ys []float64, x float64) float64 {
	if len(xs) == 1 {
		return ys[0]
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] >= x {
			span := xs[i] - xs[i-1]
			if span == 0 {
				return ys[i-1]
			}
			frac := (x - xs[i-1]) / span
			return ys[i-1] + frac*(ys[i]-ys[i-1])
		}
	}
	return ys[len(ys)-1]
}

// FakeOpener is an Opener backed by a fixed registry of recordings keyed
// by path, for use in tests.
type FakeOpener struct {
	recordings map[string]*FakeRecording
	failPaths  map[string]bool
}

// NewFakeOpener constructs an empty FakeOpener.
func NewFakeOpener() *FakeOpener {
	return &FakeOpener{
		recordings: make(map[string]*FakeRecording),
		failPaths:  make(map[string]bool),
	}
}

// Register associates a path with a recording Open will return.
func (o *FakeOpener) Register(path string, rec *FakeRecording) {
	rec.owner = o
	o.recordings[path] = rec
}

// FilterChannels satisfies Filterer: it writes a copy of r containing
// only the named channels and registers it with r's owning opener under
// outPath, so a later Open(outPath) reads back the filtered recording.
func (r *FakeRecording) FilterChannels(ctx context.Context, names []string, outPath string) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var kept []FakeChannel
	for _, c := range r.channels {
		if want[c.Name] {
			kept = append(kept, c)
		}
	}
	if r.owner == nil {
		return fmt.Errorf("filter channels: recording has no owning registry")
	}
	r.owner.Register(outPath, NewFakeRecording(kept))
	return nil
}

// FailOn makes Open return an error for the given path, simulating a
// decoder exception on open, which must fail session creation with a
// user-safe error.
func (o *FakeOpener) FailOn(path string) {
	o.failPaths[path] = true
}

func (o *FakeOpener) Open(ctx context.Context, path, databasePath string) (Recording, error) {
	if o.failPaths[path] {
		return nil, fmt.Errorf("simulated decoder failure opening %s", path)
	}
	rec, ok := o.recordings[path]
	if !ok {
		return nil, fmt.Errorf("no recording registered for %s", path)
	}
	return rec, nil
}

// SortedChannelNames is a small test helper: deterministic channel name
// order regardless of map iteration elsewhere.
func SortedChannelNames(channels []Channel) []string {
	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names
}

// FakeConcatenator is a Concatenator test double: it merges whichever
// recording the supplied Opener resolves for each input path by unioning
// their channels (last input wins on a name collision), and registers the
// merged result with that same opener under outputPath so a subsequent
// Open call can read it back.
type FakeConcatenator struct {
	Opener *FakeOpener
}

func (c *FakeConcatenator) Concatenate(ctx context.Context, inputs []string, outputPath, formatVersion string) error {
	merged := map[string]FakeChannel{}
	for _, path := range inputs {
		rec, ok := c.Opener.recordings[path]
		if !ok {
			return fmt.Errorf("concatenate: no recording registered for %s", path)
		}
		for _, ch := range rec.channels {
			merged[ch.Name] = ch
		}
	}
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)
	channels := make([]FakeChannel, len(names))
	for i, name := range names {
		channels[i] = merged[name]
	}
	c.Opener.Register(outputPath, NewFakeRecording(channels))
	return nil
}
