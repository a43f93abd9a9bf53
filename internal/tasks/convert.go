package tasks

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/fieldtrace/signalstudio/internal/decoder"
)

// defaultConvertRaster is the uniform-time raster (seconds) used when the
// caller supplies none.
const defaultConvertRaster = 0.01

// ConvertOptions configures one convert run.
type ConvertOptions struct {
	// Raster, when > 0, is the resample step in seconds; zero or negative
	// resolves to defaultConvertRaster for both the native resample and the
	// manual fallback.
	Raster float64
}

// ProgressFunc reports a monotonically increasing percent and a short
// human message for a long-running task phase.
type ProgressFunc func(percent int, message string)

// convertToCSV implements the convert.mf4→csv pipeline: native
// resample when possible, a manual per-channel interpolation fallback
// otherwise, dtype-narrowed columns, and a chunked semicolon-separated
// write.
func convertToCSV(ctx context.Context, rec decoder.Recording, opts ConvertOptions, out io.Writer, onProgress ProgressFunc) error {
	onProgress(5, "Opening…")

	channels, err := rec.Channels(ctx)
	if err != nil {
		return fmt.Errorf("enumerate channels: %w", err)
	}
	onProgress(15, "Decoding CAN…")

	raster := opts.Raster
	if raster <= 0 {
		raster = defaultConvertRaster
	}

	timestamps, cols, err := resampleAligned(ctx, rec, channels, raster)
	if err != nil {
		return fmt.Errorf("resample: %w", err)
	}
	onProgress(55, "Extraction …")

	for i := range cols {
		cols[i].dtype = ResolveColumnDType(cols[i].values)
	}

	onProgress(80, "Writing CSV…")
	if err := writeCSV(out, timestamps, cols); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	onProgress(100, "Done")
	return nil
}

// resampleAligned tries the decoder's native Resample first; if the
// Recording doesn't support it or the call fails, it falls back to a
// manual per-channel select-and-interpolate onto a uniform raster.
func resampleAligned(ctx context.Context, rec decoder.Recording, channels []decoder.Channel, raster float64) ([]float64, []column, error) {
	if resampler, ok := rec.(decoder.Resampler); ok {
		resampled, err := resampler.Resample(ctx, raster)
		if err == nil {
			return extractAligned(ctx, resampled, channels)
		}
	}
	return manualResample(ctx, rec, channels, raster)
}

// extractAligned reads every channel from an already-resampled recording,
// assuming all channels now share one timestamp axis (the first
// successfully read channel's).
func extractAligned(ctx context.Context, rec decoder.Recording, channels []decoder.Channel) ([]float64, []column, error) {
	names := decoder.SortedChannelNames(channels)
	byName := map[string]decoder.Channel{}
	for _, c := range channels {
		byName[c.Name] = c
	}

	var timestamps []float64
	cols := make([]column, 0, len(names))
	for _, name := range names {
		ch := byName[name]
		ts, vs, err := rec.Get(ctx, ch.Group, ch.Index)
		if err != nil {
			continue // per-channel decode failure is skipped, not fatal
		}
		if timestamps == nil {
			timestamps = ts
		}
		cols = append(cols, column{name: name, values: vs})
	}
	if timestamps == nil {
		return nil, nil, fmt.Errorf("no channel could be read")
	}
	return timestamps, cols, nil
}

// manualResample interpolates each channel independently onto a shared
// uniform raster spanning the union of every channel's time range.
func manualResample(ctx context.Context, rec decoder.Recording, channels []decoder.Channel, raster float64) ([]float64, []column, error) {
	names := decoder.SortedChannelNames(channels)
	byName := map[string]decoder.Channel{}
	for _, c := range channels {
		byName[c.Name] = c
	}

	type raw struct {
		name   string
		ts, vs []float64
	}
	var series []raw
	tmin, tmax := 0.0, 0.0
	first := true
	for _, name := range names {
		ch := byName[name]
		ts, vs, err := rec.Get(ctx, ch.Group, ch.Index)
		if err != nil || len(ts) == 0 {
			continue
		}
		series = append(series, raw{name: name, ts: ts, vs: vs})
		if first || ts[0] < tmin {
			tmin = ts[0]
		}
		if first || ts[len(ts)-1] > tmax {
			tmax = ts[len(ts)-1]
		}
		first = false
	}
	if len(series) == 0 {
		return nil, nil, fmt.Errorf("no channel could be read")
	}

	var timestamps []float64
	for t := tmin; t <= tmax; t += raster {
		timestamps = append(timestamps, t)
	}

	sort.Slice(series, func(i, j int) bool { return series[i].name < series[j].name })
	cols := make([]column, len(series))
	for i, s := range series {
		values := make([]float64, len(timestamps))
		for j, t := range timestamps {
			values[j] = linearAt(s.ts, s.vs, t)
		}
		cols[i] = column{name: s.name, values: values}
	}
	return timestamps, cols, nil
}

// linearAt linearly interpolates (xs, ys) at x, clamping to the nearest
// endpoint outside the series' own range.
func linearAt(xs, ys []float64, x float64) float64 {
	if len(xs) == 1 {
		return ys[0]
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	lo, hi := 0, len(xs)-1
	for lo < hi-1 {
		mid := (lo + hi) / 2
		if xs[mid] <= x {
			lo = mid
		} else {
			hi = mid
		}
	}
	span := xs[hi] - xs[lo]
	if span == 0 {
		return ys[lo]
	}
	frac := (x - xs[lo]) / span
	return ys[lo] + frac*(ys[hi]-ys[lo])
}
