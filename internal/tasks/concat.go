package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/fieldtrace/signalstudio/internal/decoder"
)

// concatDenyPattern excludes the same kind of bookkeeping channels the
// session manager's signal listing hides by default — time/timestamp/aux/crc/counter — from
// the intersected catalog, since they're meaningless once recordings are
// merged onto one timeline.
var concatDenyPattern = regexp.MustCompile(`(?i)^(time|timestamp|aux|crc|counter)`)

// ConcatResult is what a successful concatenate run produces.
type ConcatResult struct {
	OutputPath string
	Duration   float64
}

// concatenateRecordings implements the concatenate.mf4 pipeline:
// intersect channel catalogs (minus the deny-listed bookkeeping channels),
// filter each input down to that intersection into a temp file, call the
// decoder's native concatenate, then read the merged output back to
// compute its duration. Temp files are always cleaned up, success or
// failure.
func concatenateRecordings(ctx context.Context, opener decoder.Opener, concat decoder.Concatenator, inputPaths []string, outputPath, workDir string, onProgress ProgressFunc) (*ConcatResult, error) {
	onProgress(5, "Opening…")

	recs := make([]decoder.Recording, 0, len(inputPaths))
	defer func() {
		for _, r := range recs {
			_ = r.Close()
		}
	}()

	var catalogs [][]string
	for _, path := range inputPaths {
		rec, err := opener.Open(ctx, path, "")
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		recs = append(recs, rec)
		channels, err := rec.Channels(ctx)
		if err != nil {
			return nil, fmt.Errorf("enumerate channels of %s: %w", path, err)
		}
		catalogs = append(catalogs, filterDenyList(decoder.SortedChannelNames(channels)))
	}
	onProgress(20, "Decoding CAN…")

	intersection := intersectAll(catalogs)
	if len(intersection) == 0 {
		return nil, fmt.Errorf("inputs share no common channels")
	}

	tempPaths := make([]string, len(inputPaths))
	for i, rec := range recs {
		filterer, ok := rec.(decoder.Filterer)
		if !ok {
			cleanupAll(tempPaths[:i])
			return nil, fmt.Errorf("recording %s cannot be channel-filtered", inputPaths[i])
		}
		tmp := filepath.Join(workDir, fmt.Sprintf("concat-input-%d.tmp", i))
		if err := filterer.FilterChannels(ctx, intersection, tmp); err != nil {
			cleanupAll(tempPaths[:i])
			return nil, fmt.Errorf("filter %s: %w", inputPaths[i], err)
		}
		tempPaths[i] = tmp
	}
	defer cleanupAll(tempPaths)

	onProgress(60, "Extraction …")
	if err := concat.Concatenate(ctx, tempPaths, outputPath, "4.10"); err != nil {
		return nil, fmt.Errorf("concatenate: %w", err)
	}

	onProgress(90, "Writing CSV…")
	merged, err := opener.Open(ctx, outputPath, "")
	if err != nil {
		return nil, fmt.Errorf("reopen merged output: %w", err)
	}
	defer merged.Close()

	duration, err := mergedDuration(ctx, merged, intersection[0])
	if err != nil {
		return nil, err
	}

	onProgress(100, "Done")
	return &ConcatResult{OutputPath: outputPath, Duration: duration}, nil
}

func filterDenyList(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !concatDenyPattern.MatchString(n) {
			out = append(out, n)
		}
	}
	return out
}

// intersectAll returns the set intersection of every catalog, in sorted
// order for determinism.
func intersectAll(catalogs [][]string) []string {
	if len(catalogs) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, cat := range catalogs {
		seen := map[string]bool{}
		for _, name := range cat {
			if !seen[name] {
				counts[name]++
				seen[name] = true
			}
		}
	}
	var out []string
	for name, c := range counts {
		if c == len(catalogs) {
			out = append(out, name)
		}
	}
	return decoder.SortedChannelNames(namesToChannels(out))
}

func namesToChannels(names []string) []decoder.Channel {
	chans := make([]decoder.Channel, len(names))
	for i, n := range names {
		chans[i] = decoder.Channel{Name: n}
	}
	return chans
}

func mergedDuration(ctx context.Context, rec decoder.Recording, anyChannelName string) (float64, error) {
	channels, err := rec.Channels(ctx)
	if err != nil {
		return 0, fmt.Errorf("enumerate merged channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Name != anyChannelName {
			continue
		}
		ts, _, err := rec.Get(ctx, ch.Group, ch.Index)
		if err != nil || len(ts) == 0 {
			return 0, fmt.Errorf("read merged channel %s: %w", anyChannelName, err)
		}
		return ts[len(ts)-1] - ts[0], nil
	}
	return 0, fmt.Errorf("merged recording lost channel %s", anyChannelName)
}

func cleanupAll(paths []string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}
