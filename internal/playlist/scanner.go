package playlist

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arung-agamani/soundhost/internal/decoder"
	"github.com/arung-agamani/soundhost/internal/model"
)

// ScanResult holds the outcome of scanning a music directory.
type ScanResult struct {
	// Items contains every PlayItem produced by a decoder's Insert across all
	// discovered files, sorted by source file path.
	Items []*model.PlayItem
	// Errors maps file paths to errors encountered while probing them. These
	// are non-fatal; the scan continues past individual file failures.
	Errors map[string]error
}

// ScanMusicDirectory walks dir recursively and, for every file whose
// extension a decoder in decoders claims via Extensions(), calls that
// decoder's Insert to produce one or more PlayItems (embedded cuesheet,
// sibling cuesheet, or a single synthesized item). Files no decoder claims
// are skipped silently.
func ScanMusicDirectory(dir string, decoders []decoder.Plugin) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("playlist: cannot access music directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("playlist: %q is not a directory", dir)
	}

	result := &ScanResult{
		Items:  make([]*model.PlayItem, 0),
		Errors: make(map[string]error),
	}

	err = filepath.Walk(dir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			result.Errors[path] = walkErr
			slog.Warn("playlist: error accessing path during scan", "path", path, "error", walkErr)
			return nil
		}
		if fi.IsDir() {
			return nil
		}

		plug := findDecoderFor(decoders, path)
		if plug == nil {
			return nil
		}

		items, err := plug.Insert(nil, path)
		if err != nil {
			result.Errors[path] = err
			slog.Warn("playlist: insert failed", "path", path, "error", err)
			return nil
		}

		result.Items = append(result.Items, items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("playlist: walk %q: %w", dir, err)
	}

	sort.Slice(result.Items, func(i, j int) bool {
		return result.Items[i].Locator < result.Items[j].Locator
	})

	slog.Info("playlist: music directory scan complete",
		"directory", dir,
		"items_found", len(result.Items),
		"errors", len(result.Errors),
	)

	return result, nil
}

// findDecoderFor returns the first decoder in decoders that claims path's
// extension, or nil if none does.
func findDecoderFor(decoders []decoder.Plugin, path string) decoder.Plugin {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return nil
	}
	for _, d := range decoders {
		if decoder.CanDecode(d, ext) {
			return d
		}
	}
	return nil
}

// BuildDefaultList scans dir and returns a single List containing every
// discovered PlayItem in sorted file order. Used for first-run
// initialisation when no playlist has been constructed yet.
func BuildDefaultList(dir string, decoders []decoder.Plugin) (*List, error) {
	scanResult, err := ScanMusicDirectory(dir, decoders)
	if err != nil {
		return nil, err
	}
	if len(scanResult.Items) == 0 {
		return nil, fmt.Errorf("playlist: no supported audio files found in %q", dir)
	}

	l := New("Default")
	l.Add(scanResult.Items...)

	slog.Info("playlist: default list built", "name", l.Name, "items", l.Count())
	return l, nil
}
