package pcmdecoder

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/arung-agamani/soundhost/internal/model"
	"github.com/dhowden/tag"
)

// applyTags reads ID3/FLAC/OGG/MP4 tag metadata from path and populates it
// on item. Tag read failures are non-fatal: the item keeps whatever
// defaults the caller already set (e.g. a filename-derived title).
func applyTags(item *model.PlayItem, path string) {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("pcmdecoder: could not open file for metadata", "path", path, "error", err)
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		slog.Debug("pcmdecoder: could not read tags", "path", path, "error", err)
		return
	}

	if m.Title() != "" {
		item.SetMeta("title", m.Title())
	}
	if m.Artist() != "" {
		item.SetMeta("artist", m.Artist())
	}
	if m.Album() != "" {
		item.SetMeta("album", m.Album())
	}
	if m.Genre() != "" {
		item.SetMeta("genre", m.Genre())
	}
	if m.Year() != 0 {
		item.SetMeta("year", strconv.Itoa(m.Year()))
	}
	if num, _ := m.Track(); num != 0 {
		item.SetMeta("track", strconv.Itoa(num))
	}
}

// tagReadFrom exposes dhowden/tag's raw frame map so Insert can look for a
// non-standard embedded "cuesheet" frame without duplicating ReadFrom's
// format sniffing.
func tagReadFrom(f *os.File) (map[string]interface{}, error) {
	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}
	return m.Raw(), nil
}
