// Package cuesheet implements the minimal cue-sheet grammar the decoder
// contract's insert operation needs to slice a single audio file into
// multiple sample-accurate PlayItems. It is deliberately not a general cue
// parser: only TRACK, INDEX 01, TITLE and PERFORMER are recognised, the
// fields needed to build sub-range PlayItems.
package cuesheet

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arung-agamani/soundhost/internal/model"
)

// Entry is one TRACK block of a parsed cue sheet.
type Entry struct {
	Number      int
	Title       string
	Performer   string
	IndexFrames int64 // INDEX 01 position, in frames (1 frame = 1/75 s)
}

// Sheet is a fully parsed cue sheet: album-level metadata plus its tracks in
// file order.
type Sheet struct {
	Performer string
	Title     string
	Tracks    []Entry
}

// errNoTracks is returned when a cue sheet has no TRACK blocks; the caller
// should fall back to the next tier of insert's probing order.
var errNoTracks = fmt.Errorf("cuesheet: no TRACK blocks found")

// Parse reads a cue sheet from r.
func Parse(r io.Reader) (*Sheet, error) {
	sc := bufio.NewScanner(r)
	sheet := &Sheet{}
	var cur *Entry

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "PERFORMER "):
			v := unquote(line[len("PERFORMER "):])
			if cur != nil {
				cur.Performer = v
			} else {
				sheet.Performer = v
			}
		case strings.HasPrefix(upper, "TITLE "):
			v := unquote(line[len("TITLE "):])
			if cur != nil {
				cur.Title = v
			} else {
				sheet.Title = v
			}
		case strings.HasPrefix(upper, "TRACK "):
			if cur != nil {
				sheet.Tracks = append(sheet.Tracks, *cur)
			}
			fields := strings.Fields(line)
			num := 0
			if len(fields) >= 2 {
				num, _ = strconv.Atoi(fields[1])
			}
			cur = &Entry{Number: num}
		case strings.HasPrefix(upper, "INDEX "):
			fields := strings.Fields(line)
			if cur != nil && len(fields) >= 3 && fields[1] == "01" {
				frames, err := parseMSF(fields[2])
				if err == nil {
					cur.IndexFrames = frames
				}
			}
		}
	}
	if cur != nil {
		sheet.Tracks = append(sheet.Tracks, *cur)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("cuesheet: scan: %w", err)
	}
	if len(sheet.Tracks) == 0 {
		return nil, errNoTracks
	}
	return sheet, nil
}

// parseMSF parses a cue-sheet MM:SS:FF timestamp into CD frames
// (75 frames/second).
func parseMSF(s string) (int64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("cuesheet: bad timestamp %q", s)
	}
	m, err1 := strconv.Atoi(parts[0])
	sec, err2 := strconv.Atoi(parts[1])
	f, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("cuesheet: bad timestamp %q", s)
	}
	return int64(m*60+sec)*75 + int64(f), nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// BuildPlayItems turns a parsed sheet into sample-accurate sub-range
// PlayItems against a decoded source of totalSamples at the given format.
// Ranges are [start, end] inclusive.
func (s *Sheet) BuildPlayItems(locator, decoderID, fileType string, totalSamples int64, format model.WaveFormat) []*model.PlayItem {
	items := make([]*model.PlayItem, 0, len(s.Tracks))
	base := model.NewPlayItem(locator, decoderID, fileType, totalSamples, format)

	for i, t := range s.Tracks {
		start := framesToSamples(t.IndexFrames, format.SampleRate)
		var end int64
		if i+1 < len(s.Tracks) {
			end = framesToSamples(s.Tracks[i+1].IndexFrames, format.SampleRate) - 1
		} else {
			end = totalSamples - 1
		}
		if end < start {
			end = start
		}
		it := base.WithRange(start, end)
		title := t.Title
		if title == "" {
			title = s.Title
		}
		if title != "" {
			it.SetMeta("title", title)
		}
		performer := t.Performer
		if performer == "" {
			performer = s.Performer
		}
		if performer != "" {
			it.SetMeta("artist", performer)
		}
		items = append(items, it)
	}
	return items
}

func framesToSamples(frames int64, sampleRate int) int64 {
	return frames * int64(sampleRate) / 75
}
