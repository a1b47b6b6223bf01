package pcmdecoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/arung-agamani/soundhost/internal/model"
)

// ffmpegTargetFormat is the PCM layout this decoder asks ffmpeg to emit for
// any non-WAV source, so every compressed format (.mp3, .flac, .aac, .ogg)
// comes out through the same Read path as the native WAV decoder.
var ffmpegTargetFormat = model.WaveFormat{
	SampleRate:    44100,
	Channels:      2,
	BitsPerSample: 16,
	IsFloat:       false,
	IsBigEndian:   false,
	ChannelMask:   channelMaskFor(2),
}

// ffmpegSource streams raw PCM from a running ffmpeg process, draining
// stderr on a side goroutine and reading decoded PCM off stdout.
type ffmpegSource struct {
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// startFFmpegPCM spawns ffmpeg decoding path from startSeconds, emitting
// interleaved little-endian PCM in ffmpegTargetFormat on stdout.
func startFFmpegPCM(path string, startSeconds float64) (*ffmpegSource, error) {
	ctx, cancel := context.WithCancel(context.Background())

	args := []string{
		"-ss", strconv.FormatFloat(startSeconds, 'f', 3, 64),
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(ffmpegTargetFormat.Channels),
		"-ar", strconv.Itoa(ffmpegTargetFormat.SampleRate),
		"-vn",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("pcmdecoder: ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("pcmdecoder: ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("pcmdecoder: start ffmpeg: %w", err)
	}

	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				slog.Debug("pcmdecoder: ffmpeg", "output", string(buf[:n]))
			}
			if err != nil {
				return
			}
		}
	}()

	return &ffmpegSource{cancel: cancel, cmd: cmd, stdout: stdout}, nil
}

func (s *ffmpegSource) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Close terminates the ffmpeg process and releases its resources.
func (s *ffmpegSource) Close() error {
	s.cancel()
	_ = s.cmd.Wait()
	return nil
}

// probeDurationSeconds shells out to ffprobe to get a source's duration, used
// by Insert to size a synthesized PlayItem when no cuesheet applies.
func probeDurationSeconds(path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("pcmdecoder: ffprobe %s: %w (%s)", path, err, strings.TrimSpace(stderr.String()))
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("pcmdecoder: parse ffprobe duration: %w", err)
	}
	return d, nil
}
