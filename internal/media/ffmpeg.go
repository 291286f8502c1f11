package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maauso/motiontransfer/internal/command"
	"github.com/maauso/motiontransfer/internal/crop"
)

// Static errors for media operations.
var (
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrEmptyMedia is returned when a media file reports no duration.
	ErrEmptyMedia = errors.New("media file has no duration")
)

// CroppedSuffix is appended to the driving video name to form the cropped video name.
const CroppedSuffix = "_cropped"

// Quality bounds of the x264 constant rate factor.
const (
	MinQuality = 0
	MaxQuality = 51

	// DefaultQuality keeps the crop visually lossless.
	DefaultQuality = 18
)

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
	runner      command.Runner
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegProcessor(ffmpegPath, ffprobePath string, runner command.Runner) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if runner == nil {
		runner = command.NewExecRunner()
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, runner: runner}
}

// CropCommand builds the crop-apply command:
//
//	ffmpeg -i "<src>" -ss <start> -t <duration> -filter:v "<filter>" -c:v libx264 -crf <q> -preset slow -pix_fmt yuv420p -y "<dst>"
func (p *FFmpegProcessor) CropCommand(src, dst string, s crop.Suggestion, quality int) *command.Line {
	return command.New(p.ffmpegPath).
		QuotedFlag("-i", src).
		Flag("-ss", s.Start).
		Flag("-t", s.Duration).
		QuotedFlag("-filter:v", s.Filter).
		Flag("-c:v", "libx264").
		Flag("-crf", strconv.Itoa(quality)).
		Flag("-preset", "slow").
		Flag("-pix_fmt", "yuv420p").
		Arg("-y"). // Overwrite a cropped video left by an earlier run
		Quoted(dst)
}

// MediaDuration returns the duration in seconds of a media file.
// It uses ffprobe to extract the duration metadata.
func (p *FFmpegProcessor) MediaDuration(ctx context.Context, path string) (float64, error) {
	line := command.New(p.ffprobePath).
		Flag("-v", "error").
		Flag("-show_entries", "format=duration").
		Flag("-of", "default=noprint_wrappers=1:nokey=1").
		Quoted(path)

	res, err := p.runner.Run(ctx, line)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w", ErrFFprobeExecution, err)
	}
	if !res.Success() {
		return 0, fmt.Errorf("%w: exit %d, stderr: %s", ErrFFprobeExecution, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	raw := strings.TrimSpace(res.Stdout)
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyMedia, path)
	}
	return duration, nil
}

// CroppedPath derives the cropped video path from the driving video path by
// appending CroppedSuffix before the extension. The result is always an .mp4
// file next to the driving video.
func CroppedPath(driving string) string {
	base := strings.TrimSuffix(driving, filepath.Ext(driving))
	return base + CroppedSuffix + ".mp4"
}

// ValidQuality reports whether q is a valid x264 constant rate factor.
func ValidQuality(q int) bool {
	return q >= MinQuality && q <= MaxQuality
}
