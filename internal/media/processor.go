// Package media builds ffmpeg invocations for the driving video and inspects
// the artifacts they produce.
package media

import (
	"context"

	"github.com/maauso/motiontransfer/internal/command"
	"github.com/maauso/motiontransfer/internal/crop"
)

// Processor defines the video operations used by the pipeline.
type Processor interface {
	// CropCommand builds the command that cuts and crops src into dst using a
	// crop suggestion and an x264 quality value (0-51, lower is better).
	CropCommand(src, dst string, s crop.Suggestion, quality int) *command.Line

	// MediaDuration returns the duration in seconds of a media file.
	MediaDuration(ctx context.Context, path string) (float64, error)
}
