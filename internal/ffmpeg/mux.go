package ffmpeg

import (
	"context"
	"fmt"
)

// MuxAudio copies the video stream from visual and the first audio stream
// from original into a single container at output. The video is never
// re-encoded; only the audio passes through the profile's codec.
func (e *Executor) MuxAudio(ctx context.Context, visual, original, output string, profile Profile, progressFunc ProgressFunc) error {
	if visual == "" || original == "" || output == "" {
		return fmt.Errorf("visual, original and output paths are required")
	}
	if profile.AudioCodec == "" {
		return fmt.Errorf("profile %q does not mux audio", profile.Name)
	}

	args := []string{
		"-i", visual,
		"-i", original,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", profile.AudioCodec,
		"-b:a", DefaultAudioBitrate,
		"-shortest",
	}
	args = append(args, profile.ExtraArgs...)
	args = append(args, output)

	e.logger.Debug().
		Str("visual", visual).
		Str("original", original).
		Str("output", output).
		Msg("muxing audio track")

	return e.Run(ctx, RunOptions{
		Args:            args,
		ProgressHandler: progressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("mux output")
		},
	})
}
