package compose

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/titlecannon/internal/ffmpeg"
	"github.com/kikiluvv/titlecannon/internal/overlay"
)

var (
	// ErrStreamOpen marks input that cannot be opened as a decodable
	// video stream.
	ErrStreamOpen = errors.New("video stream could not be opened")
	// ErrFrameWrite marks a frame the encoder refused mid-stream.
	ErrFrameWrite = errors.New("frame write failed")
)

// Compositor burns a fading text overlay into every frame of a clip. One
// decoded frame is in flight at a time regardless of clip length.
type Compositor struct {
	logger zerolog.Logger
	exec   *ffmpeg.Executor
	style  overlay.Style
}

// Options selects the encode side of a composite pass.
type Options struct {
	Profile ffmpeg.Profile
	CRF     int
	Preset  string
}

// New creates a compositor rendering text with the given style.
func New(logger zerolog.Logger, exec *ffmpeg.Executor, style overlay.Style) *Compositor {
	return &Compositor{
		logger: logger.With().Str("component", "compose").Logger(),
		exec:   exec,
		style:  style,
	}
}

// Composite decodes input, blends the overlay into each frame at the fade
// schedule's opacity, and encodes the visual-only result to output. The
// returned descriptor is the single probe of the input; callers reuse it
// instead of probing again.
func (c *Compositor) Composite(ctx context.Context, input, output string, spec overlay.Spec, opts Options) (*ffmpeg.VideoInfo, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	info, err := c.exec.ProbeVideo(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamOpen, err)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%w: no usable video geometry in %s", ErrStreamOpen, input)
	}
	if info.FrameCount == 0 {
		return nil, fmt.Errorf("%w: %s contains no video frames", ErrStreamOpen, input)
	}

	schedule := overlay.NewFadeSchedule(info.FrameCount, info.FPS)
	layer, err := overlay.RenderLayer(spec, c.style, info.Width, info.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to render overlay: %w", err)
	}

	c.logger.Info().
		Str("input", input).
		Int("frames", info.FrameCount).
		Int("fps", schedule.FPS).
		Str("text", spec.Primary).
		Msg("compositing overlay")

	reader, err := c.exec.OpenFrameReader(ctx, input, info)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamOpen, err)
	}
	defer reader.Close()

	writer, err := c.exec.OpenFrameWriter(ctx, output, ffmpeg.EncodeOptions{
		Width:   info.Width,
		Height:  info.Height,
		FPS:     info.FPS,
		Profile: opts.Profile,
		CRF:     opts.CRF,
		Preset:  opts.Preset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}
	defer writer.Close()

	frame := 0
	for {
		buf, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: decode stopped at frame %d: %v", ErrStreamOpen, frame, err)
		}

		layer.Blend(buf, info.Width, info.Height, schedule.Opacity(frame))

		if err := writer.Write(buf); err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", ErrFrameWrite, frame, err)
		}
		frame++

		if frame%schedule.FPS == 0 {
			c.logger.Info().
				Int("frame", frame).
				Int("total", info.FrameCount).
				Int("percent", frame*100/info.FrameCount).
				Msg("compositing progress")
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameWrite, err)
	}

	if frame != info.FrameCount {
		c.logger.Warn().
			Int("decoded", frame).
			Int("probed", info.FrameCount).
			Msg("decoded frame count drifted from probe")
	}

	c.logger.Info().
		Int("frames", frame).
		Str("output", output).
		Msg("composite complete")

	return info, nil
}
