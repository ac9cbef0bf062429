package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// FrameWriter streams raw rgb24 frames into an encoding ffmpeg process.
// Close flushes the stream and reports the encoder's exit status.
type FrameWriter struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	frameSize int
	frames    int
	tail      *stderrTail
	wg        sync.WaitGroup
	waitOnce  sync.Once
	waitErr   error
}

// OpenFrameWriter starts an encode process consuming raw frames on stdin
// and writing the encoded stream to output. The output carries no audio.
func (e *Executor) OpenFrameWriter(ctx context.Context, output string, opts EncodeOptions) (*FrameWriter, error) {
	if err := validateEncodeOptions(opts); err != nil {
		return nil, fmt.Errorf("invalid encode options: %w", err)
	}

	crf := opts.CRF
	if crf == 0 {
		crf = DefaultCRF
	}
	preset := opts.Preset
	if preset == "" {
		preset = DefaultPreset
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if e.threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", e.threads))
	}
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", strconv.FormatFloat(opts.FPS, 'f', -1, 64),
		"-i", "pipe:0",
		"-an",
		"-c:v", opts.Profile.VideoCodec,
		"-crf", fmt.Sprintf("%d", crf),
	)
	if opts.Profile.VideoCodec == "libx264" {
		args = append(args, "-preset", preset)
	}
	args = append(args, "-pix_fmt", opts.Profile.PixelFormat)
	args = append(args, opts.Profile.ExtraArgs...)
	args = append(args, "-progress", "pipe:2", output)

	e.logger.Debug().
		Str("output", output).
		Str("codec", opts.Profile.VideoCodec).
		Strs("args", args).
		Msg("starting frame encoder")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}

	w := &FrameWriter{
		cmd:       cmd,
		stdin:     stdin,
		frameSize: opts.Width * opts.Height * 3,
		tail:      &stderrTail{},
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		e.streamOutput(stderr, opts.ProgressFunc, func(line string) {
			if !isProgressLine(line) {
				w.tail.add(line)
			}
			e.logger.Debug().Str("ffmpeg", line).Msg("encoder output")
		})
	}()

	return w, nil
}

// Write streams one raw frame into the encoder.
func (w *FrameWriter) Write(frame []byte) error {
	if len(frame) != w.frameSize {
		return fmt.Errorf("frame size mismatch: got %d bytes, want %d", len(frame), w.frameSize)
	}
	if _, err := w.stdin.Write(frame); err != nil {
		return fmt.Errorf("frame write failed: %w (%s)", err, w.tail)
	}
	w.frames++
	return nil
}

// Close ends the input stream and waits for the encoder to finish. The
// returned error is the encoder's verdict on the whole stream.
func (w *FrameWriter) Close() error {
	if err := w.wait(); err != nil {
		return fmt.Errorf("encoder failed: %w (%s)", err, w.tail)
	}
	return nil
}

// Frames reports how many frames have been accepted so far.
func (w *FrameWriter) Frames() int {
	return w.frames
}

func (w *FrameWriter) wait() error {
	w.waitOnce.Do(func() {
		_ = w.stdin.Close()
		w.wg.Wait()
		w.waitErr = w.cmd.Wait()
	})
	return w.waitErr
}

func validateEncodeOptions(opts EncodeOptions) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("frame geometry is required")
	}
	if opts.FPS <= 0 {
		return fmt.Errorf("frame rate must be positive")
	}
	if opts.Profile.VideoCodec == "" {
		return fmt.Errorf("output profile is required")
	}
	if opts.CRF < 0 || opts.CRF > 51 {
		return fmt.Errorf("CRF must be between 0 and 51, got %d", opts.CRF)
	}
	return nil
}

// isProgressLine reports whether a stderr line belongs to the -progress
// key=value block rather than to diagnostic output.
func isProgressLine(line string) bool {
	for _, prefix := range []string{
		"frame=", "fps=", "bitrate=", "total_size=", "out_time",
		"dup_frames=", "drop_frames=", "speed=", "progress=", "stream_0_0_q=",
	} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
