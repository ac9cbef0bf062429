package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// FrameReader streams decoded rgb24 frames out of an ffmpeg process, one
// frame per Next call. The stream is finite and not restartable.
type FrameReader struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	frameSize int
	tail      *stderrTail
	wg        sync.WaitGroup
	waitOnce  sync.Once
	waitErr   error
}

// OpenFrameReader starts a decode process emitting raw frames on stdout.
// Geometry comes from the probed info and fixes the frame buffer size.
func (e *Executor) OpenFrameReader(ctx context.Context, input string, info *VideoInfo) (*FrameReader, error) {
	if input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid frame geometry %dx%d", info.Width, info.Height)
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	if e.threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", e.threads))
	}
	args = append(args,
		"-i", input,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)

	e.logger.Debug().
		Str("input", input).
		Strs("args", args).
		Msg("starting frame decoder")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start decoder: %w", err)
	}

	r := &FrameReader{
		cmd:       cmd,
		stdout:    stdout,
		frameSize: info.Width * info.Height * 3,
		tail:      &stderrTail{},
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			r.tail.add(line)
			e.logger.Debug().Str("ffmpeg", line).Msg("decoder output")
		}
	}()

	return r, nil
}

// Next returns the next frame as a fresh width*height*3 buffer. The caller
// owns the buffer; no buffer is reused across calls. io.EOF signals a
// cleanly exhausted stream.
func (r *FrameReader) Next() ([]byte, error) {
	buf := make([]byte, r.frameSize)
	if _, err := io.ReadFull(r.stdout, buf); err != nil {
		if errors.Is(err, io.EOF) {
			if werr := r.wait(); werr != nil {
				return nil, fmt.Errorf("decoder exited abnormally: %w (%s)", werr, r.tail)
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("truncated frame read: %w (%s)", err, r.tail)
	}
	return buf, nil
}

// Close releases the decode process. After a clean io.EOF this is a no-op;
// closing mid-stream tears the pipe down and reaps the process.
func (r *FrameReader) Close() error {
	_ = r.stdout.Close()
	r.wait()
	return nil
}

func (r *FrameReader) wait() error {
	r.waitOnce.Do(func() {
		r.wg.Wait()
		r.waitErr = r.cmd.Wait()
	})
	return r.waitErr
}
