package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// TestResults stores results from all tests for final summary
type TestResults struct {
	ExecutorPath  string
	ProbeResults  *VideoInfo
	FramesDecoded int
	FramesEncoded int
	MuxedAudio    bool
	Errors        []string
}

var globalResults = &TestResults{
	Errors: make([]string, 0),
}

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

// makeSilentVideo generates a short video-only fixture with lavfi
func makeSilentVideo(t *testing.T, path string) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-f", "lavfi", "-i", "testsrc=duration=2:size=320x240:rate=30",
		"-pix_fmt", "yuv420p", "-y", path)
	if err := cmd.Run(); err != nil {
		t.Skipf("Could not generate test video: %v", err)
	}
}

// makeVideoWithAudio generates a fixture carrying a sine audio track
func makeVideoWithAudio(t *testing.T, path string) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-f", "lavfi", "-i", "sine=frequency=1000:duration=2",
		"-f", "lavfi", "-i", "testsrc=duration=2:size=320x240:rate=30",
		"-pix_fmt", "yuv420p", "-y", path)
	if err := cmd.Run(); err != nil {
		t.Skipf("Could not generate test video with audio: %v", err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

func TestExecutorCreation(t *testing.T) {
	skipIfNoFFmpeg(t)

	ex, err := New(testLogger(), "", "", 4)
	if err != nil {
		globalResults.Errors = append(globalResults.Errors, fmt.Sprintf("Executor creation failed: %v", err))
		t.Fatalf("failed to create executor: %v", err)
	}
	if ex.ffmpegPath == "" {
		t.Error("ffmpeg path is empty")
	}
	if ex.ffprobePath == "" {
		t.Error("ffprobe path is empty")
	}

	globalResults.ExecutorPath = ex.ffmpegPath
	t.Logf("ffmpeg: %s", ex.ffmpegPath)
	t.Logf("ffprobe: %s", ex.ffprobePath)
}

func TestExecutorCreationMissingBinary(t *testing.T) {
	if _, err := New(testLogger(), "definitely-not-ffmpeg", "", 0); err == nil {
		t.Error("expected error for missing ffmpeg binary")
	}
}

func TestProbeVideo(t *testing.T) {
	skipIfNoFFmpeg(t)

	input := filepath.Join(t.TempDir(), "input.mp4")
	makeSilentVideo(t, input)

	ex, err := New(testLogger(), "", "", 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	info, err := ex.ProbeVideo(context.Background(), input)
	if err != nil {
		globalResults.Errors = append(globalResults.Errors, fmt.Sprintf("ProbeVideo failed: %v", err))
		t.Fatalf("ProbeVideo failed: %v", err)
	}

	if info.Width != 320 || info.Height != 240 {
		t.Errorf("got %dx%d, want 320x240", info.Width, info.Height)
	}
	if info.FPS < 29.9 || info.FPS > 30.1 {
		t.Errorf("got %.3f fps, want 30", info.FPS)
	}
	if info.FrameCount != 60 {
		t.Errorf("got %d frames, want 60", info.FrameCount)
	}
	if info.HasAudio {
		t.Error("silent fixture should have no audio stream")
	}

	globalResults.ProbeResults = info
	t.Logf("Probed: %dx%d @ %.2f fps, %d frames, %v",
		info.Width, info.Height, info.FPS, info.FrameCount, info.Duration)
}

func TestProbeVideoWithAudio(t *testing.T) {
	skipIfNoFFmpeg(t)

	input := filepath.Join(t.TempDir(), "input.mp4")
	makeVideoWithAudio(t, input)

	ex, err := New(testLogger(), "", "", 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	info, err := ex.ProbeVideo(context.Background(), input)
	if err != nil {
		t.Fatalf("ProbeVideo failed: %v", err)
	}

	if !info.HasAudio {
		t.Error("fixture should have an audio stream")
	}
	if info.AudioCodec == "" {
		t.Error("audio codec not reported")
	}
	t.Logf("Audio: codec=%s bitrate=%d", info.AudioCodec, info.AudioBitrate)
}

func TestProbeMissingFile(t *testing.T) {
	skipIfNoFFmpeg(t)

	ex, err := New(testLogger(), "", "", 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	if _, err := ex.ProbeVideo(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Error("expected probe of missing file to fail")
	}
}

func TestFrameReaderDecodesAllFrames(t *testing.T) {
	skipIfNoFFmpeg(t)

	input := filepath.Join(t.TempDir(), "input.mp4")
	makeSilentVideo(t, input)

	ex, err := New(testLogger(), "", "", 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	ctx := context.Background()
	info, err := ex.ProbeVideo(ctx, input)
	if err != nil {
		t.Fatalf("ProbeVideo failed: %v", err)
	}

	reader, err := ex.OpenFrameReader(ctx, input, info)
	if err != nil {
		t.Fatalf("failed to open frame reader: %v", err)
	}
	defer reader.Close()

	want := info.Width * info.Height * 3
	count := 0
	start := time.Now()
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			globalResults.Errors = append(globalResults.Errors, fmt.Sprintf("Decode failed: %v", err))
			t.Fatalf("frame %d: %v", count, err)
		}
		if len(frame) != want {
			t.Fatalf("frame %d: got %d bytes, want %d", count, len(frame), want)
		}
		count++
	}

	if count != info.FrameCount {
		t.Errorf("decoded %d frames, probe reported %d", count, info.FrameCount)
	}
	globalResults.FramesDecoded = count
	t.Logf("Decoded %d frames in %v", count, time.Since(start))
}

func TestFrameRoundTrip(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	input := filepath.Join(dir, "input.mp4")
	output := filepath.Join(dir, "output.mp4")
	makeSilentVideo(t, input)

	ex, err := New(testLogger(), "", "", 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	ctx := context.Background()
	info, err := ex.ProbeVideo(ctx, input)
	if err != nil {
		t.Fatalf("ProbeVideo failed: %v", err)
	}

	reader, err := ex.OpenFrameReader(ctx, input, info)
	if err != nil {
		t.Fatalf("failed to open frame reader: %v", err)
	}
	defer reader.Close()

	profile, _ := LookupProfile("mp4")
	writer, err := ex.OpenFrameWriter(ctx, output, EncodeOptions{
		Width:   info.Width,
		Height:  info.Height,
		FPS:     info.FPS,
		Profile: profile,
	})
	if err != nil {
		t.Fatalf("failed to open frame writer: %v", err)
	}

	start := time.Now()
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if err := writer.Write(frame); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		globalResults.Errors = append(globalResults.Errors, fmt.Sprintf("Encoder close failed: %v", err))
		t.Fatalf("encoder close: %v", err)
	}

	out, err := ex.ProbeVideo(ctx, output)
	if err != nil {
		t.Fatalf("probe of encoded output failed: %v", err)
	}
	if out.Width != info.Width || out.Height != info.Height {
		t.Errorf("geometry changed: got %dx%d, want %dx%d", out.Width, out.Height, info.Width, info.Height)
	}
	if out.FrameCount != writer.Frames() {
		t.Errorf("encoded %d frames, output reports %d", writer.Frames(), out.FrameCount)
	}
	if out.HasAudio {
		t.Error("visual-only output unexpectedly has audio")
	}

	globalResults.FramesEncoded = writer.Frames()
	t.Logf("Round-tripped %d frames in %v", writer.Frames(), time.Since(start))
}

func TestMuxAudio(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	visual := filepath.Join(dir, "visual.mp4")
	original := filepath.Join(dir, "original.mp4")
	output := filepath.Join(dir, "muxed.mp4")
	makeSilentVideo(t, visual)
	makeVideoWithAudio(t, original)

	ex, err := New(testLogger(), "", "", 2)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	ctx := context.Background()
	profile, _ := LookupProfile("mp4")
	if err := ex.MuxAudio(ctx, visual, original, output, profile, nil); err != nil {
		globalResults.Errors = append(globalResults.Errors, fmt.Sprintf("MuxAudio failed: %v", err))
		t.Fatalf("MuxAudio failed: %v", err)
	}

	info, err := ex.ProbeVideo(ctx, output)
	if err != nil {
		t.Fatalf("probe of muxed output failed: %v", err)
	}
	if !info.HasAudio {
		t.Error("muxed output has no audio track")
	}
	if info.VideoCodec != "h264" {
		t.Errorf("video stream was re-encoded: got codec %s", info.VideoCodec)
	}

	globalResults.MuxedAudio = true
	t.Logf("Muxed output: %s (audio=%s)", output, info.AudioCodec)
}

func TestMuxAudioRejectsSilentProfile(t *testing.T) {
	ex := &Executor{logger: testLogger(), ffmpegPath: "ffmpeg", ffprobePath: "ffprobe"}
	profile, _ := LookupProfile("webm")
	if err := ex.MuxAudio(context.Background(), "a.webm", "b.mp4", "c.webm", profile, nil); err == nil {
		t.Error("expected error for profile without an audio codec")
	}
}

func TestLookupProfile(t *testing.T) {
	p, ok := LookupProfile("mp4")
	if !ok {
		t.Fatal("mp4 profile not registered")
	}
	if !p.MuxAudio || p.AudioCodec != "aac" {
		t.Errorf("mp4 profile should mux aac audio, got MuxAudio=%v codec=%q", p.MuxAudio, p.AudioCodec)
	}
	if p.Extension != ".mp4" {
		t.Errorf("got extension %q, want .mp4", p.Extension)
	}

	p, ok = LookupProfile("webm")
	if !ok {
		t.Fatal("webm profile not registered")
	}
	if p.MuxAudio || p.AudioCodec != "" {
		t.Error("webm profile should stay silent")
	}

	if _, ok := LookupProfile("mkv"); ok {
		t.Error("unknown profile should not resolve")
	}
}

func TestProfileNames(t *testing.T) {
	names := ProfileNames()
	if len(names) != 2 {
		t.Fatalf("got %d profiles, want 2", len(names))
	}
	if names[0] != "mp4" || names[1] != "webm" {
		t.Errorf("got %v, want [mp4 webm]", names)
	}
}

func TestValidateEncodeOptions(t *testing.T) {
	profile, _ := LookupProfile("mp4")
	valid := EncodeOptions{Width: 320, Height: 240, FPS: 30, Profile: profile}

	if err := validateEncodeOptions(valid); err != nil {
		t.Errorf("valid options rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*EncodeOptions)
	}{
		{"zero width", func(o *EncodeOptions) { o.Width = 0 }},
		{"negative height", func(o *EncodeOptions) { o.Height = -1 }},
		{"zero fps", func(o *EncodeOptions) { o.FPS = 0 }},
		{"missing codec", func(o *EncodeOptions) { o.Profile = Profile{} }},
		{"crf out of range", func(o *EncodeOptions) { o.CRF = 99 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := valid
			tc.mutate(&opts)
			if err := validateEncodeOptions(opts); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIsProgressLine(t *testing.T) {
	for _, line := range []string{"frame=42", "fps=29.97", "progress=continue", "out_time_ms=1000"} {
		if !isProgressLine(line) {
			t.Errorf("%q should be a progress line", line)
		}
	}
	for _, line := range []string{"Error opening input", "[libx264 @ 0x1] broken header"} {
		if isProgressLine(line) {
			t.Errorf("%q should not be a progress line", line)
		}
	}
}

// TestMain runs after all tests and prints summary
func TestMain(m *testing.M) {
	code := m.Run()

	printTestSummary()

	os.Exit(code)
}

func printTestSummary() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🎬 TEST SUMMARY - FFmpeg Layer")
	fmt.Println(strings.Repeat("=", 80))

	if globalResults.ExecutorPath != "" {
		fmt.Printf("\n✓ FFmpeg Binary: %s\n", globalResults.ExecutorPath)
	}

	if globalResults.ProbeResults != nil {
		fmt.Println("\n📹 VIDEO PROBE RESULTS:")
		fmt.Printf("  Resolution:    %dx%d @ %.2f fps\n",
			globalResults.ProbeResults.Width,
			globalResults.ProbeResults.Height,
			globalResults.ProbeResults.FPS)
		fmt.Printf("  Duration:      %v\n", globalResults.ProbeResults.Duration)
		fmt.Printf("  Frames:        %d\n", globalResults.ProbeResults.FrameCount)
	}

	if globalResults.FramesDecoded > 0 {
		fmt.Printf("\n🎞️  Frames Decoded: %d\n", globalResults.FramesDecoded)
	}
	if globalResults.FramesEncoded > 0 {
		fmt.Printf("🎞️  Frames Encoded: %d\n", globalResults.FramesEncoded)
	}
	if globalResults.MuxedAudio {
		fmt.Println("🔊 Audio Mux:      ok")
	}

	if len(globalResults.Errors) > 0 {
		fmt.Println("\n❌ ERRORS:")
		for _, e := range globalResults.Errors {
			fmt.Printf("  - %s\n", e)
		}
	} else {
		fmt.Println("\n✅ All operations completed successfully")
	}

	fmt.Println(strings.Repeat("=", 80))
}
