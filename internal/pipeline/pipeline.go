package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/titlecannon/internal/compose"
	"github.com/kikiluvv/titlecannon/internal/config"
	"github.com/kikiluvv/titlecannon/internal/fetch"
	"github.com/kikiluvv/titlecannon/internal/ffmpeg"
	"github.com/kikiluvv/titlecannon/internal/overlay"
	"github.com/kikiluvv/titlecannon/internal/workspace"
	"github.com/kikiluvv/titlecannon/pkg/util"
)

// Pipeline drives a finishing run end to end: fetch the source clip,
// composite the overlay, attach audio, export the result.
type Pipeline struct {
	logger     zerolog.Logger
	cfg        *config.Config
	ffmpeg     *ffmpeg.Executor
	fetcher    *fetch.Fetcher
	compositor *compose.Compositor
	workspaces *workspace.Manager
}

// New creates a pipeline wired from application configuration.
func New(logger zerolog.Logger, cfg *config.Config) (*Pipeline, error) {
	ffmpegExec, err := ffmpeg.New(logger, cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath, cfg.FFmpeg.Threads)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	style := overlay.Style{
		ScaleDivisor:   cfg.Overlay.ScaleDivisor,
		SecondaryRatio: cfg.Overlay.SecondaryRatio,
		LineSpacing:    cfg.Overlay.LineSpacing,
	}

	return &Pipeline{
		logger:     logger.With().Str("component", "pipeline").Logger(),
		cfg:        cfg,
		ffmpeg:     ffmpegExec,
		fetcher:    fetch.New(logger, cfg.FetchTimeout()),
		compositor: compose.New(logger, ffmpegExec, style),
		workspaces: workspace.NewManager(logger, cfg.Workspace.Root, cfg.Workspace.Retain),
	}, nil
}

// Run executes one finishing request. On success the finished clip sits at
// Result.Path, outside any scratch space; on any failure the scratch space
// is swept and a single ErrProcessingFailed comes back.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.SourceURL == "" {
		return nil, p.fail("validate", fmt.Errorf("source url is required"))
	}
	if err := req.Overlay.Validate(); err != nil {
		return nil, p.fail("validate", err)
	}

	profileName := req.Profile
	if profileName == "" {
		profileName = p.cfg.Output.Profile
	}
	profile, ok := ffmpeg.LookupProfile(profileName)
	if !ok {
		return nil, p.fail("validate", fmt.Errorf("unknown output profile %q", profileName))
	}

	ws, err := p.workspaces.Acquire()
	if err != nil {
		return nil, p.fail("workspace", err)
	}
	defer ws.Release()

	p.logger.Info().
		Str("url", req.SourceURL).
		Str("profile", profile.Name).
		Str("workspace", ws.Dir()).
		Msg("starting finishing run")

	// Stage 1: Fetch the source clip
	if err := p.fetcher.Fetch(ctx, req.SourceURL, ws.InputPath()); err != nil {
		return nil, p.fail("fetch", err)
	}

	// Stage 2: Composite the overlay into a visual-only cut
	visual := ws.VisualPath(profile.Extension)
	info, err := p.compositor.Composite(ctx, ws.InputPath(), visual, req.Overlay, compose.Options{
		Profile: profile,
		CRF:     p.cfg.FFmpeg.CRF,
		Preset:  p.cfg.FFmpeg.Preset,
	})
	if err != nil {
		return nil, p.fail("composite", err)
	}

	// Stage 3: Attach the original audio track where possible
	final, audio := p.finalize(ctx, ws, visual, info, profile)

	// Stage 4: Export the finished clip before the workspace goes away
	outputPath, err := p.export(final, req.OutputPath, ws.ID(), profile.Extension)
	if err != nil {
		return nil, p.fail("export", err)
	}

	p.logger.Info().
		Str("output", outputPath).
		Str("audio", audio.String()).
		Int("frames", info.FrameCount).
		Msg("finishing run complete")

	return &Result{
		Path:   outputPath,
		Audio:  audio,
		Frames: info.FrameCount,
	}, nil
}

// finalize pairs the visual cut with the source audio when the profile and
// the source allow it. A mux failure is not fatal; the visual-only cut
// ships instead.
func (p *Pipeline) finalize(ctx context.Context, ws *workspace.Workspace, visual string, info *ffmpeg.VideoInfo, profile ffmpeg.Profile) (string, AudioStatus) {
	if !profile.MuxAudio {
		return visual, AudioOmitted
	}
	if !info.HasAudio {
		p.logger.Info().Msg("source has no audio track, shipping visual-only cut")
		return visual, AudioMissing
	}

	muxed := ws.MuxedPath(profile.Extension)
	if err := p.ffmpeg.MuxAudio(ctx, visual, ws.InputPath(), muxed, profile, nil); err != nil {
		p.logger.Warn().Err(err).Msg("audio mux failed, shipping visual-only cut")
		return visual, AudioDropped
	}
	return muxed, AudioMuxed
}

// export moves the finished clip out of the workspace.
func (p *Pipeline) export(src, requested, id, ext string) (string, error) {
	dest := requested
	if dest == "" {
		dest = filepath.Join(p.cfg.Output.Dir, "finished_"+id+ext)
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := util.EnsureDir(dir); err != nil {
			return "", err
		}
	}
	if err := util.MoveFile(src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// fail collapses a stage failure into the single processing error callers
// see. Stage detail goes to the log and the message, not the error chain.
func (p *Pipeline) fail(stage string, err error) error {
	p.logger.Error().Err(err).Str("stage", stage).Msg("finishing run failed")
	return fmt.Errorf("%w: %s: %v", ErrProcessingFailed, stage, err)
}
