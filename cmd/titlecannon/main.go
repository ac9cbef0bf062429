package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/titlecannon/internal/config"
	"github.com/kikiluvv/titlecannon/internal/ffmpeg"
	"github.com/kikiluvv/titlecannon/internal/generation"
	"github.com/kikiluvv/titlecannon/internal/logging"
	"github.com/kikiluvv/titlecannon/internal/overlay"
	"github.com/kikiluvv/titlecannon/internal/pipeline"
	"github.com/kikiluvv/titlecannon/pkg/util"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "titlecannon",
	Short: "titlecannon - video finishing pipeline",
	Long:  "Fetches generated clips, burns in fading title overlays, and ships final cuts with their original audio.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(finishCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(configCmd)
}

var (
	finishText    string
	finishTagline string
	finishOutput  string
	finishProfile string
	keepScratch   bool
)

var finishCmd = &cobra.Command{
	Use:   "finish [source url]",
	Short: "Fetch a clip and burn in the title overlay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		return runFinishing(cmd, cfg, keepScratch, pipeline.Request{
			SourceURL:  args[0],
			Overlay:    overlay.Spec{Primary: finishText, Secondary: finishTagline},
			OutputPath: finishOutput,
			Profile:    finishProfile,
		})
	},
}

// runFinishing drives one pipeline run and reports the exported clip.
func runFinishing(cmd *cobra.Command, cfg *config.Config, keep bool, req pipeline.Request) error {
	if keep {
		cfg.Workspace.Retain = true
	}

	pipe, err := pipeline.New(log.Logger, cfg)
	if err != nil {
		return err
	}

	res, err := pipe.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	log.Info().
		Str("output", res.Path).
		Str("audio", res.Audio.String()).
		Int("frames", res.Frames).
		Msg("finished clip ready")

	return nil
}

var (
	generateUserPrompt string
	generateWait       bool
	generateText       string
	generateTagline    string
	generateOutput     string
	generateProfile    string
	generateKeep       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Submit a prompt to the generation service",
	Long: "Submits a prompt for rendering. With --wait the command polls until the clip URL\n" +
		"appears; with --text it goes on to fetch the render and burn in the overlay.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		client, err := generationClient(cfg)
		if err != nil {
			return err
		}

		userPrompt := generateUserPrompt
		if userPrompt == "" {
			userPrompt = args[0]
		}

		id, err := client.Generate(cmd.Context(), args[0], userPrompt)
		if err != nil {
			return err
		}

		if !generateWait && generateText == "" {
			log.Info().Str("request_id", id).Msg("generation submitted, poll with the status command")
			return nil
		}

		url, err := client.WaitForVideo(cmd.Context(), id)
		if err != nil {
			return err
		}
		log.Info().Str("request_id", id).Str("url", url).Msg("video ready")

		if generateText == "" {
			return nil
		}

		return runFinishing(cmd, cfg, generateKeep, pipeline.Request{
			SourceURL:  url,
			Overlay:    overlay.Spec{Primary: generateText, Secondary: generateTagline},
			OutputPath: generateOutput,
			Profile:    generateProfile,
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [request id]",
	Short: "Query a pending generation request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		client, err := generationClient(cfg)
		if err != nil {
			return err
		}

		url, err := client.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if url == "" {
			log.Info().Str("request_id", args[0]).Msg("still rendering")
			return nil
		}

		log.Info().Str("request_id", args[0]).Str("url", url).Msg("video ready")
		return nil
	},
}

func generationClient(cfg *config.Config) (*generation.Client, error) {
	token := config.Token()
	if token == "" {
		return nil, fmt.Errorf("%s is not set", config.EnvToken)
	}
	return generation.New(log.Logger, cfg.Generation.APIURL, token,
		generation.Params{
			NumSteps: cfg.Generation.NumSteps,
			CFGScale: cfg.Generation.CFGScale,
			RandSeed: cfg.Generation.RandSeed,
		},
		cfg.Generation.PollInterval(), cfg.Generation.PollAttempts), nil
}

var probeCmd = &cobra.Command{
	Use:   "probe [video file]",
	Short: "Inspect a local video file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		ex, err := ffmpeg.New(log.Logger, cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath, cfg.FFmpeg.Threads)
		if err != nil {
			return err
		}

		info, err := ex.ProbeVideo(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		log.Info().
			Str("file", info.FilePath).
			Int("width", info.Width).
			Int("height", info.Height).
			Float64("fps", info.FPS).
			Int("frames", info.FrameCount).
			Str("duration", util.FormatDuration(info.Duration)).
			Str("video_codec", info.VideoCodec).
			Bool("has_audio", info.HasAudio).
			Str("audio_codec", info.AudioCodec).
			Msg("probe complete")

		return nil
	},
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List output profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range ffmpeg.ProfileNames() {
			p, _ := ffmpeg.LookupProfile(name)
			audio := p.AudioCodec
			if audio == "" {
				audio = "none"
			}
			fmt.Printf("%-8s container=%s video=%s audio=%s\n", p.Name, p.Container, p.VideoCodec, audio)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml in the working directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"
		if util.FileExists(path) {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("wrote default configuration")
		return nil
	},
}

func init() {
	finishCmd.Flags().StringVarP(&finishText, "text", "t", "", "primary overlay text (required)")
	finishCmd.Flags().StringVar(&finishTagline, "tagline", "", "secondary overlay text")
	finishCmd.Flags().StringVarP(&finishOutput, "output", "o", "", "output path for the finished clip")
	finishCmd.Flags().StringVar(&finishProfile, "profile", "", "output profile (default from config)")
	finishCmd.Flags().BoolVar(&keepScratch, "keep-scratch", false, "retain the scratch workspace for debugging")
	_ = finishCmd.MarkFlagRequired("text")

	generateCmd.Flags().StringVar(&generateUserPrompt, "user-prompt", "", "raw user prompt (defaults to the refined prompt)")
	generateCmd.Flags().BoolVar(&generateWait, "wait", false, "poll until the video is ready")
	generateCmd.Flags().StringVarP(&generateText, "text", "t", "", "finish the rendered clip with this overlay text")
	generateCmd.Flags().StringVar(&generateTagline, "tagline", "", "secondary overlay text")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "output path for the finished clip")
	generateCmd.Flags().StringVar(&generateProfile, "profile", "", "output profile (default from config)")
	generateCmd.Flags().BoolVar(&generateKeep, "keep-scratch", false, "retain the scratch workspace for debugging")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
