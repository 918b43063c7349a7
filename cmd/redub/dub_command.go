package main

import (
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/dubbing"
	"redub/internal/language"
	"redub/internal/logging"
)

type dubOptions struct {
	segments     string
	lang         string
	sourceLang   string
	output       string
	keepSamples  bool
	saveSegments string
}

func newDubCommand(ctx *commandContext) *cobra.Command {
	var opts dubOptions

	cmd := &cobra.Command{
		Use:   "dub <video>",
		Short: "Dub a video into another language",
		Long: `Dub replaces the speech in a video with synthesized speech in the target
language while keeping the original background audio.

Segments come from --segments (a JSON file with start, end, text and
translated_text) or from WhisperX transcription followed by LLM translation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDub(cmd, ctx, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.segments, "segments", "s", "", "Segment JSON file (skips transcription)")
	cmd.Flags().StringVarP(&opts.lang, "lang", "l", "", "Target language (ISO 639 code or name)")
	cmd.Flags().StringVar(&opts.sourceLang, "source-lang", "", "Source language hint for transcription")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output video path (default <video>.dubbed<ext>)")
	cmd.Flags().BoolVar(&opts.keepSamples, "keep-samples", false, "Keep curated voice samples under the state directory")
	cmd.Flags().StringVar(&opts.saveSegments, "save-segments", "", "Write the translated segments to this JSON file")
	return cmd
}

func runDub(cmd *cobra.Command, ctx *commandContext, video string, opts dubOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	store, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := sweepStaging(runCtx, cfg, store, cfg.StaleWorkDirAge(), logger); err != nil {
		logger.Warn("staging cleanup skipped", logging.Error(err))
	}

	videoPath, err := config.ExpandPath(video)
	if err != nil {
		return err
	}
	output := opts.output
	if output == "" {
		output = defaultOutputPath(videoPath)
	}
	if output, err = config.ExpandPath(output); err != nil {
		return err
	}

	jobID := uuid.NewString()
	deps := buildDependencies(cfg, store, logger)
	source := segmentSource{
		tool:        deps.Tool,
		transcriber: newTranscriber(cfg),
		translator:  newTranslator(cfg),
		stagingDir:  cfg.Paths.StagingDir,
		logger:      logger,
	}
	segments, lang, err := source.prepare(runCtx, segmentRequest{
		JobID:      jobID,
		VideoPath:  videoPath,
		File:       opts.segments,
		SourceLang: opts.sourceLang,
		TargetLang: opts.lang,
		SavePath:   opts.saveSegments,
	})
	if err != nil {
		return err
	}

	orchestrator, err := dubbing.New(cfg, deps, logger)
	if err != nil {
		return err
	}
	printer := newProgressPrinter(cmd.ErrOrStderr())
	result, err := orchestrator.Run(runCtx, dubbing.Job{
		ID:          jobID,
		VideoPath:   videoPath,
		OutputPath:  output,
		Segments:    segments,
		Language:    lang,
		KeepSamples: opts.keepSamples,
	}, printer.update)
	printer.finish()
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), result)
	return nil
}

func defaultOutputPath(video string) string {
	ext := filepath.Ext(video)
	stem := strings.TrimSuffix(filepath.Base(video), ext)
	return filepath.Join(filepath.Dir(video), stem+".dubbed"+ext)
}

func printSummary(out io.Writer, result dubbing.Result) {
	fmt.Fprintf(out, "Dubbed video written to %s\n", result.OutputPath)
	fmt.Fprintf(out, "  Language:    %s\n", language.DisplayName(result.Language))
	fmt.Fprintf(out, "  Clips:       %d (%d skipped)\n", result.Clips, result.Skipped)
	fmt.Fprintf(out, "  Speakers:    %d via %s\n", result.Speakers, result.SpeakerSource)
	fmt.Fprintf(out, "  Background:  %s\n", result.BackgroundMode)
	if result.SamplesDir != "" {
		fmt.Fprintf(out, "  Samples:     %s\n", result.SamplesDir)
	}
	fmt.Fprintf(out, "  Took:        %s\n", result.Elapsed.Round(time.Second))
}
