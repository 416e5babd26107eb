package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"yt2text/internal/config"
	"yt2text/internal/render"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <url>...",
	Short: "Transcribe one or more YouTube videos",
	Long: `Download the audio of each YouTube URL, convert it to 16 kHz mono WAV and
print its transcription. Several URLs are processed concurrently.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranscribe,
}

var (
	output        string
	format        string
	maxConcurrent int
	timeout       time.Duration
	keepArtifacts bool
)

func init() {
	defaults := config.Default()

	transcribeCmd.Flags().StringVarP(&output, "output", "o", "", "output file (a directory when several URLs are given)")
	transcribeCmd.Flags().StringVar(&format, "format", "text", "output format: text, json or srt")
	transcribeCmd.Flags().IntVarP(&maxConcurrent, "max-concurrent", "j", defaults.MaxConcurrent, "max concurrent requests")
	transcribeCmd.Flags().DurationVar(&timeout, "timeout", 0, "abort after this duration (0 for none)")
	transcribeCmd.Flags().BoolVar(&keepArtifacts, "keep-artifacts", defaults.KeepArtifacts, "keep downloaded and converted audio in the data directory")

	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	f, err := render.ParseFormat(format)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-concurrent") {
		cfg.MaxConcurrent = maxConcurrent
	}
	if cmd.Flags().Changed("keep-artifacts") {
		cfg.KeepArtifacts = keepArtifacts
	}

	if err := checkURLConverter(cfg); err != nil {
		return err
	}

	p, shared, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer closeModel(shared)

	ctx, cancel := signalContext(timeout)
	defer cancel()

	if len(args) == 1 {
		res, err := p.Run(ctx, args[0])
		if err != nil {
			return err
		}
		return emit(res, f, output)
	}

	var failed int
	for _, r := range p.RunBatch(ctx, args, cfg.MaxConcurrent) {
		if r.Err != nil {
			failed++
			slog.Error("transcription failed", "url", r.URL, "err", r.Err)
			continue
		}
		if err := emit(r.Result, f, outputPath(output, r.Result.VideoID, f, true)); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d transcriptions failed", failed, len(args))
	}
	return nil
}
