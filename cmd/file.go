package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"yt2text/internal/render"
)

var fileCmd = &cobra.Command{
	Use:   "file <audio-file>...",
	Short: "Transcribe local audio files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFile,
}

func init() {
	fileCmd.Flags().StringVarP(&output, "output", "o", "", "output file (a directory when several files are given)")
	fileCmd.Flags().StringVar(&format, "format", "text", "output format: text, json or srt")
	fileCmd.Flags().DurationVar(&timeout, "timeout", 0, "abort after this duration (0 for none)")

	rootCmd.AddCommand(fileCmd)
}

func runFile(cmd *cobra.Command, args []string) error {
	f, err := render.ParseFormat(format)
	if err != nil {
		return err
	}

	p, shared, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer closeModel(shared)
	// The input is the user's file; only the converted WAV may be removed.
	p.KeepArtifacts = false

	ctx, cancel := signalContext(timeout)
	defer cancel()

	for _, in := range args {
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}
		res, err := p.RunFile(ctx, abs)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
		if err := emit(res, f, outputPath(output, name, f, len(args) > 1)); err != nil {
			return err
		}
	}
	return nil
}
