package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"yt2text/internal/config"
	"yt2text/internal/errs"
)

var (
	verbose   bool
	quiet     bool
	logFormat string

	configPath string
	dataDir    string
	converter  string
	modelName  string
	baseURL    string
	language   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "yt2text",
	Short: "Transcribe YouTube videos to text",
	Long: `yt2text downloads the audio track of a YouTube video, converts it to 16 kHz
mono WAV and transcribes it with a Whisper-compatible speech recognizer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return loadConfig(cmd)
	},
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func loadConfig(cmd *cobra.Command) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		c.DataDir = dataDir
	}
	if flags.Changed("converter") {
		c.Converter = converter
	}
	if flags.Changed("model") {
		c.Model.Name = modelName
	}
	if flags.Changed("base-url") {
		c.Model.BaseURL = baseURL
	}
	if flags.Changed("language") {
		c.Model.Language = language
	}

	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	slog.Debug("configuration loaded",
		"config", configPath,
		"data_dir", c.DataDir,
		"converter", c.Converter,
		"model", c.Model.Name,
		"window", c.Window.String(),
		"stride", c.Stride.String())
	return nil
}

// Execute runs the CLI and prints a short message for failures.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		var typed *errs.Error
		if errors.As(err, &typed) {
			fmt.Fprintln(os.Stderr, "Error:", errs.UserMessage(err))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	pf.StringVar(&logFormat, "log-format", "text", "log format: text or json")

	defaults := config.Default()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVar(&dataDir, "data-dir", defaults.DataDir, "directory for downloaded and converted audio")
	pf.StringVar(&converter, "converter", defaults.Converter, "audio converter: ffmpeg or mp3")
	pf.StringVar(&modelName, "model", defaults.Model.Name, "transcription model name")
	pf.StringVar(&baseURL, "base-url", "", "OpenAI-compatible API base URL")
	pf.StringVarP(&language, "language", "l", "", "spoken language (ISO-639-1), empty to auto-detect")
}
