package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"yt2text/internal/errs"
	"yt2text/internal/model"
)

// Converter backends.
const (
	ConverterFFmpeg = "ffmpeg"
	ConverterMP3    = "mp3"
)

// BackendOpenAI is the only recognizer backend.
const BackendOpenAI = "openai"

// ModelSettings configures the speech recognizer.
type ModelSettings struct {
	Backend           string        `yaml:"backend"`
	Name              string        `yaml:"name"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Language          string        `yaml:"language"`
	Prompt            string        `yaml:"prompt"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
	// InferenceSlots bounds concurrent Recognize calls across all requests.
	InferenceSlots int `yaml:"inference_slots"`
}

// Config holds the full application configuration.
type Config struct {
	DataDir       string `yaml:"data_dir"`
	Converter     string `yaml:"converter"`
	FFmpegPath    string `yaml:"ffmpeg"`
	KeepArtifacts bool   `yaml:"keep_artifacts"`

	Window time.Duration `yaml:"window"`
	Stride time.Duration `yaml:"stride"`

	MaxConcurrent   int           `yaml:"max_concurrent"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`

	Model ModelSettings `yaml:"model"`
}

// Default returns a Config with hardcoded defaults.
func Default() *Config {
	return &Config{
		DataDir:         "./data",
		Converter:       ConverterFFmpeg,
		FFmpegPath:      "ffmpeg",
		KeepArtifacts:   true,
		Window:          30 * time.Second,
		Stride:          5 * time.Second,
		MaxConcurrent:   2,
		DownloadTimeout: 10 * time.Minute,
		Model: ModelSettings{
			Backend:           BackendOpenAI,
			Name:              "whisper-1",
			RequestsPerMinute: 50,
			Timeout:           2 * time.Minute,
			InferenceSlots:    1,
		},
	}
}

// envOverrides maps environment variables onto config fields.
var envOverrides = []struct {
	key string
	set func(c *Config, v string)
}{
	{"YT2TEXT_DATA_DIR", func(c *Config, v string) { c.DataDir = v }},
	{"YT2TEXT_CONVERTER", func(c *Config, v string) { c.Converter = v }},
	{"YT2TEXT_FFMPEG", func(c *Config, v string) { c.FFmpegPath = v }},
	{"YT2TEXT_MODEL", func(c *Config, v string) { c.Model.Name = v }},
	{"YT2TEXT_LANGUAGE", func(c *Config, v string) { c.Model.Language = v }},
	{"OPENAI_API_KEY", func(c *Config, v string) { c.Model.APIKey = v }},
	{"OPENAI_BASE_URL", func(c *Config, v string) { c.Model.BaseURL = v }},
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the environment, in that order. Variables from a .env file in the
// working directory are loaded first and never replace variables that are
// already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Wrap(errs.KindConfig, "dotenv", "could not parse .env", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfig, "read", "could not read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(errs.KindConfig, "parse", "invalid config file "+path, err)
		}
	}

	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			o.set(cfg, v)
		}
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.DataDir == "" {
		problems = append(problems, "data_dir must not be empty")
	}
	if c.Window <= 0 {
		problems = append(problems, "window must be positive")
	}
	if c.Stride < 0 || 2*c.Stride >= c.Window {
		problems = append(problems, fmt.Sprintf("stride %s must be non-negative and shorter than half the window %s", c.Stride, c.Window))
	}
	switch c.Converter {
	case ConverterFFmpeg, ConverterMP3:
	default:
		problems = append(problems, fmt.Sprintf("unknown converter %q", c.Converter))
	}
	if c.Model.Backend != BackendOpenAI {
		problems = append(problems, fmt.Sprintf("unknown model backend %q", c.Model.Backend))
	}
	if c.Model.InferenceSlots < 1 {
		problems = append(problems, "model.inference_slots must be at least 1")
	}
	if c.MaxConcurrent < 1 {
		problems = append(problems, "max_concurrent must be at least 1")
	}
	if len(problems) > 0 {
		return errs.New(errs.KindConfig, "validate", strings.Join(problems, "; "))
	}
	return nil
}

// OpenAIOptions converts the model settings for the openai backend.
func (c *Config) OpenAIOptions() model.OpenAIOptions {
	return model.OpenAIOptions{
		APIKey:            c.Model.APIKey,
		BaseURL:           c.Model.BaseURL,
		Model:             c.Model.Name,
		Language:          c.Model.Language,
		Prompt:            c.Model.Prompt,
		RequestsPerMinute: c.Model.RequestsPerMinute,
		Timeout:           c.Model.Timeout,
	}
}
