package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Ollama contains configuration for the language-model service that writes
// episode scripts.
type Ollama struct {
	Host           string `toml:"host"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Speech contains configuration for the speech-synthesis service.
type Speech struct {
	Host           string  `toml:"host"`
	VoiceModel     string  `toml:"voice_model"`
	VoiceSpeed     float64 `toml:"voice_speed"`
	SampleRate     int     `toml:"sample_rate"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Video contains configuration for the media-encoding pipeline.
type Video struct {
	Resolution     string `toml:"resolution"`
	FPS            int    `toml:"fps"`
	Codec          string `toml:"codec"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Audio contains output format settings applied during video assembly.
type Audio struct {
	SampleRate int    `toml:"sample_rate"`
	Bitrate    string `toml:"bitrate"`
	Format     string `toml:"format"`
}

// Scheduler contains concurrency, retry, and polling settings for the
// episode dispatcher.
type Scheduler struct {
	MaxConcurrentJobs   int `toml:"max_concurrent_jobs"`
	RetryMaxAttempts    int `toml:"retry_max_attempts"`
	RetryBackoffSeconds int `toml:"retry_backoff_seconds"`
	QueuePollInterval   int `toml:"queue_poll_interval"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Tubecraft.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and control API bind address
//   - Ollama: language-model endpoint used by the script stage
//   - Speech: speech-synthesis endpoint used by the audio stage
//   - Video: ffmpeg encoding settings used by the video stage
//   - Audio: audio output format applied during assembly
//   - Scheduler: worker slots, retry policy, and polling intervals
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Ollama    Ollama    `toml:"ollama"`
	Speech    Speech    `toml:"speech"`
	Video     Video     `toml:"video"`
	Audio     Audio     `toml:"audio"`
	Scheduler Scheduler `toml:"scheduler"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tubecraft/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	// A project-local .env is optional; missing files are fine.
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tubecraft.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.AudioOutputDir(), c.VideoOutputDir(), c.ScriptOutputDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AudioOutputDir returns the directory audio artifacts are written to.
func (c *Config) AudioOutputDir() string {
	return filepath.Join(c.Paths.DataDir, "audio")
}

// VideoOutputDir returns the directory video artifacts are written to.
func (c *Config) VideoOutputDir() string {
	return filepath.Join(c.Paths.DataDir, "video")
}

// ScriptOutputDir returns the directory script documents are written to.
func (c *Config) ScriptOutputDir() string {
	return filepath.Join(c.Paths.DataDir, "scripts")
}

// FFmpegBinary returns the ffmpeg executable name used for video assembly.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media validation.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
