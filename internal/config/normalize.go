package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOllama()
	c.normalizeSpeech()
	c.normalizeVideo()
	c.normalizeAudio()
	c.normalizeScheduler()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeOllama() {
	c.Ollama.Host = strings.TrimRight(strings.TrimSpace(c.Ollama.Host), "/")
	if c.Ollama.Host == "" {
		if value, ok := os.LookupEnv("OLLAMA_HOST"); ok {
			c.Ollama.Host = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	if c.Ollama.Host == "" {
		c.Ollama.Host = defaultOllamaHost
	}
	c.Ollama.Model = strings.TrimSpace(c.Ollama.Model)
	if c.Ollama.Model == "" {
		c.Ollama.Model = defaultOllamaModel
	}
	if c.Ollama.TimeoutSeconds <= 0 {
		c.Ollama.TimeoutSeconds = defaultOllamaTimeout
	}
}

func (c *Config) normalizeSpeech() {
	c.Speech.Host = strings.TrimRight(strings.TrimSpace(c.Speech.Host), "/")
	if c.Speech.Host == "" {
		c.Speech.Host = defaultSpeechHost
	}
	c.Speech.VoiceModel = strings.TrimSpace(c.Speech.VoiceModel)
	if c.Speech.VoiceModel == "" {
		c.Speech.VoiceModel = defaultSpeechVoiceModel
	}
	if c.Speech.VoiceSpeed <= 0 {
		c.Speech.VoiceSpeed = defaultSpeechVoiceSpeed
	}
	if c.Speech.SampleRate <= 0 {
		c.Speech.SampleRate = defaultSpeechSampleRate
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeout
	}
}

func (c *Config) normalizeVideo() {
	c.Video.Resolution = strings.TrimSpace(c.Video.Resolution)
	if c.Video.Resolution == "" {
		c.Video.Resolution = defaultVideoResolution
	}
	if c.Video.FPS <= 0 {
		c.Video.FPS = defaultVideoFPS
	}
	c.Video.Codec = strings.TrimSpace(c.Video.Codec)
	if c.Video.Codec == "" {
		c.Video.Codec = defaultVideoCodec
	}
	if c.Video.TimeoutSeconds <= 0 {
		c.Video.TimeoutSeconds = defaultVideoTimeout
	}
}

func (c *Config) normalizeAudio() {
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultAudioSampleRate
	}
	c.Audio.Bitrate = strings.TrimSpace(c.Audio.Bitrate)
	if c.Audio.Bitrate == "" {
		c.Audio.Bitrate = defaultAudioBitrate
	}
	c.Audio.Format = strings.ToLower(strings.TrimSpace(c.Audio.Format))
	if c.Audio.Format == "" {
		c.Audio.Format = defaultAudioFormat
	}
}

// normalizeScheduler applies environment overrides for the knobs operators
// tune most often, matching the TUBECRAFT_* variables the deployment exposes.
func (c *Config) normalizeScheduler() {
	if value, ok := envInt("TUBECRAFT_MAX_CONCURRENT_JOBS"); ok {
		c.Scheduler.MaxConcurrentJobs = value
	}
	if value, ok := envInt("TUBECRAFT_RETRY_MAX_ATTEMPTS"); ok {
		c.Scheduler.RetryMaxAttempts = value
	}
	if c.Scheduler.MaxConcurrentJobs <= 0 {
		c.Scheduler.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if c.Scheduler.RetryMaxAttempts <= 0 {
		c.Scheduler.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if c.Scheduler.RetryBackoffSeconds <= 0 {
		c.Scheduler.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Scheduler.QueuePollInterval <= 0 {
		c.Scheduler.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Scheduler.ErrorRetryInterval <= 0 {
		c.Scheduler.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envInt(key string) (int, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return value, true
}
