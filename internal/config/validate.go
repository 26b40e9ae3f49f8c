package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var resolutionPattern = regexp.MustCompile(`^\d{3,5}x\d{3,5}$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCollaborators(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCollaborators() error {
	if err := ensurePositiveMap(map[string]int{
		"ollama.timeout_seconds": c.Ollama.TimeoutSeconds,
		"speech.timeout_seconds": c.Speech.TimeoutSeconds,
		"video.timeout_seconds":  c.Video.TimeoutSeconds,
		"speech.sample_rate":     c.Speech.SampleRate,
		"audio.sample_rate":      c.Audio.SampleRate,
	}); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Ollama.Host, "http://") && !strings.HasPrefix(c.Ollama.Host, "https://") {
		return fmt.Errorf("ollama.host must be an http(s) URL, got %q", c.Ollama.Host)
	}
	if !strings.HasPrefix(c.Speech.Host, "http://") && !strings.HasPrefix(c.Speech.Host, "https://") {
		return fmt.Errorf("speech.host must be an http(s) URL, got %q", c.Speech.Host)
	}
	if c.Speech.VoiceSpeed < 0.5 || c.Speech.VoiceSpeed > 2.0 {
		return errors.New("speech.voice_speed must be between 0.5 and 2.0")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if !resolutionPattern.MatchString(c.Video.Resolution) {
		return fmt.Errorf("video.resolution must look like 1920x1080, got %q", c.Video.Resolution)
	}
	if c.Video.FPS <= 0 || c.Video.FPS > 120 {
		return errors.New("video.fps must be between 1 and 120")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	return ensurePositiveMap(map[string]int{
		"scheduler.max_concurrent_jobs":   c.Scheduler.MaxConcurrentJobs,
		"scheduler.retry_max_attempts":    c.Scheduler.RetryMaxAttempts,
		"scheduler.retry_backoff_seconds": c.Scheduler.RetryBackoffSeconds,
		"scheduler.queue_poll_interval":   c.Scheduler.QueuePollInterval,
		"scheduler.error_retry_interval":  c.Scheduler.ErrorRetryInterval,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
