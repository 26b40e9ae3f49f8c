package config

const (
	defaultDataDir             = "~/.local/share/tubecraft/data"
	defaultLogDir              = "~/.local/share/tubecraft/logs"
	defaultAPIBind             = "127.0.0.1:8032"
	defaultOllamaHost          = "http://127.0.0.1:11434"
	defaultOllamaModel         = "mistral:7b"
	defaultOllamaTimeout       = 300
	defaultSpeechHost          = "http://127.0.0.1:5002"
	defaultSpeechVoiceModel    = "en_US-lessac-medium"
	defaultSpeechVoiceSpeed    = 1.0
	defaultSpeechSampleRate    = 22050
	defaultSpeechTimeout       = 180
	defaultVideoResolution     = "1920x1080"
	defaultVideoFPS            = 30
	defaultVideoCodec          = "libx264"
	defaultVideoTimeout        = 600
	defaultAudioSampleRate     = 44100
	defaultAudioBitrate        = "192k"
	defaultAudioFormat         = "mp3"
	defaultMaxConcurrentJobs   = 3
	defaultRetryMaxAttempts    = 3
	defaultRetryBackoffSeconds = 2
	defaultQueuePollInterval   = 5
	defaultErrorRetryInterval  = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultTargetDurationMins  = 15
)

// DefaultTargetDurationMinutes is the target episode length applied when a
// request does not specify one.
const DefaultTargetDurationMinutes = defaultTargetDurationMins

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Ollama: Ollama{
			Host:           defaultOllamaHost,
			Model:          defaultOllamaModel,
			TimeoutSeconds: defaultOllamaTimeout,
		},
		Speech: Speech{
			Host:           defaultSpeechHost,
			VoiceModel:     defaultSpeechVoiceModel,
			VoiceSpeed:     defaultSpeechVoiceSpeed,
			SampleRate:     defaultSpeechSampleRate,
			TimeoutSeconds: defaultSpeechTimeout,
		},
		Video: Video{
			Resolution:     defaultVideoResolution,
			FPS:            defaultVideoFPS,
			Codec:          defaultVideoCodec,
			TimeoutSeconds: defaultVideoTimeout,
		},
		Audio: Audio{
			SampleRate: defaultAudioSampleRate,
			Bitrate:    defaultAudioBitrate,
			Format:     defaultAudioFormat,
		},
		Scheduler: Scheduler{
			MaxConcurrentJobs:   defaultMaxConcurrentJobs,
			RetryMaxAttempts:    defaultRetryMaxAttempts,
			RetryBackoffSeconds: defaultRetryBackoffSeconds,
			QueuePollInterval:   defaultQueuePollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
