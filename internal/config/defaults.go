package config

const (
	defaultStagingDir = "~/.local/share/redub/staging"
	defaultLogDir     = "~/.local/share/redub/logs"
	defaultStateDir   = "~/.local/state/redub"
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"

	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultTranscodeTimeout = 600
	defaultMaxInputMB       = 500

	defaultSpeakerGapSeconds = 2.0
	defaultHeuristicSlots    = 4
	defaultDiarizeModel      = "pyannote/speaker-diarization-3.1"

	defaultMinSampleSeconds = 6.0
	defaultMaxSampleSeconds = 10.0
	defaultSampleRate       = 22050

	defaultWordsPerMinute = 150.0
	defaultMinSpeed       = 0.8
	defaultMaxSpeed       = 1.5

	defaultSynthesisBackend     = BackendXTTS
	defaultSynthesisConcurrency = 2
	defaultSynthesisTimeout     = 300
	defaultXTTSModel            = "tts_models/multilingual/multi-dataset/xtts_v2"

	defaultBackgroundMode     = BackgroundSeparated
	defaultDuckDB             = -20.0
	defaultSeparationModel    = "UVR-MDX-NET-Inst_HQ_3.onnx"
	defaultSeparationTimeout  = 1800
	defaultWhisperXModel      = "large-v3"
	defaultWhisperXVADMethod  = "silero"
	defaultWhisperXTimeout    = 3600
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel           = "google/gemini-3-flash-preview"
	defaultLLMReferer         = "https://github.com/redub/redub"
	defaultLLMTitle           = "redub translator"
	defaultLLMTimeoutSeconds  = 120
	defaultStaleWorkDirMaxAge = 24
)

// Synthesis backends.
const (
	BackendXTTS = "xtts"
	BackendEdge = "edge"
)

// Background modes.
const (
	BackgroundSeparated = "separated"
	BackgroundDucked    = "ducked"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Transcode: Transcode{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			TimeoutSeconds: defaultTranscodeTimeout,
			MaxInputMB:     defaultMaxInputMB,
		},
		Speakers: Speakers{
			Diarization:    true,
			Model:          defaultDiarizeModel,
			GapSeconds:     defaultSpeakerGapSeconds,
			HeuristicSlots: defaultHeuristicSlots,
		},
		VoiceSamples: VoiceSamples{
			Enabled:    true,
			MinSeconds: defaultMinSampleSeconds,
			MaxSeconds: defaultMaxSampleSeconds,
			SampleRate: defaultSampleRate,
		},
		Timing: Timing{
			WordsPerMinute: defaultWordsPerMinute,
			MinSpeed:       defaultMinSpeed,
			MaxSpeed:       defaultMaxSpeed,
		},
		Synthesis: Synthesis{
			Backend:        defaultSynthesisBackend,
			Concurrency:    defaultSynthesisConcurrency,
			TimeoutSeconds: defaultSynthesisTimeout,
			XTTSModel:      defaultXTTSModel,
		},
		Background: Background{
			Mode:             defaultBackgroundMode,
			DuckDB:           defaultDuckDB,
			DuckWindowed:     true,
			SeparationModels: []string{defaultSeparationModel},
			TimeoutSeconds:   defaultSeparationTimeout,
		},
		WhisperX: WhisperX{
			Model:          defaultWhisperXModel,
			VADMethod:      defaultWhisperXVADMethod,
			TimeoutSeconds: defaultWhisperXTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Staging: Staging{
			StaleHours: defaultStaleWorkDirMaxAge,
		},
	}
}
