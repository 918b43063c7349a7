package whisperx

// Config captures runtime settings for WhisperX operations.
type Config struct {
	Model       string
	CUDAEnabled bool
	// VADMethod is "silero" or "pyannote"; pyannote also needs HFToken,
	// which is passed through HF_TOKEN rather than argv.
	VADMethod string
	HFToken   string
}

const (
	DefaultModel      = "large-v3"
	VADMethodSilero   = "silero"
	VADMethodPyannote = "pyannote"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
)

// decodeFlags are passed on every run. Output is JSON at sentence
// resolution so each segment maps to one dubbed clip.
var decodeFlags = []string{
	"--output_format", "json",
	"--segment_resolution", "sentence",
	"--batch_size", "4",
	"--chunk_size", "15",
	"--vad_onset", "0.08",
	"--vad_offset", "0.07",
	"--beam_size", "10",
	"--best_of", "10",
	"--temperature", "0.0",
	"--patience", "1.0",
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.VADMethod == "" {
		c.VADMethod = VADMethodSilero
	}
	return c
}

func (c Config) deviceFlags() []string {
	if c.CUDAEnabled {
		return []string{"--device", CUDADevice}
	}
	return []string{"--device", CPUDevice, "--compute_type", "float32"}
}
