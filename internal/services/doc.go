// Package services holds what the pipeline stages and the collaborator
// adapters share: the job/stage context carried into every log line, and
// the error markers (ErrValidation, ErrExternalTool, ...) that Wrap attaches
// so a failure can be classified with errors.Is or named with Kind.
//
// The adapters themselves (whisperx, pyannote, tts, separator, llm, uvx)
// live in subpackages.
package services
