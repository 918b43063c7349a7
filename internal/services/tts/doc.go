// Package tts adapts speech synthesis backends to synthesis.Synthesizer.
//
// Edge runs the edge-tts CLI with a per-language neural voice and a rate
// string derived from the speed factor. XTTS runs Coqui XTTS v2 and clones
// the speaker from a reference sample.
package tts
