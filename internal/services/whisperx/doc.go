// Package whisperx transcribes source audio into timed segments.
//
// WhisperX runs through uvx and writes a JSON document next to the audio;
// the service converts its sentence-level segments into transcript segments
// and reports the language WhisperX detected. This is the front end used
// when a job is started without a pre-translated segment file.
package whisperx
