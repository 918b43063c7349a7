// Package transcode wraps the external ffmpeg utility behind a narrow
// interface.
//
// Runner executes one ffmpeg invocation and returns the output path; FFmpeg
// builds the argument lists for extraction, slicing, concatenation, gain,
// delayed mixing, and stream-copy muxing on top of a Runner. Pipeline code
// depends on the Tool interface so it can be exercised against an in-process
// fake instead of a real subprocess.
package transcode
