// Package ffprobe decodes the subset of ffprobe JSON the pipeline needs:
// stream kinds for input validation and the first audio stream's duration,
// sample rate and channel count.
package ffprobe
