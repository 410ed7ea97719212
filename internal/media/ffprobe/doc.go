// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//
// Inspect runs ffprobe and returns the parsed Result. The helpers on Result
// answer the two questions the agent asks: does a converted file carry a
// playable video stream, and where is the midpoint frame used for thumbnails.
package ffprobe
