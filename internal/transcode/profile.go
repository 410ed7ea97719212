package transcode

// lowPriorityPrefix runs ffmpeg at the lowest CPU and idle I/O priority.
var lowPriorityPrefix = []string{"nice", "-n", "15", "ionice", "-c", "3"}

// PrimaryArgs returns the ffmpeg arguments of the browser-friendly H.264/AAC profile.
func PrimaryArgs(input, output string) []string {
	return []string{
		"-y",
		"-i", input,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-profile:v", "main",
		"-level", "4.0",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ac", "2",
		"-movflags", "+faststart",
		output,
	}
}

// RemuxArgs returns the fallback profile: the same codecs without the
// profile, level and channel constraints some sources cannot satisfy.
func RemuxArgs(input, output string) []string {
	return []string{
		"-y",
		"-i", input,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		output,
	}
}

// FrameArgs extracts a single JPEG frame at timestamp (HH:MM:SS.mmm).
func FrameArgs(input, output, timestamp string) []string {
	return []string{
		"-y",
		"-ss", timestamp,
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		output,
	}
}

// command prepends the scheduling prefix when lowPriority is set.
func command(ffmpeg string, lowPriority bool, args []string) (string, []string) {
	if !lowPriority {
		return ffmpeg, args
	}
	full := make([]string, 0, len(lowPriorityPrefix)+1+len(args))
	full = append(full, lowPriorityPrefix[1:]...)
	full = append(full, ffmpeg)
	full = append(full, args...)
	return lowPriorityPrefix[0], full
}
