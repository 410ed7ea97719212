// Package transcode turns arbitrary video files into the browser-friendly MP4
// profile with ffmpeg.
//
// Converter.Convert always writes to a sibling temp file carrying the
// ".converting." marker and renames it over the output only after ffmpeg (and
// the optional ffprobe verification) succeed. When the primary H.264 profile
// fails, a lighter profile without the profile/level/channel constraints is
// attempted before the job is reported as failed. Temp files left by an
// interrupted agent are recognised by their marker and deleted instead of
// being converted again.
package transcode
