package resolver

import "context"

// ProgressFunc receives download progress as a percentage between 0 and 100.
// The resolver may call it at arbitrary granularity, or not at all when the
// total size is unknown.
type ProgressFunc func(percent float64)

// MediaInfo holds metadata resolved for a source URL without downloading it.
type MediaInfo struct {
	Title           string
	DurationSeconds int
	Thumbnail       string
	Uploader        string
	Description     string
}

// DownloadResult describes the artifact written by a completed download.
type DownloadResult struct {
	// Filename is the path of the file written on disk.
	Filename  string
	Title     string
	Thumbnail string
}

// Resolver turns a source URL into metadata and/or a downloaded media file.
// Implementations signal unsupported URLs, network errors, and extraction
// failures through the returned error.
type Resolver interface {
	// Probe fetches metadata for the URL without downloading media.
	Probe(ctx context.Context, url string) (*MediaInfo, error)

	// Download fetches the media into a file matching outputTemplate
	// (yt-dlp template syntax, e.g. "/data/abc123.%(ext)s"), reporting
	// progress through onProgress when it is non-nil.
	Download(ctx context.Context, url, outputTemplate string, onProgress ProgressFunc) (*DownloadResult, error)
}
