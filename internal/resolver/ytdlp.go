package resolver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// Timeout and cadence defaults
const (
	DefaultProbeTimeout    = 60 * time.Second
	DefaultDownloadTimeout = 30 * time.Minute
	DefaultProgressEvery   = 500 * time.Millisecond
)

// YTDLP resolves and downloads media through the yt-dlp binary via
// github.com/lrstanley/go-ytdlp.
type YTDLP struct {
	probeTimeout    time.Duration
	downloadTimeout time.Duration
	progressEvery   time.Duration
}

// NewYTDLP creates a resolver with the given timeouts. Non-positive values
// fall back to the defaults.
func NewYTDLP(probeTimeout, downloadTimeout time.Duration) *YTDLP {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	if downloadTimeout <= 0 {
		downloadTimeout = DefaultDownloadTimeout
	}
	return &YTDLP{
		probeTimeout:    probeTimeout,
		downloadTimeout: downloadTimeout,
		progressEvery:   DefaultProgressEvery,
	}
}

// Probe fetches metadata for the URL without downloading media.
func (y *YTDLP) Probe(ctx context.Context, url string) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, y.probeTimeout)
	defer cancel()

	dl := ytdlp.New().
		SkipDownload().
		NoPlaylist()

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", url, err)
	}

	info, err := firstExtractedInfo(result)
	if err != nil {
		return nil, err
	}

	mi := &MediaInfo{}
	if info.Title != nil {
		mi.Title = *info.Title
	}
	if info.Duration != nil {
		mi.DurationSeconds = int(*info.Duration)
	}
	if info.Thumbnail != nil {
		mi.Thumbnail = *info.Thumbnail
	}
	if info.Uploader != nil {
		mi.Uploader = *info.Uploader
	}
	if info.Description != nil {
		mi.Description = *info.Description
	}
	return mi, nil
}

// Download fetches the media into a file matching outputTemplate.
func (y *YTDLP) Download(ctx context.Context, url, outputTemplate string, onProgress ProgressFunc) (*DownloadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, y.downloadTimeout)
	defer cancel()

	dl := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		NoPlaylist().
		Output(outputTemplate)

	if onProgress != nil {
		dl.ProgressFunc(y.progressEvery, func(update ytdlp.ProgressUpdate) {
			if update.TotalBytes <= 0 {
				return
			}
			percent := float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
			onProgress(roundPercent(percent))
		})
	}

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", url, err)
	}

	info, err := firstExtractedInfo(result)
	if err != nil {
		return nil, err
	}

	res := &DownloadResult{}
	if info.Filename != nil {
		res.Filename = *info.Filename
	}
	if info.Title != nil {
		res.Title = *info.Title
	}
	if info.Thumbnail != nil {
		res.Thumbnail = *info.Thumbnail
	}

	if res.Filename == "" {
		return nil, fmt.Errorf("download of %s finished without an output file", url)
	}
	return res, nil
}

func firstExtractedInfo(result *ytdlp.Result) (*ytdlp.ExtractedInfo, error) {
	info, err := result.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parsing extracted info: %w", err)
	}
	if len(info) == 0 {
		return nil, fmt.Errorf("no extractable media found")
	}
	return info[0], nil
}

// roundPercent keeps progress values at two decimal places.
func roundPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return math.Round(p*100) / 100
}
