package download

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yasef05/video-downloader-backend/internal/model"
	"github.com/yasef05/video-downloader-backend/internal/resolver"
	"github.com/yasef05/video-downloader-backend/internal/store"
)

// stubResolver implements resolver.Resolver with canned behavior.
type stubResolver struct {
	probeFunc    func(ctx context.Context, url string) (*resolver.MediaInfo, error)
	downloadFunc func(ctx context.Context, url, outputTemplate string, onProgress resolver.ProgressFunc) (*resolver.DownloadResult, error)
}

func (s *stubResolver) Probe(ctx context.Context, url string) (*resolver.MediaInfo, error) {
	return s.probeFunc(ctx, url)
}

func (s *stubResolver) Download(ctx context.Context, url, outputTemplate string, onProgress resolver.ProgressFunc) (*resolver.DownloadResult, error) {
	return s.downloadFunc(ctx, url, outputTemplate, onProgress)
}

// writeArtifact fills in the output template the way yt-dlp would and writes
// a small file there.
func writeArtifact(t *testing.T, outputTemplate, ext string, content []byte) string {
	t.Helper()
	path := strings.Replace(outputTemplate, "%(ext)s", ext, 1)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writing stub artifact: %v", err)
	}
	return path
}

func waitForTerminal(t *testing.T, svc *Service, id string) *model.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Job(context.Background(), id)
		if err != nil {
			t.Fatalf("polling job: %v", err)
		}
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", id)
	return nil
}

func TestSubmit_EmptyURL(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), &stubResolver{}, t.TempDir(), 2, nil)

	if _, err := svc.Submit(context.Background(), ""); err == nil {
		t.Error("expected error submitting empty URL, got nil")
	}
}

func TestSubmit_VisibleImmediately(t *testing.T) {
	release := make(chan struct{})
	res := &stubResolver{
		downloadFunc: func(ctx context.Context, url, tpl string, onProgress resolver.ProgressFunc) (*resolver.DownloadResult, error) {
			<-release
			return nil, errors.New("aborted")
		},
	}
	svc := NewService(store.NewMemoryStore(), res, t.TempDir(), 1, nil)

	job, err := svc.Submit(context.Background(), "https://example.com/video")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	// Polling right after submit must find the job, never NotFound.
	snap, err := svc.Job(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Job() right after Submit() failed: %v", err)
	}

	if !snap.Status.IsActive() {
		t.Errorf("status right after submit = %s, expected pending or downloading", snap.Status)
	}

	close(release)
	waitForTerminal(t, svc, job.ID)
}

func TestRun_Success(t *testing.T) {
	dir := t.TempDir()

	res := &stubResolver{
		downloadFunc: func(ctx context.Context, url, tpl string, onProgress resolver.ProgressFunc) (*resolver.DownloadResult, error) {
			onProgress(50)
			path := writeArtifact(t, tpl, "mp4", []byte("video-bytes"))
			return &resolver.DownloadResult{
				Filename:  path,
				Title:     "Sample",
				Thumbnail: "https://example.com/thumb.jpg",
			}, nil
		},
	}
	svc := NewService(store.NewMemoryStore(), res, dir, 2, nil)

	job, err := svc.Submit(context.Background(), "https://example.com/video")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	final := waitForTerminal(t, svc, job.ID)

	if final.Status != model.StatusCompleted {
		t.Fatalf("status = %s, expected completed (error: %s)", final.Status, final.Error)
	}

	wantFilename := job.ID + ".mp4"
	if final.Filename != wantFilename {
		t.Errorf("filename = %s, expected %s", final.Filename, wantFilename)
	}

	if final.Title != "Sample" {
		t.Errorf("title = %s, expected Sample", final.Title)
	}

	if final.Progress != 100 {
		t.Errorf("progress = %v, expected 100", final.Progress)
	}

	if final.Error != "" {
		t.Errorf("error = %q, expected empty on success", final.Error)
	}

	data, err := os.ReadFile(svc.ArtifactPath(final.Filename))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Errorf("artifact content = %q, expected video-bytes", data)
	}
}

func TestRun_ResolverFailure(t *testing.T) {
	dir := t.TempDir()

	res := &stubResolver{
		downloadFunc: func(ctx context.Context, url, tpl string, onProgress resolver.ProgressFunc) (*resolver.DownloadResult, error) {
			return nil, errors.New("unsupported URL")
		},
	}
	svc := NewService(store.NewMemoryStore(), res, dir, 2, nil)

	job, err := svc.Submit(context.Background(), "https://example.com/broken")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	final := waitForTerminal(t, svc, job.ID)

	if final.Status != model.StatusError {
		t.Fatalf("status = %s, expected error", final.Status)
	}

	if final.Error != "unsupported URL" {
		t.Errorf("error = %q, expected 'unsupported URL'", final.Error)
	}

	if final.Filename != "" {
		t.Errorf("filename = %q, expected empty on failure", final.Filename)
	}

	// Failure writes no artifact files.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading download dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no artifacts on failure, found %d files", len(entries))
	}
}

func TestRun_ProgressNeverDecreases(t *testing.T) {
	reported := make(chan struct{})
	release := make(chan struct{})

	res := &stubResolver{
		downloadFunc: func(ctx context.Context, url, tpl string, onProgress resolver.ProgressFunc) (*resolver.DownloadResult, error) {
			onProgress(30)
			onProgress(10) // out-of-order report must be ignored
			close(reported)
			<-release
			path := writeArtifact(t, tpl, "mp4", []byte("x"))
			return &resolver.DownloadResult{Filename: path}, nil
		},
	}
	svc := NewService(store.NewMemoryStore(), res, t.TempDir(), 1, nil)

	job, err := svc.Submit(context.Background(), "https://example.com/video")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	select {
	case <-reported:
	case <-time.After(5 * time.Second):
		t.Fatal("resolver stub never reported progress")
	}

	snap, err := svc.Job(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Job() failed: %v", err)
	}

	if snap.Progress != 30 {
		t.Errorf("progress = %v, expected 30 after out-of-order report", snap.Progress)
	}

	close(release)
	waitForTerminal(t, svc, job.ID)
}

func TestRun_StatusSequence(t *testing.T) {
	res := &stubResolver{
		downloadFunc: func(ctx context.Context, url, tpl string, onProgress resolver.ProgressFunc) (*resolver.DownloadResult, error) {
			path := writeArtifact(t, tpl, "mp4", []byte("x"))
			return &resolver.DownloadResult{Filename: path}, nil
		},
	}
	svc := NewService(store.NewMemoryStore(), res, t.TempDir(), 1, nil)

	job, err := svc.Submit(context.Background(), "https://example.com/video")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	// Observed status sequence must be a prefix walk of
	// pending -> downloading -> terminal, with no regressions.
	order := map[model.JobStatus]int{
		model.StatusPending:     0,
		model.StatusDownloading: 1,
		model.StatusCompleted:   2,
		model.StatusError:       2,
	}

	last := -1
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := svc.Job(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("Job() failed: %v", err)
		}
		rank, ok := order[snap.Status]
		if !ok {
			t.Fatalf("unknown status %s", snap.Status)
		}
		if rank < last {
			t.Fatalf("status went backwards: %s after rank %d", snap.Status, last)
		}
		last = rank
		if snap.Status.IsTerminal() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
}

func TestFilepathTemplate(t *testing.T) {
	dir := t.TempDir()

	var gotTemplate string
	res := &stubResolver{
		downloadFunc: func(ctx context.Context, url, tpl string, onProgress resolver.ProgressFunc) (*resolver.DownloadResult, error) {
			gotTemplate = tpl
			path := writeArtifact(t, tpl, "webm", []byte("x"))
			return &resolver.DownloadResult{Filename: path}, nil
		},
	}
	svc := NewService(store.NewMemoryStore(), res, dir, 1, nil)

	job, err := svc.Submit(context.Background(), "https://example.com/video")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	final := waitForTerminal(t, svc, job.ID)

	want := filepath.Join(dir, job.ID+".%(ext)s")
	if gotTemplate != want {
		t.Errorf("output template = %s, expected %s", gotTemplate, want)
	}

	if final.Filename != job.ID+".webm" {
		t.Errorf("filename = %s, expected %s.webm", final.Filename, job.ID)
	}
}

// syncBuffer guards a bytes.Buffer so the runner goroutine can log while
// the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForLog(t *testing.T, buf *syncBuffer, substr string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), substr) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("log output %q never contained %q", buf.String(), substr)
}

func TestRun_CompletionLogUsesTitle(t *testing.T) {
	res := &stubResolver{
		downloadFunc: func(ctx context.Context, url, tpl string, onProgress resolver.ProgressFunc) (*resolver.DownloadResult, error) {
			path := writeArtifact(t, tpl, "mp4", []byte("video-bytes"))
			return &resolver.DownloadResult{Filename: path, Title: "Sample"}, nil
		},
	}
	buf := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	svc := NewService(store.NewMemoryStore(), res, t.TempDir(), 1, logger)

	if _, err := svc.Submit(context.Background(), "https://example.com/video"); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	waitForLog(t, buf, "title=Sample")
}

func TestRun_CompletionLogFallsBackToURL(t *testing.T) {
	res := &stubResolver{
		downloadFunc: func(ctx context.Context, url, tpl string, onProgress resolver.ProgressFunc) (*resolver.DownloadResult, error) {
			path := writeArtifact(t, tpl, "mp4", []byte("video-bytes"))
			return &resolver.DownloadResult{Filename: path}, nil
		},
	}
	buf := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	svc := NewService(store.NewMemoryStore(), res, t.TempDir(), 1, logger)

	if _, err := svc.Submit(context.Background(), "https://example.com/untitled"); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	waitForLog(t, buf, "title=https://example.com/untitled")
}
