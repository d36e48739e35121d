package download

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/yasef05/video-downloader-backend/internal/model"
	"github.com/yasef05/video-downloader-backend/internal/resolver"
	"github.com/yasef05/video-downloader-backend/internal/store"
)

// Service handles download job submission and execution.
type Service struct {
	store       store.JobStore
	resolver    resolver.Resolver
	downloadDir string
	sem         chan struct{}
	logger      *slog.Logger
}

// NewService creates a download service writing artifacts into downloadDir
// and running at most maxParallel downloads at once.
func NewService(jobs store.JobStore, res resolver.Resolver, downloadDir string, maxParallel int, logger *slog.Logger) *Service {
	if maxParallel < 1 {
		maxParallel = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       jobs,
		resolver:    res,
		downloadDir: downloadDir,
		sem:         make(chan struct{}, maxParallel),
		logger:      logger,
	}
}

// Submit accepts a URL for download. The job is stored before this returns,
// so callers can poll immediately; the download itself runs in a separate
// goroutine and Submit never blocks on it.
func (s *Service) Submit(ctx context.Context, url string) (*model.Job, error) {
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		URL:       url,
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	go s.run(job.ID, url)

	s.logger.Info("download submitted", "job_id", job.ID, "url", url)
	return job, nil
}

// Job returns a snapshot of the job with the given identifier.
func (s *Service) Job(ctx context.Context, id string) (*model.Job, error) {
	return s.store.Get(ctx, id)
}

// ArtifactPath returns the on-disk path for an artifact filename.
func (s *Service) ArtifactPath(filename string) string {
	return filepath.Join(s.downloadDir, filename)
}

// run executes a single job to its terminal state. It is the only writer
// for this job's record. Every resolver failure is converted into the
// error status so a job can never be left downloading forever.
func (s *Service) run(id, url string) {
	// The job must outlive the submitting request.
	ctx := context.Background()

	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	s.setStatus(ctx, id, model.StatusDownloading)

	template := filepath.Join(s.downloadDir, id+".%(ext)s")
	result, err := s.resolver.Download(ctx, url, template, func(percent float64) {
		s.reportProgress(ctx, id, percent)
	})
	if err != nil {
		s.fail(ctx, id, err)
		return
	}

	s.complete(ctx, id, result)
}

func (s *Service) setStatus(ctx context.Context, id string, status model.JobStatus) {
	err := s.store.Update(ctx, id, func(j *model.Job) {
		j.Status = status
	})
	if err != nil {
		s.logger.Error("updating job status", "job_id", id, "status", status, "error", err)
	}
}

func (s *Service) reportProgress(ctx context.Context, id string, percent float64) {
	err := s.store.Update(ctx, id, func(j *model.Job) {
		// Progress never moves backwards even if the resolver reports
		// out of order.
		if percent > j.Progress {
			j.Progress = percent
		}
	})
	if err != nil {
		s.logger.Warn("updating job progress", "job_id", id, "error", err)
	}
}

func (s *Service) complete(ctx context.Context, id string, result *resolver.DownloadResult) {
	var title string
	err := s.store.Update(ctx, id, func(j *model.Job) {
		j.Status = model.StatusCompleted
		j.Progress = 100
		j.Filename = filepath.Base(result.Filename)
		j.Title = result.Title
		j.Thumbnail = result.Thumbnail
		title = j.DisplayTitle()
	})
	if err != nil {
		s.logger.Error("completing job", "job_id", id, "error", err)
		return
	}
	s.logger.Info("download completed", "job_id", id, "title", title, "filename", filepath.Base(result.Filename))
}

func (s *Service) fail(ctx context.Context, id string, cause error) {
	err := s.store.Update(ctx, id, func(j *model.Job) {
		j.Status = model.StatusError
		j.Error = cause.Error()
	})
	if err != nil {
		s.logger.Error("failing job", "job_id", id, "error", err)
		return
	}
	s.logger.Warn("download failed", "job_id", id, "error", cause)
}
