package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"hmdoc/internal/domain"
	"hmdoc/internal/publish"
	"hmdoc/internal/storage"
)

// ErrPublishInProgress is returned when a document is already being published.
var ErrPublishInProgress = errors.New("publish already in progress")

// PublishSchedule publishes DocumentID (every document when empty) on Cron.
type PublishSchedule struct {
	Cron       string
	DocumentID string
}

// ─────────────────────────────────────────────────────────────
// Publish Service: mirrors documents into publish targets
// ─────────────────────────────────────────────────────────────

// PublishService publishes documents to the configured targets, by request
// or on cron schedules. At most one publish per document runs at a time.
type PublishService struct {
	documents *DocumentService
	runs      *storage.PublishRunStore
	targets   []publish.Target
	emitter   EventEmitter
	logger    *zap.Logger
	running   runningGuard

	mu        sync.Mutex
	cronSched *cron.Cron
}

// NewPublishService creates a PublishService. The service does not own the
// targets; the caller closes them.
func NewPublishService(
	documents *DocumentService,
	runs *storage.PublishRunStore,
	targets []publish.Target,
	emitter EventEmitter,
	logger *zap.Logger,
) *PublishService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishService{
		documents: documents,
		runs:      runs,
		targets:   targets,
		emitter:   emitter,
		logger:    logger.Named("publish"),
	}
}

// Targets returns the names of the configured targets.
func (s *PublishService) Targets() []string {
	names := make([]string, len(s.targets))
	for i, t := range s.targets {
		names[i] = t.Name()
	}
	return names
}

func (s *PublishService) selectTargets(names []string) ([]publish.Target, error) {
	if len(s.targets) == 0 {
		return nil, errors.New("no publish targets configured")
	}
	if len(names) == 0 {
		return s.targets, nil
	}
	var out []publish.Target
	for _, name := range names {
		found := false
		for _, t := range s.targets {
			if t.Name() == name {
				out = append(out, t)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown publish target %q", name)
		}
	}
	return out, nil
}

// Publish sends one document to the named targets (all targets when none are
// named). Every attempt is recorded as a run; the returned error joins the
// failures.
func (s *PublishService) Publish(ctx context.Context, documentID string, targetNames ...string) ([]domain.PublishRun, error) {
	targets, err := s.selectTargets(targetNames)
	if err != nil {
		return nil, err
	}
	if !s.running.TryLock(documentID) {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrPublishInProgress)
	}
	defer s.running.Unlock(documentID)

	snap, err := s.documents.Snapshot(documentID)
	if err != nil {
		return nil, err
	}

	runs := make([]domain.PublishRun, 0, len(targets))
	var errs []error
	for _, t := range targets {
		run := domain.PublishRun{
			DocumentID: documentID,
			Target:     t.Name(),
			StartedAt:  time.Now(),
		}
		n, err := t.Publish(ctx, snap)
		run.FinishedAt = time.Now()
		run.Blocks = n
		if err != nil {
			run.Status = domain.PublishStatusError
			run.Error = err.Error()
			errs = append(errs, fmt.Errorf("target %s: %w", t.Name(), err))
			s.logger.Error("publish_failed", zap.String("document", documentID), zap.String("target", t.Name()), zap.Error(err))
		} else {
			run.Status = domain.PublishStatusSuccess
			s.logger.Info("document_published", zap.String("document", documentID), zap.String("target", t.Name()), zap.Int("blocks", n))
		}
		if err := s.runs.CreateRun(&run); err != nil {
			s.logger.Warn("publish_run_not_recorded", zap.String("document", documentID), zap.Error(err))
		}
		runs = append(runs, run)
	}

	s.emitter.Emit(ctx, EventDocumentPublished, runs)
	return runs, errors.Join(errs...)
}

// PublishAll publishes every document. Documents already being published
// are skipped.
func (s *PublishService) PublishAll(ctx context.Context) error {
	docs, err := s.documents.ListDocuments()
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	var errs []error
	for _, d := range docs {
		if s.InProgress(d.ID) {
			s.logger.Debug("publish_skipped", zap.String("document", d.ID), zap.String("reason", "in progress"))
			continue
		}
		if _, err := s.Publish(ctx, d.ID); err != nil && !errors.Is(err, ErrPublishInProgress) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InProgress reports whether a publish of documentID is running.
func (s *PublishService) InProgress(documentID string) bool {
	return s.running.Running(documentID)
}

// ListRuns returns the latest publish runs of a document.
func (s *PublishService) ListRuns(documentID string, limit int) ([]domain.PublishRun, error) {
	runs, err := s.runs.ListRuns(documentID, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []domain.PublishRun{}
	}
	return runs, nil
}

// ── Schedules ──────────────────────────────────────────────

// StartSchedules replaces any running schedules with the given ones.
// An invalid cron expression fails the whole call and nothing is scheduled.
func (s *PublishService) StartSchedules(ctx context.Context, schedules []PublishSchedule) error {
	s.stopSchedules()
	if len(schedules) == 0 {
		return nil
	}

	c := cron.New()
	for _, sc := range schedules {
		sc := sc
		_, err := c.AddFunc(sc.Cron, func() {
			if sc.DocumentID == "" {
				s.logger.Info("scheduled_publish_all")
				if err := s.PublishAll(ctx); err != nil {
					s.logger.Error("scheduled_publish_failed", zap.Error(err))
				}
				return
			}
			s.logger.Info("scheduled_publish", zap.String("document", sc.DocumentID))
			if _, err := s.Publish(ctx, sc.DocumentID); err != nil {
				s.logger.Error("scheduled_publish_failed", zap.String("document", sc.DocumentID), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %q: %w", sc.Cron, err)
		}
	}
	c.Start()

	s.mu.Lock()
	s.cronSched = c
	s.mu.Unlock()
	s.logger.Info("publish_schedules_started", zap.Int("count", len(schedules)))
	return nil
}

// Stop stops the schedules and waits for in-flight publishes or ctx.
func (s *PublishService) Stop(ctx context.Context) {
	s.stopSchedules()
	s.running.WaitAll(ctx)
}

func (s *PublishService) stopSchedules() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
